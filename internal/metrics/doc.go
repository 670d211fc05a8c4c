// 版权所有 2024 Cortex Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的指标采集能力，覆盖 HTTP、LLM、
索引、检索、对话轮次与记忆整合。

# 概述

Collector 通过 promauto 注册全部指标，按 namespace 隔离。它直接实现
各业务包定义的观察者接口，由 cortex 装配时注入，业务包本身不依赖
Prometheus。

# 核心类型

  - Collector：指标收集器，持有 Counter 与 Histogram 向量。

# 主要能力

  - HTTP 指标：请求总数、耗时、请求/响应体大小，状态码归类为 2xx/3xx/4xx/5xx。
  - LLM 指标：请求总数、耗时、Token 用量（prompt/completion），按 provider/model 分组。
  - 索引指标：各后端（graph/sparse/vector）任务数与耗时。
  - 检索指标：各检索路径执行数与耗时。
  - 对话与记忆：按路由统计轮次，按动作（create/update）统计记忆整合。
*/
package metrics
