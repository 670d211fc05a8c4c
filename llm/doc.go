// 版权所有 2024 Cortex Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 llm 提供统一的大语言模型接入层：Provider 抽象、结构化输出与韧性包装。

# 概述

上层的分解器、组合器、会话代理与记忆整合器只依赖 [Provider] 接口，
不感知具体服务商。结构化输出统一经过 JSON Schema 校验，
保证进入业务层的数据形状可信。

# 核心接口

  - [Provider]：Completion / HealthCheck / Name

# 核心类型

  - [ChatRequest] / [ChatResponse]：聊天请求与响应
  - [ResponseFormat]：要求 Provider 返回符合 schema 的 JSON
  - [ToolSchema] / [ToolCall]：函数调用声明与调用结果
  - [Schema]：编译后的 JSON Schema（santhosh-tekuri/jsonschema）
  - [Error] / [ErrorCode]：带 HTTP 状态与 Retryable 标记的上游错误
  - [ResilientProvider]：重试 + 熔断包装
  - [InstrumentedProvider]：OpenTelemetry span 与 [Observer] 指标回调

# 主要能力

- 文本补全：[CompleteText] / [CompletePrompt]
- 结构化输出：[CompleteJSON] 去除代码围栏、校验 schema 后解码
- JSON 抽取：[ExtractJSON] 容忍模型在 JSON 周围附加说明文字
- 韧性：指数退避重试（仅 Retryable 错误）与连续失败熔断
- 观测：每次 Completion 记录耗时、模型与 token 用量

# 相关子包

- llm/providers：服务商公共配置与错误映射；llm/providers/gemini 为实现
- llm/embedding：文本嵌入 Provider 接口、Gemini 实现与 Redis 查询缓存
- llm/tokenizer：基于 tiktoken 的计数与截断
*/
package llm
