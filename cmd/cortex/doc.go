// Copyright (c) Cortex Authors.
// Licensed under the MIT License.

/*
Package main 提供 Cortex 服务端程序入口。

# 概述

cmd/cortex 装配完整依赖图（见根包 cortex.New），并通过 HTTP 暴露
文档索引、对话、推理与稀疏检索端点。配置来自 YAML 文件、.env 与环境变量，
日志使用 zap，指标通过 Prometheus 在独立端口暴露，链路追踪走 OTLP。

# 子命令

  - serve   启动服务（--config, --env-file）
  - health  探测运行中实例的健康端点（--addr, --path）
  - version 打印构建信息

# 中间件链

Recovery → RequestID → SecurityHeaders → OTelTracing → MetricsMiddleware →
RequestLogger → CORS → RateLimiter（基于 IP）

# 优雅关闭

信号监听后依次停止限流清理、HTTP、Metrics，再关闭依赖（存储、缓存）与遥测。
Version、BuildTime、GitCommit 通过 ldflags 注入。
*/
package main
