// Copyright (c) Cortex Authors.
// Licensed under the MIT License.

/*
Package handlers 提供 Cortex HTTP API 的请求处理器实现。

# 概述

handlers 包实现了文档索引、对话、推理、稀疏检索与健康检查端点。
所有 Handler 均遵循标准 net/http 接口，依赖以小接口注入，
便于在测试中替换。

# 核心类型

  - ChatHandler      — /respond、/get/conversation、/get/conversation/all
  - DocumentHandler  — /index（multipart 上传）、/documents/all、/memories/all、/document-column
  - ReasoningHandler — /reason、/sparse-retrieve
  - HealthHandler    — /health、/healthz、/ready、/info
  - Response         — 错误响应信封（success + error + timestamp）
  - ResponseWriter   — 包装 http.ResponseWriter 以捕获状态码

# 主要能力

  - 统一错误输出：WriteError / WriteServiceError，ErrorCode → HTTP 状态码映射
  - 请求验证：DecodeJSONBody（1 MB 限制 + 严格模式）、RequireQuery
  - 可扩展健康检查：RegisterCheck 注册 PingCheck（Mongo、Redis、SQLite）
*/
package handlers
