// Copyright 2026 Cortex Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
# 概述

包 providers 提供模型服务商适配的公共基础层：配置结构与错误映射。
具体实现位于子包（目前为 gemini）。

# 核心类型

  - BaseProviderConfig — APIKey、BaseURL、Model、Timeout
  - GeminiConfig — 额外包含本地限流与默认温度

# 核心函数

  - MapHTTPError — 将 HTTP 状态码映射为语义化的 llm.Error（含 Retryable 标记）
  - TransportError / DecodeError — 网络错误与解析错误的统一包装
  - ReadErrorMessage — 解析 {"error":{...}} 风格的错误体
  - ChooseModel — 按优先级选择模型（请求 > 默认 > 兜底）
*/
package providers
