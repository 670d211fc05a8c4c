// Copyright 2026 Cortex Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
# 概述

包 gemini 提供 Google Gemini 模型的 Provider 适配实现，直接对接
Gemini REST API（generativelanguage.googleapis.com）。

# 核心结构体

  - GeminiProvider — 持有 http.Client、GeminiConfig 与可选的
    golang.org/x/time/rate 限流器；使用 x-goog-api-key 请求头认证
  - geminiRequest / geminiResponse — Gemini 原生请求/响应结构

# 支持能力

  - generateContent 同步补全
  - 结构化输出：ResponseFormat → responseMimeType + responseJsonSchema
  - 原生 Function Calling（parametersJsonSchema，toolConfig AUTO/ANY/NONE）
  - HealthCheck（列出模型）
*/
package gemini
