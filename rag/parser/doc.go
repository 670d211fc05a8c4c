// Copyright 2026 Cortex Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
Package parser 将上传文件转换为纯文本，供索引编排器使用。

# 核心接口

  - Parser：Parse(ctx, fileName, reader) 与 SupportedTypes。
  - Registry：按扩展名路由，可设置兜底解析器。

# 实现

  - PlainTextParser：UTF-8 文本、Markdown、CSV、JSON，整体作为单页。
  - LlamaParseParser：上传 → 轮询任务 → 获取 markdown 结果，
    多页内容以 "\n---\n" 分隔。
*/
package parser
