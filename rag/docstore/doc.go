// Copyright 2026 Cortex Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
Package docstore 保存多向量索引的父文档记录。

向量库中只存子块、摘要与假设问题，命中后按 doc_id 回查这里的
整页原文。SQLiteStore 使用 GORM + glebarez/sqlite（纯 Go，无 CGO），
默认位置为 <root>/vector_docstore/docstore.db；MemoryStore 用于测试。
*/
package docstore
