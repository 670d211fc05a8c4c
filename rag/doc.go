// Copyright 2025-2026 Cortex Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
# 概述

Package rag 实现三路索引与混合检索：知识图谱、稀疏（BM25 + 向量）与
多向量索引。文档按页（"\n---\n"）切分后并发写入三个后端，检索时
三条路径并发执行，各自输出独立的上下文字段。

# 核心接口/类型

  - Indexer / Backend[H] — 后端统一接口：Upsert 写入，Load 以全有或全无方式加载集合
  - GraphIndex / GraphRetriever — 三元组抽取、实体嵌入；向量上下文 + 同义词两路检索
  - SparseIndex / SparseRetriever — 512 token 分块，BM25 与向量两路命中按批融合
  - VectorIndex / VectorRetriever — 子块、页摘要、假设问题多向量写入，按 doc_id 回查父文档
  - Orchestrator — 索引编排，Outcomes 收集各后端结果，Succeeded 判定成功
  - Engine — 混合检索引擎，RetrieveAll 按 4 个一批执行
  - Observer — 索引与检索耗时回调（由 internal/metrics 实现）

# 主要能力

  - 分数融合：Fuse 先截断到 [0,1]，再按阈值过滤并按 ID 去重（先到先得）
  - 分块：RecursiveSplitter（字符）与 TokenSplitter（tiktoken）
  - 文档特征：GenerateFeatures / DocumentColumn 由页摘要重新生成 summary、highlights、document_type
  - 子包：vectorstore（Pinecone / 内存）、docstore（SQLite 父文档）、
    diskstore（图与稀疏索引的 JSON 持久化）、parser（纯文本 / LlamaParse）
*/
package rag
