// Copyright 2026 Cortex Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
Package vectorstore 提供按租户分区的向量存储抽象。

# 概述

每个 owner 对应一个 collection（Pinecone namespace 或内存分区）。
多向量索引的子块、摘要与假设问题，以及记忆召回条目都写入这里。

# 核心接口

  - Store：Upsert / Query / Delete / CollectionExists。
  - Record / Match：带文本与扁平元数据的向量记录及其命中。
  - Filter：元数据等值过滤，Pinecone 端转换为 {"k":{"$eq":v}}。

# 实现

  - MemoryStore：sync.RWMutex 保护的内存实现，线性余弦相似度扫描。
  - PineconeStore：Pinecone REST 数据面客户端，可通过控制面解析 host。

所有命中分数都被限制在 [0,1] 区间内。
*/
package vectorstore
