// 版权所有 2024 Cortex Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 persistence 提供会话、文档记录与长期记忆的持久化存储抽象及多后端实现。

# 概述

会话只追加消息：每一轮对话通过一次原子更新追加一条消息，并可同时替换
输出表格。文档记录按 (owner, name) 唯一，重复索引时覆盖。记忆按会话唯一。

# 核心接口

  - Store: 所有存储的基础接口，提供 Close 和 Ping 健康检查。
  - ConversationStore: Create / Get / ListByOwner / Append / SetSummary。
  - DocumentStore: UpsertDocument / GetDocument / ListByOwner，
    同时满足 rag.DocumentWriter。
  - MemoryStore: GetByConversation / Save / ListByOwner。
  - Stores: 同一后端的三个存储集合，统一 Close 与 Ping。

# 后端实现

  - Memory: 内存实现，适合开发与测试，重启后数据丢失。
  - Mongo: 基于 mongo-driver v2，集合 conversation / documents / memories；
    追加消息使用 FindOneAndUpdate（$push + $set last_updated，返回更新后文档）。

# 使用方式

	stores, err := persistence.NewStores(ctx, config, logger)
	defer stores.Close()
*/
package persistence
