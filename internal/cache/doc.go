// Copyright 2025-2026 Cortex Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
包 cache 提供基于 Redis 的缓存管理能力。

# 概述

本包封装 go-redis 客户端，为查询分解结果与查询向量提供共享缓存。
Redis 为可选依赖：未配置地址时上层组件直接跳过缓存。

# 核心类型

  - Manager：持有 Redis 客户端，提供 Get/Set/Delete 与
    GetJSON/SetJSON，以及带命名空间的 Key 构造。
  - Config：地址、命名空间、默认 TTL、连接池与健康检查间隔。
  - Stats：进程内命中/未命中计数与键数量。

# 主要能力

  - 键构造：Key(kind, parts...) 对片段做 sha256 摘要。
  - 健康检查：后台定时 Ping，Close 时退出。
  - 错误语义：ErrCacheMiss / ErrClosed 与 IsCacheMiss。
*/
package cache
