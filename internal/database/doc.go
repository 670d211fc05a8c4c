// 版权所有 2024 Cortex Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 database 提供基于 GORM 的数据库连接池管理，支持健康检查与事务重试。

# 概述

本包通过 PoolManager 封装 GORM 与 database/sql 的连接池配置。
OpenSQLite 使用纯 Go 的 glebarez/sqlite 驱动打开父文档库，
无需 CGO。

# 核心类型

  - PoolManager：持有 GORM DB 实例与底层 sql.DB，
    提供 DB()、Ping()、Close() 等生命周期方法。
  - PoolConfig：最大空闲/打开连接数、连接生命周期与健康检查间隔。
  - TransactionFunc：事务回调函数类型。

# 主要能力

  - 事务管理：WithTransaction 单次执行，
    WithTransactionRetry 在 SQLITE_BUSY 等锁冲突时指数退避重试。
  - 健康检查：后台定时 PingContext 探活，Close 时退出。
*/
package database
