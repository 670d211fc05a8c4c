// Copyright (c) Cortex Authors.
// Licensed under the MIT License.

/*
Package types 提供 Cortex 服务的全局共享类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 rag、agent、api 等上层
模块提供统一的数据契约，以避免循环依赖。

# 核心类型

  - Document / DocumentFeatures — 索引成功后生成的文档记录及其结构化摘要
  - CollectionKey / IndexSource — (source, owner) 维度的索引集合标识
  - EvidenceItem                — 单条检索证据（分数位于 [0,1]）
  - SubQuery / ReasoningStep    — 查询分解结果与逐步推理上下文
  - ThinkingOutput / Table      — 推理输出与统一键集的动态表格
  - Conversation / Message      — 会话与只追加的消息
  - Memory                      — 会话级长期记忆（LastUpdateCount 为水位线）
  - Error / ErrorCode           — 结构化错误体系（Parse / BackendIndex / Retrieval /
    Decomposition / Composition / ConversationState）

# 主要能力

  - 错误工具链：AsError / IsErrorCode / GetErrorCode / IsRetryable
  - 表格校验：Table.Uniform 检查所有行键集一致
*/
package types
