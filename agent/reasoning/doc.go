// 版权所有 2024 Cortex Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 reasoning 实现检索增强的多步推理管线。

# 概述

一次推理调用依次执行：查询分解 → 按子查询混合检索 → 子查询上下文合成
→ 最终答案合成 → 表格合成。推理步骤的顺序始终与子查询顺序一致。

# 核心接口/类型

  - Decomposer: 结构化输出 {"sub_queries": [...]}，每个子查询再生成
    逗号分隔的实体提示；空分解返回 DecompositionError。可选 Redis 缓存。
  - Composer: ComposeContexts（2 个 worker，保序）、ComposeAnswer、
    ComposeTable、UpdateTable。
  - Engine: Think(ctx, ownerID, query) 串联整个管线。

# 主要能力

  - 表格校验：ParseTable 容忍代码块包裹，行键集合不一致时返回 CompositionError
  - UpdateTable 在指令未要求删除时拒绝丢失原有行的输出
*/
package reasoning
