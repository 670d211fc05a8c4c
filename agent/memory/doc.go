// 版权所有 2024 Cortex Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 memory 把对话轮次整合为长期记忆。

# 概述

每轮对话结束后，Decide 根据消息数与上次整合水位决定动作：
无记忆且消息数大于 2 时创建，距上次整合新增超过 2 条时更新。
创建基于全部消息并把水位设为 3；更新只看最近 3 条消息并把水位加 3。

# 核心接口

  - Decide：纯函数整合策略
  - Consolidator：执行整合，写入 Memory、召回向量并回写对话的标题与摘要

# 主要能力

  - 截断：对话文本按 tiktoken 截断到 2048 token
  - 召回：按 owner_id 与 type=recall 过滤检索前 5 条召回记忆
  - 结构化输出：{updated_summary, recall_memory, title} 经 JSON Schema 校验
*/
package memory
