// 版权所有 2024 Cortex Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 conversation 实现单轮对话 Agent：决定直接回复还是调用工具，
并把结果作为一条消息追加到对话中。

# 概述

每一轮按 DECIDE → ROUTE → END 推进。DECIDE 把最近 4 条历史与最新消息
连同工具目录发给 LLM；ROUTE 要么持久化直接回复（from_conversation），
要么执行工具并持久化格式化后的输出（internal_knowledge）。一轮只追加
一条消息，工具调用前的临时回复不会落库。

# 核心接口

  - Agent：Turn 执行一轮对话
  - ToolCall：封闭的工具调用类型，KnowledgeSearch 或 TableUpdate
  - Thinker / TableUpdater：工具的执行方，由 agent/reasoning 实现
  - ToolCallPolicy：多个工具调用时的处理策略（first / all / reject）

# 主要能力

  - 状态机：validTransitions 静态转换表，非法转换返回 ConversationStateError
  - 参数校验：工具参数按 JSON Schema 校验后再解码
  - 表格：TableUpdate 基于对话当前 output_table，结果在同一次写入中替换它
*/
package conversation
