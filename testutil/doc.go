// Copyright 2026 Cortex Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license.

/*
Package testutil 提供 Cortex 测试的共享工具和辅助函数。

# 核心能力

  - 上下文辅助: TestContext / TestContextWithTimeout，自动注册 Cleanup 防止泄漏
  - 配置: TestConfig 返回全内存后端、存储根目录位于 t.TempDir() 的配置
  - 断言工具: AssertMessagesEqual，忽略 ID 与时间戳比较消息序列

# 子包

  - testutil/mocks: MockProvider（按提示词路由的 LLM Provider）与
    MockEmbedder（确定性向量），均支持 Builder 模式与错误注入
  - testutil/fixtures: 样例文档、消息与对话

# 使用示例

	ctx := testutil.TestContext(t)
	provider := mocks.NewMockProvider().WithRoute("sub-questions", `{"sub_queries":[]}`)
	deps, err := cortex.New(ctx, testutil.TestConfig(t), cortex.WithProvider(provider))
*/
package testutil
