// 版权所有 2024 Cortex Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 embedding 提供统一的文本嵌入（Embedding）接口与实现，
为向量索引、图实体检索与记忆召回提供向量表示。

# 核心接口

  - Provider：EmbedQuery / EmbedDocuments / Name / Dimensions。
  - EmbeddingRequest / EmbeddingResponse：标准化的请求与响应模型。
  - InputType：query 与 document 两种输入类型。

# 主要能力

  - Gemini 实现：batchEmbedContents 端点，超过 100 条自动分批，
    查询使用 RETRIEVAL_QUERY、文档使用 RETRIEVAL_DOCUMENT。
  - 查询缓存：CachedProvider 通过 internal/cache 在 Redis 中缓存查询向量。
  - 错误映射：HTTP 错误统一转换为 llm.Error。

# 使用方式

	provider := embedding.NewGeminiProvider(cfg)
	cached := embedding.NewCachedProvider(provider, cacheManager, time.Hour, logger)
	vec, err := cached.EmbedQuery(ctx, "what is KAG")
*/
package embedding
