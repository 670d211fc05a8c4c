// =============================================================================
// 📦 Cortex 默认配置
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:    DefaultServerConfig(),
		Log:       DefaultLogConfig(),
		Storage:   DefaultStorageConfig(),
		Mongo:     DefaultMongoConfig(),
		Redis:     DefaultRedisConfig(),
		LLM:       DefaultLLMConfig(),
		Pinecone:  DefaultPineconeConfig(),
		Parser:    DefaultParserConfig(),
		Agent:     DefaultAgentConfig(),
		Telemetry: DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		MetricsPort:     9091,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    5 * time.Minute, // /index 与 /reason 会跑完整的 LLM 流水线
		ShutdownTimeout: 15 * time.Second,
		RateLimitRPS:    20,
		RateLimitBurst:  40,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:       "info",
		Format:      "json",
		OutputPaths: []string{"stdout"},
	}
}

// DefaultStorageConfig 内存后端，索引落盘到 ./data
func DefaultStorageConfig() StorageConfig {
	return StorageConfig{
		Root:          "./data",
		Backend:       "memory",
		VectorBackend: "memory",
	}
}

// DefaultMongoConfig 返回默认 MongoDB 配置
func DefaultMongoConfig() MongoConfig {
	return MongoConfig{
		URI:      "mongodb://localhost:27017",
		Database: "cortex",
		Timeout:  10 * time.Second,
	}
}

// DefaultRedisConfig 默认不启用
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:       "",
		DB:         0,
		PoolSize:   10,
		Namespace:  "cortex",
		DefaultTTL: 24 * time.Hour,
	}
}

// DefaultLLMConfig 返回默认 LLM 配置
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		Provider:            "gemini",
		Model:               "gemini-1.5-flash",
		Temperature:         0,
		Timeout:             2 * time.Minute,
		EmbeddingModel:      "text-embedding-004",
		EmbeddingDimensions: 768,
		EmbeddingCacheTTL:   24 * time.Hour,
	}
}

// DefaultPineconeConfig 返回默认 Pinecone 配置
func DefaultPineconeConfig() PineconeConfig {
	return PineconeConfig{
		Index:   "cortex",
		Timeout: 30 * time.Second,
	}
}

// DefaultParserConfig 返回默认解析配置
func DefaultParserConfig() ParserConfig {
	return ParserConfig{
		Language: "en",
		Timeout:  5 * time.Minute,
	}
}

// DefaultAgentConfig 返回默认 Agent 配置
func DefaultAgentConfig() AgentConfig {
	return AgentConfig{
		ToolCallPolicy:        "first",
		HistoryWindow:         4,
		TurnTimeout:           2 * time.Minute,
		ComposerWorkers:       2,
		DecompositionCacheTTL: time.Hour,
		MemoryMaxTokens:       2048,
		RecallTopK:            5,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "cortex",
		SampleRate:   0.1,
	}
}
