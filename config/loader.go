// =============================================================================
// 📦 Cortex 配置加载器
// =============================================================================
// 统一配置加载，支持 .env + YAML 文件 + 环境变量覆盖
//
// 使用方法:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    WithEnvPrefix("CORTEX").
//	    Load()
//
// 配置优先级: 默认值 → YAML 文件 → 环境变量（.env 文件先注入环境）
// =============================================================================
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// 🎯 核心配置结构
// =============================================================================

// Config 是 Cortex 的完整配置结构
type Config struct {
	Server    ServerConfig    `yaml:"server" env:"SERVER"`
	Log       LogConfig       `yaml:"log" env:"LOG"`
	Storage   StorageConfig   `yaml:"storage" env:"STORAGE"`
	Mongo     MongoConfig     `yaml:"mongo" env:"MONGO"`
	Redis     RedisConfig     `yaml:"redis" env:"REDIS"`
	LLM       LLMConfig       `yaml:"llm" env:"LLM"`
	Pinecone  PineconeConfig  `yaml:"pinecone" env:"PINECONE"`
	Parser    ParserConfig    `yaml:"parser" env:"PARSER"`
	Agent     AgentConfig     `yaml:"agent" env:"AGENT"`
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	HTTPPort        int           `yaml:"http_port" env:"HTTP_PORT"`
	MetricsPort     int           `yaml:"metrics_port" env:"METRICS_PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	// 为空时拒绝跨域请求
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins" env:"CORS_ALLOWED_ORIGINS"`
	// 每个 IP 的限流，RPS <= 0 关闭限流
	RateLimitRPS   int `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	RateLimitBurst int `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`
	// 同时设置时 HTTP 端口以 HTTPS 提供服务
	TLSCertFile string `yaml:"tls_cert_file" env:"TLS_CERT_FILE"`
	TLSKeyFile  string `yaml:"tls_key_file" env:"TLS_KEY_FILE"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// 输出格式: json, console
	Format      string   `yaml:"format" env:"FORMAT"`
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
}

// StorageConfig 存储后端选择
type StorageConfig struct {
	// 图索引、稀疏索引与父文档库的根目录
	Root string `yaml:"root" env:"ROOT"`
	// 对话/文档/记忆存储: memory, mongo
	Backend string `yaml:"backend" env:"BACKEND"`
	// 向量存储: memory, pinecone
	VectorBackend string `yaml:"vector_backend" env:"VECTOR_BACKEND"`
}

// MongoConfig MongoDB 配置
type MongoConfig struct {
	URI         string        `yaml:"uri" env:"URI"`
	Database    string        `yaml:"database" env:"DATABASE"`
	Timeout     time.Duration `yaml:"timeout" env:"TIMEOUT"`
	MaxPoolSize uint64        `yaml:"max_pool_size" env:"MAX_POOL_SIZE"`
}

// RedisConfig Redis 缓存配置，Addr 为空时不启用缓存
type RedisConfig struct {
	Addr       string        `yaml:"addr" env:"ADDR"`
	Password   string        `yaml:"password" env:"PASSWORD"`
	DB         int           `yaml:"db" env:"DB"`
	PoolSize   int           `yaml:"pool_size" env:"POOL_SIZE"`
	Namespace  string        `yaml:"namespace" env:"NAMESPACE"`
	DefaultTTL time.Duration `yaml:"default_ttl" env:"DEFAULT_TTL"`
	TLS        bool          `yaml:"tls" env:"TLS"`
}

// LLMConfig LLM 与嵌入配置
type LLMConfig struct {
	// 目前仅支持 gemini
	Provider    string        `yaml:"provider" env:"PROVIDER"`
	APIKey      string        `yaml:"api_key" env:"API_KEY"`
	BaseURL     string        `yaml:"base_url" env:"BASE_URL"`
	Model       string        `yaml:"model" env:"MODEL"`
	Temperature float32       `yaml:"temperature" env:"TEMPERATURE"`
	Timeout     time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// 本地请求速率上限，0 表示不限流
	RequestsPerMinute int `yaml:"requests_per_minute" env:"REQUESTS_PER_MINUTE"`
	// 可重试错误的重试次数，默认 0（只启用熔断）
	MaxRetries int `yaml:"max_retries" env:"MAX_RETRIES"`

	EmbeddingModel      string `yaml:"embedding_model" env:"EMBEDDING_MODEL"`
	EmbeddingDimensions int    `yaml:"embedding_dimensions" env:"EMBEDDING_DIMENSIONS"`
	// 查询嵌入缓存时长（需要 Redis）
	EmbeddingCacheTTL time.Duration `yaml:"embedding_cache_ttl" env:"EMBEDDING_CACHE_TTL"`
}

// PineconeConfig Pinecone 配置
type PineconeConfig struct {
	APIKey  string        `yaml:"api_key" env:"API_KEY"`
	Index   string        `yaml:"index" env:"INDEX"`
	BaseURL string        `yaml:"base_url" env:"BASE_URL"`
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// ParserConfig 文档解析配置，LlamaParseAPIKey 为空时只解析纯文本
type ParserConfig struct {
	LlamaParseAPIKey  string        `yaml:"llamaparse_api_key" env:"LLAMAPARSE_API_KEY"`
	LlamaParseBaseURL string        `yaml:"llamaparse_base_url" env:"LLAMAPARSE_BASE_URL"`
	Language          string        `yaml:"language" env:"LANGUAGE"`
	Timeout           time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// AgentConfig 对话、推理与记忆配置
type AgentConfig struct {
	// first, all, reject
	ToolCallPolicy  string        `yaml:"tool_call_policy" env:"TOOL_CALL_POLICY"`
	HistoryWindow   int           `yaml:"history_window" env:"HISTORY_WINDOW"`
	TurnTimeout     time.Duration `yaml:"turn_timeout" env:"TURN_TIMEOUT"`
	ComposerWorkers int           `yaml:"composer_workers" env:"COMPOSER_WORKERS"`
	// 分解结果缓存时长（需要 Redis）
	DecompositionCacheTTL time.Duration `yaml:"decomposition_cache_ttl" env:"DECOMPOSITION_CACHE_TTL"`
	MemoryMaxTokens       int           `yaml:"memory_max_tokens" env:"MEMORY_MAX_TOKENS"`
	RecallTopK            int           `yaml:"recall_top_k" env:"RECALL_TOP_K"`
}

// TelemetryConfig 遥测配置
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled" env:"ENABLED"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	ServiceName  string  `yaml:"service_name" env:"SERVICE_NAME"`
	SampleRate   float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// =============================================================================
// 🔧 配置加载器
// =============================================================================

// Loader 配置加载器（Builder 模式）
type Loader struct {
	configPath string
	envPrefix  string
	dotEnv     []string
	validators []func(*Config) error
}

// NewLoader 创建新的配置加载器
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "CORTEX",
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath 设置配置文件路径
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix 设置环境变量前缀
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithDotEnv 在读取环境变量前加载 .env 文件；已存在的环境变量不会被覆盖。
// 不传参数时加载当前目录下的 .env。
func (l *Loader) WithDotEnv(paths ...string) *Loader {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	l.dotEnv = append(l.dotEnv, paths...)
	return l
}

// WithValidator 添加配置验证器
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load 加载配置
// 优先级: 默认值 → YAML 文件 → 环境变量
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if err := l.loadDotEnv(); err != nil {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

// loadDotEnv 跳过不存在的文件
func (l *Loader) loadDotEnv() error {
	for _, p := range l.dotEnv {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

// loadFromFile 从 YAML 文件加载配置
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// 文件不存在，使用默认值
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// loadFromEnv 从环境变量加载配置
func (l *Loader) loadFromEnv(cfg *Config) error {
	return l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

// setFieldsFromEnv 递归设置结构体字段，键名为 PREFIX_SECTION_FIELD
func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := prefix + "_" + envTag

		if field.Kind() == reflect.Struct {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		envValue, ok := os.LookupEnv(envKey)
		if !ok || envValue == "" {
			continue
		}

		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

// setFieldValue 设置字段值
func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetUint(u)

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		// 逗号分隔的字符串切片
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}

	return nil
}

// =============================================================================
// 🔍 辅助函数
// =============================================================================

// MustLoad 加载配置，失败时 panic
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// Validate 验证配置
func (c *Config) Validate() error {
	var errs []string

	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		errs = append(errs, "invalid HTTP port")
	}
	if c.Server.MetricsPort < 0 || c.Server.MetricsPort > 65535 {
		errs = append(errs, "invalid metrics port")
	}
	if c.Server.MetricsPort != 0 && c.Server.MetricsPort == c.Server.HTTPPort {
		errs = append(errs, "metrics port must differ from HTTP port")
	}
	if (c.Server.TLSCertFile == "") != (c.Server.TLSKeyFile == "") {
		errs = append(errs, "server.tls_cert_file and server.tls_key_file must be set together")
	}

	if strings.TrimSpace(c.Storage.Root) == "" {
		errs = append(errs, "storage.root is required")
	}
	switch c.Storage.Backend {
	case "memory":
	case "mongo":
		if c.Mongo.URI == "" {
			errs = append(errs, "mongo.uri is required for the mongo backend")
		}
	default:
		errs = append(errs, fmt.Sprintf("unsupported storage backend %q", c.Storage.Backend))
	}
	switch c.Storage.VectorBackend {
	case "memory":
	case "pinecone":
		if c.Pinecone.APIKey == "" || (c.Pinecone.Index == "" && c.Pinecone.BaseURL == "") {
			errs = append(errs, "pinecone.api_key and pinecone.index (or base_url) are required")
		}
	default:
		errs = append(errs, fmt.Sprintf("unsupported vector backend %q", c.Storage.VectorBackend))
	}

	if c.LLM.Provider != "gemini" {
		errs = append(errs, fmt.Sprintf("unsupported llm provider %q", c.LLM.Provider))
	}
	if c.LLM.MaxRetries < 0 {
		errs = append(errs, "llm.max_retries must not be negative")
	}

	switch c.Agent.ToolCallPolicy {
	case "", "first", "all", "reject":
	default:
		errs = append(errs, fmt.Sprintf("unsupported tool_call_policy %q", c.Agent.ToolCallPolicy))
	}
	if c.Agent.HistoryWindow < 0 {
		errs = append(errs, "agent.history_window must not be negative")
	}

	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		errs = append(errs, "telemetry.sample_rate must be between 0 and 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}
