package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/BaSui01/cortex"
	"github.com/BaSui01/cortex/api/handlers"
	"github.com/BaSui01/cortex/config"
	"github.com/BaSui01/cortex/internal/metrics"
	"github.com/BaSui01/cortex/internal/server"
	"github.com/BaSui01/cortex/internal/telemetry"
)

// =============================================================================
// 🖥️ Server 结构
// =============================================================================

// Server 是 Cortex 的主服务器
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	// 服务器管理器
	httpManager    *server.Manager
	metricsManager *server.Manager

	// 依赖图
	deps       *cortex.Dependencies
	depOptions []cortex.Option
	otel       *telemetry.Providers
	metricsNS  string

	// Handlers
	healthHandler    *handlers.HealthHandler
	chatHandler      *handlers.ChatHandler
	documentHandler  *handlers.DocumentHandler
	reasoningHandler *handlers.ReasoningHandler

	// 指标收集器
	metricsCollector *metrics.Collector

	// Rate limiter 生命周期管理
	rateLimiterCancel context.CancelFunc
}

// NewServer 创建新的服务器实例
func NewServer(cfg *config.Config, logger *zap.Logger, otel *telemetry.Providers) *Server {
	return &Server{
		cfg:       cfg,
		logger:    logger,
		otel:      otel,
		metricsNS: "cortex",
	}
}

// =============================================================================
// 🚀 启动流程
// =============================================================================

// Start 装配依赖并启动 HTTP 与 Metrics 服务器（非阻塞）
func (s *Server) Start(ctx context.Context) error {
	if err := s.initDependencies(ctx); err != nil {
		return fmt.Errorf("failed to init dependencies: %w", err)
	}

	if err := s.startHTTPServer(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	if s.cfg.Server.MetricsPort > 0 {
		if err := s.startMetricsServer(); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
	}

	s.logger.Info("All servers started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
	)
	return nil
}

// =============================================================================
// 🔧 初始化方法
// =============================================================================

// initDependencies 创建指标收集器、依赖图与全部 handlers
func (s *Server) initDependencies(ctx context.Context) error {
	s.metricsCollector = metrics.NewCollector(s.metricsNS, s.logger)

	opts := append([]cortex.Option{
		cortex.WithLogger(s.logger),
		cortex.WithMetrics(s.metricsCollector),
	}, s.depOptions...)
	deps, err := cortex.New(ctx, s.cfg, opts...)
	if err != nil {
		return err
	}
	s.deps = deps

	s.healthHandler = handlers.NewHealthHandler(Version, s.logger)
	for _, check := range deps.HealthChecks() {
		s.healthHandler.RegisterCheck(handlers.NewPingCheck(check.Name, check.Ping))
	}

	s.chatHandler = handlers.NewChatHandler(deps.Conversations, s.logger)
	s.documentHandler = handlers.NewDocumentHandler(
		deps.Parser, deps.Indexing, deps.VectorIndex,
		deps.Stores.Documents, deps.Stores.Memories, s.logger,
	)
	s.reasoningHandler = handlers.NewReasoningHandler(deps.Reasoning, deps.Retrieval, s.logger)

	s.logger.Info("Handlers initialized", zap.Int("health_checks", len(deps.HealthChecks())))
	return nil
}

// =============================================================================
// 🌐 HTTP 服务器
// =============================================================================

// routes 注册全部业务与健康检查路由
func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	// 健康检查端点
	mux.HandleFunc("GET /health", s.healthHandler.HandleHealth)
	mux.HandleFunc("GET /healthz", s.healthHandler.HandleHealthz)
	mux.HandleFunc("GET /ready", s.healthHandler.HandleReady)
	mux.HandleFunc("GET /readyz", s.healthHandler.HandleReady)
	mux.HandleFunc("GET /info", s.healthHandler.HandleInfo(handlers.ServiceInfo{
		Name:      "cortex",
		Version:   Version,
		BuildTime: BuildTime,
		GitCommit: GitCommit,
		Capabilities: []string{
			"index", "respond", "reason", "sparse-retrieve", "document-column", "memory",
		},
	}))

	// 文档与记忆
	mux.HandleFunc("POST /index", s.documentHandler.HandleIndex)
	mux.HandleFunc("GET /documents/all", s.documentHandler.HandleListDocuments)
	mux.HandleFunc("GET /memories/all", s.documentHandler.HandleListMemories)
	mux.HandleFunc("POST /document-column", s.documentHandler.HandleDocumentColumn)

	// 对话
	mux.HandleFunc("POST /respond", s.chatHandler.HandleRespond)
	mux.HandleFunc("GET /get/conversation", s.chatHandler.HandleGetConversation)
	mux.HandleFunc("GET /get/conversation/all", s.chatHandler.HandleListConversations)

	// 推理与检索
	mux.HandleFunc("POST /reason", s.reasoningHandler.HandleReason)
	mux.HandleFunc("POST /sparse-retrieve", s.reasoningHandler.HandleSparseRetrieve)

	return mux
}

// buildHandler 构建中间件链
func (s *Server) buildHandler() http.Handler {
	rateLimiterCtx, rateLimiterCancel := context.WithCancel(context.Background())
	s.rateLimiterCancel = rateLimiterCancel

	return Chain(s.routes(),
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		OTelTracing(),
		MetricsMiddleware(s.metricsCollector),
		RequestLogger(s.logger),
		CORS(s.cfg.Server.CORSAllowedOrigins),
		RateLimiter(rateLimiterCtx, float64(s.cfg.Server.RateLimitRPS), s.cfg.Server.RateLimitBurst, s.logger),
	)
}

// startHTTPServer 启动 HTTP 服务器
func (s *Server) startHTTPServer() error {
	serverConfig := server.Config{
		Name:            "api",
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.HTTPPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		IdleTimeout:     2 * s.cfg.Server.ReadTimeout,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
		TLSCertFile:     s.cfg.Server.TLSCertFile,
		TLSKeyFile:      s.cfg.Server.TLSKeyFile,
	}

	s.httpManager = server.NewManager(s.buildHandler(), serverConfig, s.logger)
	if err := s.httpManager.Start(); err != nil {
		return err
	}

	s.logger.Info("HTTP server started", zap.Int("port", s.cfg.Server.HTTPPort))
	return nil
}

// =============================================================================
// 📊 Metrics 服务器
// =============================================================================

// startMetricsServer 在独立端口暴露 /metrics
func (s *Server) startMetricsServer() error {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())

	serverConfig := server.Config{
		Name:            "metrics",
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.MetricsPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.metricsManager = server.NewManager(mux, serverConfig, s.logger)
	if err := s.metricsManager.Start(); err != nil {
		return err
	}

	s.logger.Info("Metrics server started", zap.Int("port", s.cfg.Server.MetricsPort))
	return nil
}

// =============================================================================
// 🛑 关闭流程
// =============================================================================

// WaitForShutdown 等待关闭信号并优雅关闭
func (s *Server) WaitForShutdown() {
	if s.httpManager != nil {
		s.httpManager.WaitForShutdown()
	}
	s.Shutdown()
}

// Shutdown 依次关闭服务器、依赖与遥测
func (s *Server) Shutdown() {
	s.logger.Info("Starting graceful shutdown...")

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	if s.rateLimiterCancel != nil {
		s.rateLimiterCancel()
	}

	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP server shutdown error", zap.Error(err))
		}
	}

	if s.metricsManager != nil {
		if err := s.metricsManager.Shutdown(ctx); err != nil {
			s.logger.Error("Metrics server shutdown error", zap.Error(err))
		}
	}

	// 进行中的请求结束后再关闭存储
	if err := s.deps.Close(); err != nil {
		s.logger.Error("Dependency shutdown error", zap.Error(err))
	}

	if err := s.otel.Shutdown(ctx); err != nil {
		s.logger.Warn("Telemetry shutdown error", zap.Error(err))
	}

	s.logger.Info("Graceful shutdown completed")
}
