// Package http 提供HTTP服务器功能
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"churnai/churn"
	"churnai/db"
	"churnai/monitoring"
)

// Server HTTP服务器
type Server struct {
	server *http.Server
	config ServerConfig
	logger *zap.Logger
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port           int
	Timeout        time.Duration
	AllowedOrigins []string
	MaxBodyBytes   int64
}

// DefaultServerConfig 默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Port:         5000,
		Timeout:      30 * time.Second,
		MaxBodyBytes: 64 << 10,
	}
}

// Deps 处理器依赖; 除Service外均可为nil
type Deps struct {
	Service *churn.Service
	Store   *db.Store
	Hub     *monitoring.WebSocketHub
	Metrics *monitoring.Metrics
	Logger  *zap.Logger
}

// NewServer 创建HTTP服务器
func NewServer(config ServerConfig, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Server{
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", config.Port),
			Handler:           NewHandler(config, deps),
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		config: config,
		logger: deps.Logger,
	}
}

// NewHandler 组装路由与中间件
func NewHandler(config ServerConfig, deps Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = DefaultServerConfig().MaxBodyBytes
	}
	h := newHandlers(deps)

	// 普通请求受超时限制
	app := http.NewServeMux()
	h.registerForm(app)
	h.registerAPI(app)
	var bounded http.Handler = RequestSizeMiddleware(config.MaxBodyBytes)(app)
	if config.Timeout > 0 {
		bounded = http.TimeoutHandler(bounded, config.Timeout, `{"error":"request timeout"}`)
	}

	// 长连接与指标不经过超时处理
	root := http.NewServeMux()
	if deps.Hub != nil {
		root.HandleFunc("GET /api/ws/predictions", deps.Hub.HandleWebSocket)
	}
	if deps.Metrics != nil {
		root.Handle("GET /metrics", deps.Metrics.Handler())
	}
	root.Handle("/", bounded)

	chain := Chain(
		RecoveryMiddleware(deps.Logger),             // 1. 恢复中间件
		LoggerMiddleware(deps.Logger, deps.Metrics), // 2. 日志中间件
		SecurityHeadersMiddleware,                   // 3. 安全头中间件
		CORSMiddleware(config.AllowedOrigins),       // 4. CORS中间件
	)
	return chain(root)
}

// Start 启动服务器
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Stop 停止服务器
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}
