// Package http 封装了带中间件的 HTTP 服务端和带熔断的 HTTP 客户端。
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"Conductor/backend/go/internal/config"
	"Conductor/backend/go/pkg/circuitbreaker"
	"Conductor/backend/go/pkg/httpmiddleware"
	"Conductor/backend/go/pkg/logger"
	"Conductor/backend/go/pkg/ratelimiter"
)

// DefaultAddress is used when neither the config nor an option sets one.
const DefaultAddress = ":8080"

// Server is a custom HTTP server that wraps the standard http.Server
// and applies the configured middleware chain around a single handler.
type Server struct {
	httpServer *http.Server
	log        *logger.Logger
}

// ServerOption defines a function for configuring a Server.
type ServerOption func(*Server)

// WithAddress sets the address for the server to listen on.
func WithAddress(addr string) ServerOption {
	return func(s *Server) {
		s.httpServer.Addr = addr
	}
}

// WithLogger 替换服务端使用的日志记录器。
func WithLogger(log *logger.Logger) ServerOption {
	return func(s *Server) {
		s.log = log
	}
}

// NewServer creates a Server that serves handler (通常是 gin.Engine).
// 中间件顺序：请求日志 -> CORS -> 限流 -> 熔断 -> handler，限流与熔断按配置启用。
func NewServer(cfg *config.AppConfig, handler http.Handler, opts ...ServerOption) (*Server, error) {
	srv := &Server{
		httpServer: &http.Server{
			Addr:              cfg.Server.Address,
			ReadHeaderTimeout: 10 * time.Second,
		},
		log: logger.New(cfg.App.Name, "", ""),
	}
	for _, opt := range opts {
		opt(srv)
	}
	if srv.httpServer.Addr == "" {
		srv.httpServer.Addr = DefaultAddress
	}

	middlewares := []httpmiddleware.Middleware{
		httpmiddleware.RequestLog(srv.log),
		httpmiddleware.CORS(cfg.Server.CORSOrigins),
	}

	if cfg.Middleware.RateLimiter.Enabled {
		factory, err := ratelimiter.FactoryFromConfig(cfg.Middleware.RateLimiter)
		if err != nil {
			return nil, fmt.Errorf("failed to create rate limiter: %w", err)
		}
		keyed, err := ratelimiter.NewKeyed(factory, 0)
		if err != nil {
			return nil, fmt.Errorf("failed to create rate limiter: %w", err)
		}
		srv.log.WithPayload(map[string]interface{}{"algorithm": cfg.Middleware.RateLimiter.Algorithm}).
			Info("Enabling Rate Limiter middleware")
		middlewares = append(middlewares, httpmiddleware.RateLimit(keyed))
	}

	if cfg.Middleware.CircuitBreaker.Enabled {
		breaker, err := createCircuitBreaker(cfg.Middleware.CircuitBreaker, srv.log)
		if err != nil {
			return nil, fmt.Errorf("failed to create circuit breaker: %w", err)
		}
		srv.log.Info("Enabling Circuit Breaker middleware")
		middlewares = append(middlewares, httpmiddleware.CircuitBreak(breaker))
	}

	srv.httpServer.Handler = httpmiddleware.Chain(handler, middlewares...)
	return srv, nil
}

// Handler returns the fully wrapped handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// ListenAndServe starts the HTTP server. 正常关闭时返回 nil。
func (s *Server) ListenAndServe() error {
	s.log.WithPayload(map[string]interface{}{"address": s.httpServer.Addr}).Info("Starting server")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// createCircuitBreaker initializes a circuit breaker based on the configuration.
func createCircuitBreaker(cfg config.CircuitBreakerConfig, log *logger.Logger) (circuitbreaker.CircuitBreaker, error) {
	timeout, err := time.ParseDuration(cfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid circuit breaker timeout duration: %w", err)
	}
	return circuitbreaker.New(cfg.FailureThreshold, cfg.SuccessThreshold, timeout,
		circuitbreaker.WithStateChange(func(from, to circuitbreaker.State) {
			log.WithPayload(map[string]interface{}{"from": from.String(), "to": to.String()}).
				Warn("circuit breaker state changed")
		}),
	), nil
}
