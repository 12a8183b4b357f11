package http

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	handlers "github.com/wekeepgrowing/crowdfund-payment/internal/adapter/handler/http"
	"github.com/wekeepgrowing/crowdfund-payment/internal/config"
	"github.com/wekeepgrowing/crowdfund-payment/internal/middleware/auth"
	"github.com/wekeepgrowing/crowdfund-payment/pkg/logger"
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

type Server struct {
	config   *config.Config
	logger   *zap.Logger
	echo     *echo.Echo
	payments *handlers.PaymentHandler
	webhooks *handlers.WebhookHandler
	health   HealthCheck
}

func NewServer(
	cfg *config.Config,
	logger *zap.Logger,
	payments *handlers.PaymentHandler,
	webhooks *handlers.WebhookHandler,
	health HealthCheck,
) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handlers.NewRequestValidator()

	s := &Server{
		config:   cfg,
		logger:   logger,
		echo:     e,
		payments: payments,
		webhooks: webhooks,
		health:   health,
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) Start() error {
	addr := s.config.Server.HTTP.Address()
	s.logger.Info("Starting HTTP server", zap.String("address", addr))

	if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// ServeHTTP exposes the router, mainly for tests.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

func (s *Server) setupMiddleware() {
	logger.WithEchoLogger(s.echo, s.logger)
	s.echo.Use(middleware.RequestID())
	s.echo.Use(logger.NewEchoRequestLogger(s.logger))
	s.echo.Use(middleware.Recover())
}

func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthCheck)

	// Webhook route (outside API versioning, authenticated by signature)
	s.webhooks.RegisterRoutes(s.echo)

	jwtConfig := auth.JWTConfig{
		Secret:    s.config.JWT.Secret,
		Logger:    s.logger,
		SkipPaths: s.config.JWT.SkipPaths,
	}

	// Protected routes (require JWT authentication)
	protected := s.echo.Group("/api/v1", auth.JWTMiddleware(jwtConfig))
	s.payments.RegisterRoutes(protected)
}

func (s *Server) healthCheck(c echo.Context) error {
	if s.health != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := s.health(ctx); err != nil {
			s.logger.Warn("Health check failed", zap.Error(err))
			return c.JSON(http.StatusServiceUnavailable, map[string]string{
				"status":  "unhealthy",
				"service": s.config.Service.Name,
			})
		}
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": s.config.Service.Name,
	})
}
