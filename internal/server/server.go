// Пакет server — HTTP-сервер Media Cache с graceful shutdown.
// Без TLS — сервис работает внутри доверенного периметра,
// TLS termination на внешнем прокси.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bigkaa/tgmcp/media-cache/internal/api/handlers"
	"github.com/bigkaa/tgmcp/media-cache/internal/api/middleware"
	"github.com/bigkaa/tgmcp/media-cache/internal/config"
)

// Server — HTTP-сервер Media Cache.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт HTTP-сервер с настроенными routes и middleware.
// auth — JWT middleware; nil означает работу без аутентификации.
func New(cfg *config.Config, logger *slog.Logger, api *handlers.APIHandler, health *handlers.HealthHandler, auth *middleware.JWTAuth) *Server {
	router := chi.NewRouter()

	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.RequestLogger(logger))

	// Публичные endpoints — без аутентификации
	router.Get("/health/live", health.HealthLive)
	router.Get("/health/ready", health.HealthReady)
	router.Method(http.MethodGet, "/metrics", promhttp.Handler())

	router.Route("/api/v1", func(r chi.Router) {
		if auth != nil {
			r.Use(auth.Middleware())
		}

		r.Group(func(r chi.Router) {
			if auth != nil {
				r.Use(middleware.RequireScope(middleware.ScopeMediaRead))
			}
			r.Get("/media", api.ListMedia)
			r.Get("/media/stats", api.GetStats)
			r.Get("/media/{chatID}/{messageID}", api.GetMedia)
			r.Get("/resource", api.GetResource)
		})

		r.Group(func(r chi.Router) {
			if auth != nil {
				r.Use(middleware.RequireScope(middleware.ScopeMediaWrite))
			}
			r.Post("/media/{chatID}/{messageID}", api.SaveMedia)
			r.Delete("/media/{chatID}/{messageID}", api.DeleteMedia)
			r.Delete("/media", api.ClearMedia)
		})
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM).
// При получении сигнала выполняется graceful shutdown.
func (s *Server) Run() error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
		)

		err := s.httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
