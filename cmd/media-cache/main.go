// Точка входа Media Cache — сервиса файлового кэша вложений Telegram.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/bigkaa/tgmcp/media-cache/internal/api/handlers"
	"github.com/bigkaa/tgmcp/media-cache/internal/api/middleware"
	"github.com/bigkaa/tgmcp/media-cache/internal/config"
	"github.com/bigkaa/tgmcp/media-cache/internal/resource"
	"github.com/bigkaa/tgmcp/media-cache/internal/server"
	"github.com/bigkaa/tgmcp/media-cache/internal/service"
	"github.com/bigkaa/tgmcp/media-cache/internal/storage/mediastore"
)

func main() {
	// Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка конфигурации: %v\n", err)
		os.Exit(1)
	}

	// Настройка логгера
	logger := config.SetupLogger(cfg)

	// Каталог хранения: явный MC_DATA_DIR или каталог по умолчанию
	dataDir := cfg.DataDir
	if dataDir == "" {
		dataDir, err = mediastore.DefaultBaseDir()
		if err != nil {
			logger.Error("Не удалось определить каталог хранения", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	logger.Info("Media Cache запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("data_dir", dataDir),
		slog.Bool("auth_enabled", cfg.AuthEnabled()),
	)

	// --- Инициализация компонентов ---

	// 1. Хранилище медиафайлов
	store, err := mediastore.New(dataDir, logger)
	if err != nil {
		logger.Error("Ошибка инициализации хранилища", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Резолвер tgfile:// ресурсов
	resolver := resource.NewResolver(store, logger)

	// 3. Фоновые процессы
	ctx := context.Background()

	// 3.1 Сверка индекса с диском
	reconcileSvc := service.NewReconcileService(store, cfg.ReconcileInterval, logger)
	reconcileSvc.Start(ctx)

	// 3.2 topologymetrics — мониторинг JWKS endpoint (только при включённой аутентификации)
	var dephealthSvc *service.DephealthService
	if cfg.AuthEnabled() {
		dephealthSvc, err = service.NewDephealthService(
			cfg.DephealthName,
			cfg.DephealthGroup,
			cfg.DephealthDepName,
			cfg.JWKSUrl,
			cfg.DephealthCheckInterval,
			logger,
		)
		if err != nil {
			logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
				slog.String("error", err.Error()),
			)
			dephealthSvc = nil
		} else if startErr := dephealthSvc.Start(ctx); startErr != nil {
			logger.Warn("Ошибка запуска topologymetrics",
				slog.String("error", startErr.Error()),
			)
		} else {
			logger.Info("topologymetrics запущен",
				slog.String("jwks_url", cfg.JWKSUrl),
				slog.String("check_interval", cfg.DephealthCheckInterval.String()),
			)
		}
	}

	// 4. Handlers
	apiHandler := handlers.NewAPIHandler(store, resolver, logger)
	healthHandler := handlers.NewHealthHandler(store)

	// 5. JWT middleware — только если задан MC_JWKS_URL
	var jwtAuth *middleware.JWTAuth
	if cfg.AuthEnabled() {
		jwtAuth, err = middleware.NewJWTAuth(middleware.JWTAuthConfig{
			JWKSURL:         cfg.JWKSUrl,
			CACertPath:      cfg.JWKSCACert,
			TLSSkipVerify:   cfg.JWKSTLSSkipVerify,
			ClientTimeout:   cfg.JWKSClientTimeout,
			RefreshInterval: cfg.JWKSRefreshInterval,
			JWTLeeway:       cfg.JWTLeeway,
		}, logger)
		if err != nil {
			logger.Error("Ошибка инициализации JWT аутентификации",
				slog.String("jwks_url", cfg.JWKSUrl),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
		logger.Info("JWT аутентификация настроена", slog.String("jwks_url", cfg.JWKSUrl))
	} else {
		logger.Warn("MC_JWKS_URL не задан, запуск без аутентификации")
	}

	// 6. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, apiHandler, healthHandler, jwtAuth)

	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// --- Graceful shutdown фоновых процессов ---
	logger.Info("Остановка фоновых процессов...")

	reconcileSvc.Stop()
	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}

	logger.Info("Media Cache остановлен")
}
