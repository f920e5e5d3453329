// Пакет aimail предоставляет сервисный слой почтового композера: HTTP API
// для работы с черновиками, загрузкой вложений и генерацией текста поверх
// движка редактирования.
//
// Основные возможности:
//   - CRUD черновиков с хранением блочного представления и HTML экспорта.
//   - Загрузка и раздача вложений через файловое хранилище.
//   - Переписывание фрагментов письма через внешний сервис генерации.
//   - Регулярная уборка зависших загрузок и осиротевших вложений.
package aimail

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/aisa-it/aimail/aimail.go/internal/aimail/ai"
	"github.com/aisa-it/aimail/aimail.go/internal/aimail/config"
	"github.com/aisa-it/aimail/aimail.go/internal/aimail/cronmanager"
	"github.com/aisa-it/aimail/aimail.go/internal/aimail/dao"
	filestorage "github.com/aisa-it/aimail/aimail.go/internal/aimail/file-storage"
)

type Services struct {
	db       *gorm.DB
	storage  filestorage.FileStorage
	sessions *SessionRegistry
	ai       *ai.Client
}

var cfg *config.Config
var appVersion string

// ServerHeader middleware adds a `Server` header to the response.
func ServerHeader(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Set(echo.HeaderServer, "AIMail")
		return next(c)
	}
}

func Server(db *gorm.DB, c *config.Config, version string) {
	cfg = c
	appVersion = version

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
		}

		// Ignore 404
		if code == http.StatusNotFound {
			c.NoContent(http.StatusNotFound)
			return
		}
		slog.Error("Unhandled error in endpoint", "url", c.Request().URL, "err", err)
		EErrorMsgStatus(c, nil, code)
	}

	var storage filestorage.FileStorage
	var err error
	if cfg.AWSEndpoint != "" {
		storage, err = filestorage.NewMinioStorage(cfg.AWSEndpoint, cfg.AWSAccessKey, cfg.AWSSecretKey, false, cfg.AWSBucketName)
	} else {
		storage, err = filestorage.NewLocalStorage(cfg.LocalStoragePath)
	}
	if err != nil {
		slog.Error("Fail init file storage", "err", err)
		os.Exit(1)
	}

	dao.Config = cfg
	dao.FileStorage = storage

	s := &Services{
		db:       db,
		storage:  storage,
		sessions: NewSessionRegistry(db, storage, cfg),
		ai:       ai.NewClient(cfg.AIEndpoint, cfg.AIToken, cfg.AIModel),
	}

	jobRegistry := cronmanager.JobRegistry{
		"upload_sweep": cronmanager.Job{
			Func:     s.sessions.SweepUploads,
			Schedule: "* * * * *", // every minute
		},
		"sessions_clean": cronmanager.Job{
			Func:     s.sessions.CloseIdle,
			Schedule: "*/10 * * * *",
		},
		"assets_clean": cronmanager.Job{
			Func:     s.cleanOrphanAssets,
			Schedule: "0 1 * * *", // daily at 01:00
		},
	}

	cronManager := cronmanager.NewCronManager(jobRegistry)
	if err := cronManager.LoadJobs(); err != nil {
		slog.Error("Failed to load cron jobs", "err", err)
		os.Exit(1)
	}
	cronManager.Start()

	// Create a channel to handle termination signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		slog.Info("Shutting down gracefully, press Ctrl+C again to force")
		cronManager.Stop()
		s.sessions.CloseAll()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown", "err", err)
		}
	}()

	// Global middlewares
	e.Use(ServerHeader)
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowCredentials: true,
	}))
	e.Use(middleware.BodyLimitWithConfig(middleware.BodyLimitConfig{
		Limit: "5M",
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/api/drafts/:draftId/assets/"
		},
	}))
	e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Level:     9,
		MinLength: 2048,
	}))
	if cfg.MetricsEnable {
		e.Use(echoprometheus.NewMiddleware("aimail"))
	}
	e.Pre(middleware.AddTrailingSlash())

	e.Validator = NewRequestValidator()

	apiGroup := e.Group("/api/")

	s.AddDraftServices(apiGroup)
	s.AddAssetServices(apiGroup)

	// Version endpoint
	apiGroup.GET("version/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"version": version,
			"ai":      s.ai.Enabled(),
			"demo":    cfg.Demo,
		})
	})

	// Health endpoint
	apiGroup.GET("_health/", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	// Prometheus metrics
	if cfg.MetricsEnable {
		go func() {
			bootTimeGauge := prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "aimail",
				Name:      "boot_time",
				Help:      "Server startup time",
			})
			bootTimeGauge.Set(float64(time.Now().UnixMilli()))

			if err := prometheus.Register(bootTimeGauge); err != nil {
				slog.Error("Register boot time gauge", "err", err)
				os.Exit(1)
			}

			metrics := echo.New()
			metrics.HideBanner = true
			metrics.GET("/metrics", echoprometheus.NewHandler())
			if err := metrics.Start(":2112"); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("Metrics server fail", "err", err)
			}
		}()
	}

	if err := e.Start(cfg.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server fail", "err", err)
	}
}
