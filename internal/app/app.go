package app

import (
	"context"
	"errors"
	"fmt"
	nethttp "net/http"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/slidedeck-backend/internal/data/db"
	"github.com/yungbote/slidedeck-backend/internal/http"
	"github.com/yungbote/slidedeck-backend/internal/observability"
	"github.com/yungbote/slidedeck-backend/internal/platform/filestore"
	"github.com/yungbote/slidedeck-backend/internal/platform/logger"
	"github.com/yungbote/slidedeck-backend/internal/realtime/bus"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Cfg      Config
	Store    *filestore.Store
	URLs     *filestore.URLMapper
	Events   bus.Bus
	Metrics  *observability.Metrics
	Repos    Repos
	Services Services
	Server   *http.Server

	dbService    *db.Service
	otelShutdown func(context.Context) error
}

func New() (*App, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return NewWithConfig(cfg)
}

func NewWithConfig(cfg Config) (*App, error) {
	log, err := logger.NewWithOptions(logger.Options{Mode: cfg.LogMode, File: cfg.LogFile})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	a := &App{Log: log, Cfg: cfg}

	a.otelShutdown = observability.InitOTel(context.Background(), log, observability.OtelConfig{
		Enabled:     cfg.Otel.Enabled,
		ServiceName: cfg.Otel.ServiceName,
		Environment: cfg.Otel.Environment,
		Endpoint:    cfg.Otel.Endpoint,
		Headers:     observability.ParseHeaders(cfg.Otel.Headers),
		Insecure:    cfg.Otel.Insecure,
		SampleRatio: cfg.Otel.SampleRatio,
	})
	a.Metrics = observability.NewMetrics()

	if err := a.openDB(); err != nil {
		a.Close()
		return nil, err
	}

	a.Store, err = filestore.New(cfg.UploadFolder,
		filestore.WithObserver(a.Metrics),
		filestore.WithLogger(log),
	)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init file store: %w", err)
	}
	a.URLs = filestore.NewURLMapper(cfg.PublicBaseURL)

	a.Events, err = wireEvents(cfg, log)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Repos = wireRepos(a.DB, log)
	a.Services = wireServices(a.DB, log, cfg, a.Store, a.URLs, a.Repos, a.Events, a.Metrics)
	handlers := wireHandlers(a.Services)
	a.Server = wireRouter(log, cfg, a.Metrics, handlers)

	log.Info("app initialized",
		"upload_folder", a.Store.Resolver().Root(),
		"db_driver", cfg.DBDriver,
		"events", eventsKind(cfg),
	)
	return a, nil
}

func (a *App) openDB() error {
	var (
		svc *db.Service
		err error
	)
	switch a.Cfg.DBDriver {
	case "sqlite":
		svc, err = db.NewSQLiteService(a.Cfg.SQLitePath, a.Log)
	default:
		svc, err = db.NewPostgresService(db.PostgresConfig{
			Host:     a.Cfg.Postgres.Host,
			Port:     a.Cfg.Postgres.Port,
			User:     a.Cfg.Postgres.User,
			Password: a.Cfg.Postgres.Password,
			Name:     a.Cfg.Postgres.Name,
			SSLMode:  a.Cfg.Postgres.SSLMode,
		}, a.Log)
	}
	if err != nil {
		return fmt.Errorf("init %s: %w", a.Cfg.DBDriver, err)
	}
	a.dbService = svc
	a.DB = svc.DB()
	if err := db.AutoMigrateAll(a.DB); err != nil {
		return fmt.Errorf("%s automigrate: %w", a.Cfg.DBDriver, err)
	}
	return nil
}

func wireEvents(cfg Config, log *logger.Logger) (bus.Bus, error) {
	if cfg.Redis.Addr == "" {
		return bus.NewMemoryBus(), nil
	}
	b, err := bus.NewRedisBus(bus.RedisConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		Channel:  cfg.Redis.Channel,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("init asset events: %w", err)
	}
	return b, nil
}

func eventsKind(cfg Config) string {
	if cfg.Redis.Addr == "" {
		return "memory"
	}
	return "redis"
}

// Run serves HTTP until ctx is cancelled, then drains in-flight requests.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	errCh := make(chan error, 1)
	go func() {
		a.Log.Info("http server listening", "addr", a.Cfg.HTTPAddr)
		errCh <- a.Server.Run(a.Cfg.HTTPAddr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, nethttp.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	a.Log.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
		return err
	}
	return nil
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.Events != nil {
		if err := a.Events.Close(); err != nil {
			a.Log.Warn("close asset events", "error", err)
		}
	}
	if a.dbService != nil {
		if err := a.dbService.Close(); err != nil {
			a.Log.Warn("close database", "error", err)
		}
	}
	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.otelShutdown(ctx); err != nil {
			a.Log.Warn("otel shutdown", "error", err)
		}
		cancel()
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
