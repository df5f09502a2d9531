package app

import (
	"context"
	"fmt"

	httpserver "github.com/yungbote/markbook-backend/internal/http"
	httpH "github.com/yungbote/markbook-backend/internal/http/handlers"
	"github.com/yungbote/markbook-backend/internal/markbook"
	"github.com/yungbote/markbook-backend/internal/observability"
	"github.com/yungbote/markbook-backend/internal/platform/blob"
	"github.com/yungbote/markbook-backend/internal/platform/logger"
	"github.com/yungbote/markbook-backend/internal/platform/redisblob"
	"github.com/yungbote/markbook-backend/internal/platform/sqlblob"
	"github.com/yungbote/markbook-backend/internal/services"
)

type App struct {
	Log     *logger.Logger
	Cfg     Config
	Server  *httpserver.Server
	Store   blob.Store
	Backend StorageMode
	Metrics *observability.Metrics

	otelShutdown func(context.Context) error
}

func New(ctx context.Context) (*App, error) {
	cfg := LoadConfig()
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	settings, err := markbook.LoadSettings(cfg.SettingsPath)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("load settings: %w", err)
	}

	otelShutdown := observability.InitOTel(ctx, log, cfg.Otel)
	metrics := observability.InitMetrics(cfg.Metrics)

	store, backend, err := resolveSnapshotStore(log, cfg)
	if err != nil {
		log.Error(
			"Snapshot storage bootstrap failed; remote persistence disabled",
			"code", storageProviderBootstrapErrorCode(err),
			"mode", backend,
			"error", err,
		)
		store = nil
	}
	metrics.SetStorageUp(string(backend), store != nil)
	if store != nil {
		log.Info("Snapshot storage ready", "mode", backend)
	}

	gateway := services.NewSnapshotGateway(log, store, cfg.Snapshot)
	workbook := services.NewWorkbookService(log, settings)
	charts, err := services.NewChartService(log, settings, cfg.ChartFont)
	if err != nil {
		if store != nil {
			_ = store.Close()
		}
		log.Sync()
		return nil, fmt.Errorf("init chart service: %w", err)
	}

	healthBackend := string(backend)
	if store == nil {
		healthBackend = ""
	}
	server := httpserver.NewServer(httpserver.RouterConfig{
		Log:             log,
		Metrics:         metrics,
		ServiceName:     cfg.Otel.ServiceName,
		AllowedOrigins:  cfg.AllowedOrigins,
		SnapshotHandler: httpH.NewSnapshotHandler(log, gateway, metrics),
		MarkbookHandler: httpH.NewMarkbookHandler(log, settings, workbook, charts),
		HealthHandler:   httpH.NewHealthHandler(healthBackend),
	})

	return &App{
		Log:          log,
		Cfg:          cfg,
		Server:       server,
		Store:        store,
		Backend:      backend,
		Metrics:      metrics,
		otelShutdown: otelShutdown,
	}, nil
}

// Run serves until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	a.Metrics.StartServer(ctx, a.Log, a.Cfg.MetricsAddr)
	switch s := a.Store.(type) {
	case *sqlblob.Store:
		a.Metrics.StartSQLCollector(ctx, a.Log, s.DB())
	case *redisblob.Store:
		a.Metrics.StartRedisCollector(ctx, a.Log, s.Client())
	}
	addr := ":" + a.Cfg.Port
	a.Log.Info("Server listening", "addr", addr, "storage", a.Backend)
	return a.Server.Run(ctx, addr, a.Cfg.ShutdownTimeout)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			a.Log.Warn("Snapshot storage close failed", "error", err)
		}
	}
	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), a.Cfg.ShutdownTimeout)
		if err := a.otelShutdown(ctx); err != nil {
			a.Log.Warn("OTel shutdown failed", "error", err)
		}
		cancel()
	}
	a.Log.Sync()
}
