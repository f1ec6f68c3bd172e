// Package bootstrap wires the gateway together: config, logging, telemetry,
// the terminal session, the trading services, and the HTTP surfaces.
package bootstrap

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Gabriel-Rockson/mt5-gateway/internal/config"
	"github.com/Gabriel-Rockson/mt5-gateway/internal/connection"
	"github.com/Gabriel-Rockson/mt5-gateway/internal/core"
	"github.com/Gabriel-Rockson/mt5-gateway/internal/infrastructure/health"
	"github.com/Gabriel-Rockson/mt5-gateway/internal/infrastructure/metrics"
	"github.com/Gabriel-Rockson/mt5-gateway/internal/infrastructure/server"
	"github.com/Gabriel-Rockson/mt5-gateway/internal/logging"
	"github.com/Gabriel-Rockson/mt5-gateway/internal/terminal"
	"github.com/Gabriel-Rockson/mt5-gateway/internal/trading/marketdata"
	"github.com/Gabriel-Rockson/mt5-gateway/internal/trading/order"
	"github.com/Gabriel-Rockson/mt5-gateway/internal/trading/position"
	"github.com/Gabriel-Rockson/mt5-gateway/pkg/telemetry"
)

const shutdownTimeout = 10 * time.Second

// App holds the wired dependencies of one gateway process.
type App struct {
	Cfg       *config.Config
	Logger    core.ILogger
	Telemetry *telemetry.Telemetry
	Terminal  *terminal.Client
	Conn      *connection.Manager
	API       *server.Server
	Metrics   *metrics.Server

	zap *logging.ZapLogger
}

// NewApp bootstraps all dependencies from a config file.
func NewApp(configPath string) (*App, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	// Telemetry first: the logger's otelzap core binds the global log
	// provider at construction.
	tel, telErr := telemetry.Setup("mt5-gateway")

	logger, err := logging.NewZapLogger(cfg.System.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	if telErr != nil {
		logger.Warn("failed to initialize telemetry, continuing without it", "error", telErr.Error())
	}

	term := terminal.NewClient(&cfg.Terminal, logger)
	conn := connection.NewManager(term, cfg.Connection, logger)

	sub := order.NewSubmitter(term, cfg, logger)
	orders := order.NewService(term, sub, cfg, logger)
	positions := position.NewService(term, sub, cfg, logger)
	data := marketdata.NewService(term, logger)

	healthMgr := health.NewManager(logger)
	healthMgr.Register("mt5_connection", conn.CheckHealth)

	app := &App{
		Cfg:       cfg,
		Logger:    logger,
		Telemetry: tel,
		Terminal:  term,
		Conn:      conn,
		API:       server.NewServer(cfg, conn, orders, positions, data, healthMgr, logger),
		zap:       logger,
	}
	if cfg.Telemetry.EnableMetrics {
		app.Metrics = metrics.NewServer(cfg.Telemetry.MetricsPort, logger)
	}
	return app, nil
}

// Run starts the gateway and blocks until a termination signal. The initial
// terminal connection is attempted up front but a failure does not abort
// startup: the connection gate reconnects lazily on the first request.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Conn.Initialize(ctx); err != nil {
		a.Logger.Warn("initial terminal connection failed, requests will trigger reconnection",
			"error", err.Error(),
		)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.API.Start()
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return a.API.Stop(shutdownCtx)
	})

	if a.Metrics != nil {
		g.Go(func() error {
			a.Metrics.Start()
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return a.Metrics.Stop(shutdownCtx)
		})
	}

	a.Logger.Info("gateway started", "port", a.Cfg.Server.Port)
	err := g.Wait()

	a.Conn.Shutdown()
	if a.Telemetry != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if telErr := a.Telemetry.Shutdown(shutdownCtx); telErr != nil {
			a.Logger.Warn("telemetry shutdown failed", "error", telErr.Error())
		}
		cancel()
	}
	_ = a.zap.Sync()

	if err != nil && err != context.Canceled {
		a.Logger.Error("gateway stopped with error", "error", err.Error())
		return err
	}
	a.Logger.Info("gateway shut down gracefully")
	return nil
}
