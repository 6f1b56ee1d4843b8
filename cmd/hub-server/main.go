package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"nuhub/internal/auth"
	"nuhub/internal/config"
	"nuhub/internal/metrics"
	"nuhub/internal/microservices/control"
	httpapi "nuhub/internal/microservices/http-api"
	"nuhub/internal/microservices/tcp"
	"nuhub/internal/microservices/websocket"
	"nuhub/internal/modules"
	"nuhub/internal/router"
	"nuhub/internal/session"
	"nuhub/internal/storage"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Config validation failed: %v", err)
	}

	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server_error", "error", err.Error())
		os.Exit(1)
	}
	logger.Info("server_stopped_gracefully")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	specs, err := modules.ParseSpecs(cfg.Modules)
	if err != nil {
		return err
	}

	collector := metrics.New()
	manager := session.NewManager(logger, collector)
	authSvc := auth.NewService(cfg.JWTSecret)
	osc := control.NewServer(cfg.OSCAddr, logger)
	hub := router.New(osc, manager, router.WithRouterLogger(logger))

	observers := []router.Observer{collector}
	sink, journal, closeStorage, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStorage()
	if sink != nil {
		observers = append(observers, sink)
	}

	for _, spec := range specs {
		if err := hub.Mount(modules.Build(spec, manager, logger, observers...)); err != nil {
			return err
		}
	}

	if err := osc.Listen(); err != nil {
		return err
	}
	tcpServer := tcp.NewServer(fmt.Sprintf(":%d", cfg.TCPPort), manager,
		tcp.WithAuth(authSvc),
		tcp.WithRateLimit(cfg.RateLimitPerSec, cfg.RateLimitBurst),
		tcp.WithLogger(logger),
	)
	if err := tcpServer.Listen(); err != nil {
		return err
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	apiCfg := httpapi.Config{
		Router: hub,
		Auth:   authSvc,
		WebSocket: websocket.WSHandler(websocket.HandlerConfig{
			Manager:        manager,
			Auth:           authSvc,
			AllowedOrigins: cfg.CORSOrigins,
			RateLimit:      rate.Limit(cfg.RateLimitPerSec),
			RateBurst:      cfg.RateLimitBurst,
			Logger:         logger,
		}),
		Metrics:     collector.Handler(),
		CORSOrigins: cfg.CORSOrigins,
		Logger:      logger,
	}
	if journal != nil {
		apiCfg.Journal = journal
	}
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           httpapi.NewEngine(apiCfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	if sink != nil {
		sink.Start(gctx)
	}
	g.Go(func() error { return hub.Run(gctx) })
	g.Go(func() error { return osc.Serve(gctx) })
	g.Go(tcpServer.Serve)
	g.Go(func() error {
		logger.Info("http_server_started", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("received_shutdown_signal")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		tcpServer.Stop()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http_shutdown_failed", "error", err)
		}
		manager.CloseAll()
		return nil
	})

	err = g.Wait()
	if sink != nil {
		sink.Wait()
	}
	return err
}

// openStorage connects the optional Redis mirror and Postgres journal and
// builds the batch writer feeding them. Both are write-only.
func openStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*storage.AsyncSink, *storage.Journal, func(), error) {
	var (
		writers []storage.BatchWriter
		closers []func() error
		journal *storage.Journal
	)
	closeAll := func() {
		for _, c := range closers {
			if err := c(); err != nil {
				logger.Warn("storage_close_failed", "error", err)
			}
		}
	}

	if cfg.RedisURL != "" {
		mirror, err := storage.NewRedisMirror(cfg.RedisURL, cfg.RedisPassword)
		if err != nil {
			return nil, nil, closeAll, err
		}
		closers = append(closers, mirror.Close)
		if err := mirror.Reset(ctx); err != nil {
			closeAll()
			return nil, nil, func() {}, fmt.Errorf("failed to reset redis mirror: %w", err)
		}
		writers = append(writers, mirror)
		logger.Info("redis_mirror_enabled")
	}

	if cfg.DatabaseURL != "" {
		j, err := storage.OpenJournal(cfg.DatabaseURL, cfg.SinkBatchSize)
		if err != nil {
			closeAll()
			return nil, nil, func() {}, err
		}
		closers = append(closers, j.Close)
		writers = append(writers, j)
		journal = j
		logger.Info("postgres_journal_enabled")
	}

	if len(writers) == 0 {
		return nil, nil, closeAll, nil
	}
	return storage.NewAsyncSink(cfg.SinkBatchSize, cfg.SinkFlushInterval, logger, writers...), journal, closeAll, nil
}
