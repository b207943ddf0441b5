package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gradebook-server-go/config"
	"gradebook-server-go/db"
	"gradebook-server-go/gradebook"
	"gradebook-server-go/handlers"
	"gradebook-server-go/logger"
	"gradebook-server-go/metrics"
	"gradebook-server-go/sheets"
)

func main() {
	once := flag.Bool("once", false, "run a single evaluation against the configured sheet and exit")
	flag.Parse()

	os.Exit(run(*once))
}

// run wires the application and returns the process exit code
func run(once bool) int {
	cfg, err := config.Load()
	if err != nil {
		logger.New("info").WithError(err).Error("Failed to load configuration")
		return 1
	}
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	layout, err := sheets.NewLayout(cfg.DataRange, cfg.TotalClassesRange, cfg.ResultRange)
	if err != nil {
		log.WithError(err).Error("Invalid sheet ranges")
		return 1
	}

	sheet, err := openSheet(ctx, cfg, layout)
	if err != nil {
		log.WithError(err).Error("Failed to open spreadsheet")
		return 1
	}

	lock, closeLock, err := newLocker(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Error("Could not connect to Redis")
		return 1
	}
	defer closeLock()

	service := gradebook.NewService(sheet, log,
		gradebook.WithLock(lock, cfg.Destination()),
		gradebook.WithMetrics(m),
		gradebook.WithTimeout(cfg.RunTimeout),
	)

	if once {
		if _, err := service.Run(ctx); err != nil {
			// already logged by the service
			return 1
		}
		return 0
	}

	if err := serve(ctx, cfg, log, registry, handlers.NewAPIHandler(service, layout, log)); err != nil {
		log.WithError(err).Error("Failed to run server")
		return 1
	}
	return 0
}

// openSheet builds the configured Sheet implementation
func openSheet(ctx context.Context, cfg *config.Config, layout sheets.Layout) (sheets.Sheet, error) {
	if cfg.Source == config.SourceXLSX {
		return sheets.NewWorkbookFile(cfg.WorkbookPath, layout)
	}
	return sheets.NewGoogleSheets(ctx, cfg.CredentialsFile, cfg.SpreadsheetID, layout)
}

// newLocker connects to Redis when configured, otherwise runs are unguarded
func newLocker(ctx context.Context, cfg *config.Config, log *logger.Logger) (db.Locker, func(), error) {
	if cfg.RedisAddr == "" {
		log.Info("REDIS_ADDR not set, run lock disabled")
		return db.NoopLock{}, func() {}, nil
	}

	client, err := db.InitializeRedisClient(ctx, db.RedisOptions{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		return nil, nil, err
	}
	log.Info("Connected to Redis", "addr", cfg.RedisAddr, "db", cfg.RedisDB)

	return db.NewRedisLock(client, cfg.LockTTL, log), func() {
		if err := client.Close(); err != nil {
			log.WithError(err).Warn("Error closing Redis client")
		}
	}, nil
}

// serve runs the HTTP server until ctx is done or the listener fails
func serve(ctx context.Context, cfg *config.Config, log *logger.Logger, registry *prometheus.Registry, api *handlers.APIHandler) error {
	if log.Enabled(ctx, logger.ParseLevel("debug")) {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	api.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("Starting server", "port", cfg.Port, "source", cfg.Source)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}
	log.Info("Shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
	}
	log.Info("Server exiting")
	return nil
}
