package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"horsecolic/config"
	"horsecolic/db"
	qhttp "horsecolic/http"
	"horsecolic/logging"
	"horsecolic/ml"
	"horsecolic/monitoring"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

func main() {
	configPath := config.Locate("config.yaml")
	cfg, err := config.Load(configPath)
	if err != nil {
		fatal("failed to load config", err)
	}
	cfg.Resolve(configPath)

	logger, err := logging.New(logging.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	if err != nil {
		fatal("failed to build logger", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := db.Open(cfg.Database.Path)
	if err != nil {
		logger.Fatal("failed to open database", zap.String("path", cfg.Database.Path), zap.Error(err))
	}
	defer store.Close()
	logger.Info("database opened", zap.String("path", cfg.Database.Path))

	metrics := monitoring.NewMetrics()
	hub := monitoring.NewHub(logger.Named("feed"))
	hub.OnClientsChanged = metrics.SetClients
	go hub.Run(ctx)

	service, err := ml.NewService(cfg.ML.ModelPath,
		ml.WithLogger(logger.Named("ml")),
		ml.WithCacheSize(cfg.ML.CacheSize),
		ml.WithObserver(metrics),
	)
	if err != nil {
		logger.Fatal("failed to build prediction service", zap.Error(err))
	}
	loadPipeline(ctx, service, metrics, hub, logger)

	if cfg.ML.WatchArtifact {
		go watchArtifact(ctx, cfg.ML.ModelPath, hub, logger)
	}

	serverConfig := qhttp.ServerConfig{
		Port:           cfg.Http.Port,
		ReadTimeout:    cfg.Http.ReadTimeout,
		WriteTimeout:   cfg.Http.WriteTimeout,
		RequestTimeout: cfg.Http.RequestTimeout,
		MaxBodyBytes:   cfg.Http.MaxBodyBytes,
		AllowedOrigins: strings.Split(cfg.Http.AllowedOrigin, ","),
	}
	server := qhttp.NewServer(serverConfig, qhttp.Deps{
		Predictor: service,
		Store:     store,
		Hub:       hub,
		Metrics:   metrics,
		Logger:    logger.Named("http"),
	})

	errs := make(chan error, 1)
	go func() {
		errs <- server.Start()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errs:
		if err != nil {
			logger.Error("HTTP server failed", zap.Error(err))
		}
	}

	if err := server.Stop(); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	logger.Info("exiting")
}

// loadPipeline loads the artifact at startup so a bad file shows up in the
// logs immediately. The server still starts and reports itself not ready.
func loadPipeline(ctx context.Context, service *ml.Service, metrics *monitoring.Metrics, hub *monitoring.Hub, logger *zap.Logger) {
	loadCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	status := monitoring.ModelStatusMessage{}
	p, err := service.Load(loadCtx)
	if err != nil {
		status.Detail = err.Error()
		if errors.Is(err, ml.ErrArtifactNotFound) {
			logger.Warn("no pipeline artifact, run train_model first")
		}
	} else {
		status.Loaded = true
		status.Schema = p.Schema.Fingerprint()
	}
	metrics.SetModelLoaded(status.Loaded)
	if err := hub.Publish(monitoring.ModelStatus, status); err != nil {
		logger.Debug("model status not published", zap.Error(err))
	}
}

func watchArtifact(ctx context.Context, path string, hub *monitoring.Hub, logger *zap.Logger) {
	err := ml.WatchArtifact(ctx, path, logger, func(event fsnotify.Event) {
		hub.Publish(monitoring.ModelStatus, monitoring.ModelStatusMessage{
			Loaded: true,
			Detail: "artifact " + strings.ToLower(event.Op.String()) + " on disk, restart to serve it",
		})
	})
	if err != nil {
		logger.Warn("artifact watch disabled", zap.Error(err))
	}
}

func fatal(msg string, err error) {
	os.Stderr.WriteString(msg + ": " + err.Error() + "\n")
	os.Exit(1)
}
