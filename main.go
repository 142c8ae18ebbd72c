package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"churnai/churn"
	"churnai/config"
	"churnai/db"
	qhttp "churnai/http"
	"churnai/logging"
	"churnai/monitoring"
	"churnai/training"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	flag.Parse()

	// 1. Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
	logger.Info("exiting")
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. Initialize database
	store, err := db.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()
	logger.Info("database initialized", zap.String("path", cfg.Database.Path))

	metrics := monitoring.NewMetrics()
	hub := monitoring.NewWebSocketHub(logger.Named("feed"))
	go hub.Start()
	defer hub.Stop()

	// 3. Load the model before accepting requests
	service, err := churn.NewService(churn.DefaultPaths(cfg.Model.Dir), cfg.Model.CacheSize, logger.Named("model"))
	if err != nil {
		return err
	}
	service.Debounce = cfg.Model.Debounce
	service.OnReload(func(info churn.ModelInfo, err error) {
		metrics.RecordReload(err)
		event := monitoring.ModelReloadMessage{Status: "loaded", ModelType: info.ModelType, Columns: info.Columns, TrainedAt: info.TrainedAt}
		if err != nil {
			event = monitoring.ModelReloadMessage{Status: "failed", Error: err.Error()}
		}
		if err := hub.Publish(monitoring.ModelReloadEvent, event); err != nil {
			logger.Warn("publish model reload event", zap.Error(err))
		}
	})
	if _, err := service.Reload(); err != nil {
		return fmt.Errorf("load model artifacts from %s: %w", cfg.Model.Dir, err)
	}

	if cfg.Model.Watch {
		go func() {
			if err := service.Watch(ctx); err != nil {
				logger.Error("artifact watcher stopped", zap.Error(err))
			}
		}()
	}

	// 4. Optional scheduled retraining
	if cfg.Training.Schedule != "" {
		scheduler, err := newScheduler(cfg, logger, store, service, metrics, hub)
		if err != nil {
			return err
		}
		go scheduler.Start(ctx)
	}

	// 5. Start HTTP server
	server := qhttp.NewServer(qhttp.ServerConfig{
		Port:           cfg.HTTP.Port,
		Timeout:        cfg.HTTP.RequestTimeout,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
	}, qhttp.Deps{
		Service: service,
		Store:   store,
		Hub:     hub,
		Metrics: metrics,
		Logger:  logger.Named("http"),
	})
	errc := make(chan error, 1)
	go func() { errc <- server.Start() }()

	// 6. Handle graceful shutdown
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Stop(shutdownCtx)
}

func newScheduler(cfg *config.Config, logger *zap.Logger, store *db.Store, service *churn.Service,
	metrics *monitoring.Metrics, hub *monitoring.WebSocketHub) (*training.Scheduler, error) {
	trainer, err := training.NewTrainer(cfg.Training, logger.Named("training"), store)
	if err != nil {
		return nil, err
	}
	return training.NewScheduler(cfg.Training.Schedule, trainer, logger.Named("scheduler"), func(report *training.Report, err error) {
		scores := make(map[string]float64)
		event := monitoring.TrainingMessage{}
		if report != nil {
			event.RunID = report.RunID
			for _, r := range report.Results {
				if r.Err == "" {
					scores[r.Model] = r.Evaluation.ROCAUC
				}
			}
			if best := report.BestResult(); best != nil {
				event.Best = best.Model
				event.ROCAUC = best.Evaluation.ROCAUC
			}
		}
		if err != nil {
			event.Error = err.Error()
		}
		metrics.RecordTraining(scores, err)
		if err := hub.Publish(monitoring.TrainingEvent, event); err != nil {
			logger.Warn("publish training event", zap.Error(err))
		}

		// the watcher picks up the new artifacts on its own
		if err == nil && !cfg.Model.Watch {
			if _, err := service.Reload(); err != nil {
				logger.Warn("reload after training", zap.Error(err))
			}
		}
	})
}
