package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/your-org/mediascribe/internal/batch"
	"github.com/your-org/mediascribe/internal/export"
	"github.com/your-org/mediascribe/internal/history"
	"github.com/your-org/mediascribe/internal/provider"
	"github.com/your-org/mediascribe/internal/sentiment"
	"github.com/your-org/mediascribe/internal/staging"
	"github.com/your-org/mediascribe/internal/transcription"
	"github.com/your-org/mediascribe/pkg/config"
	"github.com/your-org/mediascribe/pkg/kafka"
	"github.com/your-org/mediascribe/pkg/logger"
	"github.com/your-org/mediascribe/pkg/metrics"
	"github.com/your-org/mediascribe/pkg/natsbus"
	"github.com/your-org/mediascribe/pkg/storage/objectstore"
	"github.com/your-org/mediascribe/pkg/tracing"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		var cfgErr *config.ConfigurationError
		if errors.As(err, &cfgErr) {
			log.Fatalf("invalid configuration: %v", cfgErr)
		}
		log.Fatalf("load config: %v", err)
	}

	logr, err := logger.New(cfg.App.LogLevel, cfg.App.Name, cfg.App.Environment)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	traceShutdown, err := tracing.Init(ctx, tracing.Config{
		Endpoint:       cfg.Tracing.Endpoint,
		Insecure:       cfg.Tracing.Insecure,
		SampleRatio:    cfg.Tracing.SampleRatio,
		Attributes:     tracing.ParseAttributes(cfg.Tracing.ResourceAttr),
		ServiceName:    cfg.App.Name,
		ServiceVersion: cfg.App.Version,

		BatchTimeout:       cfg.Tracing.BatchTimeout,
		ExportTimeout:      cfg.Tracing.ExportTimeout,
		MaxQueueSize:       cfg.Tracing.MaxQueueSize,
		MaxExportBatchSize: cfg.Tracing.MaxExportBatchSize,
	})
	if err != nil {
		logr.Fatal("init tracing", zap.Error(err))
	}
	defer traceShutdown(context.Background()) //nolint:errcheck

	prov, err := provider.New(ctx, provider.Config{
		Name:          cfg.Provider.Name,
		GoogleAPIKey:  cfg.Provider.GoogleAPIKey,
		GeminiModel:   cfg.Provider.GeminiModel,
		OpenAIAPIKey:  cfg.Provider.OpenAIAPIKey,
		OpenAIBaseURL: cfg.Provider.OpenAIBaseURL,
		OpenAIModel:   cfg.Provider.OpenAIModel,
		WhisperBinary: cfg.Provider.WhisperBinary,
		FFmpegBinary:  cfg.Provider.FFmpegBinary,
		WhisperModel:  cfg.Provider.WhisperModel,
		TempDir:       cfg.Batch.TempDir,
	}, logr)
	if err != nil {
		logr.Fatal("init provider", zap.Error(err))
	}

	store, err := objectstore.New(objectstore.Config{
		Provider:  cfg.Storage.Provider,
		Endpoint:  cfg.Storage.Endpoint,
		Region:    cfg.Storage.Region,
		Bucket:    cfg.Storage.Bucket,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		UseSSL:    cfg.Storage.UseSSL,
	})
	if err != nil {
		logr.Fatal("init object store", zap.Error(err))
	}

	publisher, err := newPublisher(cfg)
	if err != nil {
		logr.Fatal("init events backend", zap.Error(err))
	}

	var runHistory transcription.HistoryStore
	if cfg.Database.URL != "" {
		pool, err := history.Open(ctx, cfg.Database.URL)
		if err != nil {
			logr.Fatal("init postgres", zap.Error(err))
		}
		defer pool.Close()

		repo := history.NewRepository(pool)
		if err := repo.Migrate(ctx); err != nil {
			logr.Fatal("migrate postgres", zap.Error(err))
		}
		runHistory = repo
	}

	orchestrator := batch.NewOrchestrator(batch.Params{
		Stager:     staging.NewStager(cfg.Batch.TempDir),
		Provider:   prov,
		Classifier: sentiment.NewClassifier(),
		Workers:    cfg.Batch.Workers,
		Timeout:    cfg.Provider.Timeout,
		Logger:     logr,
	})

	service := transcription.NewService(transcription.Params{
		Orchestrator: orchestrator,
		Registry:     batch.NewRegistry(cfg.Batch.MaxRuns, cfg.Batch.MaxEvent),
		Exporter:     export.NewExporter(cfg.Export.Dir, logr),
		Store:        store,
		Publisher:    publisher,
		History:      runHistory,
		Logger:       logr,
	})

	handler := transcription.NewHTTPHandler(service, logr, cfg.Upload.MaxSizeBytes, cfg.Upload.MultipartMemBytes)

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      handler.Router(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	metricsServer := &http.Server{
		Addr:              cfg.Metrics.Addr,
		Handler:           metricsMux(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Error("metrics server failed", zap.Error(err))
		}
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logr.Error("http server shutdown failed", zap.Error(err))
		}
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logr.Error("metrics server shutdown failed", zap.Error(err))
		}

		drainCtx, cancelDrain := context.WithTimeout(context.Background(), cfg.Batch.DrainTimeout)
		defer cancelDrain()
		logr.Info("draining runs", zap.Duration("timeout", cfg.Batch.DrainTimeout))
		if err := service.Close(drainCtx); err != nil {
			logr.Error("service shutdown failed", zap.Error(err))
		}
	}()

	logr.Info("mediascribe starting",
		zap.String("addr", cfg.HTTP.Addr),
		zap.String("metrics_addr", cfg.Metrics.Addr),
		zap.String("provider", prov.Name()),
		zap.Int("workers", cfg.Batch.Workers),
		zap.String("events_backend", cfg.Events.Backend),
	)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logr.Fatal("http server failed", zap.Error(err))
	}
	<-done
	logr.Info("mediascribe stopped")
}

func newPublisher(cfg *config.Config) (transcription.Publisher, error) {
	switch strings.ToLower(cfg.Events.Backend) {
	case "kafka":
		return kafka.NewProducer(kafka.ProducerConfig{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.ResultsTopic,
			BatchSize:    cfg.Kafka.BatchSize,
			BatchTimeout: cfg.Kafka.BatchTimeout,
			Compression:  kafka.CompressionFromString(cfg.Kafka.CompressionCodec),
			RequiredAcks: kafkago.RequireAll,
			MaxAttempts:  cfg.Kafka.Retries,
		}), nil
	case "nats":
		pub, err := natsbus.Connect(cfg.NATS.URL, cfg.NATS.Subject)
		if err != nil {
			return nil, err
		}
		return pub, nil
	default:
		return nil, nil
	}
}

func metricsMux() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	return mux
}
