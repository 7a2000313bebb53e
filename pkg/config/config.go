package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config captures the full runtime configuration for the mediascribe service.
type Config struct {
	App      AppConfig
	HTTP     HTTPConfig
	Provider ProviderConfig
	Batch    BatchConfig
	Export   ExportConfig
	Events   EventsConfig
	Kafka    KafkaConfig
	NATS     NATSConfig
	Storage  StorageConfig
	Database DatabaseConfig
	Tracing  TracingConfig
	Metrics  MetricsConfig
	Upload   UploadConfig
}

type AppConfig struct {
	Name        string `env:"APP_NAME" envDefault:"mediascribe"`
	Environment string `env:"APP_ENV" envDefault:"development"`
	Version     string `env:"APP_VERSION" envDefault:"0.1.0"`
	LogLevel    string `env:"APP_LOG_LEVEL" envDefault:"info"`
}

type HTTPConfig struct {
	Addr         string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"60s"`
	IdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
	// ShutdownTimeout bounds the graceful HTTP shutdown only.
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"30s"`
}

type ProviderConfig struct {
	Name    string        `env:"PROVIDER" envDefault:"gemini"`
	Timeout time.Duration `env:"PROVIDER_TIMEOUT" envDefault:"5m"`

	GoogleAPIKey string `env:"GOOGLE_API_KEY"`
	GeminiModel  string `env:"GEMINI_MODEL" envDefault:"gemini-1.5-flash"`

	OpenAIAPIKey  string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL string `env:"OPENAI_BASE_URL"`
	OpenAIModel   string `env:"OPENAI_MODEL" envDefault:"whisper-1"`

	WhisperBinary string `env:"WHISPER_BINARY" envDefault:"whisper-cli"`
	FFmpegBinary  string `env:"FFMPEG_BINARY" envDefault:"ffmpeg"`
	WhisperModel  string `env:"WHISPER_MODEL_PATH"`
}

type BatchConfig struct {
	Workers  int    `env:"BATCH_WORKERS" envDefault:"1"`
	TempDir  string `env:"STAGING_DIR"`
	MaxRuns  int    `env:"BATCH_MAX_RUNS" envDefault:"100"`
	MaxEvent int    `env:"BATCH_MAX_EVENTS" envDefault:"1000"`
	// DrainTimeout is how long shutdown waits for in-flight runs before
	// cancelling them.
	DrainTimeout time.Duration `env:"BATCH_DRAIN_TIMEOUT" envDefault:"10m"`
}

type ExportConfig struct {
	Dir string `env:"EXPORT_DIR" envDefault:"."`
}

type EventsConfig struct {
	Backend string `env:"EVENTS_BACKEND" envDefault:"none"`
}

type KafkaConfig struct {
	Brokers          []string      `env:"KAFKA_BROKERS" envSeparator:"," envDefault:"localhost:9092"`
	ResultsTopic     string        `env:"KAFKA_RESULTS_TOPIC" envDefault:"mediascribe.runs"`
	Retries          int           `env:"KAFKA_RETRIES" envDefault:"3"`
	CompressionCodec string        `env:"KAFKA_COMPRESSION_CODEC" envDefault:"snappy"`
	BatchSize        int           `env:"KAFKA_BATCH_SIZE" envDefault:"100"`
	BatchTimeout     time.Duration `env:"KAFKA_BATCH_TIMEOUT" envDefault:"1s"`
}

type NATSConfig struct {
	URL     string `env:"NATS_URL" envDefault:"nats://localhost:4222"`
	Subject string `env:"NATS_SUBJECT" envDefault:"mediascribe.runs"`
}

type StorageConfig struct {
	Provider  string `env:"STORAGE_PROVIDER" envDefault:"none"`
	Endpoint  string `env:"STORAGE_ENDPOINT" envDefault:"localhost:9000"`
	Region    string `env:"STORAGE_REGION" envDefault:"us-east-1"`
	Bucket    string `env:"STORAGE_BUCKET" envDefault:"mediascribe-results"`
	AccessKey string `env:"STORAGE_ACCESS_KEY" envDefault:"minioadmin"`
	SecretKey string `env:"STORAGE_SECRET_KEY" envDefault:"minioadmin"`
	UseSSL    bool   `env:"STORAGE_USE_SSL" envDefault:"false"`
}

type DatabaseConfig struct {
	URL string `env:"DATABASE_URL"`
}

type TracingConfig struct {
	Endpoint     string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	Insecure     bool    `env:"OTEL_EXPORTER_OTLP_INSECURE" envDefault:"true"`
	SampleRatio  float64 `env:"OTEL_TRACES_SAMPLER_RATIO" envDefault:"1.0"`
	ResourceAttr string  `env:"OTEL_RESOURCE_ATTRIBUTES" envDefault:"service.namespace=mediascribe"`

	BatchTimeout       time.Duration `env:"OTEL_BSP_SCHEDULE_DELAY" envDefault:"5s"`
	ExportTimeout      time.Duration `env:"OTEL_BSP_EXPORT_TIMEOUT" envDefault:"30s"`
	MaxQueueSize       int           `env:"OTEL_BSP_MAX_QUEUE_SIZE" envDefault:"8192"`
	MaxExportBatchSize int           `env:"OTEL_BSP_MAX_EXPORT_BATCH_SIZE" envDefault:"512"`
}

type MetricsConfig struct {
	Addr string `env:"METRICS_ADDR" envDefault:":9102"`
}

type UploadConfig struct {
	MaxSizeBytes      int64 `env:"UPLOAD_MAX_SIZE_BYTES" envDefault:"1073741824"`
	MultipartMemBytes int64 `env:"UPLOAD_MULTIPART_MEM_BYTES" envDefault:"52428800"`
}

// ConfigurationError reports a setting the service cannot start without.
type ConfigurationError struct {
	Key    string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Key, e.Reason)
}

// Load reads an optional .env file, then parses environment variables into Config.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return Parse()
}

// Parse builds Config from the process environment and validates it.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the selected provider has what it needs.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Provider.Name) {
	case "gemini":
		if strings.TrimSpace(c.Provider.GoogleAPIKey) == "" {
			return &ConfigurationError{Key: "GOOGLE_API_KEY", Reason: "required when PROVIDER=gemini"}
		}
	case "openai":
		if strings.TrimSpace(c.Provider.OpenAIAPIKey) == "" && strings.TrimSpace(c.Provider.OpenAIBaseURL) == "" {
			return &ConfigurationError{Key: "OPENAI_API_KEY", Reason: "required when PROVIDER=openai without OPENAI_BASE_URL"}
		}
	case "whisper":
		if strings.TrimSpace(c.Provider.WhisperModel) == "" {
			return &ConfigurationError{Key: "WHISPER_MODEL_PATH", Reason: "required when PROVIDER=whisper"}
		}
	default:
		return &ConfigurationError{Key: "PROVIDER", Reason: fmt.Sprintf("unsupported provider %q", c.Provider.Name)}
	}

	switch strings.ToLower(c.Events.Backend) {
	case "", "none", "kafka", "nats":
	default:
		return &ConfigurationError{Key: "EVENTS_BACKEND", Reason: fmt.Sprintf("unsupported events backend %q", c.Events.Backend)}
	}

	if c.Batch.Workers < 1 {
		c.Batch.Workers = 1
	}
	return nil
}
