package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaultsWithGeminiKey(t *testing.T) {
	t.Setenv("PROVIDER", "gemini")
	t.Setenv("GOOGLE_API_KEY", "test-key")

	cfg, err := Parse()
	require.NoError(t, err)

	assert.Equal(t, "mediascribe", cfg.App.Name)
	assert.Equal(t, "gemini-1.5-flash", cfg.Provider.GeminiModel)
	assert.Equal(t, 1, cfg.Batch.Workers)
	assert.Equal(t, ".", cfg.Export.Dir)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 10*time.Minute, cfg.Batch.DrainTimeout)
	assert.Equal(t, 30*time.Second, cfg.HTTP.ShutdownTimeout)
	assert.Equal(t, 8192, cfg.Tracing.MaxQueueSize)
	assert.Equal(t, 5*time.Second, cfg.Tracing.BatchTimeout)
}

func TestParseMissingCredentialIsConfigurationError(t *testing.T) {
	t.Setenv("PROVIDER", "gemini")
	t.Setenv("GOOGLE_API_KEY", "")

	_, err := Parse()
	require.Error(t, err)

	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "GOOGLE_API_KEY", cfgErr.Key)
}

func TestValidateProviders(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ProviderConfig
		wantKey string
	}{
		{name: "openai with key", cfg: ProviderConfig{Name: "openai", OpenAIAPIKey: "k"}},
		{name: "openai with local base url", cfg: ProviderConfig{Name: "openai", OpenAIBaseURL: "http://localhost:8000/v1"}},
		{name: "openai without either", cfg: ProviderConfig{Name: "openai"}, wantKey: "OPENAI_API_KEY"},
		{name: "whisper without model", cfg: ProviderConfig{Name: "whisper"}, wantKey: "WHISPER_MODEL_PATH"},
		{name: "whisper with model", cfg: ProviderConfig{Name: "whisper", WhisperModel: "/models"}},
		{name: "unknown provider", cfg: ProviderConfig{Name: "carrier-pigeon"}, wantKey: "PROVIDER"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Provider: tt.cfg}
			err := cfg.Validate()
			if tt.wantKey == "" {
				assert.NoError(t, err)
				return
			}
			var cfgErr *ConfigurationError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.wantKey, cfgErr.Key)
		})
	}
}

func TestValidateClampsWorkers(t *testing.T) {
	cfg := &Config{Provider: ProviderConfig{Name: "gemini", GoogleAPIKey: "k"}}
	cfg.Batch.Workers = 0

	require.NoError(t, cfg.Validate())
	assert.Equal(t, 1, cfg.Batch.Workers)
}

func TestValidateRejectsUnknownEventsBackend(t *testing.T) {
	cfg := &Config{Provider: ProviderConfig{Name: "gemini", GoogleAPIKey: "k"}}
	cfg.Events.Backend = "carrier-pigeon"

	var cfgErr *ConfigurationError
	require.ErrorAs(t, cfg.Validate(), &cfgErr)
	assert.Equal(t, "EVENTS_BACKEND", cfgErr.Key)
}
