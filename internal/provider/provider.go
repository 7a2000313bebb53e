// Package provider adapts external speech models to a single call contract
// and maps their failures onto a small error taxonomy.
package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/your-org/mediascribe/internal/domain"
)

var (
	// ErrUnsupportedFormat means the provider rejected the audio encoding.
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	// ErrEmptyResult means the provider succeeded but returned no text.
	ErrEmptyResult = errors.New("provider returned no text")
)

// ProviderError is any other provider-side failure: network, quota,
// timeout or a malformed response.
type ProviderError struct {
	Provider string
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Provider, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Message, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Call is one request to a provider.
type Call struct {
	Path      string
	MimeType  string
	Prompt    string
	Operation domain.Operation
	Language  string
}

// Provider turns one staged audio file into text. Implementations never
// retry; the caller bounds latency through ctx.
type Provider interface {
	Name() string
	Process(ctx context.Context, call Call) (string, error)
}

// Config selects and configures a Provider.
type Config struct {
	Name string

	GoogleAPIKey string
	GeminiModel  string

	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	WhisperBinary string
	FFmpegBinary  string
	WhisperModel  string
	TempDir       string
}

// New builds the provider named in cfg. It is called once at startup and
// the result shared by every run.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (Provider, error) {
	switch strings.ToLower(cfg.Name) {
	case "gemini":
		return NewGemini(ctx, cfg.GoogleAPIKey, cfg.GeminiModel)
	case "openai":
		return NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel), nil
	case "whisper":
		return NewWhisper(WhisperConfig{
			Binary:    cfg.WhisperBinary,
			FFmpeg:    cfg.FFmpegBinary,
			ModelPath: cfg.WhisperModel,
			TempDir:   cfg.TempDir,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Name)
	}
}

var unsupportedMarkers = []string{
	"invalid binary data format",
	"unsupported audio",
	"unsupported mime",
	"unsupported file",
	"unsupported format",
	"invalid file format",
	"unrecognized file format",
	"invalid data found when processing input",
}

// classify maps a raw provider error to the taxonomy.
func classify(provider string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrUnsupportedFormat) || errors.Is(err, ErrEmptyResult) {
		return err
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range unsupportedMarkers {
		if strings.Contains(msg, marker) {
			return fmt.Errorf("%s: %w: %v", provider, ErrUnsupportedFormat, err)
		}
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &ProviderError{Provider: provider, Message: "request timed out", Err: err}
	case errors.Is(err, context.Canceled):
		return &ProviderError{Provider: provider, Message: "request cancelled", Err: err}
	default:
		return &ProviderError{Provider: provider, Message: "request failed", Err: err}
	}
}

// finish trims text and reports an empty response as ErrEmptyResult.
func finish(provider, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%s: %w", provider, ErrEmptyResult)
	}
	return text, nil
}
