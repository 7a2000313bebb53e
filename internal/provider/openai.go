package provider

import (
	"context"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/your-org/mediascribe/internal/domain"
)

// audioClient is the part of the go-openai client used here.
type audioClient interface {
	CreateTranscription(ctx context.Context, request openai.AudioRequest) (openai.AudioResponse, error)
	CreateTranslation(ctx context.Context, request openai.AudioRequest) (openai.AudioResponse, error)
}

// OpenAI talks to an OpenAI-compatible audio endpoint. Pointing baseURL at a
// local whisper server keeps audio on the machine.
type OpenAI struct {
	client audioClient
	model  string
}

// NewOpenAI builds the client; an empty baseURL uses api.openai.com.
func NewOpenAI(apiKey, baseURL, model string) *OpenAI {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	if model == "" {
		model = openai.Whisper1
	}
	return &OpenAI{client: openai.NewClientWithConfig(cfg), model: model}
}

func (o *OpenAI) Name() string { return "openai" }

// Process transcribes or translates the staged file.
//
// The audio endpoints return plain speech-to-text and cannot follow the
// instruction prompt, so OutputFormat is not honoured here: every format
// yields the raw transcript. Whisper treats its prompt field as preceding
// transcript text, so only a short language hint is sent.
func (o *OpenAI) Process(ctx context.Context, call Call) (string, error) {
	req := openai.AudioRequest{
		Model:    o.model,
		FilePath: call.Path,
		Prompt:   languageHint(call),
	}

	var (
		resp openai.AudioResponse
		err  error
	)
	if call.Operation == domain.OperationTranslate {
		resp, err = o.client.CreateTranslation(ctx, req)
	} else {
		req.Language = isoLanguage(call.Language)
		resp, err = o.client.CreateTranscription(ctx, req)
	}
	if err != nil {
		return "", classify(o.Name(), err)
	}

	return finish(o.Name(), resp.Text)
}

// isoLanguage passes through two-letter codes only; the endpoint rejects
// free-form language names.
func isoLanguage(raw string) string {
	lang := strings.ToLower(strings.TrimSpace(raw))
	if len(lang) == 2 {
		return lang
	}
	return ""
}

// languageHint nudges decoding toward a language the endpoint cannot take
// as a code. Translation always targets English and gets no hint.
func languageHint(call Call) string {
	if call.Operation == domain.OperationTranslate {
		return ""
	}
	lang := strings.TrimSpace(call.Language)
	if lang == "" || isoLanguage(lang) != "" {
		return ""
	}
	return "The following is spoken in " + lang + "."
}
