package provider

import (
	"context"
	"fmt"
	"os"

	"google.golang.org/genai"
)

// contentGenerator is the part of genai.Models used here.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini sends the prompt and inline audio to the Gemini API.
type Gemini struct {
	models   contentGenerator
	model    string
	readFile func(string) ([]byte, error)
}

// NewGemini creates a client for the Gemini developer API.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("init gemini client: %w", err)
	}
	return newGemini(client.Models, model), nil
}

func newGemini(models contentGenerator, model string) *Gemini {
	if model == "" {
		model = "gemini-1.5-flash"
	}
	return &Gemini{models: models, model: model, readFile: os.ReadFile}
}

func (g *Gemini) Name() string { return "gemini" }

// Process uploads the audio inline with the prompt and returns the response text.
func (g *Gemini) Process(ctx context.Context, call Call) (string, error) {
	data, err := g.readFile(call.Path)
	if err != nil {
		return "", &ProviderError{Provider: g.Name(), Message: "read staged audio", Err: err}
	}

	parts := []*genai.Part{
		genai.NewPartFromText(call.Prompt),
		genai.NewPartFromBytes(data, call.MimeType),
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	resp, err := g.models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return "", classify(g.Name(), err)
	}
	if resp == nil {
		return "", &ProviderError{Provider: g.Name(), Message: "malformed response: nil body"}
	}

	return finish(g.Name(), resp.Text())
}
