// Package ai wraps the generative model used for legal Q&A and
// drafting. Services depend on the Completer interface so tests can
// substitute a canned implementation.
package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Completer produces a completion for a prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Close() error
}

// GeminiCompleter calls the Gemini API.
type GeminiCompleter struct {
	client *genai.Client
	model  string
}

// NewGeminiCompleter dials the Gemini API with the given key and model
// name.
func NewGeminiCompleter(ctx context.Context, apiKey, model string) (*GeminiCompleter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key required")
	}
	if model == "" {
		model = "gemini-1.5-flash"
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiCompleter{client: client, model: model}, nil
}

// Complete sends the prompt and returns the concatenated text parts of
// the first candidate.
func (g *GeminiCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	model := g.client.GenerativeModel(g.model)
	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("empty completion response")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	out := strings.TrimSpace(sb.String())
	if out == "" {
		return "", fmt.Errorf("completion contained no text")
	}
	return out, nil
}

// Close releases the underlying client.
func (g *GeminiCompleter) Close() error {
	return g.client.Close()
}
