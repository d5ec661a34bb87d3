package generate

import (
	"context"
	"fmt"
	"sync"

	"google.golang.org/genai"
)

// GeminiGenerator implements domain.Generator against the Gemini API. A
// client is created lazily per credential and cached, since the fallback
// chain may rotate through several keys within one Process call.
type GeminiGenerator struct {
	mu      sync.Mutex
	clients map[string]*genai.Client
}

// NewGeminiGenerator creates a GeminiGenerator.
func NewGeminiGenerator() *GeminiGenerator {
	return &GeminiGenerator{clients: make(map[string]*genai.Client)}
}

// Generate runs one generation call with the given model and API key.
func (g *GeminiGenerator) Generate(ctx context.Context, model, credential, prompt string) (string, error) {
	client, err := g.client(ctx, credential)
	if err != nil {
		return "", err
	}

	result, err := client.Models.GenerateContent(ctx, model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	if result == nil || len(result.Candidates) == 0 ||
		result.Candidates[0].Content == nil || len(result.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("model %s returned no candidates", model)
	}
	return result.Candidates[0].Content.Parts[0].Text, nil
}

func (g *GeminiGenerator) client(ctx context.Context, credential string) (*genai.Client, error) {
	if credential == "" {
		return nil, fmt.Errorf("empty API credential")
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if c, ok := g.clients[credential]; ok {
		return c, nil
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: credential})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	g.clients[credential] = c
	return c, nil
}
