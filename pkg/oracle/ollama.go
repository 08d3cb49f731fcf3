package oracle

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const systemPrompt = "You are a clinical trial eligibility assistant. Respond only with the requested JSON object."

// OllamaGenerator talks to any OpenAI-compatible completion endpoint,
// including a local Ollama instance serving /v1.
type OllamaGenerator struct {
	client *openai.Client
	model  string
}

// NewOllamaGenerator creates a generator for the given base URL and model.
// The API key may be empty for local endpoints.
func NewOllamaGenerator(baseURL, apiKey, model string) (*OllamaGenerator, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, fmt.Errorf("oracle base URL is required")
	}
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("oracle model is required")
	}

	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = strings.TrimSuffix(baseURL, "/")
	return &OllamaGenerator{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}, nil
}

// Generate sends the prompt as a chat completion and returns the first
// choice's content.
func (g *OllamaGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0.1,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Model returns the configured model name.
func (g *OllamaGenerator) Model() string {
	return g.model
}
