package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// GenAIProvider uses the Google Gen AI SDK against the Gemini API.
type GenAIProvider struct {
	client    *genai.Client
	modelName string
}

func NewGenAIProvider(ctx context.Context, apiKey, modelName string) (*GenAIProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY must be set")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}

	return &GenAIProvider{client: client, modelName: modelName}, nil
}

func (p *GenAIProvider) Complete(ctx context.Context, prompt string) (string, error) {
	res, err := p.client.Models.GenerateContent(ctx, p.modelName, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("genai generate content: %w", err)
	}
	return res.Text(), nil
}
