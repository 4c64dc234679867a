// Package gemini provides a Google Gemini completer.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.5-flash"

// emptyConversation stands in for a call where nobody has spoken yet.
const emptyConversation = "(The call has just connected. Nobody has spoken yet.)"

// Config holds Gemini settings.
type Config struct {
	APIKey      string
	Model       string
	Temperature float32
	MaxTokens   int32
}

// Completer implements completion.Completer using the Gemini API.
type Completer struct {
	client      *genai.Client
	model       string
	temperature float32
	maxTokens   int32
}

// New creates a Gemini completer. An API key is required.
func New(ctx context.Context, cfg Config) (*Completer, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("genai: API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	return &Completer{
		client:      client,
		model:       model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}, nil
}

// Complete sends the conversation with the system prompt as instruction.
func (c *Completer) Complete(ctx context.Context, systemPrompt, conversation string) (string, error) {
	if strings.TrimSpace(conversation) == "" {
		conversation = emptyConversation
	}

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		Temperature:       genai.Ptr(c.temperature),
	}
	if c.maxTokens > 0 {
		config.MaxOutputTokens = c.maxTokens
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(conversation), config)
	if err != nil {
		return "", fmt.Errorf("genai generate: %w", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", errors.New("genai: empty response")
	}
	return text, nil
}
