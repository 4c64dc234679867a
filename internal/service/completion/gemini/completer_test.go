package gemini

import (
	"context"
	"testing"
)

func TestNew_RequiresAPIKey(t *testing.T) {
	_, err := New(context.Background(), Config{})
	if err == nil {
		t.Error("expected error without API key")
	}
}

func TestNew_DefaultModel(t *testing.T) {
	c, err := New(context.Background(), Config{APIKey: "test-key"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.model != DefaultModel {
		t.Errorf("expected model %s, got %s", DefaultModel, c.model)
	}
}

func TestNew_CustomSettings(t *testing.T) {
	c, err := New(context.Background(), Config{APIKey: "k", Model: "gemini-2.5-pro", Temperature: 0.2, MaxTokens: 256})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.model != "gemini-2.5-pro" || c.temperature != 0.2 || c.maxTokens != 256 {
		t.Errorf("unexpected settings: %+v", c)
	}
}
