package completion

import (
	"context"
	"errors"
	"testing"
	"time"

	"ai-voice-agent-orchestrator/internal/models"
)

func TestWithTimeout_WrapsErrors(t *testing.T) {
	boom := errors.New("boom")
	c := WithTimeout(Func(func(context.Context, string, string) (string, error) {
		return "", boom
	}), time.Second, "test")

	_, err := c.Complete(context.Background(), "sys", "")
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestWithTimeout_DeadlineIsUnavailable(t *testing.T) {
	c := WithTimeout(Func(func(ctx context.Context, _, _ string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}), 10*time.Millisecond, "test")

	_, err := c.Complete(context.Background(), "sys", "Caller: hi\n")
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable on timeout, got %v", err)
	}
}

func TestWithTimeout_PassesThroughReply(t *testing.T) {
	c := WithTimeout(Func(func(context.Context, string, string) (string, error) {
		return "hello", nil
	}), 0, "test")

	got, err := c.Complete(context.Background(), "sys", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "hello" {
		t.Errorf("expected hello, got %q", got)
	}
}

func TestBuildContext(t *testing.T) {
	transcript := []models.Turn{
		{Role: models.RoleAgent, Text: "Hello"},
		{Role: models.RoleCaller, Text: "Hi"},
		{Role: models.RoleAgent, Text: "routed to qualifier", Internal: true},
		{Role: models.RoleAgent, Text: "What is your budget?"},
		{Role: models.RoleCaller, Text: "We have one"},
	}

	tests := []struct {
		name string
		max  int
		want string
	}{
		{"all", 0, "Agent: Hello\nCaller: Hi\nAgent: What is your budget?\nCaller: We have one\n"},
		{"last two", 2, "Agent: What is your budget?\nCaller: We have one\n"},
	}

	for _, tt := range tests {
		if got := BuildContext(transcript, tt.max); got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.name, got, tt.want)
		}
	}

	if got := BuildContext(nil, 5); got != "" {
		t.Errorf("expected empty context, got %q", got)
	}
}
