// Package completion defines the interface for text-completion providers.
package completion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ai-voice-agent-orchestrator/internal/models"
	"ai-voice-agent-orchestrator/internal/observability/metrics"
)

// ErrUnavailable wraps every provider failure. Callers may retry the turn.
var ErrUnavailable = errors.New("completion service unavailable")

// Completer produces a reply for a system prompt and a rendered conversation.
// Implementations must accept an empty conversation.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, conversation string) (string, error)
}

// Func adapts a function to Completer.
type Func func(ctx context.Context, systemPrompt, conversation string) (string, error)

func (f Func) Complete(ctx context.Context, systemPrompt, conversation string) (string, error) {
	return f(ctx, systemPrompt, conversation)
}

type timeoutCompleter struct {
	next     Completer
	timeout  time.Duration
	provider string
	metrics  *metrics.Metrics
}

// WithTimeout bounds each call, records latency, and wraps errors in
// ErrUnavailable.
func WithTimeout(c Completer, timeout time.Duration, provider string) Completer {
	return &timeoutCompleter{
		next:     c,
		timeout:  timeout,
		provider: provider,
		metrics:  metrics.DefaultMetrics,
	}
}

func (t *timeoutCompleter) Complete(ctx context.Context, systemPrompt, conversation string) (string, error) {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	start := time.Now()
	out, err := t.next.Complete(ctx, systemPrompt, conversation)
	t.metrics.RecordCompletion(t.provider, err, time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, ErrUnavailable) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return out, nil
}

// BuildContext renders the last maxTurns visible turns as speaker lines.
// maxTurns <= 0 renders everything.
func BuildContext(transcript []models.Turn, maxTurns int) string {
	visible := make([]models.Turn, 0, len(transcript))
	for _, t := range transcript {
		if !t.Internal {
			visible = append(visible, t)
		}
	}
	if maxTurns > 0 && len(visible) > maxTurns {
		visible = visible[len(visible)-maxTurns:]
	}

	var b strings.Builder
	for _, t := range visible {
		switch t.Role {
		case models.RoleCaller:
			b.WriteString("Caller: ")
		default:
			b.WriteString("Agent: ")
		}
		b.WriteString(t.Text)
		b.WriteString("\n")
	}
	return b.String()
}
