// Package mock provides a scripted completer for tests and local runs without
// provider credentials.
package mock

import (
	"context"
	"strings"
	"sync"
)

// Rule answers every system prompt containing Match. Replies are used in
// rotation.
type Rule struct {
	Match   string
	Replies []string
}

// Call is one recorded request.
type Call struct {
	SystemPrompt string
	Conversation string
}

// DefaultReply is used when no rule matches.
const DefaultReply = "Thanks for sharing that. Could you tell me a bit more?"

// Completer implements completion.Completer with scripted replies.
type Completer struct {
	mu       sync.Mutex
	rules    []Rule
	fallback string
	err      error
	calls    []Call
	served   map[int]int
}

// New creates a completer. Rules are checked in order; the first whose Match
// occurs in the system prompt answers.
func New(fallback string, rules ...Rule) *Completer {
	if fallback == "" {
		fallback = DefaultReply
	}
	return &Completer{
		rules:    rules,
		fallback: fallback,
		served:   make(map[int]int),
	}
}

// NewDemo returns a completer that plays a plausible sales agent.
func NewDemo() *Completer {
	return New(DefaultReply,
		Rule{Match: "route a live sales call", Replies: []string{"qualifier"}},
		Rule{Match: "handle sales objections", Replies: []string{
			"I completely understand. Many of our customers felt the same way at first. What would make this worthwhile for you?",
			"That is a fair point. Would it help if I showed you how other teams your size handle this?",
		}},
		Rule{Match: "book a product demo", Replies: []string{
			"Wonderful. Which day and time suit you best for a short demo?",
			"Great, what email address should I send the invitation to?",
		}},
		Rule{Match: "qualify", Replies: []string{
			"Thanks. Is a budget for a solution like this already planned?",
			"Who else is involved in a decision like this on your side?",
			"How pressing is this topic for your team right now?",
			"When would you ideally like to have a solution in place?",
		}},
	)
}

// FailWith makes every subsequent call return err. nil clears it.
func (c *Completer) FailWith(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

// Calls returns a copy of the recorded requests.
func (c *Completer) Calls() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Call{}, c.calls...)
}

// Complete returns the scripted reply. Empty input is accepted.
func (c *Completer) Complete(ctx context.Context, systemPrompt, conversation string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.calls = append(c.calls, Call{SystemPrompt: systemPrompt, Conversation: conversation})
	if c.err != nil {
		return "", c.err
	}

	for i, r := range c.rules {
		if len(r.Replies) == 0 || !strings.Contains(systemPrompt, r.Match) {
			continue
		}
		n := c.served[i]
		c.served[i] = n + 1
		return r.Replies[n%len(r.Replies)], nil
	}
	return c.fallback, nil
}
