// Package mock provides a deterministic scheduling client.
package mock

import (
	"context"
	"fmt"
	"sync"

	"ai-voice-agent-orchestrator/internal/service/scheduling"
)

// Client implements scheduling.Client without network access. By default
// every booking succeeds with generated URIs.
type Client struct {
	mu       sync.Mutex
	requests []scheduling.BookingRequest
	results  []scheduling.BookingResult
	err      error
}

func New() *Client {
	return &Client{}
}

// Queue makes the next bookings return the given results in order.
func (c *Client) Queue(results ...scheduling.BookingResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = append(c.results, results...)
}

// FailWith makes every subsequent booking return err. nil clears it.
func (c *Client) FailWith(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

// Requests returns a copy of the recorded requests.
func (c *Client) Requests() []scheduling.BookingRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]scheduling.BookingRequest{}, c.requests...)
}

func (c *Client) BookAppointment(ctx context.Context, req scheduling.BookingRequest) (scheduling.BookingResult, error) {
	if err := ctx.Err(); err != nil {
		return scheduling.BookingResult{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.requests = append(c.requests, req)
	n := len(c.requests)

	if c.err != nil {
		return scheduling.BookingResult{ErrorCode: scheduling.CodeAPIError, ErrorMessage: c.err.Error()},
			fmt.Errorf("%w: %v", scheduling.ErrUnavailable, c.err)
	}
	if len(c.results) > 0 {
		res := c.results[0]
		c.results = c.results[1:]
		return res, nil
	}
	return scheduling.BookingResult{
		Success:    true,
		EventURI:   fmt.Sprintf("mock://events/%d", n),
		InviteeURI: fmt.Sprintf("mock://invitees/%d", n),
		StartTime:  req.Date + "T" + req.Time + ":00",
	}, nil
}
