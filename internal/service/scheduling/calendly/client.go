// Package calendly provides a Calendly REST client for booking appointments.
package calendly

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sethvargo/go-retry"

	"ai-voice-agent-orchestrator/internal/service/scheduling"
)

// DefaultBaseURL is the public Calendly API.
const DefaultBaseURL = "https://api.calendly.com"

const userAgent = "ai-voice-agent-orchestrator/1.0"

// Config holds Calendly client settings.
type Config struct {
	APIKey          string
	BaseURL         string
	EventTypeURI    string
	DefaultTimezone string
	MaxRetries      int
	RetryBase       time.Duration
	Timeout         time.Duration
	HTTPClient      *http.Client
}

// Client implements scheduling.Client against the Calendly API.
type Client struct {
	apiKey       string
	baseURL      string
	eventTypeURI string
	timezone     string
	maxRetries   uint64
	retryBase    time.Duration
	http         *http.Client
}

// New creates a Calendly client. An API key is required.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("calendly: API key is required")
	}

	c := &Client{
		apiKey:       cfg.APIKey,
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		eventTypeURI: cfg.EventTypeURI,
		timezone:     cfg.DefaultTimezone,
		retryBase:    cfg.RetryBase,
		http:         cfg.HTTPClient,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if cfg.MaxRetries > 0 {
		c.maxRetries = uint64(cfg.MaxRetries)
	}
	if c.retryBase <= 0 {
		c.retryBase = time.Second
	}
	if c.http == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		c.http = &http.Client{Timeout: timeout}
	}
	return c, nil
}

// validationError is a 4xx rejection of the request content.
type validationError struct {
	status  int
	message string
}

func (e *validationError) Error() string {
	return fmt.Sprintf("calendly: validation failed (status %d): %s", e.status, e.message)
}

type invitee struct {
	Email              string `json:"email"`
	FirstName          string `json:"first_name"`
	LastName           string `json:"last_name"`
	TextReminderNumber string `json:"text_reminder_number,omitempty"`
}

type questionAnswer struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type bookingPayload struct {
	EventType           string           `json:"event_type"`
	StartTime           string           `json:"start_time"`
	Timezone            string           `json:"timezone"`
	Language            string           `json:"language"`
	Invitee             invitee          `json:"invitee"`
	QuestionsAndAnswers []questionAnswer `json:"questions_and_answers"`
}

type bookingResponse struct {
	Resource struct {
		URI       string `json:"uri"`
		StartTime string `json:"start_time"`
		EndTime   string `json:"end_time"`
		Invitees  []struct {
			URI string `json:"uri"`
		} `json:"invitees"`
		Location struct {
			JoinURL string `json:"join_url"`
		} `json:"location"`
	} `json:"resource"`
}

type errorResponse struct {
	Title   string `json:"title"`
	Message string `json:"message"`
	Details []struct {
		Parameter string `json:"parameter"`
		Message   string `json:"message"`
	} `json:"details"`
}

// BookAppointment schedules an event for the invitee.
func (c *Client) BookAppointment(ctx context.Context, req scheduling.BookingRequest) (scheduling.BookingResult, error) {
	if c.eventTypeURI == "" {
		return scheduling.BookingResult{
			ErrorCode:    scheduling.CodeConfigMissing,
			ErrorMessage: "event type URI not configured",
		}, nil
	}

	first, last := splitName(req.Name)
	tz := req.Timezone
	if tz == "" {
		tz = c.timezone
	}
	language := req.Language
	if language == "" {
		language = "en"
	}

	var qa []questionAnswer
	if req.Company != "" {
		qa = append(qa, questionAnswer{Question: "Company", Answer: req.Company})
	}
	if req.Phone != "" {
		qa = append(qa, questionAnswer{Question: "Phone", Answer: req.Phone})
	}
	if req.Notes != "" {
		qa = append(qa, questionAnswer{Question: "Call notes", Answer: req.Notes})
	}
	qa = append(qa, questionAnswer{Question: "Language", Answer: language})

	payload := bookingPayload{
		EventType: c.eventTypeURI,
		StartTime: fmt.Sprintf("%sT%s:00", req.Date, req.Time),
		Timezone:  tz,
		Language:  language,
		Invitee: invitee{
			Email:              req.Email,
			FirstName:          first,
			LastName:           last,
			TextReminderNumber: req.Phone,
		},
		QuestionsAndAnswers: qa,
	}

	var resp bookingResponse
	err := c.do(ctx, http.MethodPost, "/scheduled_events", payload, &resp)

	var ve *validationError
	switch {
	case errors.As(err, &ve):
		return classify(ve.message), nil
	case err != nil:
		log.Error().Err(err).Str("component", "calendly").Msg("Booking failed")
		res := scheduling.BookingResult{
			ErrorCode:    scheduling.CodeAPIError,
			ErrorMessage: "A technical error occurred. Please try again later.",
		}
		return res, fmt.Errorf("%w: %v", scheduling.ErrUnavailable, err)
	}

	res := scheduling.BookingResult{
		Success:         true,
		EventURI:        resp.Resource.URI,
		StartTime:       resp.Resource.StartTime,
		EndTime:         resp.Resource.EndTime,
		ConfirmationURL: resp.Resource.Location.JoinURL,
	}
	if len(resp.Resource.Invitees) > 0 {
		res.InviteeURI = resp.Resource.Invitees[0].URI
	}
	return res, nil
}

func classify(message string) scheduling.BookingResult {
	lower := strings.ToLower(message)
	switch {
	case strings.Contains(lower, "already taken") || strings.Contains(lower, "conflict"):
		return scheduling.BookingResult{
			ErrorCode:    scheduling.CodeDoubleBooking,
			ErrorMessage: "That slot is already taken. Please choose another time.",
		}
	case strings.Contains(lower, "past"):
		return scheduling.BookingResult{
			ErrorCode:    scheduling.CodePastDate,
			ErrorMessage: "That time is in the past. Please choose a future time.",
		}
	default:
		return scheduling.BookingResult{
			ErrorCode:    scheduling.CodeValidation,
			ErrorMessage: message,
		}
	}
}

func splitName(name string) (first, last string) {
	parts := strings.SplitN(strings.TrimSpace(name), " ", 2)
	first = parts[0]
	if len(parts) > 1 {
		last = strings.TrimSpace(parts[1])
	}
	return first, last
}

// do sends one JSON request, retrying rate limits, server errors and
// transport failures with exponential backoff.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("calendly: marshal request: %w", err)
		}
	}

	backoff := retry.WithMaxRetries(c.maxRetries, retry.NewExponential(c.retryBase))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", userAgent)

		resp, err := c.http.Do(req)
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Calendly request failed, retrying")
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return retry.RetryableError(err)
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			log.Warn().Int("status", resp.StatusCode).Str("path", path).Msg("Calendly unavailable, retrying")
			return retry.RetryableError(fmt.Errorf("calendly: status %d", resp.StatusCode))
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return fmt.Errorf("calendly: authentication failed (status %d)", resp.StatusCode)
		case resp.StatusCode == http.StatusBadRequest ||
			resp.StatusCode == http.StatusConflict ||
			resp.StatusCode == http.StatusUnprocessableEntity:
			return &validationError{status: resp.StatusCode, message: errorMessage(data)}
		case resp.StatusCode >= 300:
			return fmt.Errorf("calendly: unexpected status %d", resp.StatusCode)
		}

		if out == nil || len(data) == 0 {
			return nil
		}
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("calendly: decode response: %w", err)
		}
		return nil
	})
}

func errorMessage(data []byte) string {
	var e errorResponse
	if err := json.Unmarshal(data, &e); err != nil {
		return strings.TrimSpace(string(data))
	}
	parts := []string{}
	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Title != "" {
		parts = append(parts, e.Title)
	}
	for _, d := range e.Details {
		if d.Message != "" {
			parts = append(parts, d.Message)
		}
	}
	if len(parts) == 0 {
		return "validation failed"
	}
	return strings.Join(parts, "; ")
}
