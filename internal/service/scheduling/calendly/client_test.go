package calendly

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"ai-voice-agent-orchestrator/internal/service/scheduling"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := New(Config{
		APIKey:       "test-token",
		BaseURL:      srv.URL,
		EventTypeURI: "https://api.calendly.com/event_types/demo",
		MaxRetries:   2,
		RetryBase:    time.Millisecond,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func sampleRequest() scheduling.BookingRequest {
	return scheduling.BookingRequest{
		Name:     "Ada Lovelace King",
		Email:    "ada@example.com",
		Date:     "2026-11-03",
		Time:     "14:30",
		Timezone: "Europe/Berlin",
		Phone:    "+4915112345678",
		Company:  "Analytical Engines",
	}
}

func TestBookAppointment_Success(t *testing.T) {
	var got bookingPayload
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/scheduled_events" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-token" {
			t.Errorf("missing bearer token, got %q", r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"resource":{"uri":"evt-1","start_time":"2026-11-03T13:30:00Z","end_time":"2026-11-03T14:00:00Z","invitees":[{"uri":"inv-1"}],"location":{"join_url":"https://meet.example/abc"}}}`))
	})

	res, err := c.BookAppointment(context.Background(), sampleRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Success || res.EventURI != "evt-1" || res.InviteeURI != "inv-1" {
		t.Errorf("unexpected result: %+v", res)
	}
	if res.ConfirmationURL != "https://meet.example/abc" {
		t.Errorf("unexpected confirmation url %q", res.ConfirmationURL)
	}

	if got.StartTime != "2026-11-03T14:30:00" {
		t.Errorf("unexpected start time %q", got.StartTime)
	}
	if got.Invitee.FirstName != "Ada" || got.Invitee.LastName != "Lovelace King" {
		t.Errorf("unexpected name split: %+v", got.Invitee)
	}
	if got.Invitee.TextReminderNumber != "+4915112345678" {
		t.Errorf("expected reminder number, got %q", got.Invitee.TextReminderNumber)
	}
	if len(got.QuestionsAndAnswers) != 3 {
		t.Errorf("expected company, phone and language answers, got %+v", got.QuestionsAndAnswers)
	}
}

func TestBookAppointment_ClassifiesRejections(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantCode string
	}{
		{"double booking", http.StatusUnprocessableEntity, `{"message":"The selected time is already taken"}`, scheduling.CodeDoubleBooking},
		{"conflict detail", http.StatusConflict, `{"title":"Invalid","details":[{"message":"Scheduling conflict"}]}`, scheduling.CodeDoubleBooking},
		{"past date", http.StatusBadRequest, `{"message":"start_time must not be in the past"}`, scheduling.CodePastDate},
		{"other validation", http.StatusUnprocessableEntity, `{"message":"email is invalid"}`, scheduling.CodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			res, err := c.BookAppointment(context.Background(), sampleRequest())
			if err != nil {
				t.Fatalf("slot rejection must not be an error, got %v", err)
			}
			if res.Success || res.ErrorCode != tt.wantCode {
				t.Errorf("expected code %s, got %+v", tt.wantCode, res)
			}
			if !res.SlotRejected() {
				t.Error("expected SlotRejected")
			}
		})
	}
}

func TestBookAppointment_RetriesThenSucceeds(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"resource":{"uri":"evt-2"}}`))
	})

	res, err := c.BookAppointment(context.Background(), sampleRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Success || res.EventURI != "evt-2" {
		t.Errorf("unexpected result: %+v", res)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
}

func TestBookAppointment_ExhaustedRetriesIsAPIError(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	})

	res, err := c.BookAppointment(context.Background(), sampleRequest())
	if !errors.Is(err, scheduling.ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
	if res.ErrorCode != scheduling.CodeAPIError {
		t.Errorf("expected API_ERROR, got %q", res.ErrorCode)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Errorf("expected 1 attempt plus 2 retries, got %d", calls)
	}
}

func TestBookAppointment_AuthFailureNotRetried(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := c.BookAppointment(context.Background(), sampleRequest())
	if !errors.Is(err, scheduling.ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("expected a single attempt, got %d", calls)
	}
}

func TestBookAppointment_MissingEventType(t *testing.T) {
	c, err := New(Config{APIKey: "k"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	res, err := c.BookAppointment(context.Background(), sampleRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ErrorCode != scheduling.CodeConfigMissing {
		t.Errorf("expected CONFIG_MISSING, got %q", res.ErrorCode)
	}
}

func TestNew_RequiresAPIKey(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("expected error without API key")
	}
}
