package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"ai-voice-agent-orchestrator/internal/app"
	"ai-voice-agent-orchestrator/internal/config"
	"ai-voice-agent-orchestrator/internal/models"
	"ai-voice-agent-orchestrator/internal/service/checkpoint"
	"ai-voice-agent-orchestrator/internal/service/completion"
	"ai-voice-agent-orchestrator/internal/service/completion/mock"
	"ai-voice-agent-orchestrator/internal/service/guardrail"
	"ai-voice-agent-orchestrator/internal/service/orchestrator"
	"ai-voice-agent-orchestrator/internal/service/router"
	"ai-voice-agent-orchestrator/internal/service/scheduling"
	schedmock "ai-voice-agent-orchestrator/internal/service/scheduling/mock"
	"ai-voice-agent-orchestrator/internal/service/specialist"
)

const phone = "+4915112345678"

func newServer(t *testing.T, secret string) (*httptest.Server, *mock.Completer) {
	t.Helper()
	c := mock.NewDemo()
	deps := specialist.Deps{Completer: c, Guardrails: guardrail.New(nil), ContextTurns: 10}
	o, err := orchestrator.New(orchestrator.Config{
		Store:  checkpoint.NewMemory(),
		Router: router.New(c, 10),
		Specialists: specialist.NewRegistry(
			specialist.NewQualifier(deps, nil),
			specialist.NewObjectionHandler(deps, nil),
			specialist.NewScheduler(deps, schedmock.New(), nil),
			specialist.NewComplianceLogger(),
		),
		Booker: schedmock.New(),
	})
	if err != nil {
		t.Fatalf("orchestrator.New: %v", err)
	}

	cfg := config.Default()
	cfg.Service.WebhookSecret = secret
	srv := httptest.NewServer(NewRouter(&app.Application{Cfg: cfg}, o))
	t.Cleanup(srv.Close)
	return srv, c
}

func do(t *testing.T, srv *httptest.Server, method, path, secret string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		req.Header.Set(SecretHeader, secret)
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

func TestHealthEndpoints(t *testing.T) {
	srv, _ := newServer(t, "")

	for _, path := range []string{"/v1/liveness", "/v1/readiness"} {
		resp := do(t, srv, http.MethodGet, path, "", nil)
		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, resp.StatusCode)
		}
	}
}

func TestTurnFlow(t *testing.T) {
	srv, _ := newServer(t, "")

	resp := do(t, srv, http.MethodPost, "/v1/turns", "", orchestrator.TurnRequest{SessionID: "call-1", PhoneNumber: phone, Utterance: "Hello"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	first := decodeBody[orchestrator.TurnResult](t, resp)
	if first.Specialist != models.SpecialistComplianceLogger || first.Reply != specialist.ConsentScript {
		t.Errorf("unexpected consent turn %+v", first)
	}

	resp = do(t, srv, http.MethodPost, "/v1/turns", "", orchestrator.TurnRequest{SessionID: "call-1", PhoneNumber: phone, Utterance: "Yes, we have budget set aside"})
	second := decodeBody[orchestrator.TurnResult](t, resp)
	if second.Specialist != models.SpecialistQualifier || second.TurnID != "call-1-turn-2" {
		t.Errorf("unexpected second turn %+v", second)
	}

	resp = do(t, srv, http.MethodGet, "/v1/checkpoints/%2B4915112345678", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected stored checkpoint, got %d", resp.StatusCode)
	}
	view := decodeBody[map[string]any](t, resp)
	if q, _ := view["qualification"].(map[string]any); q["budget"] != string(models.BudgetYes) {
		t.Errorf("expected budget recorded, got %v", view["qualification"])
	}
	for _, field := range []string{"transcript", "consent", "appointment", "phoneNumber"} {
		if _, ok := view[field]; ok {
			t.Errorf("checkpoint view must not expose %q", field)
		}
	}

	resp = do(t, srv, http.MethodPost, "/v1/sessions/end", "", orchestrator.EndRequest{SessionID: "call-1", PhoneNumber: phone})
	end := decodeBody[orchestrator.EndResult](t, resp)
	if end.LeadGrade == "" || end.Summary == "" {
		t.Errorf("expected summary, got %+v", end)
	}

	resp = do(t, srv, http.MethodGet, "/v1/checkpoints?limit=5", "", nil)
	list := decodeBody[checkpointList](t, resp)
	if list.Count != 1 || list.Keys[0] != phone {
		t.Errorf("unexpected list %+v", list)
	}

	resp = do(t, srv, http.MethodDelete, "/v1/checkpoints/%2B4915112345678", "", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("expected 204, got %d", resp.StatusCode)
	}
	resp = do(t, srv, http.MethodGet, "/v1/checkpoints/%2B4915112345678", "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", resp.StatusCode)
	}
}

func TestSessionWebhooks(t *testing.T) {
	srv, _ := newServer(t, "")
	base := "/v1/sessions/%2B4915112345678"

	resp := do(t, srv, http.MethodPost, base+"/sentiment", "", orchestrator.SentimentInput{Label: models.SentimentExcited, Score: 0.9, Confidence: 0.8})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("sentiment: expected 200, got %d", resp.StatusCode)
	}
	rec := decodeBody[models.SentimentRecord](t, resp)
	if rec.Label != models.SentimentExcited {
		t.Errorf("unexpected sentiment %+v", rec)
	}

	resp = do(t, srv, http.MethodPost, base+"/qualification", "", models.Qualification{Budget: models.BudgetYes, Need: models.NeedHigh})
	q := decodeBody[qualificationResponse](t, resp)
	if q.Score != 50 || q.Complete {
		t.Errorf("unexpected qualification response %+v", q)
	}

	resp = do(t, srv, http.MethodPost, base+"/appointment", "", scheduling.BookingRequest{Email: "jane@example.com", Date: "2026-11-03", Time: "14:00"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("appointment: expected 200, got %d", resp.StatusCode)
	}
	if res := decodeBody[scheduling.BookingResult](t, resp); !res.Success {
		t.Errorf("expected booking success, got %+v", res)
	}
}

func TestWebhookSecret(t *testing.T) {
	srv, _ := newServer(t, "s3cret")
	req := orchestrator.TurnRequest{PhoneNumber: phone, Utterance: "Hello"}

	tests := []struct {
		name   string
		secret string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong", "guess", http.StatusUnauthorized},
		{"correct", "s3cret", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, srv, http.MethodPost, "/v1/turns", tt.secret, req)
			if resp.StatusCode != tt.want {
				t.Errorf("expected %d, got %d", tt.want, resp.StatusCode)
			}
		})
	}

	reads := []string{"/v1/checkpoints", "/v1/checkpoints/%2B4915112345678"}
	for _, path := range reads {
		if resp := do(t, srv, http.MethodGet, path, "", nil); resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("GET %s without secret: expected 401, got %d", path, resp.StatusCode)
		}
		if resp := do(t, srv, http.MethodGet, path, "s3cret", nil); resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s with secret: expected 200, got %d", path, resp.StatusCode)
		}
	}
}

func TestObjectionAndConsentWebhooks(t *testing.T) {
	srv, _ := newServer(t, "")
	base := "/v1/sessions/%2B4915112345678"

	resp := do(t, srv, http.MethodPost, base+"/consent", "", orchestrator.ConsentInput{Recording: false, DataProcessing: true})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("consent: expected 200, got %d", resp.StatusCode)
	}
	if c := decodeBody[models.Consent](t, resp); c.Recording || !c.DataProcessing || c.Timestamp == nil {
		t.Errorf("unexpected consent %+v", c)
	}

	// Objections need a started call.
	resp = do(t, srv, http.MethodPost, base+"/objections", "", orchestrator.ObjectionInput{Type: models.ObjectionPrice, Text: "too expensive"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("objection before consent turn: expected 400, got %d", resp.StatusCode)
	}

	do(t, srv, http.MethodPost, "/v1/turns", "", orchestrator.TurnRequest{PhoneNumber: phone, Utterance: "Hello"})

	resp = do(t, srv, http.MethodPost, base+"/objections", "", orchestrator.ObjectionInput{Type: models.ObjectionPrice, Text: "too expensive"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("objection: expected 200, got %d", resp.StatusCode)
	}
	obj := decodeBody[objectionResponse](t, resp)
	if obj.Objection.Outcome != models.OutcomeOpen || obj.Tally.Total != 1 || obj.Tally.Open != 1 {
		t.Errorf("unexpected objection response %+v", obj)
	}

	resp = do(t, srv, http.MethodPost, base+"/objections", "", orchestrator.ObjectionInput{Type: "weather"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("unknown type: expected 400, got %d", resp.StatusCode)
	}
}

func TestTurn_BadRequests(t *testing.T) {
	srv, _ := newServer(t, "")

	resp := do(t, srv, http.MethodPost, "/v1/turns", "", map[string]string{"utterance": "no phone"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 without phone, got %d", resp.StatusCode)
	}

	httpReq, _ := http.NewRequest(http.MethodPost, srv.URL+"/v1/turns", bytes.NewBufferString("{not json"))
	raw, err := srv.Client().Do(httpReq)
	if err != nil {
		t.Fatal(err)
	}
	defer raw.Body.Close()
	if raw.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for malformed JSON, got %d", raw.StatusCode)
	}

	if resp := do(t, srv, http.MethodGet, "/v1/checkpoints?limit=abc", "", nil); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for bad limit, got %d", resp.StatusCode)
	}
}

func TestTurn_CompletionFailureIs503(t *testing.T) {
	srv, c := newServer(t, "")
	do(t, srv, http.MethodPost, "/v1/turns", "", orchestrator.TurnRequest{PhoneNumber: phone, Utterance: "Hello"})

	c.FailWith(fmt.Errorf("%w: quota", completion.ErrUnavailable))
	resp := do(t, srv, http.MethodPost, "/v1/turns", "", orchestrator.TurnRequest{PhoneNumber: phone, Utterance: "We have budget"})
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
	body := decodeBody[errorBody](t, resp)
	if !body.Retryable || body.Reply != orchestrator.FailureReply || body.Kind != string(orchestrator.KindCompletion) {
		t.Errorf("unexpected error body %+v", body)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", orchestrator.ErrSessionNotFound, http.StatusNotFound},
		{"validation", &orchestrator.TurnError{Kind: orchestrator.KindValidation, Err: errors.New("bad")}, http.StatusBadRequest},
		{"completion", &orchestrator.TurnError{Kind: orchestrator.KindCompletion, Retryable: true, Err: errors.New("down")}, http.StatusServiceUnavailable},
		{"scheduling", &orchestrator.TurnError{Kind: orchestrator.KindScheduling, Retryable: true, Err: errors.New("down")}, http.StatusServiceUnavailable},
		{"persistence", &orchestrator.TurnError{Kind: orchestrator.KindPersistence, Err: errors.New("disk")}, http.StatusInternalServerError},
		{"unclassified", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got, _ := statusFor(tt.err); got != tt.want {
				t.Errorf("statusFor = %d, want %d", got, tt.want)
			}
		})
	}
}

type downService struct {
	Service
}

func (downService) Ping(context.Context) error { return errors.New("store unreachable") }

func TestReadiness_StoreDown(t *testing.T) {
	srv := httptest.NewServer(NewRouter(nil, downService{}))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/v1/readiness")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", resp.StatusCode)
	}
}
