package http

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"ai-voice-agent-orchestrator/internal/app"
	"ai-voice-agent-orchestrator/internal/models"
	"ai-voice-agent-orchestrator/internal/service/ledger"
	"ai-voice-agent-orchestrator/internal/service/orchestrator"
	"ai-voice-agent-orchestrator/internal/service/scheduling"
)

// SecretHeader carries the shared webhook secret.
const SecretHeader = "X-Webhook-Secret"

const maxBodyBytes = 64 << 10

// Service is the orchestrator surface the API exposes.
type Service interface {
	HandleTurn(ctx context.Context, req orchestrator.TurnRequest) (orchestrator.TurnResult, error)
	EndSession(ctx context.Context, req orchestrator.EndRequest) (orchestrator.EndResult, error)
	UpdateSentiment(ctx context.Context, phone string, in orchestrator.SentimentInput) (models.SentimentRecord, error)
	RecordQualification(ctx context.Context, phone string, q models.Qualification) (*models.SessionState, error)
	BookAppointment(ctx context.Context, phone string, req scheduling.BookingRequest) (scheduling.BookingResult, error)
	RecordObjection(ctx context.Context, phone string, in orchestrator.ObjectionInput) (*models.SessionState, error)
	LogConsent(ctx context.Context, phone string, in orchestrator.ConsentInput) (models.Consent, error)
	Session(ctx context.Context, phone string) (*models.SessionState, error)
	ClearSession(ctx context.Context, phone string) error
	ListSessions(ctx context.Context, limit int) ([]string, error)
	Ping(ctx context.Context) error
}

// NewRouter constructs the HTTP router for the service.
func NewRouter(application *app.Application, svc Service) http.Handler {
	r := chi.NewRouter()

	// Basic middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	// Health endpoints
	r.Get("/v1/liveness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/v1/readiness", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := svc.Ping(ctx); err != nil {
			log.Warn().Err(err).Msg("Readiness check failed")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not ready"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	h := &handlers{svc: svc}
	var secret string
	if application != nil && application.Cfg != nil {
		secret = application.Cfg.Service.WebhookSecret
	}

	// API routes
	r.Route("/v1", func(r chi.Router) {
		r.Use(requireSecret(secret))
		r.Post("/turns", h.turn)
		r.Post("/sessions/end", h.endSession)
		r.Post("/sessions/{phone}/sentiment", h.sentiment)
		r.Post("/sessions/{phone}/qualification", h.qualification)
		r.Post("/sessions/{phone}/objections", h.objection)
		r.Post("/sessions/{phone}/consent", h.consent)
		r.Post("/sessions/{phone}/appointment", h.appointment)
		r.Get("/checkpoints", h.listCheckpoints)
		r.Get("/checkpoints/{phone}", h.getCheckpoint)
		r.Delete("/checkpoints/{phone}", h.deleteCheckpoint)
	})

	return r
}

// requireSecret rejects requests without the shared secret. An empty secret
// disables the check.
func requireSecret(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if secret == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(SecretHeader)
			if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
				writeJSON(w, http.StatusUnauthorized, errorBody{Error: "invalid webhook secret"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Debug().
			Str("requestId", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}

type handlers struct {
	svc Service
}

type errorBody struct {
	Error     string `json:"error"`
	Kind      string `json:"kind,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
	Reply     string `json:"reply,omitempty"`
}

// statusFor maps an orchestrator error to a response.
func statusFor(err error) (int, errorBody) {
	body := errorBody{Error: err.Error()}
	var te *orchestrator.TurnError
	if errors.As(err, &te) {
		body.Kind = string(te.Kind)
		body.Retryable = te.Retryable
	}
	switch {
	case orchestrator.IsNotFound(err):
		return http.StatusNotFound, body
	case body.Kind == string(orchestrator.KindValidation):
		return http.StatusBadRequest, body
	case body.Kind == string(orchestrator.KindCompletion), body.Kind == string(orchestrator.KindScheduling):
		body.Reply = orchestrator.FailureReply
		return http.StatusServiceUnavailable, body
	default:
		return http.StatusInternalServerError, body
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := statusFor(err)
	ev := log.Warn()
	if status >= http.StatusInternalServerError {
		ev = log.Error()
	}
	ev.Err(err).
		Str("requestId", middleware.GetReqID(r.Context())).
		Str("path", r.URL.Path).
		Int("status", status).
		Msg("Request failed")
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON body: " + err.Error(), Kind: string(orchestrator.KindValidation)})
		return false
	}
	return true
}

// phoneParam returns the unescaped {phone} segment so "%2B49..." and
// "+49..." name the same session.
func phoneParam(r *http.Request) string {
	raw := chi.URLParam(r, "phone")
	if p, err := url.PathUnescape(raw); err == nil {
		return p
	}
	return raw
}

func (h *handlers) turn(w http.ResponseWriter, r *http.Request) {
	var req orchestrator.TurnRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.svc.HandleTurn(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handlers) endSession(w http.ResponseWriter, r *http.Request) {
	var req orchestrator.EndRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.svc.EndSession(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handlers) sentiment(w http.ResponseWriter, r *http.Request) {
	var in orchestrator.SentimentInput
	if !decode(w, r, &in) {
		return
	}
	rec, err := h.svc.UpdateSentiment(r.Context(), phoneParam(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type qualificationResponse struct {
	Qualification models.Qualification `json:"qualification"`
	Score         int                  `json:"score"`
	Complete      bool                 `json:"complete"`
}

func (h *handlers) qualification(w http.ResponseWriter, r *http.Request) {
	var q models.Qualification
	if !decode(w, r, &q) {
		return
	}
	s, err := h.svc.RecordQualification(r.Context(), phoneParam(r), q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, qualificationResponse{
		Qualification: s.Qualification,
		Score:         s.Qualification.Score(),
		Complete:      s.Qualification.IsComplete(),
	})
}

type objectionResponse struct {
	Objection models.ObjectionRecord `json:"objection"`
	Tally     models.ObjectionTally  `json:"tally"`
}

func (h *handlers) objection(w http.ResponseWriter, r *http.Request) {
	var in orchestrator.ObjectionInput
	if !decode(w, r, &in) {
		return
	}
	s, err := h.svc.RecordObjection(r.Context(), phoneParam(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, objectionResponse{
		Objection: s.Objections[len(s.Objections)-1],
		Tally:     ledger.Tally(s.Objections),
	})
}

func (h *handlers) consent(w http.ResponseWriter, r *http.Request) {
	var in orchestrator.ConsentInput
	if !decode(w, r, &in) {
		return
	}
	c, err := h.svc.LogConsent(r.Context(), phoneParam(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *handlers) appointment(w http.ResponseWriter, r *http.Request) {
	var req scheduling.BookingRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.svc.BookAppointment(r.Context(), phoneParam(r), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if !res.Success {
		status = http.StatusConflict
	}
	writeJSON(w, status, res)
}

type checkpointList struct {
	Keys  []string `json:"keys"`
	Count int      `json:"count"`
}

func (h *handlers) listCheckpoints(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "limit must be a non-negative integer", Kind: string(orchestrator.KindValidation)})
			return
		}
		limit = n
	}
	keys, err := h.svc.ListSessions(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if keys == nil {
		keys = []string{}
	}
	writeJSON(w, http.StatusOK, checkpointList{Keys: keys, Count: len(keys)})
}

// checkpointView is what a returning-caller lookup may see. Transcript,
// contact and consent details stay server side.
type checkpointView struct {
	SessionID         string                `json:"sessionId"`
	CurrentSpecialist models.Specialist     `json:"currentSpecialist"`
	Qualification     models.Qualification  `json:"qualification"`
	LeadGrade         models.LeadGrade      `json:"leadGrade,omitempty"`
	AppointmentBooked bool                  `json:"appointmentBooked"`
	Sentiment         models.SentimentLabel `json:"sentiment"`
	Ended             bool                  `json:"ended"`
	LastCheckpoint    time.Time             `json:"lastCheckpoint"`
}

func newCheckpointView(s *models.SessionState) checkpointView {
	return checkpointView{
		SessionID:         s.SessionID,
		CurrentSpecialist: s.CurrentSpecialist,
		Qualification:     s.Qualification,
		LeadGrade:         s.LeadGrade,
		AppointmentBooked: s.Appointment.Booked,
		Sentiment:         s.Sentiment.Label,
		Ended:             s.Ended,
		LastCheckpoint:    s.LastCheckpoint,
	}
}

func (h *handlers) getCheckpoint(w http.ResponseWriter, r *http.Request) {
	s, err := h.svc.Session(r.Context(), phoneParam(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newCheckpointView(s))
}

func (h *handlers) deleteCheckpoint(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.ClearSession(r.Context(), phoneParam(r)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
