// Package models defines the conversation record persisted per caller and the
// events published about it.
package models

import (
	"strings"
	"time"
)

// StateVersion is the current shape version of SessionState.
const StateVersion = 1

// Role tags a transcript turn with its speaker.
type Role string

const (
	RoleCaller Role = "caller"
	RoleAgent  Role = "agent"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleCaller || r == RoleAgent
}

// Specialist names a turn handler. Supervisor is the routing hub.
type Specialist string

const (
	SpecialistSupervisor       Specialist = "supervisor"
	SpecialistQualifier        Specialist = "qualifier"
	SpecialistObjectionHandler Specialist = "objection-handler"
	SpecialistScheduler        Specialist = "scheduler"
	SpecialistComplianceLogger Specialist = "compliance-logger"
)

// Specialists lists every valid designation in routing-prompt order.
var Specialists = []Specialist{
	SpecialistSupervisor,
	SpecialistQualifier,
	SpecialistObjectionHandler,
	SpecialistScheduler,
	SpecialistComplianceLogger,
}

// Valid reports whether s is one of the known designations.
func (s Specialist) Valid() bool {
	for _, v := range Specialists {
		if s == v {
			return true
		}
	}
	return false
}

// ParseSpecialist normalizes free text (case, surrounding punctuation,
// underscores) into a Specialist. ok is false for anything outside the set.
func ParseSpecialist(raw string) (Specialist, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.Trim(s, " \t\r\n.,;:!?\"'`*")
	s = strings.ReplaceAll(s, "_", "-")
	s = strings.ReplaceAll(s, " ", "-")
	sp := Specialist(s)
	if !sp.Valid() {
		return "", false
	}
	return sp, true
}

// Turn is one transcript entry. Internal turns carry routing traces and are
// never shown to the caller or fed back to the completion service.
type Turn struct {
	ID         string     `json:"id"`
	Role       Role       `json:"role"`
	Text       string     `json:"text"`
	Specialist Specialist `json:"specialist,omitempty"`
	Internal   bool       `json:"internal,omitempty"`
	At         time.Time  `json:"at"`
}

// CompanyProfile holds what the caller told us about their company.
type CompanyProfile struct {
	Name         string `json:"name,omitempty"`
	Size         string `json:"size,omitempty"`
	Industry     string `json:"industry,omitempty"`
	CurrentTools string `json:"currentTools,omitempty"`
	Website      string `json:"website,omitempty"`
}

// ObjectionType categorizes a caller objection.
type ObjectionType string

const (
	ObjectionPrice            ObjectionType = "price"
	ObjectionTime             ObjectionType = "time"
	ObjectionNonDecisionMaker ObjectionType = "non-decision-maker"
	ObjectionExistingSolution ObjectionType = "existing-solution"
	ObjectionNoNeed           ObjectionType = "no-need"
	ObjectionDistrust         ObjectionType = "distrust"
	ObjectionOther            ObjectionType = "other"
)

// Valid reports whether t is a known objection type.
func (t ObjectionType) Valid() bool {
	switch t {
	case ObjectionPrice, ObjectionTime, ObjectionNonDecisionMaker, ObjectionExistingSolution,
		ObjectionNoNeed, ObjectionDistrust, ObjectionOther:
		return true
	}
	return false
}

// Outcome is the resolution of an objection.
type Outcome string

const (
	OutcomeOvercome   Outcome = "overcome"
	OutcomeUnresolved Outcome = "unresolved"
	OutcomeOpen       Outcome = "open"
)

// Valid reports whether o is a known outcome.
func (o Outcome) Valid() bool {
	return o == OutcomeOvercome || o == OutcomeUnresolved || o == OutcomeOpen
}

// ObjectionRecord is one entry of the append-only objection history.
type ObjectionRecord struct {
	Type     ObjectionType `json:"type"`
	Text     string        `json:"text"`
	Response string        `json:"response"`
	Outcome  Outcome       `json:"outcome"`
	At       time.Time     `json:"at"`
}

// NewObjection builds a record with the default open outcome.
func NewObjection(t ObjectionType, text, response string, at time.Time) ObjectionRecord {
	return ObjectionRecord{Type: t, Text: text, Response: response, Outcome: OutcomeOpen, At: at}
}

// GuardrailState counts advisory flags raised against agent replies.
type GuardrailState struct {
	HallucinationDetected   bool     `json:"hallucinationDetected"`
	DataIntegrityViolations []string `json:"dataIntegrityViolations"`
	SensitiveDataExposed    bool     `json:"sensitiveDataExposed"`
	OffTopicCount           int      `json:"offTopicCount"`
	RepetitionCount         int      `json:"repetitionCount"`
}

// Triggered lists the names of the checks that have fired so far.
func (g GuardrailState) Triggered() []string {
	var out []string
	if g.HallucinationDetected {
		out = append(out, "hallucination")
	}
	if len(g.DataIntegrityViolations) > 0 {
		out = append(out, "data-integrity")
	}
	if g.SensitiveDataExposed {
		out = append(out, "sensitive-data")
	}
	if g.OffTopicCount > 0 {
		out = append(out, "off-topic")
	}
	if g.RepetitionCount > 0 {
		out = append(out, "repetition")
	}
	return out
}

// EventType is the kind of appointment being booked.
type EventType string

const (
	EventDemo         EventType = "demo"
	EventConsultation EventType = "consultation"
	EventCallback     EventType = "callback"
)

// Valid reports whether e is a known event type.
func (e EventType) Valid() bool {
	return e == EventDemo || e == EventConsultation || e == EventCallback
}

// Pending marks date/time fields that are still being collected.
const Pending = "pending"

// Appointment status values.
const (
	AppointmentRequested = "requested"
	AppointmentConfirmed = "confirmed"
)

// DefaultTimezone applies to appointments whose caller gave none.
const DefaultTimezone = "Europe/Berlin"

// Appointment tracks the booking. Booked never flips back to false.
type Appointment struct {
	Booked            bool      `json:"booked"`
	Name              string    `json:"name,omitempty"`
	Email             string    `json:"email,omitempty"`
	Phone             string    `json:"phone,omitempty"`
	Company           string    `json:"company,omitempty"`
	Date              string    `json:"date,omitempty"`
	Time              string    `json:"time,omitempty"`
	Timezone          string    `json:"timezone"`
	EventType         EventType `json:"eventType"`
	Notes             string    `json:"notes,omitempty"`
	ExternalEventID   string    `json:"externalEventId,omitempty"`
	ExternalInviteeID string    `json:"externalInviteeId,omitempty"`
	Status            string    `json:"status,omitempty"`
}

// HasSlot reports whether a concrete date and time have been collected.
func (a Appointment) HasSlot() bool {
	return a.Date != "" && a.Date != Pending && a.Time != "" && a.Time != Pending
}

// Consent records what the caller agreed to and when.
type Consent struct {
	Recording      bool       `json:"recording"`
	DataProcessing bool       `json:"dataProcessing"`
	Marketing      bool       `json:"marketing"`
	Timestamp      *time.Time `json:"timestamp,omitempty"`
}

// CallMetadata carries call-level bookkeeping.
type CallMetadata struct {
	CallID          string     `json:"callId"`
	ExternalCallID  string     `json:"externalCallId,omitempty"`
	StartTime       time.Time  `json:"startTime"`
	EndTime         *time.Time `json:"endTime,omitempty"`
	DurationSeconds int        `json:"durationSeconds,omitempty"`
}

// LeadGrade classifies qualification strength.
type LeadGrade string

const (
	GradeA LeadGrade = "A"
	GradeB LeadGrade = "B"
	GradeC LeadGrade = "C"
	GradeN LeadGrade = "N"
)

// Valid reports whether g is a known grade.
func (g LeadGrade) Valid() bool {
	return g == GradeA || g == GradeB || g == GradeC || g == GradeN
}

// Trend describes how sentiment moved over the call.
type Trend string

const (
	TrendImproved  Trend = "improved"
	TrendWorsened  Trend = "worsened"
	TrendUnchanged Trend = "unchanged"
)

// Valid reports whether t is a known trend.
func (t Trend) Valid() bool {
	return t == TrendImproved || t == TrendWorsened || t == TrendUnchanged
}

// SessionState is the aggregate conversation record keyed by phone number.
type SessionState struct {
	Version           int               `json:"version"`
	SessionID         string            `json:"sessionId"`
	PhoneNumber       string            `json:"phoneNumber"`
	Transcript        []Turn            `json:"transcript"`
	CurrentSpecialist Specialist        `json:"currentSpecialist"`
	Qualification     Qualification     `json:"qualification"`
	Company           CompanyProfile    `json:"company"`
	Objections        []ObjectionRecord `json:"objections"`
	Sentiment         SentimentRecord   `json:"sentiment"`
	Guardrails        GuardrailState    `json:"guardrails"`
	Appointment       Appointment       `json:"appointment"`
	Consent           Consent           `json:"consent"`
	Metadata          CallMetadata      `json:"metadata"`
	Started           bool              `json:"started"`
	Ended             bool              `json:"ended"`
	Summary           string            `json:"summary,omitempty"`
	NextSteps         string            `json:"nextSteps,omitempty"`
	LeadGrade         LeadGrade         `json:"leadGrade,omitempty"`
	LeadGradeReason   string            `json:"leadGradeReason,omitempty"`
	SentimentTrend    Trend             `json:"sentimentTrend,omitempty"`
	LastCheckpoint    time.Time         `json:"lastCheckpoint"`
}

// NewSessionState returns a fresh record for a caller.
func NewSessionState(sessionID, phone string, now time.Time) *SessionState {
	return &SessionState{
		Version:           StateVersion,
		SessionID:         sessionID,
		PhoneNumber:       phone,
		Transcript:        []Turn{},
		CurrentSpecialist: SpecialistSupervisor,
		Objections:        []ObjectionRecord{},
		Sentiment:         NewSentimentRecord(),
		Guardrails:        GuardrailState{DataIntegrityViolations: []string{}},
		Appointment: Appointment{
			Phone:     phone,
			Timezone:  DefaultTimezone,
			EventType: EventDemo,
		},
		Metadata: CallMetadata{
			CallID:    sessionID,
			StartTime: now,
		},
	}
}

// Clone returns a deep copy so a turn can mutate state without touching the
// committed version.
func (s *SessionState) Clone() *SessionState {
	if s == nil {
		return nil
	}
	c := *s
	c.Transcript = append([]Turn{}, s.Transcript...)
	c.Objections = append([]ObjectionRecord{}, s.Objections...)
	c.Sentiment.History = append([]SentimentEntry{}, s.Sentiment.History...)
	if s.Sentiment.LastUpdated != nil {
		t := *s.Sentiment.LastUpdated
		c.Sentiment.LastUpdated = &t
	}
	c.Guardrails.DataIntegrityViolations = append([]string{}, s.Guardrails.DataIntegrityViolations...)
	if s.Consent.Timestamp != nil {
		t := *s.Consent.Timestamp
		c.Consent.Timestamp = &t
	}
	if s.Metadata.EndTime != nil {
		t := *s.Metadata.EndTime
		c.Metadata.EndTime = &t
	}
	return &c
}

// AppendTurn adds a transcript entry. The transcript is never rewritten.
func (s *SessionState) AppendTurn(t Turn) {
	s.Transcript = append(s.Transcript, t)
}

// LastCallerText returns the most recent caller utterance, or "".
func (s *SessionState) LastCallerText() string {
	for i := len(s.Transcript) - 1; i >= 0; i-- {
		if s.Transcript[i].Role == RoleCaller {
			return s.Transcript[i].Text
		}
	}
	return ""
}

// RecentAgentReplies returns up to n most recent visible agent replies,
// newest first.
func (s *SessionState) RecentAgentReplies(n int) []string {
	var out []string
	for i := len(s.Transcript) - 1; i >= 0 && len(out) < n; i-- {
		t := s.Transcript[i]
		if t.Role == RoleAgent && !t.Internal {
			out = append(out, t.Text)
		}
	}
	return out
}
