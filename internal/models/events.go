package models

// Event type names, also used as the default Kafka topics.
const (
	EventTurnCompleted  = "conversation.turn.completed"
	EventCallSummarized = "conversation.call.summarized"
)

// TurnCompleted is published after each committed turn.
type TurnCompleted struct {
	EventType      string         `json:"eventType"`
	SessionID      string         `json:"sessionId"`
	PhoneNumber    string         `json:"phoneNumber"`
	TurnID         string         `json:"turnId"`
	Specialist     Specialist     `json:"specialist"`
	RoutingSource  string         `json:"routingSource"`
	SentimentLabel SentimentLabel `json:"sentimentLabel"`
	SentimentScore float64        `json:"sentimentScore"`
	Guardrails     []string       `json:"guardrails"`
	Ended          bool           `json:"ended"`
	Timestamp      int64          `json:"timestamp"`
}

// ObjectionTally counts objections by outcome.
type ObjectionTally struct {
	Total      int `json:"total"`
	Open       int `json:"open"`
	Overcome   int `json:"overcome"`
	Unresolved int `json:"unresolved"`
}

// CallSummarized is published once when a session ends.
type CallSummarized struct {
	EventType          string         `json:"eventType"`
	SessionID          string         `json:"sessionId"`
	PhoneNumber        string         `json:"phoneNumber"`
	LeadGrade          LeadGrade      `json:"leadGrade"`
	LeadGradeReason    string         `json:"leadGradeReason"`
	Summary            string         `json:"summary"`
	NextSteps          string         `json:"nextSteps"`
	Qualification      Qualification  `json:"qualification"`
	QualificationScore int            `json:"qualificationScore"`
	Objections         ObjectionTally `json:"objections"`
	AppointmentBooked  bool           `json:"appointmentBooked"`
	SentimentStart     float64        `json:"sentimentStart"`
	SentimentEnd       float64        `json:"sentimentEnd"`
	SentimentTrend     Trend          `json:"sentimentTrend"`
	Guardrails         []string       `json:"guardrails"`
	Timestamp          int64          `json:"timestamp"`
}
