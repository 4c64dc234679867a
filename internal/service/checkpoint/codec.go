package checkpoint

import (
	"encoding/json"
	"fmt"

	"ai-voice-agent-orchestrator/internal/models"
	"ai-voice-agent-orchestrator/internal/schema"
)

// envelopeVersion is the checkpoint wire format version.
const envelopeVersion = 1

type envelope struct {
	Version int                  `json:"version"`
	State   *models.SessionState `json:"state"`
}

// Encode serializes s into the checkpoint envelope.
func Encode(s *models.SessionState) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: nil state", ErrInvalidCheckpoint)
	}
	data, err := json.Marshal(envelope{Version: envelopeVersion, State: s})
	if err != nil {
		return nil, fmt.Errorf("encode checkpoint: %w", err)
	}
	return data, nil
}

// Decode parses and validates a checkpoint envelope.
func Decode(data []byte) (*models.SessionState, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCheckpoint, err)
	}
	if env.Version != envelopeVersion {
		return nil, fmt.Errorf("%w: envelope version %d", ErrInvalidCheckpoint, env.Version)
	}
	if env.State == nil {
		return nil, fmt.Errorf("%w: missing state", ErrInvalidCheckpoint)
	}
	if err := schema.ValidateSession(env.State); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCheckpoint, err)
	}
	return env.State, nil
}
