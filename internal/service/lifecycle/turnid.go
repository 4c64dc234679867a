package lifecycle

import (
	"fmt"

	"ai-voice-agent-orchestrator/internal/models"
)

// NextTurnID returns the ID for the next caller turn of s. It is derived
// from the persisted transcript, so IDs stay unique across restarts as long
// as the caller holds the session lock.
func NextTurnID(s *models.SessionState) string {
	n := 1
	for _, t := range s.Transcript {
		if t.Role == models.RoleCaller {
			n++
		}
	}
	return fmt.Sprintf("%s-turn-%d", s.SessionID, n)
}
