package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func capture(t *testing.T, level string) *bytes.Buffer {
	t.Helper()
	prevLogger, prevLevel := log.Logger, zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = prevLogger
		zerolog.SetGlobalLevel(prevLevel)
	})

	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.Level = level
	InitWriter(cfg, &buf)
	return &buf
}

func lastLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	return entry
}

func TestInitWriter_Level(t *testing.T) {
	tests := []struct {
		level string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"warn", zerolog.WarnLevel},
		{"", zerolog.InfoLevel},
		{"loud", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			capture(t, tt.level)
			if got := zerolog.GlobalLevel(); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestWithTurn_Fields(t *testing.T) {
	buf := capture(t, "info")

	l := WithTurn("call-1", "+4915112345678", "call-1-turn-3")
	l.Info().Msg("turn")

	entry := lastLine(t, buf)
	if entry["sessionId"] != "call-1" || entry["turnId"] != "call-1-turn-3" {
		t.Errorf("missing context fields: %v", entry)
	}
	if _, ok := entry["phone"]; ok {
		t.Error("expected phone to be omitted above debug level")
	}
}

func TestWithSession_PhoneAtDebug(t *testing.T) {
	buf := capture(t, "debug")

	l := WithSession("call-1", "+4915112345678")
	l.Debug().Msg("session")

	if got := lastLine(t, buf)["phone"]; got != "+4915112345678" {
		t.Errorf("expected phone at debug level, got %v", got)
	}
}

func TestWithComponent(t *testing.T) {
	buf := capture(t, "info")

	l := WithComponent("router")
	l.Info().Msg("hello")

	if got := lastLine(t, buf)["component"]; got != "router" {
		t.Errorf("expected component router, got %v", got)
	}
}
