// Package checkpoint persists session state keyed by caller phone number.
//
// Every backend satisfies the same contract: Set is an upsert, Get observes
// the latest Set made through the same Store, Delete is idempotent and
// ListKeys orders keys by last write, newest first. Loaded state is
// validated before it is returned.
package checkpoint

import (
	"context"
	"errors"
	"sync"
	"time"

	"ai-voice-agent-orchestrator/internal/models"
	"ai-voice-agent-orchestrator/internal/observability/metrics"
)

// Errors returned by stores.
var (
	ErrNotFound          = errors.New("checkpoint not found")
	ErrInvalidCheckpoint = errors.New("invalid checkpoint")
	ErrUnknownBackend    = errors.New("unknown checkpoint backend")
)

// DefaultListLimit caps ListKeys when the caller passes a non-positive limit.
const DefaultListLimit = 100

// Store is the durable session store.
type Store interface {
	// Get returns ErrNotFound when key has no checkpoint.
	Get(ctx context.Context, key string) (*models.SessionState, error)
	// Set stamps s.LastCheckpoint and upserts it under key.
	Set(ctx context.Context, key string, s *models.SessionState) error
	Delete(ctx context.Context, key string) error
	ListKeys(ctx context.Context, limit int) ([]string, error)
	Ping(ctx context.Context) error
	Close() error
}

// backend stores encoded checkpoints. updated is a unix-nanosecond stamp
// that is strictly increasing within a process.
type backend interface {
	name() string
	load(ctx context.Context, key string) ([]byte, error)
	save(ctx context.Context, key string, data []byte, updated int64) error
	remove(ctx context.Context, key string) error
	keys(ctx context.Context, limit int) ([]string, error)
	ping(ctx context.Context) error
	close() error
}

// store adds encoding, validation and metrics on top of a backend.
type store struct {
	b       backend
	metrics *metrics.Metrics
	now     func() time.Time

	mu   sync.Mutex
	last int64
}

func newStore(b backend) *store {
	return &store{b: b, metrics: metrics.DefaultMetrics, now: time.Now}
}

// stamp returns a wall-clock time that never repeats or goes backwards, so
// writes made in quick succession still list in order.
func (s *store) stamp() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.now().UTC().UnixNano()
	if n <= s.last {
		n = s.last + 1
	}
	s.last = n
	return time.Unix(0, n).UTC()
}

func (s *store) observe(op string, start time.Time, err error) {
	if errors.Is(err, ErrNotFound) {
		err = nil
	}
	s.metrics.RecordCheckpoint(s.b.name(), op, err, time.Since(start).Seconds())
}

func (s *store) Get(ctx context.Context, key string) (st *models.SessionState, err error) {
	start := time.Now()
	defer func() { s.observe("get", start, err) }()

	data, err := s.b.load(ctx, key)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

func (s *store) Set(ctx context.Context, key string, st *models.SessionState) (err error) {
	start := time.Now()
	defer func() { s.observe("set", start, err) }()

	ts := s.stamp()
	prev := st.LastCheckpoint
	st.LastCheckpoint = ts
	data, err := Encode(st)
	if err != nil {
		st.LastCheckpoint = prev
		return err
	}
	if err := s.b.save(ctx, key, data, ts.UnixNano()); err != nil {
		st.LastCheckpoint = prev
		return err
	}
	return nil
}

func (s *store) Delete(ctx context.Context, key string) (err error) {
	start := time.Now()
	defer func() { s.observe("delete", start, err) }()
	return s.b.remove(ctx, key)
}

func (s *store) ListKeys(ctx context.Context, limit int) (keys []string, err error) {
	start := time.Now()
	defer func() { s.observe("list", start, err) }()
	if limit <= 0 {
		limit = DefaultListLimit
	}
	return s.b.keys(ctx, limit)
}

func (s *store) Ping(ctx context.Context) error {
	return s.b.ping(ctx)
}

func (s *store) Close() error {
	return s.b.close()
}
