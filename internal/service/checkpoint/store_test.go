package checkpoint

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"ai-voice-agent-orchestrator/internal/models"
)

var testNow = time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)

func sampleState(phone string) *models.SessionState {
	s := models.NewSessionState("call-"+phone, phone, testNow)
	s.Started = true
	s.AppendTurn(models.Turn{ID: "t1", Role: models.RoleCaller, Text: "hello", At: testNow})
	s.AppendTurn(models.Turn{ID: "t2", Role: models.RoleAgent, Text: "hi there", Specialist: models.SpecialistQualifier, At: testNow})
	s.Qualification = models.Qualification{Budget: models.BudgetYes, Timeline: models.TimelineThreeToSix}
	s.Sentiment.Update(models.SentimentPositive, 0.5, 0.3, testNow)
	s.Objections = append(s.Objections, models.NewObjection(models.ObjectionPrice, "too expensive", "fair point", testNow))
	ts := testNow
	s.Consent = models.Consent{Recording: true, DataProcessing: true, Timestamp: &ts}
	s.Appointment.Booked = true
	s.Appointment.Date = models.Pending
	s.Appointment.Time = models.Pending
	return s
}

// contract runs the behavior every backend must share.
func contract(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("round trip", func(t *testing.T) {
		s := newStore(t)
		want := sampleState("+15550001")
		if err := s.Set(ctx, want.PhoneNumber, want); err != nil {
			t.Fatalf("Set: %v", err)
		}
		if want.LastCheckpoint.IsZero() {
			t.Error("Set did not stamp LastCheckpoint")
		}
		got, err := s.Get(ctx, want.PhoneNumber)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
			t.Errorf("round trip mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("upsert", func(t *testing.T) {
		s := newStore(t)
		st := sampleState("+15550002")
		_ = s.Set(ctx, st.PhoneNumber, st)
		st.Ended = true
		st.LeadGrade = models.GradeC
		if err := s.Set(ctx, st.PhoneNumber, st); err != nil {
			t.Fatalf("Set: %v", err)
		}
		got, err := s.Get(ctx, st.PhoneNumber)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if !got.Ended || got.LeadGrade != models.GradeC {
			t.Errorf("read did not observe the latest write: %+v", got)
		}
	})

	t.Run("missing", func(t *testing.T) {
		s := newStore(t)
		if _, err := s.Get(ctx, "+19999999"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("idempotent delete", func(t *testing.T) {
		s := newStore(t)
		st := sampleState("+15550003")
		_ = s.Set(ctx, st.PhoneNumber, st)
		if err := s.Delete(ctx, st.PhoneNumber); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		if _, err := s.Get(ctx, st.PhoneNumber); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound after delete, got %v", err)
		}
		if err := s.Delete(ctx, st.PhoneNumber); err != nil {
			t.Errorf("second delete failed: %v", err)
		}
	})

	t.Run("list newest first", func(t *testing.T) {
		s := newStore(t)
		for _, p := range []string{"+1a", "+1b", "+1c"} {
			if err := s.Set(ctx, p, sampleState(p)); err != nil {
				t.Fatalf("Set(%s): %v", p, err)
			}
		}
		// Touch the oldest again.
		if err := s.Set(ctx, "+1a", sampleState("+1a")); err != nil {
			t.Fatalf("Set: %v", err)
		}

		got, err := s.ListKeys(ctx, 10)
		if err != nil {
			t.Fatalf("ListKeys: %v", err)
		}
		if diff := cmp.Diff([]string{"+1a", "+1c", "+1b"}, got); diff != "" {
			t.Errorf("order mismatch (-want +got):\n%s", diff)
		}

		got, _ = s.ListKeys(ctx, 2)
		if len(got) != 2 || got[0] != "+1a" {
			t.Errorf("limit not applied: %v", got)
		}
	})

	t.Run("ping", func(t *testing.T) {
		if err := newStore(t).Ping(ctx); err != nil {
			t.Errorf("Ping: %v", err)
		}
	})
}

func TestMemoryStore(t *testing.T) {
	contract(t, func(t *testing.T) Store { return NewMemory() })
}

func TestSQLiteStore(t *testing.T) {
	contract(t, func(t *testing.T) Store {
		s, err := NewSQLite(context.Background(), filepath.Join(t.TempDir(), "nested", "checkpoints.db"))
		if err != nil {
			t.Fatalf("NewSQLite: %v", err)
		}
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func TestSQLiteStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "checkpoints.db")

	s, err := NewSQLite(ctx, path)
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	st := sampleState("+15550009")
	if err := s.Set(ctx, st.PhoneNumber, st); err != nil {
		t.Fatalf("Set: %v", err)
	}
	s.Close()

	s, err = NewSQLite(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	got, err := s.Get(ctx, st.PhoneNumber)
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if got.SessionID != st.SessionID {
		t.Errorf("got session %q, want %q", got.SessionID, st.SessionID)
	}
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("CHECKPOINT_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("CHECKPOINT_TEST_POSTGRES_DSN not set")
	}
	contract(t, func(t *testing.T) Store {
		s, err := NewPostgres(context.Background(), dsn)
		if err != nil {
			t.Fatalf("NewPostgres: %v", err)
		}
		keys, _ := s.ListKeys(context.Background(), 1000)
		for _, k := range keys {
			_ = s.Delete(context.Background(), k)
		}
		t.Cleanup(func() { s.Close() })
		return s
	})
}

// fakeDynamo keeps items in memory keyed by partition key.
type fakeDynamo struct {
	mu    sync.Mutex
	items map[string]map[string]types.AttributeValue
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: make(map[string]map[string]types.AttributeValue)}
}

func pk(m map[string]types.AttributeValue) string {
	if v, ok := m["PhoneNumber"].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &dynamodb.GetItemOutput{Item: f.items[pk(in.Key)]}, nil
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[pk(in.Item)] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.items, pk(in.Key))
	return &dynamodb.DeleteItemOutput{}, nil
}

func (f *fakeDynamo) Scan(_ context.Context, _ *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := &dynamodb.ScanOutput{}
	for _, it := range f.items {
		out.Items = append(out.Items, it)
	}
	return out, nil
}

func (f *fakeDynamo) DescribeTable(_ context.Context, in *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	return &dynamodb.DescribeTableOutput{Table: &types.TableDescription{TableName: in.TableName, TableStatus: types.TableStatusActive}}, nil
}

func TestDynamoStore(t *testing.T) {
	contract(t, func(t *testing.T) Store { return newDynamoStore(newFakeDynamo(), "checkpoints") })
}

func TestGet_RejectsCorruptCheckpoint(t *testing.T) {
	ctx := context.Background()
	b := &memoryBackend{entries: make(map[string]memoryEntry)}
	s := newStore(b)

	tests := map[string]string{
		"not json":      `{`,
		"wrong version": `{"version":2,"state":{}}`,
		"no state":      `{"version":1}`,
		"bad enum":      `{"version":1,"state":{"version":1,"sessionId":"s","phoneNumber":"+1","currentSpecialist":"closer"}}`,
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			_ = b.save(ctx, "+1", []byte(raw), 1)
			if _, err := s.Get(ctx, "+1"); !errors.Is(err, ErrInvalidCheckpoint) {
				t.Errorf("expected ErrInvalidCheckpoint, got %v", err)
			}
		})
	}
}

func TestNew_UnknownBackend(t *testing.T) {
	if _, err := New(context.Background(), Config{Backend: "redis"}); !errors.Is(err, ErrUnknownBackend) {
		t.Errorf("expected ErrUnknownBackend, got %v", err)
	}
}

func TestNew_DefaultsToMemory(t *testing.T) {
	s, err := New(context.Background(), Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()
	if err := s.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

func TestStamp_StrictlyIncreasing(t *testing.T) {
	s := newStore(&memoryBackend{entries: make(map[string]memoryEntry)})
	s.now = func() time.Time { return testNow }

	a, b := s.stamp(), s.stamp()
	if !b.After(a) {
		t.Errorf("stamps not increasing: %v then %v", a, b)
	}
}
