package checkpoint

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestKeyLocker_SerializesSameKey(t *testing.T) {
	l := NewKeyLocker()
	var active, peak int32
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(context.Background(), "+1555")
			if err != nil {
				t.Errorf("Lock: %v", err)
				return
			}
			n := atomic.AddInt32(&active, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&active, -1)
			unlock()
		}()
	}
	wg.Wait()

	if peak != 1 {
		t.Errorf("expected at most one holder, saw %d", peak)
	}
	if n := l.Len(); n != 0 {
		t.Errorf("expected no leftover locks, got %d", n)
	}
}

func TestKeyLocker_DistinctKeysIndependent(t *testing.T) {
	l := NewKeyLocker()
	unlockA, _ := l.Lock(context.Background(), "a")
	defer unlockA()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	unlockB, err := l.Lock(ctx, "b")
	if err != nil {
		t.Fatalf("lock on other key blocked: %v", err)
	}
	unlockB()
}

func TestKeyLocker_ContextCancel(t *testing.T) {
	l := NewKeyLocker()
	unlock, _ := l.Lock(context.Background(), "a")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := l.Lock(ctx, "a"); err == nil {
		t.Fatal("expected timeout")
	}

	unlock()
	if n := l.Len(); n != 0 {
		t.Errorf("expected no leftover locks, got %d", n)
	}
}
