package jobs

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"
)

type fakeSweeper struct {
	mu    sync.Mutex
	calls []time.Time
	swept []string
}

func (f *fakeSweeper) Sweep(now time.Time) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, now)
	return f.swept
}

func (f *fakeSweeper) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakePruner struct {
	before time.Time
	n      int64
	err    error
	calls  int
}

func (f *fakePruner) Prune(_ context.Context, before time.Time) (int64, error) {
	f.calls++
	f.before = before
	return f.n, f.err
}

func quietLogger() *log.Logger { return log.New(io.Discard, "", 0) }

func TestSessionExpiryJob_ProcessAll(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sweeper := &fakeSweeper{swept: []string{"a", "b"}}
	pruner := &fakePruner{n: 3}

	j := NewSessionExpiryJob(sweeper, pruner, 24*time.Hour, quietLogger(), time.Minute)
	j.now = func() time.Time { return now }
	j.processAll()

	if len(sweeper.calls) != 1 || !sweeper.calls[0].Equal(now) {
		t.Errorf("Sweep calls = %v, want one call at %v", sweeper.calls, now)
	}
	if pruner.calls != 1 {
		t.Fatalf("Prune calls = %d, want 1", pruner.calls)
	}
	if want := now.Add(-24 * time.Hour); !pruner.before.Equal(want) {
		t.Errorf("Prune cutoff = %v, want %v", pruner.before, want)
	}
}

func TestSessionExpiryJob_PruneDisabled(t *testing.T) {
	tests := []struct {
		name      string
		pruner    *fakePruner
		retention time.Duration
	}{
		{"zero retention", &fakePruner{}, 0},
		{"negative retention", &fakePruner{}, -time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := NewSessionExpiryJob(&fakeSweeper{}, tt.pruner, tt.retention, quietLogger(), time.Minute)
			j.processAll()
			if tt.pruner.calls != 0 {
				t.Errorf("Prune calls = %d, want 0", tt.pruner.calls)
			}
		})
	}

	// nil pruner must not panic
	NewSessionExpiryJob(&fakeSweeper{}, nil, time.Hour, quietLogger(), time.Minute).processAll()
}

func TestSessionExpiryJob_PruneErrorDoesNotStopSweeps(t *testing.T) {
	sweeper := &fakeSweeper{}
	j := NewSessionExpiryJob(sweeper, &fakePruner{err: errors.New("db down")}, time.Hour, quietLogger(), time.Minute)

	j.processAll()
	j.processAll()

	if sweeper.count() != 2 {
		t.Errorf("Sweep calls = %d, want 2", sweeper.count())
	}
}

func TestSessionExpiryJob_StartStop(t *testing.T) {
	sweeper := &fakeSweeper{}
	j := NewSessionExpiryJob(sweeper, nil, 0, quietLogger(), 5*time.Millisecond)

	j.Start()
	deadline := time.Now().Add(time.Second)
	for sweeper.count() < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	j.Stop()
	j.Stop()

	if sweeper.count() < 2 {
		t.Fatalf("Sweep calls = %d, want at least 2", sweeper.count())
	}
	after := sweeper.count()
	time.Sleep(20 * time.Millisecond)
	if sweeper.count() != after {
		t.Error("job kept sweeping after Stop()")
	}
}

func TestNewSessionExpiryJob_DefaultInterval(t *testing.T) {
	j := NewSessionExpiryJob(&fakeSweeper{}, nil, 0, quietLogger(), 0)
	if j.interval != time.Minute {
		t.Errorf("interval = %v, want 1m", j.interval)
	}
}
