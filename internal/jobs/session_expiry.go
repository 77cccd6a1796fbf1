package jobs

import (
	"context"
	"log"
	"sync"
	"time"
)

// Sweeper ends sessions that have been idle for too long.
type Sweeper interface {
	Sweep(now time.Time) []string
}

// Pruner deletes stored events older than a cutoff.
type Pruner interface {
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// SessionExpiryJob reclaims abandoned practice sessions and trims the event
// history. It runs on a configurable interval (default: 1 minute) and:
// - Ends sessions whose idle time exceeds the registry TTL
// - Deletes stored events older than the retention window, if one is set
type SessionExpiryJob struct {
	sweeper   Sweeper
	pruner    Pruner
	retention time.Duration
	logger    *log.Logger
	interval  time.Duration
	now       func() time.Time
	stopCh    chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

// NewSessionExpiryJob creates a new session expiry job. A nil pruner or a
// zero retention disables event pruning.
func NewSessionExpiryJob(sweeper Sweeper, pruner Pruner, retention time.Duration, logger *log.Logger, interval time.Duration) *SessionExpiryJob {
	if interval == 0 {
		interval = time.Minute
	}
	return &SessionExpiryJob{
		sweeper:   sweeper,
		pruner:    pruner,
		retention: retention,
		logger:    logger,
		interval:  interval,
		now:       time.Now,
		stopCh:    make(chan struct{}),
	}
}

// Start begins the background job.
func (j *SessionExpiryJob) Start() {
	j.wg.Add(1)
	go j.run()
	j.logger.Printf("SessionExpiryJob: started (interval=%v)", j.interval)
}

// Stop gracefully stops the background job. It is safe to call more than once.
func (j *SessionExpiryJob) Stop() {
	j.stopOnce.Do(func() {
		close(j.stopCh)
		j.wg.Wait()
		j.logger.Println("SessionExpiryJob: stopped")
	})
}

func (j *SessionExpiryJob) run() {
	defer j.wg.Done()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			j.processAll()
		case <-j.stopCh:
			return
		}
	}
}

func (j *SessionExpiryJob) processAll() {
	now := j.now()
	j.expireSessions(now)
	j.pruneEvents(now)
}

func (j *SessionExpiryJob) expireSessions(now time.Time) {
	expired := j.sweeper.Sweep(now)
	if len(expired) > 0 {
		j.logger.Printf("SessionExpiryJob: expired %d idle sessions", len(expired))
	}
}

func (j *SessionExpiryJob) pruneEvents(now time.Time) {
	if j.pruner == nil || j.retention <= 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	n, err := j.pruner.Prune(ctx, now.Add(-j.retention))
	if err != nil {
		j.logger.Printf("SessionExpiryJob: failed to prune events: %v", err)
		return
	}
	if n > 0 {
		j.logger.Printf("SessionExpiryJob: pruned %d events older than %v", n, j.retention)
	}
}
