package voice

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

const (
	DefaultHealthInterval = 10 * time.Second
	DefaultHealthTimeout  = 3 * time.Second
)

// Status is the connectivity snapshot exposed to clients.
type Status struct {
	Connected   bool       `json:"connected"`
	Checked     bool       `json:"checked"` // false until the first probe finishes
	LastChecked *time.Time `json:"last_checked,omitempty"`
}

// Monitor polls the speech service health endpoint on a fixed interval and
// keeps a connectivity flag. A failed or timed-out probe counts as
// disconnected; it is never surfaced as an error.
type Monitor struct {
	checker  HealthChecker
	logger   *log.Logger
	interval time.Duration
	timeout  time.Duration

	connected   atomic.Bool
	mu          sync.Mutex
	lastChecked time.Time
	onChange    func(bool)

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewMonitor creates a monitor. Zero durations fall back to the defaults.
func NewMonitor(checker HealthChecker, logger *log.Logger, interval, timeout time.Duration) *Monitor {
	if interval <= 0 {
		interval = DefaultHealthInterval
	}
	if timeout <= 0 {
		timeout = DefaultHealthTimeout
	}
	return &Monitor{
		checker:  checker,
		logger:   logger,
		interval: interval,
		timeout:  timeout,
		stopCh:   make(chan struct{}),
	}
}

// OnChange registers a callback for connectivity transitions. Call before Start.
func (m *Monitor) OnChange(fn func(connected bool)) {
	m.onChange = fn
}

// Start probes immediately and then on every interval until Stop.
func (m *Monitor) Start() {
	m.wg.Add(1)
	go m.run()
	m.logger.Printf("voice: health monitor started (interval=%v, timeout=%v)", m.interval, m.timeout)
}

// Stop ends polling and waits for an in-flight probe to return.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	m.wg.Wait()
}

func (m *Monitor) run() {
	defer m.wg.Done()

	m.Check(context.Background())

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Check(context.Background())
		case <-m.stopCh:
			return
		}
	}
}

// Check runs one probe with the monitor's timeout and records the outcome.
func (m *Monitor) Check(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	ok, err := m.checker.Health(ctx)
	if err != nil {
		ok = false
	}

	m.mu.Lock()
	first := m.lastChecked.IsZero()
	m.lastChecked = time.Now().UTC()
	m.mu.Unlock()

	was := m.connected.Swap(ok)
	if first || was != ok {
		switch {
		case ok:
			m.logger.Printf("voice: speech service connected")
		case err != nil:
			m.logger.Printf("voice: speech service unreachable: %v", err)
		default:
			m.logger.Printf("voice: speech service reports inactive")
		}
		if m.onChange != nil {
			m.onChange(ok)
		}
	}
	return ok
}

// Connected reports the last probe result.
func (m *Monitor) Connected() bool {
	return m.connected.Load()
}

// Err returns ErrDisconnected unless the last probe succeeded.
func (m *Monitor) Err() error {
	if m.Connected() {
		return nil
	}
	return ErrDisconnected
}

// Status returns the connectivity snapshot.
func (m *Monitor) Status() Status {
	m.mu.Lock()
	last := m.lastChecked
	m.mu.Unlock()

	st := Status{Connected: m.Connected()}
	if !last.IsZero() {
		st.Checked = true
		st.LastChecked = &last
	}
	return st
}
