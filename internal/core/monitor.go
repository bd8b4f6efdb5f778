package core

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// CheckFunc is a periodic maintenance check run by the Monitor on every
// tick, independent of ingestion-triggered evaluation.
type CheckFunc func()

// Monitor is a cooperative background loop: Start launches a ticker
// goroutine, Stop signals it, and the loop observes the signal within one
// tick. Start on a running monitor and Stop on a stopped one are no-ops.
type Monitor struct {
	mu      sync.Mutex
	logger  zerolog.Logger
	tick    time.Duration
	checks  []CheckFunc
	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
}

// NewMonitor creates a stopped monitor with the given tick interval.
func NewMonitor(logger zerolog.Logger, tick time.Duration) *Monitor {
	if tick <= 0 {
		tick = time.Second
	}
	return &Monitor{
		logger: logger.With().Str("component", "monitor").Logger(),
		tick:   tick,
	}
}

// AddCheck registers a periodic check. Checks added while running take
// effect on the next tick.
func (m *Monitor) AddCheck(check CheckFunc) {
	m.mu.Lock()
	m.checks = append(m.checks, check)
	m.mu.Unlock()
}

// Start begins the tick loop. No-op if already running.
func (m *Monitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return
	}
	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})
	m.running = true
	go m.loop(m.stopCh, m.doneCh)
	m.logger.Info().Dur("tick", m.tick).Msg("monitor started")
}

// Stop signals the loop and waits for it to exit. No-op if already stopped.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	close(m.stopCh)
	done := m.doneCh
	m.mu.Unlock()

	<-done
	m.logger.Info().Msg("monitor stopped")
}

// Running reports whether the loop is active.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Monitor) loop(stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)
	ticker := time.NewTicker(m.tick)
	defer ticker.Stop()
	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			m.runChecks()
		}
	}
}

func (m *Monitor) runChecks() {
	m.mu.Lock()
	checks := make([]CheckFunc, len(m.checks))
	copy(checks, m.checks)
	m.mu.Unlock()

	for _, check := range checks {
		m.safeRun(check)
	}
}

// safeRun isolates a panicking check so it cannot kill the loop.
func (m *Monitor) safeRun(check CheckFunc) {
	defer func() {
		if rec := recover(); rec != nil {
			m.logger.Error().Interface("panic", rec).Msg("monitor check panicked — recovered")
		}
	}()
	check()
}
