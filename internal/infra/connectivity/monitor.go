// Package connectivity watches network reachability and reports transitions
// to whoever subscribes, which in practice is the sync reconciler.
package connectivity

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"shiftsync/internal/pkg/config"
)

type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
	StatusUnknown Status = "unknown"
)

// Checker probes the network. The API client satisfies this with its
// health endpoint; tests and host apps can substitute anything.
type Checker interface {
	Check(ctx context.Context) error
}

type Monitor struct {
	checker  Checker
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger

	mu     sync.Mutex
	status Status
	subs   []chan Status

	stop chan struct{}
	done chan struct{}
}

func NewMonitor(cfg config.ConnectivityConfig, checker Checker, logger *slog.Logger) *Monitor {
	return &Monitor{
		checker:  checker,
		interval: cfg.ProbeInterval,
		timeout:  cfg.ProbeTimeout,
		logger:   logger,
		status:   StatusUnknown,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Subscribe returns a channel receiving every status transition. The
// channel is buffered; a slow subscriber drops intermediate transitions
// rather than blocking the monitor.
func (m *Monitor) Subscribe() <-chan Status {
	ch := make(chan Status, 1)
	m.mu.Lock()
	m.subs = append(m.subs, ch)
	m.mu.Unlock()
	return ch
}

func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Force sets the status directly, bypassing the probe. Host applications
// feed radio/airplane-mode signals through this; tests use it to simulate
// reconnects.
func (m *Monitor) Force(status Status) {
	m.transition(status)
}

// Start launches the probe loop. An immediate probe runs before the first
// interval so startup does not wait for a full tick to learn the status.
func (m *Monitor) Start() {
	go m.run()
}

func (m *Monitor) Stop() {
	close(m.stop)
	<-m.done
}

func (m *Monitor) run() {
	defer close(m.done)

	m.probe()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.probe()
		}
	}
}

func (m *Monitor) probe() {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	if err := m.checker.Check(ctx); err != nil {
		m.transition(StatusOffline)
		return
	}
	m.transition(StatusOnline)
}

func (m *Monitor) transition(next Status) {
	m.mu.Lock()
	prev := m.status
	if prev == next {
		m.mu.Unlock()
		return
	}
	m.status = next
	subs := make([]chan Status, len(m.subs))
	copy(subs, m.subs)
	m.mu.Unlock()

	m.logger.Info("connectivity changed", "from", string(prev), "to", string(next))

	for _, ch := range subs {
		select {
		case ch <- next:
		default:
			// Drop rather than block; the subscriber will observe the
			// latest status on its next read.
		}
	}
}
