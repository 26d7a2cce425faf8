package sync

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"shiftsync/internal/infra/connectivity"
	"shiftsync/internal/pkg/errs"
)

// Runner drives the reconciler from the two trigger sources: connectivity
// transitions to online, and a periodic timer. Both trigger the same Tick;
// the reconciler's own single-flight guard deals with overlap.
type Runner struct {
	reconciler *Reconciler
	monitor    *connectivity.Monitor
	interval   time.Duration
	logger     *slog.Logger

	stop chan struct{}
	done chan struct{}
}

func NewRunner(reconciler *Reconciler, monitor *connectivity.Monitor, interval time.Duration, logger *slog.Logger) *Runner {
	return &Runner{
		reconciler: reconciler,
		monitor:    monitor,
		interval:   interval,
		logger:     logger,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

func (r *Runner) Start() {
	transitions := r.monitor.Subscribe()
	go r.run(transitions)
}

func (r *Runner) Stop() {
	close(r.stop)
	<-r.done
}

func (r *Runner) run(transitions <-chan connectivity.Status) {
	defer close(r.done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case status := <-transitions:
			if status == connectivity.StatusOnline {
				r.tick()
			}
		case <-ticker.C:
			if r.monitor.Status() == connectivity.StatusOnline {
				r.tick()
			}
		}
	}
}

func (r *Runner) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), r.interval)
	defer cancel()

	err := r.reconciler.Tick(ctx)
	switch {
	case err == nil:
	case errors.Is(err, errs.ErrSyncInProgress):
		// Suppressed on purpose; the running tick covers it.
	case errors.Is(err, errs.ErrTransientNetwork):
		r.logger.Debug("reconciliation deferred, network unavailable")
	default:
		r.logger.Error("reconciliation failed",
			"error", err,
			"stack", errs.ExtractStackLines(err, 5),
		)
	}
}
