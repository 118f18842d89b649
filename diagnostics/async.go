package diagnostics

import (
	"context"
	"log/slog"
	"sync"

	"github.com/casualjim/weave/pkg/slogx"
)

// Async hands reports to a background goroutine so Report never blocks. When
// the buffer is full the report is dropped and logged.
type Async struct {
	next    Sink
	logger  *slog.Logger
	reports chan Report
	wg      sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewAsync starts the worker. Close flushes pending reports.
func NewAsync(next Sink, buffer int, logger *slog.Logger) *Async {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Async{
		next:    next,
		logger:  logger.With(slogx.LoggerName("diagnostics")),
		reports: make(chan Report, buffer),
	}
	a.wg.Add(1)
	go a.run()
	return a
}

func (a *Async) run() {
	defer a.wg.Done()
	for r := range a.reports {
		// the request that failed is gone, so its context is too
		if err := a.next.Report(context.Background(), r); err != nil {
			a.logger.Warn("failed to deliver diagnostics report", slogx.Provider(r.Provider), slogx.Error(err))
		}
	}
}

func (a *Async) Report(ctx context.Context, r Report) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return nil
	}
	select {
	case a.reports <- r:
	default:
		a.logger.WarnContext(ctx, "dropping diagnostics report, buffer is full", slogx.Provider(r.Provider))
	}
	return nil
}

// Close stops accepting reports and waits for the pending ones.
func (a *Async) Close() {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.reports)
	}
	a.mu.Unlock()
	a.wg.Wait()
}
