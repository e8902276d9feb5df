package app

import (
	"context"
	"log"
	"sync"
	"time"
)

// defaultCycleInterval is how often the cycle runner ticks when the notifier
// produces no signal-file events.
const defaultCycleInterval = 60 * time.Second

// CycleTarget is one participant in the periodic operating cycle
// (supervisors: incoming requests + owned directives).
type CycleTarget interface {
	ID() string
	RunCycle() error
}

// SequenceResumer re-enters sequence runs whose next step has come due.
// delayHours is never a blocking wait; the runner provides the external
// re-invocation trigger.
type SequenceResumer interface {
	ResumeDue(now time.Time) (int, error)
}

// CycleRunner drives supervisor operating cycles and due-sequence resumption.
// It ticks on an interval and can be poked early by the store notifier after
// a write.
type CycleRunner struct {
	targets  []CycleTarget
	resumers []SequenceResumer
	logger   *log.Logger
	interval time.Duration

	runMu  sync.Mutex // serializes cycles: ticker and notifier pokes must not overlap
	stopCh chan struct{}
	doneCh chan struct{}
}

// CycleRunnerOption configures the runner.
type CycleRunnerOption func(*CycleRunner)

// WithCycleInterval sets the tick interval.
func WithCycleInterval(d time.Duration) CycleRunnerOption {
	return func(r *CycleRunner) { r.interval = d }
}

// WithResumer attaches a sequence resumer.
func WithResumer(res SequenceResumer) CycleRunnerOption {
	return func(r *CycleRunner) { r.resumers = append(r.resumers, res) }
}

// NewCycleRunner creates a runner over the given cycle targets.
func NewCycleRunner(targets []CycleTarget, logger *log.Logger, opts ...CycleRunnerOption) *CycleRunner {
	r := &CycleRunner{
		targets:  targets,
		logger:   logger,
		interval: defaultCycleInterval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Start begins the cycle loop. Returns when ctx is cancelled or Stop is called.
func (r *CycleRunner) Start(ctx context.Context) {
	defer close(r.doneCh)
	r.logger.Printf("Cycle runner: started (interval=%s, targets=%d, resumers=%d)", r.interval, len(r.targets), len(r.resumers))

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Println("Cycle runner: stopped (context cancelled)")
			return
		case <-r.stopCh:
			r.logger.Println("Cycle runner: stopped")
			return
		case <-ticker.C:
			r.runOnce()
		}
	}
}

// Stop signals the runner to stop. Call after cancelling the context passed
// to Start, or on its own.
func (r *CycleRunner) Stop() {
	close(r.stopCh)
	<-r.doneCh
}

// Check runs one cycle immediately. The notifier calls this when the store
// signal file changes; tests call it directly.
func (r *CycleRunner) Check() {
	r.runOnce()
}

func (r *CycleRunner) runOnce() {
	r.runMu.Lock()
	defer r.runMu.Unlock()

	for _, t := range r.targets {
		if err := t.RunCycle(); err != nil {
			r.logger.Printf("Cycle runner: %s cycle failed: %v", t.ID(), err)
		}
	}
	now := time.Now()
	for _, res := range r.resumers {
		n, err := res.ResumeDue(now)
		if err != nil {
			r.logger.Printf("Cycle runner: sequence resume failed: %v", err)
		} else if n > 0 {
			r.logger.Printf("Cycle runner: resumed %d due sequence run(s)", n)
		}
	}
}
