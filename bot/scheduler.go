package bot

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/evdnx/gotrade/logger"
)

// Runner runs one trading cycle.
type Runner interface {
	RunCycle(ctx context.Context) CycleOutcome
}

// NextDelay is the pause before the cycle after out: the base delay, or
// twice that after a cycle that traded. A failed cycle always gets the
// base delay.
func NextDelay(out CycleOutcome, base time.Duration) time.Duration {
	if out.Err == nil && out.Traded {
		return 2 * base
	}
	return base
}

// Scheduler drives a Runner with at most one cycle in flight. The first
// cycle starts immediately; Trigger starts the next one early.
type Scheduler struct {
	runner Runner
	base   time.Duration
	log    logger.Logger

	wake chan struct{}
	busy atomic.Bool

	mu        sync.Mutex
	onOutcome []func(CycleOutcome)
}

func NewScheduler(runner Runner, base time.Duration, log logger.Logger) *Scheduler {
	if log == nil {
		log = logger.Nop()
	}
	return &Scheduler{runner: runner, base: base, log: log, wake: make(chan struct{}, 1)}
}

// OnOutcome registers fn to be called after every cycle.
func (s *Scheduler) OnOutcome(fn func(CycleOutcome)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onOutcome = append(s.onOutcome, fn)
}

// Busy reports whether a cycle is running.
func (s *Scheduler) Busy() bool { return s.busy.Load() }

// Trigger asks for an immediate cycle. It returns false, and does nothing,
// while a cycle is running. Triggers that arrive before the next cycle
// starts are coalesced into one.
func (s *Scheduler) Trigger() bool {
	if s.busy.Load() {
		return false
	}
	select {
	case s.wake <- struct{}{}:
	default:
	}
	return true
}

// Run blocks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		case <-s.wake:
			timer.Stop()
			s.log.Debug("cycle_wakeup")
		}

		s.busy.Store(true)
		select {
		case <-s.wake:
		default:
		}
		out := s.runner.RunCycle(ctx)
		s.busy.Store(false)

		s.mu.Lock()
		hooks := append([]func(CycleOutcome){}, s.onOutcome...)
		s.mu.Unlock()
		for _, fn := range hooks {
			fn(out)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		delay := NextDelay(out, s.base)
		s.log.Info("next_cycle_scheduled",
			logger.Duration("delay", delay),
			logger.Bool("traded", out.Traded),
			logger.String("kind", out.Kind),
		)
		timer.Reset(delay)
	}
}
