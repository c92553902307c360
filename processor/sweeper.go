package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goliatone/go-webhook-events/core"
)

const (
	DefaultSweepInterval  = 5 * time.Second
	DefaultSweepBurst     = 10
	DefaultSweepIdleDelay = 2 * time.Second
)

// Sweeper periodically re-drives pending events whose retry moment has
// arrived. In-process timers are lost on restart; the persisted
// next_attempt_at plus this sweep is what makes a scheduled retry durable.
type Sweeper struct {
	Processor *Processor
	Handler   core.Handler
	Logger    core.Logger
	Interval  time.Duration
	Burst     int
	IdleDelay time.Duration
	Now       func() time.Time
}

func NewSweeper(processor *Processor, handler core.Handler) *Sweeper {
	return &Sweeper{
		Processor: processor,
		Handler:   handler,
		Interval:  DefaultSweepInterval,
		Burst:     DefaultSweepBurst,
		IdleDelay: DefaultSweepIdleDelay,
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Run ticks until the context is canceled. Sweep errors are logged and
// swallowed; a failing ledger only delays recovery until the next tick.
func (s *Sweeper) Run(ctx context.Context) error {
	if s == nil || s.Processor == nil || s.Processor.Ledger == nil || s.Handler == nil {
		return fmt.Errorf("processor: sweeper requires a processor and handler")
	}

	ticker := time.NewTicker(s.interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			processed, err := s.RunOnce(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				s.logSweepFailure(err)
			}
			if processed == 0 {
				if err := s.idle(ctx); err != nil {
					return err
				}
			}
		}
	}
}

// RunOnce drives a single sweep: list due pending events and run one attempt
// each. Exposed so deployments can run the sweep under an external job
// runner instead of the built-in loop.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	if s == nil || s.Processor == nil || s.Processor.Ledger == nil {
		return 0, fmt.Errorf("processor: sweeper is not configured")
	}

	due, err := s.Processor.Ledger.ListDue(ctx, s.now(), s.burst())
	if err != nil {
		return 0, err
	}

	processed := 0
	var sweepErr error
	for _, event := range due {
		if ctx.Err() != nil {
			return processed, ctx.Err()
		}
		result, err := s.Processor.Process(ctx, event.ID, s.Handler)
		if err != nil {
			sweepErr = joinErrors(sweepErr, err)
			continue
		}
		if result.AlreadyClaimed {
			continue
		}
		processed++
	}
	return processed, sweepErr
}

func (s *Sweeper) idle(ctx context.Context) error {
	delay := s.idleDelay()
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (s *Sweeper) interval() time.Duration {
	if s != nil && s.Interval > 0 {
		return s.Interval
	}
	return DefaultSweepInterval
}

func (s *Sweeper) burst() int {
	if s != nil && s.Burst > 0 {
		return s.Burst
	}
	return DefaultSweepBurst
}

func (s *Sweeper) idleDelay() time.Duration {
	if s != nil && s.IdleDelay > 0 {
		return s.IdleDelay
	}
	return DefaultSweepIdleDelay
}

func (s *Sweeper) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Sweeper) logSweepFailure(err error) {
	if s == nil || s.Logger == nil {
		return
	}
	s.Logger.Error("webhook sweep failed", "error", err.Error())
}

func joinErrors(existing error, next error) error {
	if existing == nil {
		return next
	}
	if next == nil {
		return existing
	}
	return fmt.Errorf("%w; %v", existing, next)
}
