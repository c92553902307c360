package processor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-webhook-events/core"
)

const (
	DefaultMaxAttempts    = 3
	DefaultHandlerTimeout = 30 * time.Second
)

// RetryScheduler receives failed events for a deferred re-attempt.
type RetryScheduler interface {
	Schedule(eventID string, handler core.Handler, delay time.Duration)
}

// Processor drives exactly one attempt of the handler against one event and
// resolves the event's next state through conditional ledger writes. Two
// processors racing on the same event resolve through the (status, version)
// claim: the loser reports AlreadyClaimed and never runs the handler.
type Processor struct {
	Ledger         core.Ledger
	Scheduler      RetryScheduler
	Backoff        BackoffSchedule
	MaxAttempts    int
	HandlerTimeout time.Duration
	Logger         core.Logger
	Now            func() time.Time
}

func NewProcessor(ledger core.Ledger) *Processor {
	return &Processor{
		Ledger:         ledger,
		Backoff:        DefaultBackoffSchedule(),
		MaxAttempts:    DefaultMaxAttempts,
		HandlerTimeout: DefaultHandlerTimeout,
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// WithoutScheduler returns a copy that runs attempts inline and never arms a
// deferred retry. Failed attempts keep their ledger bookkeeping, so the
// sweeper picks them up when their next_attempt_at arrives.
func (p *Processor) WithoutScheduler() *Processor {
	if p == nil {
		return nil
	}
	inline := *p
	inline.Scheduler = nil
	return &inline
}

func (p *Processor) Process(ctx context.Context, eventID string, handler core.Handler) (core.ProcessResult, error) {
	if p == nil || p.Ledger == nil {
		return core.ProcessResult{}, fmt.Errorf("processor: ledger is required")
	}
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return core.ProcessResult{}, core.BadInputError("processor: event id is required")
	}
	if handler == nil {
		return core.ProcessResult{}, core.BadInputError("processor: handler is required")
	}

	event, err := p.Ledger.Get(ctx, eventID)
	if err != nil {
		return core.ProcessResult{}, err
	}

	// Idempotent short-circuit: a completed event never re-runs its handler.
	if event.Status == core.StatusSuccess {
		return core.ProcessResult{EventID: eventID, Success: true}, nil
	}

	if event.Status == core.StatusFailed {
		return core.ProcessResult{
			EventID: eventID,
			Error:   core.ExhaustedRetriesMessage,
		}, core.RetriesExhaustedError(eventID)
	}

	// Ceiling guard: dead-letter on the attempt after the ceiling was
	// reached. Conditional on the version we read, so a stale re-entry
	// cannot race a live worker past the ceiling.
	if event.RetryCount >= p.maxAttempts() {
		_, claimed, err := p.Ledger.MarkDead(ctx, eventID, event.Version, core.ExhaustedRetriesMessage)
		if err != nil {
			return core.ProcessResult{}, err
		}
		if !claimed {
			return core.ProcessResult{EventID: eventID, AlreadyClaimed: true}, nil
		}
		return core.ProcessResult{
			EventID: eventID,
			Error:   core.ExhaustedRetriesMessage,
		}, core.RetriesExhaustedError(eventID)
	}

	claimed, ok, err := p.Ledger.ClaimProcessing(ctx, eventID, event.Version)
	if err != nil {
		return core.ProcessResult{}, err
	}
	if !ok {
		return core.ProcessResult{EventID: eventID, AlreadyClaimed: true}, nil
	}

	handlerErr := p.invokeHandler(ctx, handler, claimed)
	if handlerErr == nil {
		if _, _, err := p.Ledger.MarkSucceeded(ctx, eventID, claimed.Version, p.now()); err != nil {
			return core.ProcessResult{}, err
		}
		return core.ProcessResult{EventID: eventID, Success: true}, nil
	}

	nextCount := claimed.RetryCount + 1
	delay := p.backoff().DelayFor(nextCount)
	nextAttemptAt := p.now().Add(delay)
	_, requeued, err := p.Ledger.MarkRetry(ctx, eventID, claimed.Version, handlerErr.Error(), nextAttemptAt)
	if err != nil {
		return core.ProcessResult{}, err
	}
	if requeued && p.Scheduler != nil {
		p.Scheduler.Schedule(eventID, handler, delay)
	}
	return core.ProcessResult{
		EventID: eventID,
		Error:   handlerErr.Error(),
	}, core.HandlerFailedError(eventID, handlerErr)
}

func (p *Processor) invokeHandler(ctx context.Context, handler core.Handler, event core.WebhookEvent) error {
	handlerCtx := ctx
	cancel := func() {}
	if timeout := p.handlerTimeout(); timeout > 0 {
		handlerCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- handler.Handle(handlerCtx, event)
	}()

	// A handler that ignores its context cannot stall the attempt; the
	// timeout resolves it as a retryable failure.
	select {
	case err := <-done:
		return err
	case <-handlerCtx.Done():
		return handlerCtx.Err()
	}
}

func (p *Processor) maxAttempts() int {
	if p != nil && p.MaxAttempts > 0 {
		return p.MaxAttempts
	}
	return DefaultMaxAttempts
}

func (p *Processor) handlerTimeout() time.Duration {
	if p != nil && p.HandlerTimeout > 0 {
		return p.HandlerTimeout
	}
	return DefaultHandlerTimeout
}

func (p *Processor) backoff() BackoffSchedule {
	if p != nil && len(p.Backoff) > 0 {
		return p.Backoff
	}
	return DefaultBackoffSchedule()
}

func (p *Processor) now() time.Time {
	if p != nil && p.Now != nil {
		return p.Now().UTC()
	}
	return time.Now().UTC()
}
