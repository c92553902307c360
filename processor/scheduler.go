package processor

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-webhook-events/core"
)

// Timer is a cancelable single-shot timer.
type Timer interface {
	Stop() bool
}

// AfterFunc arms a single-shot timer; injectable so tests control time.
type AfterFunc func(delay time.Duration, fn func()) Timer

func systemAfterFunc(delay time.Duration, fn func()) Timer {
	return time.AfterFunc(delay, fn)
}

// Scheduler re-invokes the processor after a backoff delay. One single-shot
// timer per event id; re-arming replaces the previous timer. Timers live only
// for the process lifetime; the sweeper covers retries that outlive it.
// A new scheduler is inert: schedules are dropped until Start enables it.
// RetryNow works regardless, manual recovery has no lifecycle gate.
type Scheduler struct {
	Processor *Processor
	Logger    core.Logger
	After     AfterFunc

	mu      sync.Mutex
	timers  map[string]Timer
	stopped bool
}

func NewScheduler(processor *Processor) *Scheduler {
	return &Scheduler{
		Processor: processor,
		After:     systemAfterFunc,
		timers:    map[string]Timer{},
		stopped:   true,
	}
}

// Start enables scheduling.
func (s *Scheduler) Start() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = false
	if s.timers == nil {
		s.timers = map[string]Timer{}
	}
}

// Stop cancels every outstanding timer and rejects new schedules until Start.
func (s *Scheduler) Stop() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
}

// Schedule arms a deferred re-attempt for the event. Errors from the deferred
// run are logged and swallowed; the event stays in whatever state the failed
// write left it, to be recovered by the sweeper or a manual retry.
func (s *Scheduler) Schedule(eventID string, handler core.Handler, delay time.Duration) {
	if s == nil || s.Processor == nil || handler == nil {
		return
	}
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return
	}
	if delay < 0 {
		delay = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if existing, ok := s.timers[eventID]; ok {
		existing.Stop()
	}
	after := s.After
	if after == nil {
		after = systemAfterFunc
	}
	s.timers[eventID] = after(delay, func() {
		s.fire(eventID, handler)
	})
}

// RetryNow is the manual recovery entrypoint: it resets the retry budget and
// immediately runs one attempt, bypassing any armed timer.
func (s *Scheduler) RetryNow(ctx context.Context, eventID string, handler core.Handler) (core.ProcessResult, error) {
	if s == nil || s.Processor == nil || s.Processor.Ledger == nil {
		return core.ProcessResult{}, fmt.Errorf("processor: scheduler requires a configured processor")
	}
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return core.ProcessResult{}, core.BadInputError("processor: event id is required")
	}

	s.cancel(eventID)
	if _, err := s.Processor.Ledger.ResetForRetry(ctx, eventID); err != nil {
		return core.ProcessResult{}, err
	}
	return s.Processor.Process(ctx, eventID, handler)
}

func (s *Scheduler) fire(eventID string, handler core.Handler) {
	s.cancel(eventID)
	if _, err := s.Processor.Process(context.Background(), eventID, handler); err != nil {
		s.logRetryFailure(eventID, err)
	}
}

func (s *Scheduler) cancel(eventID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if timer, ok := s.timers[eventID]; ok {
		timer.Stop()
		delete(s.timers, eventID)
	}
}

func (s *Scheduler) logRetryFailure(eventID string, err error) {
	if s == nil || s.Logger == nil {
		return
	}
	s.Logger.Error("webhook retry attempt failed", "event_id", eventID, "error", err.Error())
}
