package webhookevents

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goliatone/go-webhook-events/core"
)

// memoryLedger implements the conditional-write contract in memory for
// service-level tests.
type memoryLedger struct {
	mu     sync.Mutex
	events map[string]core.WebhookEvent
	seq    int
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{events: map[string]core.WebhookEvent{}}
}

func (l *memoryLedger) Record(_ context.Context, in core.RecordWebhookInput) (core.WebhookEvent, error) {
	if err := in.Validate(); err != nil {
		return core.WebhookEvent{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seq++
	now := time.Now().UTC()
	event := core.WebhookEvent{
		ID:        fmt.Sprintf("evt_%d", l.seq),
		Source:    in.Source,
		EventType: in.EventType,
		Payload:   append([]byte(nil), in.Payload...),
		Status:    core.StatusPending,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	l.events[event.ID] = event
	return event.Clone(), nil
}

func (l *memoryLedger) Get(_ context.Context, id string) (core.WebhookEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	event, ok := l.events[id]
	if !ok {
		return core.WebhookEvent{}, core.NotFoundError(id)
	}
	return event.Clone(), nil
}

func (l *memoryLedger) ClaimProcessing(_ context.Context, id string, version int64) (core.WebhookEvent, bool, error) {
	return l.transition(id, version, core.StatusPending, func(event *core.WebhookEvent) {
		event.Status = core.StatusProcessing
	})
}

func (l *memoryLedger) MarkSucceeded(_ context.Context, id string, version int64, processedAt time.Time) (core.WebhookEvent, bool, error) {
	return l.transition(id, version, core.StatusProcessing, func(event *core.WebhookEvent) {
		event.Status = core.StatusSuccess
		at := processedAt.UTC()
		event.ProcessedAt = &at
		event.NextAttemptAt = nil
		event.LastError = ""
	})
}

func (l *memoryLedger) MarkRetry(_ context.Context, id string, version int64, lastError string, nextAttemptAt time.Time) (core.WebhookEvent, bool, error) {
	return l.transition(id, version, core.StatusProcessing, func(event *core.WebhookEvent) {
		event.Status = core.StatusPending
		event.RetryCount++
		event.LastError = lastError
		at := nextAttemptAt.UTC()
		event.NextAttemptAt = &at
	})
}

func (l *memoryLedger) MarkDead(_ context.Context, id string, version int64, lastError string) (core.WebhookEvent, bool, error) {
	return l.transition(id, version, core.StatusPending, func(event *core.WebhookEvent) {
		event.Status = core.StatusFailed
		event.LastError = lastError
		event.NextAttemptAt = nil
	})
}

func (l *memoryLedger) ResetForRetry(_ context.Context, id string) (core.WebhookEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	event, ok := l.events[id]
	if !ok {
		return core.WebhookEvent{}, core.NotFoundError(id)
	}
	if event.Status != core.StatusSuccess {
		event.Status = core.StatusPending
		event.RetryCount = 0
		event.LastError = ""
		event.NextAttemptAt = nil
		event.Version++
		event.UpdatedAt = time.Now().UTC()
		l.events[id] = event
	}
	return event.Clone(), nil
}

func (l *memoryLedger) ListDue(_ context.Context, now time.Time, limit int) ([]core.WebhookEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if limit <= 0 {
		limit = 1
	}
	var due []core.WebhookEvent
	for _, event := range l.events {
		if event.Status != core.StatusPending {
			continue
		}
		if event.NextAttemptAt != nil && event.NextAttemptAt.After(now) {
			continue
		}
		due = append(due, event.Clone())
	}
	sort.Slice(due, func(i, j int) bool {
		return due[i].CreatedAt.Before(due[j].CreatedAt)
	})
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (l *memoryLedger) ListByStatus(_ context.Context, status core.Status, limit int) ([]core.WebhookEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !status.Valid() {
		return nil, core.BadInputError(fmt.Sprintf("unknown webhook status %q", status))
	}
	if limit <= 0 {
		limit = 50
	}
	var matched []core.WebhookEvent
	for _, event := range l.events {
		if event.Status == status {
			matched = append(matched, event.Clone())
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (l *memoryLedger) Stats(_ context.Context) (core.WebhookStats, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	stats := core.WebhookStats{}
	for _, event := range l.events {
		stats.Total++
		switch event.Status {
		case core.StatusPending:
			stats.Pending++
		case core.StatusProcessing:
			stats.Processing++
		case core.StatusSuccess:
			stats.Success++
		case core.StatusFailed:
			stats.Failed++
		}
	}
	return stats, nil
}

func (l *memoryLedger) transition(id string, version int64, from core.Status, apply func(*core.WebhookEvent)) (core.WebhookEvent, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	event, ok := l.events[id]
	if !ok {
		return core.WebhookEvent{}, false, core.NotFoundError(id)
	}
	if event.Status != from || event.Version != version {
		return core.WebhookEvent{}, false, nil
	}
	apply(&event)
	event.Version++
	event.UpdatedAt = time.Now().UTC()
	l.events[id] = event
	return event.Clone(), true, nil
}

var _ core.Ledger = (*memoryLedger)(nil)

type flakyHandler struct {
	failures int64
	calls    int64
}

func (h *flakyHandler) Handle(context.Context, core.WebhookEvent) error {
	call := atomic.AddInt64(&h.calls, 1)
	if call <= atomic.LoadInt64(&h.failures) {
		return errors.New("downstream unavailable")
	}
	return nil
}

func newTestService(t *testing.T, ledger core.Ledger) *Service {
	t.Helper()
	service, err := NewService(core.Config{}, WithLedger(ledger))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return service
}

func TestNewService_RequiresLedger(t *testing.T) {
	if _, err := NewService(core.Config{}); err == nil {
		t.Fatalf("expected missing ledger to fail")
	}
}

func TestNewService_RuntimeConfigWins(t *testing.T) {
	service, err := NewService(core.Config{MaxAttempts: 7}, WithLedger(newMemoryLedger()))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if service.Config().MaxAttempts != 7 {
		t.Fatalf("expected runtime max attempts, got %d", service.Config().MaxAttempts)
	}
	if service.Config().ServiceName != "webhook-events" {
		t.Fatalf("expected default service name, got %q", service.Config().ServiceName)
	}
}

func TestService_LogWebhookEvent(t *testing.T) {
	ledger := newMemoryLedger()
	service := newTestService(t, ledger)

	event, err := service.LogWebhookEvent(context.Background(), core.RecordWebhookInput{
		Source:    "github",
		EventType: "push",
		Payload:   []byte(`{"ref":"main"}`),
	})
	if err != nil {
		t.Fatalf("log event: %v", err)
	}
	if event.Status != core.StatusPending {
		t.Fatalf("expected pending, got %q", event.Status)
	}

	if _, err := service.LogWebhookEvent(context.Background(), core.RecordWebhookInput{}); err == nil {
		t.Fatalf("expected invalid input to fail")
	}
}

func TestService_FailTwiceThenSucceed(t *testing.T) {
	ledger := newMemoryLedger()
	service := newTestService(t, ledger)

	event, err := service.LogWebhookEvent(context.Background(), core.RecordWebhookInput{
		Source:    "github",
		EventType: "push",
	})
	if err != nil {
		t.Fatalf("log event: %v", err)
	}

	handler := &flakyHandler{failures: 2}

	for attempt := 1; attempt <= 2; attempt++ {
		result, err := service.ProcessWebhookEvent(context.Background(), event.ID, handler)
		if err == nil {
			t.Fatalf("attempt %d: expected failure", attempt)
		}
		if result.Error == "" {
			t.Fatalf("attempt %d: expected recorded error", attempt)
		}
		stored, getErr := service.GetWebhookEvent(context.Background(), event.ID)
		if getErr != nil {
			t.Fatalf("get event: %v", getErr)
		}
		if stored.RetryCount != attempt {
			t.Fatalf("attempt %d: expected retry count %d, got %d", attempt, attempt, stored.RetryCount)
		}
	}

	result, err := service.ProcessWebhookEvent(context.Background(), event.ID, handler)
	if err != nil {
		t.Fatalf("third attempt: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got %#v", result)
	}

	stored, err := service.GetWebhookEvent(context.Background(), event.ID)
	if err != nil {
		t.Fatalf("get event: %v", err)
	}
	if stored.Status != core.StatusSuccess {
		t.Fatalf("expected success, got %q", stored.Status)
	}
	if stored.ProcessedAt == nil {
		t.Fatalf("expected processed_at set")
	}
}

func TestService_ProcessWebhookNowRecordsAndProcesses(t *testing.T) {
	ledger := newMemoryLedger()
	service := newTestService(t, ledger)
	ctx := context.Background()

	result, err := service.ProcessWebhookNow(ctx, core.RecordWebhookInput{
		Source:    "github",
		EventType: "push",
		Payload:   []byte(`{"ref":"main"}`),
	}, &flakyHandler{})
	if err != nil {
		t.Fatalf("process now: %v", err)
	}
	if !result.Success || result.EventID == "" {
		t.Fatalf("expected success with new event id, got %#v", result)
	}

	stored, err := service.GetWebhookEvent(ctx, result.EventID)
	if err != nil {
		t.Fatalf("get event: %v", err)
	}
	if stored.Status != core.StatusSuccess {
		t.Fatalf("expected success status, got %q", stored.Status)
	}

	// A failed inline attempt still records the event with retry bookkeeping.
	result, err = service.ProcessWebhookNow(ctx, core.RecordWebhookInput{
		Source:    "github",
		EventType: "push",
	}, &flakyHandler{failures: 100})
	if err == nil {
		t.Fatalf("expected handler failure")
	}
	if result.EventID == "" {
		t.Fatalf("expected event id on failed result, got %#v", result)
	}
	stored, err = service.GetWebhookEvent(ctx, result.EventID)
	if err != nil {
		t.Fatalf("get event: %v", err)
	}
	if stored.Status != core.StatusPending || stored.RetryCount != 1 {
		t.Fatalf("expected pending retry bookkeeping, got %#v", stored)
	}

	if _, err := service.ProcessWebhookNow(ctx, core.RecordWebhookInput{}, &flakyHandler{}); err == nil {
		t.Fatalf("expected invalid input to fail")
	}
}

func TestService_RetryAfterDeadLetter(t *testing.T) {
	ledger := newMemoryLedger()
	service := newTestService(t, ledger)

	event, err := service.LogWebhookEvent(context.Background(), core.RecordWebhookInput{
		Source:    "github",
		EventType: "push",
	})
	if err != nil {
		t.Fatalf("log event: %v", err)
	}

	failing := &flakyHandler{failures: 100}
	for i := 0; i < 4; i++ {
		_, _ = service.ProcessWebhookEvent(context.Background(), event.ID, failing)
	}

	stored, err := service.GetWebhookEvent(context.Background(), event.ID)
	if err != nil {
		t.Fatalf("get event: %v", err)
	}
	if stored.Status != core.StatusFailed {
		t.Fatalf("expected dead-lettered event, got %q", stored.Status)
	}
	if stored.LastError != core.ExhaustedRetriesMessage {
		t.Fatalf("unexpected last error %q", stored.LastError)
	}

	result, err := service.RetryWebhookEvent(context.Background(), event.ID, &flakyHandler{})
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected successful manual retry, got %#v", result)
	}

	stored, err = service.GetWebhookEvent(context.Background(), event.ID)
	if err != nil {
		t.Fatalf("get event: %v", err)
	}
	if stored.Status != core.StatusSuccess {
		t.Fatalf("expected success after retry, got %q", stored.Status)
	}
	if stored.RetryCount != 0 {
		t.Fatalf("expected reset retry count, got %d", stored.RetryCount)
	}
}

func TestService_RetryRecoversStrandedClaim(t *testing.T) {
	ledger := newMemoryLedger()
	service := newTestService(t, ledger)
	ctx := context.Background()

	event, err := service.LogWebhookEvent(ctx, core.RecordWebhookInput{
		Source:    "github",
		EventType: "push",
	})
	if err != nil {
		t.Fatalf("log event: %v", err)
	}

	// A worker that dies after its claim leaves the event in processing.
	if _, ok, err := ledger.ClaimProcessing(ctx, event.ID, event.Version); err != nil || !ok {
		t.Fatalf("claim event: ok=%v err=%v", ok, err)
	}

	handler := &flakyHandler{}
	result, err := service.RetryWebhookEvent(ctx, event.ID, handler)
	if err != nil {
		t.Fatalf("retry stranded event: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected successful recovery, got %#v", result)
	}
	if handler.calls != 1 {
		t.Fatalf("expected one handler invocation, got %d", handler.calls)
	}

	stored, err := service.GetWebhookEvent(ctx, event.ID)
	if err != nil {
		t.Fatalf("get event: %v", err)
	}
	if stored.Status != core.StatusSuccess {
		t.Fatalf("expected success after recovery, got %q", stored.Status)
	}
}

func TestService_QuerySurface(t *testing.T) {
	ledger := newMemoryLedger()
	service := newTestService(t, ledger)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := service.LogWebhookEvent(ctx, core.RecordWebhookInput{
			Source:    "github",
			EventType: fmt.Sprintf("push.%d", i),
		}); err != nil {
			t.Fatalf("log event: %v", err)
		}
	}

	if _, err := service.ProcessWebhookNow(ctx, core.RecordWebhookInput{
		Source:    "stripe",
		EventType: "invoice.paid",
	}, &flakyHandler{}); err != nil {
		t.Fatalf("process: %v", err)
	}

	pending, err := service.GetWebhookEventsByStatus(ctx, core.StatusPending, 10)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 3 {
		t.Fatalf("expected 3 pending events, got %d", len(pending))
	}

	stats, err := service.GetWebhookStats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	want := core.WebhookStats{Total: 4, Pending: 3, Success: 1}
	if stats != want {
		t.Fatalf("expected %v, got %v", want, stats)
	}
}

func TestService_StartSweepsDueRetries(t *testing.T) {
	ledger := newMemoryLedger()
	service, err := NewService(core.Config{
		Sweep: core.SweepConfig{
			Interval:  5 * time.Millisecond,
			Burst:     10,
			IdleDelay: time.Millisecond,
		},
	}, WithLedger(ledger))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	event, err := service.LogWebhookEvent(context.Background(), core.RecordWebhookInput{
		Source:    "github",
		EventType: "push",
	})
	if err != nil {
		t.Fatalf("log event: %v", err)
	}

	handler := &flakyHandler{}
	if err := service.Start(context.Background(), handler); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer service.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		stored, getErr := service.GetWebhookEvent(context.Background(), event.ID)
		if getErr != nil {
			t.Fatalf("get event: %v", getErr)
		}
		if stored.Status == core.StatusSuccess {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected sweep to process the pending event")
}

func TestService_StartRejectsDoubleStart(t *testing.T) {
	service := newTestService(t, newMemoryLedger())
	handler := &flakyHandler{}

	if err := service.Start(context.Background(), handler); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer service.Stop()

	if err := service.Start(context.Background(), handler); err == nil {
		t.Fatalf("expected double start to fail")
	}
	if err := service.Start(context.Background(), nil); err == nil {
		t.Fatalf("expected nil handler to fail")
	}
}
