package processor

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-webhook-events/core"
)

// memoryLedger mirrors the conditional-write contract of the SQL store so
// processor tests exercise the same claim semantics.
type memoryLedger struct {
	mu     sync.Mutex
	events map[string]core.WebhookEvent
	seq    int
	now    func() time.Time
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{
		events: map[string]core.WebhookEvent{},
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (l *memoryLedger) Record(_ context.Context, in core.RecordWebhookInput) (core.WebhookEvent, error) {
	if err := in.Validate(); err != nil {
		return core.WebhookEvent{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seq++
	now := l.now()
	event := core.WebhookEvent{
		ID:        fmt.Sprintf("evt_%d", l.seq),
		Source:    strings.TrimSpace(in.Source),
		EventType: strings.TrimSpace(in.EventType),
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
		event.UpdatedAt = l.now()
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
	event.UpdatedAt = l.now()
	l.events[id] = event
	return event.Clone(), true, nil
}

var _ core.Ledger = (*memoryLedger)(nil)
