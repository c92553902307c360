package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-webhook-events/core"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// EventStore is the relational webhook ledger. Every state transition is a
// single conditional UPDATE guarded by (id, status, version); a zero
// rows-affected result means another worker already moved the event, which
// surfaces as claimed=false rather than an error.
type EventStore struct {
	db   *bun.DB
	repo repository.Repository[*webhookEventRecord]
}

func NewEventStore(db *bun.DB) (*EventStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*webhookEventRecord](db, webhookEventHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid webhook event repository wiring: %w", err)
		}
	}
	return &EventStore{db: db, repo: repo}, nil
}

func (s *EventStore) Record(ctx context.Context, in core.RecordWebhookInput) (core.WebhookEvent, error) {
	if s == nil || s.repo == nil {
		return core.WebhookEvent{}, fmt.Errorf("sqlstore: webhook event store is not configured")
	}
	if err := in.Validate(); err != nil {
		return core.WebhookEvent{}, err
	}

	now := time.Now().UTC()
	record := &webhookEventRecord{
		ID:         uuid.NewString(),
		Source:     strings.TrimSpace(in.Source),
		EventType:  strings.TrimSpace(in.EventType),
		Payload:    append([]byte(nil), in.Payload...),
		Status:     core.StatusPending.String(),
		RetryCount: 0,
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if _, err := s.repo.Create(ctx, record); err != nil {
		return core.WebhookEvent{}, err
	}
	return webhookEventToDomain(record), nil
}

func (s *EventStore) Get(ctx context.Context, id string) (core.WebhookEvent, error) {
	if s == nil || s.db == nil {
		return core.WebhookEvent{}, fmt.Errorf("sqlstore: webhook event store is not configured")
	}
	id = strings.TrimSpace(id)
	record := &webhookEventRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return core.WebhookEvent{}, core.NotFoundError(id)
		}
		return core.WebhookEvent{}, err
	}
	return webhookEventToDomain(record), nil
}

func (s *EventStore) ClaimProcessing(ctx context.Context, id string, version int64) (core.WebhookEvent, bool, error) {
	return s.transition(ctx, id, version, core.StatusPending, func(q *bun.UpdateQuery) *bun.UpdateQuery {
		return q.Set("status = ?", core.StatusProcessing.String())
	})
}

func (s *EventStore) MarkSucceeded(ctx context.Context, id string, version int64, processedAt time.Time) (core.WebhookEvent, bool, error) {
	return s.transition(ctx, id, version, core.StatusProcessing, func(q *bun.UpdateQuery) *bun.UpdateQuery {
		return q.Set("status = ?", core.StatusSuccess.String()).
			Set("processed_at = ?", processedAt.UTC()).
			Set("next_attempt_at = NULL").
			Set("last_error = ?", "")
	})
}

func (s *EventStore) MarkRetry(ctx context.Context, id string, version int64, lastError string, nextAttemptAt time.Time) (core.WebhookEvent, bool, error) {
	return s.transition(ctx, id, version, core.StatusProcessing, func(q *bun.UpdateQuery) *bun.UpdateQuery {
		return q.Set("status = ?", core.StatusPending.String()).
			Set("retry_count = retry_count + 1").
			Set("last_error = ?", strings.TrimSpace(lastError)).
			Set("next_attempt_at = ?", nextAttemptAt.UTC())
	})
}

func (s *EventStore) MarkDead(ctx context.Context, id string, version int64, lastError string) (core.WebhookEvent, bool, error) {
	return s.transition(ctx, id, version, core.StatusPending, func(q *bun.UpdateQuery) *bun.UpdateQuery {
		return q.Set("status = ?", core.StatusFailed.String()).
			Set("last_error = ?", strings.TrimSpace(lastError)).
			Set("next_attempt_at = NULL")
	})
}

func (s *EventStore) ResetForRetry(ctx context.Context, id string) (core.WebhookEvent, error) {
	if s == nil || s.db == nil {
		return core.WebhookEvent{}, fmt.Errorf("sqlstore: webhook event store is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return core.WebhookEvent{}, core.BadInputError("sqlstore: event id is required")
	}

	_, err := s.db.NewUpdate().
		Model((*webhookEventRecord)(nil)).
		Set("status = ?", core.StatusPending.String()).
		Set("retry_count = 0").
		Set("last_error = ?", "").
		Set("next_attempt_at = NULL").
		Set("version = version + 1").
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Where("status IN (?, ?, ?)", core.StatusFailed.String(), core.StatusPending.String(), core.StatusProcessing.String()).
		Exec(ctx)
	if err != nil {
		return core.WebhookEvent{}, err
	}
	// Processing rows are reset too: a worker that crashed after its claim
	// leaves the event in processing, and manual retry is the recovery path
	// for it. Only succeeded events are left untouched.
	return s.Get(ctx, id)
}

func (s *EventStore) ListDue(ctx context.Context, now time.Time, limit int) ([]core.WebhookEvent, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: webhook event store is not configured")
	}
	if limit <= 0 {
		limit = 1
	}
	var records []webhookEventRecord
	err := s.db.NewSelect().
		Model(&records).
		Where("?TableAlias.status = ?", core.StatusPending.String()).
		Where("?TableAlias.next_attempt_at IS NULL OR ?TableAlias.next_attempt_at <= ?", now.UTC()).
		Order("created_at ASC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return webhookEventsToDomain(records), nil
}

func (s *EventStore) ListByStatus(ctx context.Context, status core.Status, limit int) ([]core.WebhookEvent, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: webhook event store is not configured")
	}
	if !status.Valid() {
		return nil, core.BadInputError(fmt.Sprintf("sqlstore: unknown webhook status %q", status))
	}
	if limit <= 0 {
		limit = 50
	}
	var records []webhookEventRecord
	err := s.db.NewSelect().
		Model(&records).
		Where("?TableAlias.status = ?", status.String()).
		Order("created_at ASC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return webhookEventsToDomain(records), nil
}

func (s *EventStore) Stats(ctx context.Context) (core.WebhookStats, error) {
	if s == nil || s.db == nil {
		return core.WebhookStats{}, fmt.Errorf("sqlstore: webhook event store is not configured")
	}
	var rows []struct {
		Status string `bun:"status"`
		Count  int    `bun:"count"`
	}
	err := s.db.NewSelect().
		Model((*webhookEventRecord)(nil)).
		ColumnExpr("status").
		ColumnExpr("COUNT(*) AS count").
		GroupExpr("status").
		Scan(ctx, &rows)
	if err != nil {
		return core.WebhookStats{}, err
	}

	stats := core.WebhookStats{}
	for _, row := range rows {
		stats.Total += row.Count
		switch core.Status(row.Status) {
		case core.StatusPending:
			stats.Pending = row.Count
		case core.StatusProcessing:
			stats.Processing = row.Count
		case core.StatusSuccess:
			stats.Success = row.Count
		case core.StatusFailed:
			stats.Failed = row.Count
		}
	}
	return stats, nil
}

func (s *EventStore) transition(
	ctx context.Context,
	id string,
	version int64,
	fromStatus core.Status,
	apply func(*bun.UpdateQuery) *bun.UpdateQuery,
) (core.WebhookEvent, bool, error) {
	if s == nil || s.db == nil {
		return core.WebhookEvent{}, false, fmt.Errorf("sqlstore: webhook event store is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return core.WebhookEvent{}, false, core.BadInputError("sqlstore: event id is required")
	}

	query := s.db.NewUpdate().
		Model((*webhookEventRecord)(nil)).
		Set("version = version + 1").
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Where("status = ?", fromStatus.String()).
		Where("version = ?", version)
	result, err := apply(query).Exec(ctx)
	if err != nil {
		return core.WebhookEvent{}, false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return core.WebhookEvent{}, false, err
	}
	if affected == 0 {
		return core.WebhookEvent{}, false, nil
	}

	updated, err := s.Get(ctx, id)
	if err != nil {
		return core.WebhookEvent{}, false, err
	}
	return updated, true, nil
}

func webhookEventToDomain(record *webhookEventRecord) core.WebhookEvent {
	if record == nil {
		return core.WebhookEvent{}
	}
	event := core.WebhookEvent{
		ID:         record.ID,
		Source:     record.Source,
		EventType:  record.EventType,
		Payload:    append([]byte(nil), record.Payload...),
		Status:     core.Status(record.Status),
		RetryCount: record.RetryCount,
		LastError:  record.LastError,
		Version:    record.Version,
		CreatedAt:  record.CreatedAt,
		UpdatedAt:  record.UpdatedAt,
	}
	if record.ProcessedAt != nil {
		value := *record.ProcessedAt
		event.ProcessedAt = &value
	}
	if record.NextAttemptAt != nil {
		value := *record.NextAttemptAt
		event.NextAttemptAt = &value
	}
	return event
}

func webhookEventsToDomain(records []webhookEventRecord) []core.WebhookEvent {
	events := make([]core.WebhookEvent, 0, len(records))
	for i := range records {
		events = append(events, webhookEventToDomain(&records[i]))
	}
	return events
}

var _ core.Ledger = (*EventStore)(nil)
