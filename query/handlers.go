package query

import (
	"context"

	"github.com/goliatone/go-webhook-events/core"
)

// StatsReader exposes the ledger's aggregate counters.
type StatsReader interface {
	GetWebhookStats(ctx context.Context) (core.WebhookStats, error)
}

// EventReader exposes the ledger's listing and lookup surface.
type EventReader interface {
	GetWebhookEvent(ctx context.Context, id string) (core.WebhookEvent, error)
	GetWebhookEventsByStatus(ctx context.Context, status core.Status, limit int) ([]core.WebhookEvent, error)
}

type GetWebhookStatsQuery struct {
	reader StatsReader
}

func NewGetWebhookStatsQuery(reader StatsReader) *GetWebhookStatsQuery {
	return &GetWebhookStatsQuery{reader: reader}
}

func (q *GetWebhookStatsQuery) Query(ctx context.Context, msg GetWebhookStatsMessage) (core.WebhookStats, error) {
	if q == nil || q.reader == nil {
		return core.WebhookStats{}, queryDependencyError("query: stats reader is required")
	}
	return q.reader.GetWebhookStats(ctx)
}

type ListWebhookEventsQuery struct {
	reader EventReader
}

func NewListWebhookEventsQuery(reader EventReader) *ListWebhookEventsQuery {
	return &ListWebhookEventsQuery{reader: reader}
}

func (q *ListWebhookEventsQuery) Query(ctx context.Context, msg ListWebhookEventsMessage) ([]core.WebhookEvent, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: event reader is required")
	}
	return q.reader.GetWebhookEventsByStatus(ctx, msg.Status, msg.Limit)
}

type GetWebhookEventQuery struct {
	reader EventReader
}

func NewGetWebhookEventQuery(reader EventReader) *GetWebhookEventQuery {
	return &GetWebhookEventQuery{reader: reader}
}

func (q *GetWebhookEventQuery) Query(ctx context.Context, msg GetWebhookEventMessage) (core.WebhookEvent, error) {
	if q == nil || q.reader == nil {
		return core.WebhookEvent{}, queryDependencyError("query: event reader is required")
	}
	return q.reader.GetWebhookEvent(ctx, msg.EventID)
}
