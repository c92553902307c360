package query

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-webhook-events/core"
)

const (
	TypeGetWebhookStats   = "webhooks.query.stats.get"
	TypeListWebhookEvents = "webhooks.query.events.list"
	TypeGetWebhookEvent   = "webhooks.query.event.get"
)

type GetWebhookStatsMessage struct{}

func (GetWebhookStatsMessage) Type() string { return TypeGetWebhookStats }

func (GetWebhookStatsMessage) Validate() error { return nil }

type ListWebhookEventsMessage struct {
	Status core.Status
	Limit  int
}

func (ListWebhookEventsMessage) Type() string { return TypeListWebhookEvents }

func (m ListWebhookEventsMessage) Validate() error {
	if !m.Status.Valid() {
		return fmt.Errorf("query: unknown webhook status %q", m.Status)
	}
	if m.Limit < 0 {
		return fmt.Errorf("query: limit must be >= 0")
	}
	return nil
}

type GetWebhookEventMessage struct {
	EventID string
}

func (GetWebhookEventMessage) Type() string { return TypeGetWebhookEvent }

func (m GetWebhookEventMessage) Validate() error {
	if strings.TrimSpace(m.EventID) == "" {
		return fmt.Errorf("query: event id is required")
	}
	return nil
}
