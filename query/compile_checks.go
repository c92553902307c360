package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-webhook-events/core"
)

var (
	_ gocmd.Querier[GetWebhookStatsMessage, core.WebhookStats]     = (*GetWebhookStatsQuery)(nil)
	_ gocmd.Querier[ListWebhookEventsMessage, []core.WebhookEvent] = (*ListWebhookEventsQuery)(nil)
	_ gocmd.Querier[GetWebhookEventMessage, core.WebhookEvent]     = (*GetWebhookEventQuery)(nil)
)
