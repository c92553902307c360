package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[LogWebhookEventMessage]     = (*LogWebhookEventCommand)(nil)
	_ gocmd.Commander[ProcessWebhookEventMessage] = (*ProcessWebhookEventCommand)(nil)
	_ gocmd.Commander[ProcessWebhookNowMessage]   = (*ProcessWebhookNowCommand)(nil)
	_ gocmd.Commander[RetryWebhookEventMessage]   = (*RetryWebhookEventCommand)(nil)
)
