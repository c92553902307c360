package command

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-webhook-events/core"
)

const (
	TypeLogWebhookEvent     = "webhooks.command.event.log"
	TypeProcessWebhookEvent = "webhooks.command.event.process"
	TypeProcessWebhookNow   = "webhooks.command.event.process_now"
	TypeRetryWebhookEvent   = "webhooks.command.event.retry"
)

type LogWebhookEventMessage struct {
	Input core.RecordWebhookInput
}

func (LogWebhookEventMessage) Type() string { return TypeLogWebhookEvent }

func (m LogWebhookEventMessage) Validate() error {
	if strings.TrimSpace(m.Input.Source) == "" {
		return fmt.Errorf("command: event source is required")
	}
	if strings.TrimSpace(m.Input.EventType) == "" {
		return fmt.Errorf("command: event type is required")
	}
	return nil
}

type ProcessWebhookEventMessage struct {
	EventID string
	Handler core.Handler
}

func (ProcessWebhookEventMessage) Type() string { return TypeProcessWebhookEvent }

func (m ProcessWebhookEventMessage) Validate() error {
	if strings.TrimSpace(m.EventID) == "" {
		return fmt.Errorf("command: event id is required")
	}
	if m.Handler == nil {
		return fmt.Errorf("command: event handler is required")
	}
	return nil
}

// ProcessWebhookNowMessage records the event and runs the handler inline,
// skipping the scheduler. The new event id travels on the stored result.
// Failed attempts still land in the ledger with their retry bookkeeping.
type ProcessWebhookNowMessage struct {
	Input   core.RecordWebhookInput
	Handler core.Handler
}

func (ProcessWebhookNowMessage) Type() string { return TypeProcessWebhookNow }

func (m ProcessWebhookNowMessage) Validate() error {
	if strings.TrimSpace(m.Input.Source) == "" {
		return fmt.Errorf("command: event source is required")
	}
	if strings.TrimSpace(m.Input.EventType) == "" {
		return fmt.Errorf("command: event type is required")
	}
	if m.Handler == nil {
		return fmt.Errorf("command: event handler is required")
	}
	return nil
}

type RetryWebhookEventMessage struct {
	EventID string
	Handler core.Handler
}

func (RetryWebhookEventMessage) Type() string { return TypeRetryWebhookEvent }

func (m RetryWebhookEventMessage) Validate() error {
	if strings.TrimSpace(m.EventID) == "" {
		return fmt.Errorf("command: event id is required")
	}
	if m.Handler == nil {
		return fmt.Errorf("command: event handler is required")
	}
	return nil
}
