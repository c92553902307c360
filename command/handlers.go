package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-webhook-events/core"
)

// MutatingService is the write surface the commands delegate to.
type MutatingService interface {
	LogWebhookEvent(ctx context.Context, in core.RecordWebhookInput) (core.WebhookEvent, error)
	ProcessWebhookEvent(ctx context.Context, eventID string, handler core.Handler) (core.ProcessResult, error)
	ProcessWebhookNow(ctx context.Context, in core.RecordWebhookInput, handler core.Handler) (core.ProcessResult, error)
	RetryWebhookEvent(ctx context.Context, eventID string, handler core.Handler) (core.ProcessResult, error)
}

type LogWebhookEventCommand struct {
	service MutatingService
}

func NewLogWebhookEventCommand(service MutatingService) *LogWebhookEventCommand {
	return &LogWebhookEventCommand{service: service}
}

func (c *LogWebhookEventCommand) Execute(ctx context.Context, msg LogWebhookEventMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: log event service is required")
	}
	out, err := c.service.LogWebhookEvent(ctx, msg.Input)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type ProcessWebhookEventCommand struct {
	service MutatingService
}

func NewProcessWebhookEventCommand(service MutatingService) *ProcessWebhookEventCommand {
	return &ProcessWebhookEventCommand{service: service}
}

func (c *ProcessWebhookEventCommand) Execute(ctx context.Context, msg ProcessWebhookEventMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: process event service is required")
	}
	out, err := c.service.ProcessWebhookEvent(ctx, msg.EventID, msg.Handler)
	if err != nil {
		storeResult(ctx, out)
		return err
	}
	storeResult(ctx, out)
	return nil
}

type ProcessWebhookNowCommand struct {
	service MutatingService
}

func NewProcessWebhookNowCommand(service MutatingService) *ProcessWebhookNowCommand {
	return &ProcessWebhookNowCommand{service: service}
}

func (c *ProcessWebhookNowCommand) Execute(ctx context.Context, msg ProcessWebhookNowMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: process now service is required")
	}
	out, err := c.service.ProcessWebhookNow(ctx, msg.Input, msg.Handler)
	if err != nil {
		storeResult(ctx, out)
		return err
	}
	storeResult(ctx, out)
	return nil
}

type RetryWebhookEventCommand struct {
	service MutatingService
}

func NewRetryWebhookEventCommand(service MutatingService) *RetryWebhookEventCommand {
	return &RetryWebhookEventCommand{service: service}
}

func (c *RetryWebhookEventCommand) Execute(ctx context.Context, msg RetryWebhookEventMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: retry event service is required")
	}
	out, err := c.service.RetryWebhookEvent(ctx, msg.EventID, msg.Handler)
	if err != nil {
		storeResult(ctx, out)
		return err
	}
	storeResult(ctx, out)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
