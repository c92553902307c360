package webhookevents

import (
	"fmt"

	webhookcommand "github.com/goliatone/go-webhook-events/command"
	webhookquery "github.com/goliatone/go-webhook-events/query"
)

// CommandQueryService is the full surface the facade binds commands and
// queries against. *Service satisfies it.
type CommandQueryService interface {
	webhookcommand.MutatingService
	webhookquery.StatsReader
	webhookquery.EventReader
}

type Commands struct {
	LogEvent     *webhookcommand.LogWebhookEventCommand
	ProcessEvent *webhookcommand.ProcessWebhookEventCommand
	ProcessNow   *webhookcommand.ProcessWebhookNowCommand
	RetryEvent   *webhookcommand.RetryWebhookEventCommand
}

type Queries struct {
	GetStats   *webhookquery.GetWebhookStatsQuery
	ListEvents *webhookquery.ListWebhookEventsQuery
	GetEvent   *webhookquery.GetWebhookEventQuery
}

// Facade packages the command and query handlers for callers that dispatch
// through go-command instead of calling the service directly.
type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
}

func NewFacade(service CommandQueryService) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("webhookevents: command/query service is required")
	}

	facade := &Facade{service: service}
	facade.commands = Commands{
		LogEvent:     webhookcommand.NewLogWebhookEventCommand(service),
		ProcessEvent: webhookcommand.NewProcessWebhookEventCommand(service),
		ProcessNow:   webhookcommand.NewProcessWebhookNowCommand(service),
		RetryEvent:   webhookcommand.NewRetryWebhookEventCommand(service),
	}
	facade.queries = Queries{
		GetStats:   webhookquery.NewGetWebhookStatsQuery(service),
		ListEvents: webhookquery.NewListWebhookEventsQuery(service),
		GetEvent:   webhookquery.NewGetWebhookEventQuery(service),
	}

	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}

var _ CommandQueryService = (*Service)(nil)
