package webhookevents

import "github.com/goliatone/go-webhook-events/core"

type Config = core.Config

type SweepConfig = core.SweepConfig

type WebhookEvent = core.WebhookEvent

type RecordWebhookInput = core.RecordWebhookInput

type ProcessResult = core.ProcessResult

type WebhookStats = core.WebhookStats

type Status = core.Status

type Handler = core.Handler

type HandlerFunc = core.HandlerFunc

type Ledger = core.Ledger

const (
	StatusPending    = core.StatusPending
	StatusProcessing = core.StatusProcessing
	StatusSuccess    = core.StatusSuccess
	StatusFailed     = core.StatusFailed
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}
