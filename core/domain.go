package core

import (
	"fmt"
	"strings"
	"time"
)

// WebhookEvent is the ledger's unit of record: one inbound delivery and its
// processing state. Payload, Source, EventType and CreatedAt are immutable
// after ingestion; only the processing fields mutate.
type WebhookEvent struct {
	ID            string
	Source        string
	EventType     string
	Payload       []byte
	Status        Status
	RetryCount    int
	LastError     string
	ProcessedAt   *time.Time
	NextAttemptAt *time.Time
	Version       int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Clone returns a deep copy so callers cannot mutate ledger-owned state.
func (e WebhookEvent) Clone() WebhookEvent {
	out := e
	out.Payload = append([]byte(nil), e.Payload...)
	if e.ProcessedAt != nil {
		value := *e.ProcessedAt
		out.ProcessedAt = &value
	}
	if e.NextAttemptAt != nil {
		value := *e.NextAttemptAt
		out.NextAttemptAt = &value
	}
	return out
}

type RecordWebhookInput struct {
	Source    string
	EventType string
	Payload   []byte
}

func (in RecordWebhookInput) Validate() error {
	if strings.TrimSpace(in.Source) == "" {
		return BadInputError("core: webhook source is required")
	}
	if strings.TrimSpace(in.EventType) == "" {
		return BadInputError("core: webhook event type is required")
	}
	return nil
}

// ProcessResult is the outcome of a single processor attempt.
type ProcessResult struct {
	EventID        string
	Success        bool
	AlreadyClaimed bool
	Error          string
}

// WebhookStats is the count-by-status aggregation over the ledger.
type WebhookStats struct {
	Total      int
	Pending    int
	Processing int
	Success    int
	Failed     int
}

func (s WebhookStats) String() string {
	return fmt.Sprintf(
		"total=%d pending=%d processing=%d success=%d failed=%d",
		s.Total, s.Pending, s.Processing, s.Success, s.Failed,
	)
}
