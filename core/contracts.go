package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

// Ledger is durable, queryable storage for webhook events. Every
// state-changing write is conditional on the (status, version) pair the
// caller observed; claimed=false means another worker already transitioned
// the event and the caller lost the race. Conditional misses are not errors.
type Ledger interface {
	Record(ctx context.Context, in RecordWebhookInput) (WebhookEvent, error)
	Get(ctx context.Context, id string) (WebhookEvent, error)

	ClaimProcessing(ctx context.Context, id string, version int64) (WebhookEvent, bool, error)
	MarkSucceeded(ctx context.Context, id string, version int64, processedAt time.Time) (WebhookEvent, bool, error)
	MarkRetry(ctx context.Context, id string, version int64, lastError string, nextAttemptAt time.Time) (WebhookEvent, bool, error)
	MarkDead(ctx context.Context, id string, version int64, lastError string) (WebhookEvent, bool, error)

	ResetForRetry(ctx context.Context, id string) (WebhookEvent, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]WebhookEvent, error)

	ListByStatus(ctx context.Context, status Status, limit int) ([]WebhookEvent, error)
	Stats(ctx context.Context) (WebhookStats, error)
}

// Handler performs the caller-supplied side effect for one event. The
// payload reaches the handler verbatim; deserialization is the handler's
// concern. Handlers must tolerate being invoked more than once for the
// same event.
type Handler interface {
	Handle(ctx context.Context, event WebhookEvent) error
}

type HandlerFunc func(ctx context.Context, event WebhookEvent) error

func (f HandlerFunc) Handle(ctx context.Context, event WebhookEvent) error {
	return f(ctx, event)
}

// Clock abstracts time so schedulers and tests can run deterministically.
type Clock interface {
	Now() time.Time
}

// SystemClock returns the system time in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger
