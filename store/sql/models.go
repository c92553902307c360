package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type webhookEventRecord struct {
	bun.BaseModel `bun:"table:webhook_events,alias:we"`

	ID            string     `bun:"id,pk"`
	Source        string     `bun:"source,notnull"`
	EventType     string     `bun:"event_type,notnull"`
	Payload       []byte     `bun:"payload,notnull"`
	Status        string     `bun:"status,notnull"`
	RetryCount    int        `bun:"retry_count,notnull,default:0"`
	LastError     string     `bun:"last_error"`
	ProcessedAt   *time.Time `bun:"processed_at,nullzero"`
	NextAttemptAt *time.Time `bun:"next_attempt_at,nullzero"`
	Version       int64      `bun:"version,notnull,default:1"`
	CreatedAt     time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt     time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}
