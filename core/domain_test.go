package core

import (
	"testing"
	"time"
)

func TestRecordWebhookInputValidate(t *testing.T) {
	valid := RecordWebhookInput{Source: "github", EventType: "push"}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid input, got %v", err)
	}

	if err := (RecordWebhookInput{EventType: "push"}).Validate(); err == nil {
		t.Fatalf("expected missing source to fail")
	}
	if err := (RecordWebhookInput{Source: "github"}).Validate(); err == nil {
		t.Fatalf("expected missing event type to fail")
	}
	if err := (RecordWebhookInput{Source: "  ", EventType: "push"}).Validate(); err == nil {
		t.Fatalf("expected blank source to fail")
	}
}

func TestWebhookEventCloneIsDeep(t *testing.T) {
	processedAt := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	original := WebhookEvent{
		ID:          "evt_1",
		Payload:     []byte(`{"a":1}`),
		ProcessedAt: &processedAt,
	}

	clone := original.Clone()
	clone.Payload[0] = 'x'
	*clone.ProcessedAt = clone.ProcessedAt.Add(time.Hour)

	if original.Payload[0] != '{' {
		t.Fatalf("expected payload copy, original mutated")
	}
	if !original.ProcessedAt.Equal(processedAt) {
		t.Fatalf("expected processed_at copy, original mutated")
	}
}

func TestWebhookStatsString(t *testing.T) {
	stats := WebhookStats{Total: 10, Pending: 5, Processing: 0, Success: 2, Failed: 3}
	want := "total=10 pending=5 processing=0 success=2 failed=3"
	if got := stats.String(); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}
