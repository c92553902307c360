package core

import (
	"fmt"
	"strings"
)

// Status is the lifecycle state of a webhook event in the ledger.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusSuccess    Status = "success"
	StatusFailed     Status = "failed"
)

func (s Status) String() string {
	return string(s)
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusSuccess, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether the status admits no further processor-driven
// transitions. Failed events only leave via a manual retry reset.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

func ParseStatus(value string) (Status, error) {
	status := Status(strings.ToLower(strings.TrimSpace(value)))
	if !status.Valid() {
		return "", BadInputError(fmt.Sprintf("core: unknown webhook status %q", value))
	}
	return status, nil
}

func Statuses() []Status {
	return []Status{StatusPending, StatusProcessing, StatusSuccess, StatusFailed}
}
