package processor

import "time"

// BackoffSchedule is a fixed, non-jittered delay table indexed by attempt
// number (1-based). Attempts past the table end reuse the last entry.
type BackoffSchedule []time.Duration

func DefaultBackoffSchedule() BackoffSchedule {
	return BackoffSchedule{time.Second, 2 * time.Second, 4 * time.Second}
}

func (s BackoffSchedule) DelayFor(attempt int) time.Duration {
	table := s
	if len(table) == 0 {
		table = DefaultBackoffSchedule()
	}
	if attempt < 1 {
		attempt = 1
	}
	if attempt > len(table) {
		attempt = len(table)
	}
	return table[attempt-1]
}
