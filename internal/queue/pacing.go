package queue

import "time"

// DefaultPacingInterval spaces jointly queued pages apart in time.
const DefaultPacingInterval = 3 * time.Minute

// PaceSchedule returns the offset from now at which the entry at index runs.
// Negative indexes are treated as zero.
func PaceSchedule(index int, interval time.Duration) time.Duration {
	if index < 0 {
		index = 0
	}
	return time.Duration(index) * interval
}
