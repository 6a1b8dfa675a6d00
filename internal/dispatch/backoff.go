package dispatch

import "time"

// DefaultBackoffSchedule grows by a factor of 5 so a flapping endpoint gets
// meaningfully more breathing room on each retry: 1s, 5s, 25s.
var DefaultBackoffSchedule = []time.Duration{
	1 * time.Second,
	5 * time.Second,
	25 * time.Second,
}

// NextAttemptAt returns when the next attempt may run, given how many
// attempts have already been made (1-indexed). Past the end of the schedule
// the last delay applies.
func NextAttemptAt(now time.Time, attemptsMade int, schedule []time.Duration) time.Time {
	if len(schedule) == 0 {
		schedule = DefaultBackoffSchedule
	}
	idx := attemptsMade - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(schedule) {
		idx = len(schedule) - 1
	}
	return now.Add(schedule[idx])
}

func IsSuccess(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}

// IsRetryable reports whether a response status code warrants a retry.
// Server errors are retryable; client errors are terminal because retrying
// them cannot succeed without a payload or configuration change.
func IsRetryable(statusCode int) bool {
	return statusCode >= 500
}
