package dispatch

import (
	"testing"
	"time"
)

func TestNextAttemptAtSchedule(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		attemptsMade int
		want         time.Duration
	}{
		{1, 1 * time.Second},
		{2, 5 * time.Second},
		{3, 25 * time.Second},
		{4, 25 * time.Second}, // past the schedule: last delay applies
	}

	for _, tt := range tests {
		got := NextAttemptAt(now, tt.attemptsMade, DefaultBackoffSchedule)
		if got.Sub(now) != tt.want {
			t.Errorf("delay after %d attempts = %v, want %v", tt.attemptsMade, got.Sub(now), tt.want)
		}
	}
}

func TestNextAttemptAtGrowthFactor(t *testing.T) {
	// The schedule grows by a factor of 5, not the conventional 2.
	for i := 1; i < len(DefaultBackoffSchedule); i++ {
		if DefaultBackoffSchedule[i] != 5*DefaultBackoffSchedule[i-1] {
			t.Errorf("schedule[%d] = %v, want 5x schedule[%d] (%v)",
				i, DefaultBackoffSchedule[i], i-1, 5*DefaultBackoffSchedule[i-1])
		}
	}
}

func TestNextAttemptAtEmptySchedule(t *testing.T) {
	now := time.Now().UTC()
	got := NextAttemptAt(now, 1, nil)
	if got.Sub(now) != DefaultBackoffSchedule[0] {
		t.Errorf("empty schedule should fall back to default, got delay %v", got.Sub(now))
	}
}

func TestIsSuccess(t *testing.T) {
	for _, code := range []int{200, 201, 204, 299} {
		if !IsSuccess(code) {
			t.Errorf("IsSuccess(%d) = false, want true", code)
		}
	}
	for _, code := range []int{199, 300, 400, 404, 500, 503} {
		if IsSuccess(code) {
			t.Errorf("IsSuccess(%d) = true, want false", code)
		}
	}
}

func TestIsRetryable(t *testing.T) {
	for _, code := range []int{500, 502, 503, 599} {
		if !IsRetryable(code) {
			t.Errorf("IsRetryable(%d) = false, want true", code)
		}
	}
	for _, code := range []int{400, 404, 410, 422, 429} {
		if IsRetryable(code) {
			t.Errorf("IsRetryable(%d) = true, want false", code)
		}
	}
}
