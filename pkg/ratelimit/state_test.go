package ratelimit

import (
	"testing"
	"time"
)

func TestQuotaState_Remaining(t *testing.T) {
	tests := []struct {
		name     string
		used     int
		limit    int
		expected int
	}{
		{"fresh window", 0, 100, 100},
		{"partially used", 40, 100, 60},
		{"exactly exhausted", 100, 100, 0},
		{"over the limit", 130, 100, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &QuotaState{Used: tt.used, Limit: tt.limit}
			if got := s.Remaining(); got != tt.expected {
				t.Errorf("Remaining() = %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestQuotaState_NeedsCriticalBlock(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name     string
		state    QuotaState
		expected bool
	}{
		{
			name:     "plenty left",
			state:    QuotaState{Used: 10, Limit: 100},
			expected: false,
		},
		{
			name:     "exhausted",
			state:    QuotaState{Used: 100, Limit: 100},
			expected: true,
		},
		{
			name:     "retry-after active",
			state:    QuotaState{Used: 1, Limit: 100, BlockedUntil: now.Add(time.Minute)},
			expected: true,
		},
		{
			name:     "retry-after elapsed",
			state:    QuotaState{Used: 1, Limit: 100, BlockedUntil: now.Add(-time.Minute)},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.NeedsCriticalBlock(now); got != tt.expected {
				t.Errorf("NeedsCriticalBlock() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestQuotaState_NeedsThrottling(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name     string
		used     int
		expected bool
	}{
		{"healthy", 50, false},
		{"at warning boundary", 90, false},
		{"inside warning band", 95, true},
		{"exhausted is a block, not a throttle", 100, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &QuotaState{Used: tt.used, Limit: 100}
			if got := s.NeedsThrottling(now); got != tt.expected {
				t.Errorf("NeedsThrottling() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestQuotaState_TimeUntilReset(t *testing.T) {
	now := time.Date(2024, 5, 4, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		state    QuotaState
		expected time.Duration
	}{
		{
			name:     "window end",
			state:    QuotaState{Used: 100, Limit: 100, ResetAt: now.Add(time.Hour)},
			expected: time.Hour,
		},
		{
			name:     "retry-after with quota left",
			state:    QuotaState{Used: 1, Limit: 100, ResetAt: now.Add(time.Hour), BlockedUntil: now.Add(30 * time.Second)},
			expected: 30 * time.Second,
		},
		{
			name:     "retry-after beyond exhausted window",
			state:    QuotaState{Used: 100, Limit: 100, ResetAt: now.Add(time.Minute), BlockedUntil: now.Add(time.Hour)},
			expected: time.Hour,
		},
		{
			name:     "already passed",
			state:    QuotaState{ResetAt: now.Add(-time.Minute)},
			expected: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.TimeUntilReset(now); got != tt.expected {
				t.Errorf("TimeUntilReset() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestDefaultQuota(t *testing.T) {
	q := DefaultQuota()
	if q.Limit != 10000 {
		t.Errorf("Limit = %d, want 10000", q.Limit)
	}
	if q.Window != 24*time.Hour {
		t.Errorf("Window = %v, want 24h", q.Window)
	}
}
