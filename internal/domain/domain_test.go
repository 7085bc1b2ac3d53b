package domain

import (
	"testing"
	"time"

	"github.com/solpxlb/puffquest/internal/economy"
)

// ─── Streak Tests ───────────────────────────────────────────────────────────

func TestPlayer_TouchStreak(t *testing.T) {
	day := func(d int, hour int) time.Time {
		return time.Date(2025, 3, d, hour, 0, 0, 0, time.UTC)
	}

	tests := []struct {
		name   string
		visits []time.Time
		want   int
	}{
		{"first_visit", []time.Time{day(1, 9)}, 1},
		{"same_day_twice", []time.Time{day(1, 9), day(1, 23)}, 1},
		{"consecutive_days", []time.Time{day(1, 9), day(2, 1), day(3, 22)}, 3},
		{"gap_resets", []time.Time{day(1, 9), day(2, 9), day(5, 9)}, 1},
		{"late_event_ignored", []time.Time{day(1, 9), day(2, 9), day(1, 10)}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p Player
			for _, v := range tt.visits {
				p.TouchStreak(v)
			}
			if p.StreakDays != tt.want {
				t.Errorf("StreakDays = %d, want %d", p.StreakDays, tt.want)
			}
		})
	}
}

// ─── Passive Claim Tests ────────────────────────────────────────────────────

func TestPlayer_HoursSincePassiveClaim(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	var never Player
	if got := never.HoursSincePassiveClaim(now); got != economy.MaxPassiveHours {
		t.Errorf("never claimed = %f, want %d", got, economy.MaxPassiveHours)
	}

	last := now.Add(-90 * time.Minute)
	p := Player{LastPassiveAt: &last}
	if got := p.HoursSincePassiveClaim(now); got != 1.5 {
		t.Errorf("HoursSincePassiveClaim() = %f, want 1.5", got)
	}
}

// ─── Utility Tests ──────────────────────────────────────────────────────────

func TestHumanAmount(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{42, "42"},
		{0.125, "0.1250"},
		{1_500, "1.5K"},
		{45_000_000, "45.00M"},
	}
	for _, tt := range tests {
		if got := HumanAmount(tt.in); got != tt.want {
			t.Errorf("HumanAmount(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
