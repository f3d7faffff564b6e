package ratelimit

import (
	"testing"
	"time"
)

// fakeClock lets tests move time by hand.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

func testClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)}
}

func TestCanAdmitRequest_WindowFills(t *testing.T) {
	clock := testClock()
	s := NewStore(clock)
	limits := Limits{RequestsPerMinute: 3, TokensPerMinute: 100000, RequestsPerDay: 1000}

	for i := 0; i < 3; i++ {
		if !s.CanAdmitRequest("gpt-4o-mini", limits) {
			t.Fatalf("request %d should be admissible", i+1)
		}
		s.RecordRequest("gpt-4o-mini")
		clock.advance(time.Second)
	}

	if s.CanAdmitRequest("gpt-4o-mini", limits) {
		t.Fatal("4th request within the window should be denied")
	}

	// Oldest entry was recorded 3s in; once it ages past 60s we admit again.
	clock.advance(58 * time.Second)
	if !s.CanAdmitRequest("gpt-4o-mini", limits) {
		t.Fatal("request should be admissible after the oldest entry aged out")
	}
}

func TestCanAdmitTokens_SumsWindow(t *testing.T) {
	clock := testClock()
	s := NewStore(clock)
	limits := Limits{RequestsPerMinute: 100, TokensPerMinute: 1000, RequestsPerDay: 1000}

	s.RecordTokens("gpt-4o", 600)
	if !s.CanAdmitTokens("gpt-4o", 400, limits) {
		t.Fatal("600+400 should fit exactly in a 1000 token budget")
	}
	if s.CanAdmitTokens("gpt-4o", 401, limits) {
		t.Fatal("600+401 should exceed a 1000 token budget")
	}

	clock.advance(61 * time.Second)
	if !s.CanAdmitTokens("gpt-4o", 1000, limits) {
		t.Fatal("token entries past 60s must be pruned before the decision")
	}
}

func TestWithinDailyBudget_ResetsAtUTCMidnight(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 6, 15, 23, 59, 59, 0, time.UTC)}
	s := NewStore(clock)
	limits := Limits{RequestsPerMinute: 100, TokensPerMinute: 100000, RequestsPerDay: 2}

	s.RecordRequest("gpt-4o")
	s.RecordRequest("gpt-4o")
	if s.WithinDailyBudget("gpt-4o", limits) {
		t.Fatal("daily budget of 2 should be spent at 23:59:59")
	}

	clock.advance(2 * time.Second) // 00:00:01 next day
	if !s.WithinDailyBudget("gpt-4o", limits) {
		t.Fatal("daily counter must reset once the UTC day boundary passes")
	}

	// Only one reset per boundary: spend again, still same day.
	s.RecordRequest("gpt-4o")
	s.RecordRequest("gpt-4o")
	clock.advance(time.Hour)
	if s.WithinDailyBudget("gpt-4o", limits) {
		t.Fatal("no second reset within the same UTC day")
	}
}

func TestSecondsUntilRetry_Bounds(t *testing.T) {
	clock := testClock()
	s := NewStore(clock)

	// No entries at all: no wait, clamped up to 1.
	if got := s.SecondsUntilRetry("empty-model"); got != 1 {
		t.Fatalf("empty window retry = %d, want 1", got)
	}

	s.RecordRequest("gpt-4o")
	if got := s.SecondsUntilRetry("gpt-4o"); got != 60 {
		t.Fatalf("fresh entry retry = %d, want 60", got)
	}

	clock.advance(59*time.Second + 500*time.Millisecond)
	if got := s.SecondsUntilRetry("gpt-4o"); got != 1 {
		t.Fatalf("almost-aged entry retry = %d, want 1", got)
	}

	// Token entry younger than the request entry does not extend the wait.
	s.RecordTokens("gpt-4o", 100)
	got := s.SecondsUntilRetry("gpt-4o")
	if got < 1 || got > 60 {
		t.Fatalf("retry %d out of [1, 60]", got)
	}
}

func TestSweep_EvictsStaleWindows(t *testing.T) {
	clock := testClock()
	s := NewStore(clock)

	s.RecordRequest("old-model")
	clock.advance(2 * time.Hour)
	s.RecordRequest("fresh-model")

	s.Sweep()

	s.mu.Lock()
	_, oldAlive := s.windows["old-model"]
	_, freshAlive := s.windows["fresh-model"]
	s.mu.Unlock()

	if oldAlive {
		t.Fatal("window with only hour-old entries should be evicted")
	}
	if !freshAlive {
		t.Fatal("window with recent entries must survive the sweep")
	}
}
