package ratelimit

import "math"

// CanAdmitRequest prunes the request window and reports whether one more
// request fits under the per-minute limit.
func (s *Store) CanAdmitRequest(model string, l Limits) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	w := s.getOrCreate(model)
	w.prune(s.clock.Now())
	return len(w.requests) < l.RequestsPerMinute
}

// CanAdmitTokens prunes the token window and reports whether the estimated
// cost still fits under the per-minute token limit.
func (s *Store) CanAdmitTokens(model string, estimated int, l Limits) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	w := s.getOrCreate(model)
	w.prune(s.clock.Now())
	sum := 0
	for _, e := range w.tokens {
		sum += e.count
	}
	return sum+estimated <= l.TokensPerMinute
}

// WithinDailyBudget rolls the daily counter over the UTC midnight boundary
// if needed, then checks it against the per-day limit.
func (s *Store) WithinDailyBudget(model string, l Limits) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	w := s.getOrCreate(model)
	w.rollDaily(s.clock.Now())
	return w.daily < l.RequestsPerDay
}

// Admissible is the short-circuit AND of the three checks.
func (s *Store) Admissible(model string, estimatedTokens int, l Limits) bool {
	return s.CanAdmitRequest(model, l) &&
		s.CanAdmitTokens(model, estimatedTokens, l) &&
		s.WithinDailyBudget(model, l)
}

// SecondsUntilRetry says how long until the oldest window entry ages out.
// A window with no entries contributes no wait. Always in [1, 60].
func (s *Store) SecondsUntilRetry(model string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	w := s.getOrCreate(model)
	w.prune(now)

	wait := math.Inf(1)
	if len(w.requests) > 0 {
		wait = math.Min(wait, windowLen.Seconds()-now.Sub(w.requests[0]).Seconds())
	}
	if len(w.tokens) > 0 {
		wait = math.Min(wait, windowLen.Seconds()-now.Sub(w.tokens[0].at).Seconds())
	}
	if math.IsInf(wait, 1) {
		return 1
	}

	secs := int(math.Ceil(wait))
	if secs < 1 {
		secs = 1
	}
	if secs > 60 {
		secs = 60
	}
	return secs
}
