package score

import "time"

// BreakingLimiter caps breaking alerts over a sliding one hour window.
// Candidates rejected here are deferred into a mini-digest instead of
// being dropped.
type BreakingLimiter struct {
	maxPerHour int
	sent       []time.Time
}

func NewBreakingLimiter(maxPerHour int) *BreakingLimiter {
	return &BreakingLimiter{maxPerHour: maxPerHour}
}

// Allow reports whether another alert fits the window and records it when
// it does.
func (l *BreakingLimiter) Allow(now time.Time) bool {
	l.prune(now)
	if l.maxPerHour > 0 && len(l.sent) >= l.maxPerHour {
		return false
	}
	l.sent = append(l.sent, now)
	return true
}

// Count returns how many alerts are inside the current window.
func (l *BreakingLimiter) Count(now time.Time) int {
	l.prune(now)
	return len(l.sent)
}

func (l *BreakingLimiter) prune(now time.Time) {
	cutoff := now.Add(-time.Hour)
	kept := l.sent[:0]
	for _, t := range l.sent {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	l.sent = kept
}
