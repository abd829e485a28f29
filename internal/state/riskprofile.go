package state

import "time"

// Warning is one timestamped guardrail hit recorded on a risk profile.
type Warning struct {
	At   time.Time
	Kind string
}

// RiskProfile aggregates a session's (or user's) safety-relevant signals,
// consumed only by the Tier 3 (Advanced) guardrail. Keyed by hashed
// user_id at the store boundary, never by raw PII.
type RiskProfile struct {
	Key              string
	ViolationCount   int
	BlockedCount     int
	RecentWarnings   []Warning
	SuspiciousCount  int
	RiskScore        float64
}

// PruneWarnings drops entries older than window, keeping RecentWarnings a
// sliding window rather than an unbounded log (spec.md §5).
func (p *RiskProfile) PruneWarnings(window time.Duration, now time.Time) {
	cutoff := now.Add(-window)
	kept := p.RecentWarnings[:0:0]
	for _, w := range p.RecentWarnings {
		if w.At.After(cutoff) {
			kept = append(kept, w)
		}
	}
	p.RecentWarnings = kept
}
