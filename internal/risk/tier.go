// Package risk scores browser extensions by the permissions they declare.
//
// A score is the sum of per-permission weights scaled by how broadly the
// extension's host patterns reach, rounded half-up to an integer:
//
//	score = round(sum(weight(p)) * HostScopeMultiplier(hosts))
//
// The score is then bucketed into a Tier:
//
//	0–29   → Low
//	30–49  → Medium
//	50–69  → High
//	70+    → Critical
//
// Every function in this package is pure and safe for concurrent use.
package risk

import (
	"fmt"
	"strings"
)

// Tier is a coarse classification of a risk score.
type Tier int

const (
	TierLow Tier = iota
	TierMedium
	TierHigh
	TierCritical
)

// Lower bounds of each tier above Low. Inclusive.
const (
	MediumThreshold   = 30
	HighThreshold     = 50
	CriticalThreshold = 70
)

// TierFor maps a score to its tier. It is total over all integers.
func TierFor(score int) Tier {
	switch {
	case score >= CriticalThreshold:
		return TierCritical
	case score >= HighThreshold:
		return TierHigh
	case score >= MediumThreshold:
		return TierMedium
	default:
		return TierLow
	}
}

// String returns the display label for the tier.
func (t Tier) String() string {
	switch t {
	case TierLow:
		return "Low"
	case TierMedium:
		return "Medium"
	case TierHigh:
		return "High"
	case TierCritical:
		return "Critical"
	default:
		return fmt.Sprintf("Tier(%d)", int(t))
	}
}

// ParseTier parses a tier label case-insensitively.
func ParseTier(s string) (Tier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return TierLow, nil
	case "medium":
		return TierMedium, nil
	case "high":
		return TierHigh, nil
	case "critical":
		return TierCritical, nil
	default:
		return TierLow, fmt.Errorf("unknown risk tier %q", s)
	}
}

// MarshalText encodes the tier as its label so JSON shows "High", not 2.
func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText accepts any label ParseTier accepts.
func (t *Tier) UnmarshalText(b []byte) error {
	parsed, err := ParseTier(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Tiers lists every tier from lowest to highest.
func Tiers() []Tier {
	return []Tier{TierLow, TierMedium, TierHigh, TierCritical}
}
