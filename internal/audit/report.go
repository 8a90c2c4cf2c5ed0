package audit

import (
	"time"

	"github.com/google/uuid"
	"github.com/jmerrifield20/extperm/internal/inventory"
	"github.com/jmerrifield20/extperm/internal/risk"
)

// ExtensionReport is one evaluated extension.
type ExtensionReport struct {
	ID              string           `json:"id,omitempty"`
	Name            string           `json:"name"`
	Version         string           `json:"version,omitempty"`
	HostPermissions []string         `json:"host_permissions"`
	Icons           []inventory.Icon `json:"icons"`
	risk.Assessment
}

// Summary counts extensions per tier.
type Summary struct {
	Total    int `json:"total"`
	Low      int `json:"low"`
	Medium   int `json:"medium"`
	High     int `json:"high"`
	Critical int `json:"critical"`
}

// Count returns the number of extensions in tier.
func (s Summary) Count(t risk.Tier) int {
	switch t {
	case risk.TierLow:
		return s.Low
	case risk.TierMedium:
		return s.Medium
	case risk.TierHigh:
		return s.High
	case risk.TierCritical:
		return s.Critical
	default:
		return 0
	}
}

func (s *Summary) add(t risk.Tier) {
	s.Total++
	switch t {
	case risk.TierLow:
		s.Low++
	case risk.TierMedium:
		s.Medium++
	case risk.TierHigh:
		s.High++
	case risk.TierCritical:
		s.Critical++
	}
}

// Report is the result of one audit run. When the inventory could not be
// fetched, Extensions is empty and Error explains why.
type Report struct {
	ID          uuid.UUID         `json:"id"`
	GeneratedAt time.Time         `json:"generated_at"`
	Extensions  []ExtensionReport `json:"extensions"`
	Summary     Summary           `json:"summary"`
	Error       string            `json:"error,omitempty"`
}

// Filter returns a copy of the report holding only extensions at or above min.
// The summary is recomputed over the kept extensions.
func (r *Report) Filter(min risk.Tier) *Report {
	out := &Report{
		ID:          r.ID,
		GeneratedAt: r.GeneratedAt,
		Extensions:  []ExtensionReport{},
		Error:       r.Error,
	}
	for _, e := range r.Extensions {
		if e.Tier >= min {
			out.Extensions = append(out.Extensions, e)
			out.Summary.add(e.Tier)
		}
	}
	return out
}

// Highest returns the highest tier present, or TierLow for an empty report.
func (r *Report) Highest() risk.Tier {
	highest := risk.TierLow
	for _, e := range r.Extensions {
		if e.Tier > highest {
			highest = e.Tier
		}
	}
	return highest
}
