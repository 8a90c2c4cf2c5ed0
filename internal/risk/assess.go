package risk

import "github.com/jmerrifield20/extperm/internal/inventory"

// PermissionFinding describes how one declared permission contributed to a score.
type PermissionFinding struct {
	Permission string      `json:"permission"`
	Weight     int         `json:"weight"`
	Known      bool        `json:"known"`
	Annotation *Annotation `json:"annotation,omitempty"`
}

// HostFinding records the scope class a host pattern fell into.
type HostFinding struct {
	Pattern    string  `json:"pattern"`
	Class      string  `json:"class"`
	Multiplier float64 `json:"multiplier"`
}

// Assessment is the full result of evaluating one extension.
type Assessment struct {
	RawScore    int                 `json:"raw_score"`
	Multiplier  float64             `json:"multiplier"`
	Score       int                 `json:"score"`
	Tier        Tier                `json:"tier"`
	Permissions []PermissionFinding `json:"permissions"`
	Hosts       []HostFinding       `json:"hosts"`

	// Flagged counts permissions that carry an annotation.
	Flagged int `json:"flagged"`
}

// Evaluate scores a record and explains every permission and host pattern
// that went into the score.
func (t *Table) Evaluate(rec inventory.Record) Assessment {
	a := Assessment{
		Permissions: make([]PermissionFinding, 0, len(rec.Permissions)),
		Hosts:       make([]HostFinding, 0, len(rec.HostPermissions)),
	}

	for _, p := range rec.Permissions {
		w, known := t.Weight(p)
		f := PermissionFinding{Permission: p, Weight: w, Known: known}
		if ann, ok := t.AnnotationFor(p); ok {
			f.Annotation = &ann
			a.Flagged++
		}
		a.RawScore += w
		a.Permissions = append(a.Permissions, f)
	}

	for _, h := range rec.HostPermissions {
		class, w := classifyHost(h)
		if h == AllURLs {
			class, w = "all_urls", ScopeAllURLs
		}
		a.Hosts = append(a.Hosts, HostFinding{Pattern: h, Class: class, Multiplier: w})
	}

	a.Multiplier = HostScopeMultiplier(rec.HostPermissions)
	a.Score = scale(a.RawScore, a.Multiplier)
	a.Tier = TierFor(a.Score)
	return a
}

// Evaluate scores a record with the default table.
func Evaluate(rec inventory.Record) Assessment {
	return defaultTable.Evaluate(rec)
}
