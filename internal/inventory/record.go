// Package inventory enumerates installed browser extensions and normalises
// them into Records for risk evaluation.
//
// The package never scores anything. A Source supplies raw records, and the
// Collector turns a single fetch into a Response that always has a usable,
// possibly empty, extension list.
package inventory

import "context"

// Icon is one entry of an extension's icon set.
type Icon struct {
	Size int    `json:"size"`
	URL  string `json:"url"`
}

// Record is the metadata of one installed extension.
// Field names follow the browser management API so the wire form is the same
// on both sides of the relay.
type Record struct {
	ID              string   `json:"id,omitempty"`
	Name            string   `json:"name"`
	Version         string   `json:"version,omitempty"`
	Permissions     []string `json:"permissions"`
	HostPermissions []string `json:"hostPermissions"`
	Icons           []Icon   `json:"icons"`
}

// Response is the result of a single inventory fetch.
// On failure Success is false, Error explains why, and Extensions is empty.
type Response struct {
	Success    bool     `json:"success"`
	Extensions []Record `json:"extensions"`
	Error      string   `json:"error,omitempty"`
}

// Source enumerates installed extensions.
type Source interface {
	ListInstalled(ctx context.Context) ([]Record, error)
}

// StaticSource returns a fixed list of records.
type StaticSource []Record

// ListInstalled implements Source.
func (s StaticSource) ListInstalled(_ context.Context) ([]Record, error) {
	out := make([]Record, len(s))
	copy(out, s)
	return out, nil
}

// UnavailableSource always reports that enumeration is not possible.
type UnavailableSource struct{ Reason string }

// ListInstalled implements Source.
func (s UnavailableSource) ListInstalled(_ context.Context) ([]Record, error) {
	return nil, &CapabilityError{Reason: s.Reason}
}
