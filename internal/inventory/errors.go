package inventory

import "errors"

// ErrCapabilityUnavailable means the extension management capability is not
// present in this environment. It is not transient; retrying will not help.
var ErrCapabilityUnavailable = errors.New("extension management API is not available")

// CapabilityError carries the detail behind ErrCapabilityUnavailable.
type CapabilityError struct {
	Reason string
}

func (e *CapabilityError) Error() string {
	if e.Reason == "" || e.Reason == ErrCapabilityUnavailable.Error() {
		return ErrCapabilityUnavailable.Error()
	}
	return ErrCapabilityUnavailable.Error() + ": " + e.Reason
}

func (e *CapabilityError) Unwrap() error { return ErrCapabilityUnavailable }
