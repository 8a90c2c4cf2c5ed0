package inventory

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// Collector performs single-shot inventory fetches against a Source.
type Collector struct {
	src    Source
	logger *zap.Logger
}

// NewCollector creates a Collector.
func NewCollector(src Source, logger *zap.Logger) *Collector {
	return &Collector{src: src, logger: logger}
}

// Collect asks the source once for every installed extension. There are no
// retries. The returned Response is never nil: on failure it has Success=false,
// an explanatory Error and no extensions, and the error is returned as well.
func (c *Collector) Collect(ctx context.Context) (*Response, error) {
	records, err := c.src.ListInstalled(ctx)
	if err != nil {
		msg := err.Error()
		if errors.Is(err, ErrCapabilityUnavailable) {
			msg = ErrCapabilityUnavailable.Error()
			c.logger.Warn("inventory: capability unavailable", zap.Error(err))
		} else {
			c.logger.Error("inventory: fetch failed", zap.Error(err))
		}
		return &Response{Success: false, Extensions: []Record{}, Error: msg}, err
	}

	out := make([]Record, 0, len(records))
	for _, r := range records {
		if r.Name == "" {
			c.logger.Debug("inventory: skipping record without a name", zap.String("id", r.ID))
			continue
		}
		out = append(out, normalize(r))
	}

	c.logger.Debug("inventory: collected", zap.Int("extensions", len(out)))
	return &Response{Success: true, Extensions: out}, nil
}

// normalize replaces nil slices with empty ones so the wire form is stable.
func normalize(r Record) Record {
	if r.Permissions == nil {
		r.Permissions = []string{}
	}
	if r.HostPermissions == nil {
		r.HostPermissions = []string{}
	}
	if r.Icons == nil {
		r.Icons = []Icon{}
	}
	return r
}
