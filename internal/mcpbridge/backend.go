package mcpbridge

import (
	"context"
	"errors"

	"github.com/jmerrifield20/extperm/internal/audit"
	"github.com/jmerrifield20/extperm/internal/inventory"
	"github.com/jmerrifield20/extperm/internal/risk"
	"github.com/jmerrifield20/extperm/pkg/client"
)

// ServiceBackend answers tool calls with an in-process audit service.
type ServiceBackend struct {
	svc *audit.Service
}

// NewServiceBackend creates a ServiceBackend.
func NewServiceBackend(svc *audit.Service) *ServiceBackend {
	return &ServiceBackend{svc: svc}
}

// Report runs an audit and filters it to minTier.
func (b *ServiceBackend) Report(ctx context.Context, minTier string) (any, error) {
	min := risk.TierLow
	if minTier != "" {
		t, err := risk.ParseTier(minTier)
		if err != nil {
			return nil, err
		}
		min = t
	}
	r := b.svc.Run(ctx)
	if r.Error != "" {
		return nil, errors.New(r.Error)
	}
	return r.Filter(min), nil
}

// Evaluate scores an ad-hoc extension.
func (b *ServiceBackend) Evaluate(_ context.Context, name string, permissions, hostPermissions []string) (any, error) {
	return b.svc.EvaluateRecord(inventory.Record{
		Name:            name,
		Permissions:     permissions,
		HostPermissions: hostPermissions,
	})
}

// Explain looks a permission up in the service's weight table.
func (b *ServiceBackend) Explain(_ context.Context, permission string) (any, error) {
	return b.svc.Explain(permission), nil
}

// ClientBackend answers tool calls through a remote audit API.
type ClientBackend struct {
	c *client.Client
}

// NewClientBackend creates a ClientBackend.
func NewClientBackend(c *client.Client) *ClientBackend {
	return &ClientBackend{c: c}
}

// Report fetches a report from the audit API.
func (b *ClientBackend) Report(ctx context.Context, minTier string) (any, error) {
	r, err := b.c.Report(ctx, minTier)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Evaluate scores an ad-hoc extension on the audit API.
func (b *ClientBackend) Evaluate(ctx context.Context, name string, permissions, hostPermissions []string) (any, error) {
	ext, err := b.c.Evaluate(ctx, client.EvaluateRequest{
		Name:            name,
		Permissions:     permissions,
		HostPermissions: hostPermissions,
	})
	if err != nil {
		return nil, err
	}
	return ext, nil
}

// Explain asks the audit API about one permission.
func (b *ClientBackend) Explain(ctx context.Context, permission string) (any, error) {
	e, err := b.c.Explain(ctx, permission)
	if err != nil {
		return nil, err
	}
	return e, nil
}
