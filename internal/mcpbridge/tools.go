package mcpbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// ToolDefinition is the MCP tool descriptor sent in tools/list responses.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

func ok(text string) (string, bool)   { return text, false }
func fail(text string) (string, bool) { return text, true }
func failf(format string, a ...any) (string, bool) {
	return fmt.Sprintf(format, a...), true
}

// Backend answers audit questions for the tools. Results are rendered as
// indented JSON, so any JSON-encodable value may be returned.
type Backend interface {
	Report(ctx context.Context, minTier string) (any, error)
	Evaluate(ctx context.Context, name string, permissions, hostPermissions []string) (any, error)
	Explain(ctx context.Context, permission string) (any, error)
}

// ToolRegistry holds the backend and the definitions/handlers for all tools.
type ToolRegistry struct {
	b    Backend
	defs []ToolDefinition
}

var tierEnum = []string{"Low", "Medium", "High", "Critical"}

// NewToolRegistry creates a ToolRegistry backed by b.
func NewToolRegistry(b Backend) *ToolRegistry {
	r := &ToolRegistry{b: b}
	r.defs = []ToolDefinition{
		{
			Name: "audit_extensions",
			Description: "Audit every browser extension installed on the monitored machine. " +
				"Returns each extension's permissions, host access, risk score (0 and up) and tier, " +
				"highest risk first, plus a per-tier summary.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"min_tier": map[string]any{
						"type":        "string",
						"description": "Only include extensions at or above this tier. Leave empty for all.",
						"enum":        tierEnum,
					},
				},
			},
		},
		{
			Name: "evaluate_extension",
			Description: "Score an extension from its manifest permissions without installing it. " +
				"Use this to judge an extension before recommending it.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"name": map[string]any{
						"type":        "string",
						"description": "Display name of the extension",
					},
					"permissions": map[string]any{
						"type":        "array",
						"items":       map[string]any{"type": "string"},
						"description": "API permissions, e.g. [\"tabs\", \"scripting\"]",
					},
					"host_permissions": map[string]any{
						"type":        "array",
						"items":       map[string]any{"type": "string"},
						"description": "Host match patterns, e.g. [\"<all_urls>\"] or [\"https://*.example.com/*\"]",
					},
				},
				"required": []string{"name"},
			},
		},
		{
			Name: "explain_permission",
			Description: "Explain how much a single extension permission contributes to the risk score " +
				"and, for especially sensitive permissions, why it is dangerous.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"permission": map[string]any{
						"type":        "string",
						"description": "The permission identifier, e.g. webRequest",
					},
				},
				"required": []string{"permission"},
			},
		},
	}
	return r
}

// Definitions returns the list of tool definitions for tools/list responses.
func (r *ToolRegistry) Definitions() []ToolDefinition {
	return r.defs
}

// Call dispatches a tool call by name and returns (output text, isError).
func (r *ToolRegistry) Call(ctx context.Context, name string, args json.RawMessage) (string, bool) {
	switch name {
	case "audit_extensions":
		return r.auditExtensions(ctx, args)
	case "evaluate_extension":
		return r.evaluateExtension(ctx, args)
	case "explain_permission":
		return r.explainPermission(ctx, args)
	default:
		return failf("unknown tool: %q", name)
	}
}

// ── tool handlers ────────────────────────────────────────────────────────────

func (r *ToolRegistry) auditExtensions(ctx context.Context, args json.RawMessage) (string, bool) {
	var in struct {
		MinTier string `json:"min_tier"`
	}
	if len(args) > 0 {
		if err := json.Unmarshal(args, &in); err != nil {
			return fail("invalid arguments")
		}
	}

	report, err := r.b.Report(ctx, in.MinTier)
	if err != nil {
		return failf("audit failed: %v", err)
	}

	out, _ := json.MarshalIndent(report, "", "  ")
	return ok(string(out))
}

func (r *ToolRegistry) evaluateExtension(ctx context.Context, args json.RawMessage) (string, bool) {
	var in struct {
		Name            string   `json:"name"`
		Permissions     []string `json:"permissions"`
		HostPermissions []string `json:"host_permissions"`
	}
	if err := json.Unmarshal(args, &in); err != nil || strings.TrimSpace(in.Name) == "" {
		return fail("name is required")
	}

	result, err := r.b.Evaluate(ctx, in.Name, in.Permissions, in.HostPermissions)
	if err != nil {
		return failf("evaluate failed: %v", err)
	}

	out, _ := json.MarshalIndent(result, "", "  ")
	return ok(string(out))
}

func (r *ToolRegistry) explainPermission(ctx context.Context, args json.RawMessage) (string, bool) {
	var in struct {
		Permission string `json:"permission"`
	}
	if err := json.Unmarshal(args, &in); err != nil || in.Permission == "" {
		return fail("permission is required")
	}

	e, err := r.b.Explain(ctx, in.Permission)
	if err != nil {
		return failf("explain failed: %v", err)
	}

	out, _ := json.MarshalIndent(e, "", "  ")
	return ok(string(out))
}
