// Package tools holds the concrete tools exported over MCP.
package tools

import (
	"context"
	"encoding/json"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/wilhg/iamlens/pkg/errmodel"
	"github.com/wilhg/iamlens/pkg/iamlens"
	"github.com/wilhg/iamlens/pkg/tool"
)

// Tool names as seen by MCP clients.
const (
	SimulateName = "simulate_iam_request"
	WhoCanName   = "who_can_access_resource"
)

// PermissionExec is required by tools that launch iam-lens.
var PermissionExec = tool.Permission{Name: "process:exec", Description: "launches the iam-lens executable"}

// IAMLens is the subset of *iamlens.Client the tools call.
type IAMLens interface {
	Simulate(ctx context.Context, req iamlens.SimulationRequest) iamlens.SimulationResponse
	WhoCanAccess(ctx context.Context, req iamlens.AccessQueryRequest) iamlens.AccessQueryResponse
}

func str(desc string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "string", Description: desc}
}

// optStr is an optional string input; null is accepted and means unset.
func optStr(desc string) *jsonschema.Schema {
	return &jsonschema.Schema{Types: []string{"string", "null"}, Description: desc}
}

func closed() *jsonschema.Schema {
	return &jsonschema.Schema{Not: &jsonschema.Schema{}}
}

// SimulateTool runs `iam-lens simulate`.
type SimulateTool struct{ Client IAMLens }

func (SimulateTool) Describe() tool.Descriptor {
	in := &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"principal":        str("ARN of the principal making the request"),
			"action":           str("IAM action, for example s3:GetObject"),
			"resource":         optStr("ARN of the target resource"),
			"resource_account": optStr("account id owning the resource"),
			"context_keys": {
				Types:                []string{"object", "null"},
				Description:          "condition context keys and their values, applied in order",
				AdditionalProperties: &jsonschema.Schema{Type: "string"},
			},
			"verbose": {Type: "boolean", Description: "ask iam-lens for a detailed explanation"},
		},
		Required:             []string{"principal", "action"},
		AdditionalProperties: closed(),
	}
	out := &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"principal": {Type: "string"},
			"action":    {Type: "string"},
			"resource":  {Types: []string{"string", "null"}},
			"result":    {},
			"error":     {Type: "string"},
			"exit_code": {Type: "integer"},
		},
		Required: []string{"principal", "action", "resource"},
	}
	return tool.Descriptor{
		Name:         SimulateName,
		Title:        "Simulate IAM request",
		Description:  "Simulates whether a principal may perform an action, optionally on a resource, using iam-lens.",
		InputSchema:  in,
		OutputSchema: out,
		Permissions:  []tool.Permission{PermissionExec},
	}
}

func (t SimulateTool) Invoke(ctx context.Context, args json.RawMessage) (any, error) {
	if t.Client == nil {
		return nil, errmodel.Config("no_client", "iam-lens client not configured", map[string]any{"tool": SimulateName})
	}
	var req iamlens.SimulationRequest
	if err := json.Unmarshal(args, &req); err != nil {
		return nil, errmodel.Validation("invalid_input", err.Error(), map[string]any{"tool": SimulateName})
	}
	return t.Client.Simulate(ctx, req), nil
}

// WhoCanTool runs `iam-lens who-can`.
type WhoCanTool struct{ Client IAMLens }

func (WhoCanTool) Describe() tool.Descriptor {
	in := &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"resource": str("ARN of the resource"),
			"actions": {
				Type:        "array",
				Description: "actions to check; empty lets iam-lens choose",
				Items:       &jsonschema.Schema{Type: "string"},
			},
			"resource_account": optStr("account id owning the resource"),
		},
		Required:             []string{"resource", "actions"},
		AdditionalProperties: closed(),
	}
	out := &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"resource":               {Type: "string"},
			"actions":                {Type: "array", Items: &jsonschema.Schema{Type: "string"}},
			"principals_with_access": {},
			"error":                  {Type: "string"},
			"exit_code":              {Type: "integer"},
		},
		Required: []string{"resource", "actions"},
	}
	return tool.Descriptor{
		Name:         WhoCanName,
		Title:        "Who can access resource",
		Description:  "Lists the principals that may perform the given actions on a resource, using iam-lens.",
		InputSchema:  in,
		OutputSchema: out,
		Permissions:  []tool.Permission{PermissionExec},
	}
}

func (t WhoCanTool) Invoke(ctx context.Context, args json.RawMessage) (any, error) {
	if t.Client == nil {
		return nil, errmodel.Config("no_client", "iam-lens client not configured", map[string]any{"tool": WhoCanName})
	}
	var req iamlens.AccessQueryRequest
	if err := json.Unmarshal(args, &req); err != nil {
		return nil, errmodel.Validation("invalid_input", err.Error(), map[string]any{"tool": WhoCanName})
	}
	return t.Client.WhoCanAccess(ctx, req), nil
}
