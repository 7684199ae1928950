// Package tool defines schema-described, permission-checked callable units and
// the registry the MCP server exports them from.
package tool

import (
	"context"
	"encoding/json"

	"github.com/google/jsonschema-go/jsonschema"
)

// Permission describes a capability a tool requires.
// Example: process:exec, net:outbound
type Permission struct {
	// Name is a stable, lower_snake identifier of the permission.
	Name string `json:"name"`
	// Description explains what the permission allows.
	Description string `json:"description,omitempty"`
}

// Descriptor declares the static interface of a tool.
// InputSchema and OutputSchema are JSON Schemas (draft 2020-12).
type Descriptor struct {
	Name         string             `json:"name"`
	Title        string             `json:"title,omitempty"`
	Description  string             `json:"description,omitempty"`
	InputSchema  *jsonschema.Schema `json:"input_schema"`
	OutputSchema *jsonschema.Schema `json:"output_schema,omitempty"`
	Permissions  []Permission       `json:"permissions,omitempty"`
}

// Tool is a callable unit with schema-validated inputs and outputs.
type Tool interface {
	// Describe returns the public descriptor (schemas, permissions).
	Describe() Descriptor
	// Invoke executes the tool with validated args. The args MUST conform to
	// InputSchema and the returned value MUST conform to OutputSchema.
	Invoke(ctx context.Context, args json.RawMessage) (any, error)
}

// Describe is a nil-safe helper returning t's descriptor.
func Describe(t Tool) Descriptor {
	if t == nil {
		return Descriptor{}
	}
	return t.Describe()
}
