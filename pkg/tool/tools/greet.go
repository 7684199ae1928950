package tools

import (
	"context"
	"encoding/json"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/wilhg/iamlens/pkg/errmodel"
	"github.com/wilhg/iamlens/pkg/tool"
)

const GreetName = "greet"

// Greeting is the output of GreetTool.
type Greeting struct {
	Greeting string `json:"greeting"`
}

// GreetTool answers with a fixed greeting. Useful to check a client is wired up.
type GreetTool struct{}

func (GreetTool) Describe() tool.Descriptor {
	return tool.Descriptor{
		Name:        GreetName,
		Description: "Greets the caller by name.",
		InputSchema: &jsonschema.Schema{
			Type:                 "object",
			Properties:           map[string]*jsonschema.Schema{"name": str("who to greet")},
			Required:             []string{"name"},
			AdditionalProperties: closed(),
		},
		OutputSchema: &jsonschema.Schema{
			Type:       "object",
			Properties: map[string]*jsonschema.Schema{"greeting": {Type: "string"}},
			Required:   []string{"greeting"},
		},
	}
}

func (GreetTool) Invoke(_ context.Context, args json.RawMessage) (any, error) {
	var in struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, errmodel.Validation("invalid_input", err.Error(), map[string]any{"tool": GreetName})
	}
	return Greeting{Greeting: Greet(in.Name)}, nil
}

// Greet returns "Hello, <name>!".
func Greet(name string) string { return "Hello, " + name + "!" }
