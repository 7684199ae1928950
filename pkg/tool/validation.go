package tool

import (
	"bytes"
	"encoding/json"

	"github.com/google/jsonschema-go/jsonschema"
	santhosh "github.com/santhosh-tekuri/jsonschema/v6"
)

const schemaURL = "mem://schema.json"

// ValidateFunc validates data against a JSON schema and returns an error on failure.
type ValidateFunc func(schema *jsonschema.Schema, data any) error

// JSONSchemaValidator is a ValidateFunc using santhosh-tekuri/jsonschema.
// data may be raw JSON (json.RawMessage or []byte) or any marshalable value.
func JSONSchemaValidator(schema *jsonschema.Schema, data any) error {
	if schema == nil {
		return nil
	}
	sch, err := compile(schema)
	if err != nil {
		return err
	}
	var raw []byte
	switch v := data.(type) {
	case json.RawMessage:
		raw = v
	case []byte:
		raw = v
	default:
		if raw, err = json.Marshal(data); err != nil {
			return err
		}
	}
	inst, err := santhosh.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return err
	}
	return sch.Validate(inst)
}

// CompileSchema compiles schema and returns an error only if the schema itself is invalid.
func CompileSchema(schema *jsonschema.Schema) error {
	if schema == nil {
		return nil
	}
	_, err := compile(schema)
	return err
}

func compile(schema *jsonschema.Schema) (*santhosh.Schema, error) {
	b, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	doc, err := santhosh.UnmarshalJSON(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	c := santhosh.NewCompiler()
	if err := c.AddResource(schemaURL, doc); err != nil {
		return nil, err
	}
	return c.Compile(schemaURL)
}
