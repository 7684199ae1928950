package iamlens

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ContextKey is a single simulated request-time condition value.
type ContextKey struct {
	Key   string
	Value string
}

// ContextKeys is an ordered set of context key/value pairs.
// It decodes from and encodes to a JSON object, keeping the object's member order.
type ContextKeys []ContextKey

// UnmarshalJSON decodes a JSON object of string values preserving member order.
func (c *ContextKeys) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*c = nil
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("context_keys: expected object, got %v", tok)
	}
	out := ContextKeys{}
	// A repeated key keeps its first position and takes the last value.
	seen := map[string]int{}
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := kt.(string)
		var val string
		if err := dec.Decode(&val); err != nil {
			return fmt.Errorf("context_keys[%q]: %w", key, err)
		}
		if i, ok := seen[key]; ok {
			out[i].Value = val
			continue
		}
		seen[key] = len(out)
		out = append(out, ContextKey{Key: key, Value: val})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*c = out
	return nil
}

// MarshalJSON encodes the pairs as a JSON object in their stored order.
func (c ContextKeys) MarshalJSON() ([]byte, error) {
	if c == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, kv := range c {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(kv.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(kv.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// SimulationRequest asks whether Principal may perform Action, optionally on Resource.
type SimulationRequest struct {
	Principal       string      `json:"principal"`
	Action          string      `json:"action"`
	Resource        string      `json:"resource,omitempty"`
	ResourceAccount string      `json:"resource_account,omitempty"`
	ContextKeys     ContextKeys `json:"context_keys,omitempty"`
	Verbose         bool        `json:"verbose,omitempty"`
}

// AccessQueryRequest asks which principals may perform Actions on Resource.
type AccessQueryRequest struct {
	Resource        string   `json:"resource"`
	Actions         []string `json:"actions"`
	ResourceAccount string   `json:"resource_account,omitempty"`
}

// SimulationResponse echoes the request alongside either Result or Error.
// Resource is null when the request had none.
type SimulationResponse struct {
	Principal string  `json:"principal"`
	Action    string  `json:"action"`
	Resource  *string `json:"resource"`
	Result    any     `json:"result,omitempty"`
	Error     string  `json:"error,omitempty"`
	ExitCode  *int    `json:"exit_code,omitempty"`
}

// Failed reports whether the simulation produced an error instead of a result.
func (r SimulationResponse) Failed() bool { return r.Error != "" }

// AccessQueryResponse echoes the request alongside either PrincipalsWithAccess or Error.
type AccessQueryResponse struct {
	Resource             string   `json:"resource"`
	Actions              []string `json:"actions"`
	PrincipalsWithAccess any      `json:"principals_with_access,omitempty"`
	Error                string   `json:"error,omitempty"`
	ExitCode             *int     `json:"exit_code,omitempty"`
}

// Failed reports whether the lookup produced an error instead of a result.
func (r AccessQueryResponse) Failed() bool { return r.Error != "" }
