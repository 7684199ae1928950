package iamlens

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/wilhg/iamlens/pkg/errmodel"
)

// UnknownError is the failure message used when iam-lens exits non-zero without stderr output.
const UnknownError = "unknown error"

// Outcome labels reported to observers for successful runs.
const OutcomeOK = "ok"

// Failure describes why a call produced no data.
// ExitCode is set only when iam-lens ran and exited non-zero.
type Failure struct {
	Message  string
	ExitCode *int
	Category string
	Code     string
}

// Result is either successful Data or a Failure, never both.
type Result struct {
	Data    any
	Failure *Failure
}

// Ok returns a successful Result.
func Ok(data any) Result { return Result{Data: data} }

// Fail returns a failed Result built from a compact error.
func Fail(err *errmodel.Error, exitCode *int) Result {
	return Result{Failure: &Failure{
		Message:  err.Message,
		ExitCode: exitCode,
		Category: err.Category,
		Code:     err.Code,
	}}
}

// OK reports whether r carries data.
func (r Result) OK() bool { return r.Failure == nil }

// Outcome returns a short label for logs and metrics.
func (r Result) Outcome() string {
	if r.Failure == nil {
		return OutcomeOK
	}
	return r.Failure.Code
}

// Normalize turns a Runner outcome into a Result.
//
// A run error becomes a failure without exit code; plain errors are worded
// with path, the executable that was run. A non-zero exit becomes a failure
// carrying stderr (or UnknownError) and the exit code. A clean exit is
// always success: stdout holding exactly one JSON document is decoded, anything
// else is returned as trimmed text.
func Normalize(path string, out Outcome, err error) Result {
	if err != nil {
		var ce *errmodel.Error
		if !errors.As(err, &ce) {
			ce = errmodel.Invocation("launch_failed", fmt.Sprintf("failed to execute %s: %v", path, err), map[string]any{"path": path}, err)
		}
		return Fail(ce, nil)
	}
	if out.ExitCode != 0 {
		msg := strings.TrimSpace(string(out.Stderr))
		if msg == "" {
			msg = UnknownError
		}
		code := out.ExitCode
		return Fail(errmodel.Tool("nonzero_exit", msg, map[string]any{"exit_code": code}), &code)
	}
	if v, ok := decodeJSON(out.Stdout); ok {
		return Ok(v)
	}
	return Ok(strings.TrimSpace(string(out.Stdout)))
}

// decodeJSON decodes b when it holds a single JSON value. Numbers are kept as
// json.Number so large integers and exact decimals survive re-encoding.
func decodeJSON(b []byte) (any, bool) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, false
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, false
	}
	return v, true
}
