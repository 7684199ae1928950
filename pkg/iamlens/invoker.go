package iamlens

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wilhg/iamlens/pkg/errmodel"
)

var tracer = otel.Tracer("iamlens")

// Defaults applied by New when the caller does not supply its own Runner.
const (
	DefaultTimeout        = 5 * time.Minute
	DefaultMaxOutputBytes = 16 << 20
	defaultWaitDelay      = 5 * time.Second
)

// Outcome is the raw result of one completed process run.
type Outcome struct {
	ExitCode  int
	Stdout    []byte
	Stderr    []byte
	Duration  time.Duration
	Truncated bool
}

// Runner launches an external program and waits for it to finish.
// A non-zero exit is reported through Outcome.ExitCode with a nil error;
// the error is reserved for runs that could not be started or were cut short.
type Runner interface {
	Run(ctx context.Context, path string, args []string) (Outcome, error)
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, path string, args []string) (Outcome, error)

func (f RunnerFunc) Run(ctx context.Context, path string, args []string) (Outcome, error) {
	return f(ctx, path, args)
}

// ExecRunner runs programs with os/exec. Arguments are passed as a vector,
// never through a shell. The zero value has no timeout and no output cap.
type ExecRunner struct {
	// Timeout bounds a single run. Zero means no limit beyond ctx.
	Timeout time.Duration
	// MaxOutputBytes caps each of stdout and stderr. Zero means unlimited.
	MaxOutputBytes int64
	// WaitDelay bounds how long to wait for output pipes after the process
	// is killed. Zero uses a small default.
	WaitDelay time.Duration
	// Env is the child environment; nil inherits the current process environment.
	Env []string
}

// Run executes path with args and collects its complete output.
func (r ExecRunner) Run(ctx context.Context, path string, args []string) (Outcome, error) {
	ctx, span := tracer.Start(ctx, "iamlens.Run", trace.WithAttributes(
		attribute.String("process.executable.path", path),
		attribute.Int("process.args.count", len(args)),
	))
	defer span.End()

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	stdout := &cappedBuffer{max: r.MaxOutputBytes}
	stderr := &cappedBuffer{max: r.MaxOutputBytes}
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.Env = r.Env
	cmd.WaitDelay = r.WaitDelay
	if cmd.WaitDelay <= 0 {
		cmd.WaitDelay = defaultWaitDelay
	}

	start := time.Now()
	err := cmd.Run()
	out := Outcome{
		Stdout:    stdout.Bytes(),
		Stderr:    stderr.Bytes(),
		Duration:  time.Since(start),
		Truncated: stdout.truncated || stderr.truncated,
	}
	if cmd.ProcessState != nil {
		out.ExitCode = cmd.ProcessState.ExitCode()
	}
	span.SetAttributes(attribute.Int("process.exit.code", out.ExitCode))

	if err == nil {
		return out, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		ierr := interrupted(path, r.Timeout, ctxErr)
		span.RecordError(ierr)
		span.SetStatus(codes.Error, ierr.Code)
		return out, ierr
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		out.ExitCode = exitErr.ExitCode()
		span.SetAttributes(attribute.Int("process.exit.code", out.ExitCode))
		return out, nil
	}
	if errors.Is(err, exec.ErrWaitDelay) {
		// The process exited; only its inherited pipes outlived it.
		return out, nil
	}
	lerr := errmodel.Invocation("launch_failed",
		fmt.Sprintf("failed to execute %s: %v", path, err),
		map[string]any{"path": path}, err)
	span.RecordError(lerr)
	span.SetStatus(codes.Error, lerr.Code)
	return out, lerr
}

func interrupted(path string, timeout time.Duration, cause error) *errmodel.Error {
	if errors.Is(cause, context.DeadlineExceeded) {
		msg := fmt.Sprintf("%s did not finish before the deadline", path)
		if timeout > 0 {
			msg = fmt.Sprintf("%s timed out after %s", path, timeout)
		}
		return errmodel.Invocation("timeout", msg, map[string]any{"path": path}, cause)
	}
	return errmodel.Invocation("canceled", fmt.Sprintf("%s was canceled", path), map[string]any{"path": path}, cause)
}

// cappedBuffer keeps at most max bytes and silently drops the rest, so the
// child never sees a short write on its pipe.
type cappedBuffer struct {
	buf       []byte
	max       int64
	truncated bool
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	if b.max <= 0 {
		b.buf = append(b.buf, p...)
		return len(p), nil
	}
	room := b.max - int64(len(b.buf))
	if room <= 0 {
		b.truncated = true
		return len(p), nil
	}
	if int64(len(p)) > room {
		b.buf = append(b.buf, p[:room]...)
		b.truncated = true
		return len(p), nil
	}
	b.buf = append(b.buf, p...)
	return len(p), nil
}

func (b *cappedBuffer) Bytes() []byte { return b.buf }
