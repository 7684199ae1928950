// Package iamlens adapts the iam-lens command-line tool into typed calls.
//
// A call builds an argument vector from a request, runs iam-lens through a
// Runner, normalizes the process outcome into a Result and reshapes it into a
// response that echoes the request. Every call is independent; the Client only
// holds its immutable Config and write-only observers.
package iamlens

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/wilhg/iamlens/pkg/errmodel"
)

// DefaultPath is the executable looked up on PATH when Config.Path is empty.
const DefaultPath = "iam-lens"

// Operation names reported to observers.
const (
	OperationSimulate = cmdSimulate
	OperationWhoCan   = cmdWhoCan
)

// Config is fixed for the lifetime of a Client.
type Config struct {
	// Path is the iam-lens executable. Empty means DefaultPath.
	Path string
	// CollectConfigs references the collected account/policy data passed to
	// every call as --collectConfigs. Required.
	CollectConfigs string
}

// Invocation describes one completed iam-lens run.
type Invocation struct {
	ID        string
	Operation string
	Args      []string
	Outcome   string
	ExitCode  *int
	StartedAt time.Time
	Duration  time.Duration
}

// Observer is notified after every iam-lens run. Observers must not block for
// long and must be safe for concurrent use.
type Observer interface {
	Observe(ctx context.Context, inv Invocation)
}

// Client runs iam-lens on behalf of typed requests.
type Client struct {
	cfg       Config
	runner    Runner
	log       *zap.Logger
	observers []Observer
}

// Option configures a Client at construction time.
type Option func(*Client)

// WithRunner replaces the default ExecRunner.
func WithRunner(r Runner) Option {
	return func(c *Client) {
		if r != nil {
			c.runner = r
		}
	}
}

// WithLogger sets the logger used for per-call records.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// WithObserver registers an observer for completed runs.
func WithObserver(o Observer) Option {
	return func(c *Client) {
		if o != nil {
			c.observers = append(c.observers, o)
		}
	}
}

// New validates cfg and constructs a Client.
func New(cfg Config, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.CollectConfigs) == "" {
		return nil, errmodel.Config("missing_collect_configs", "collect configs reference is required", nil)
	}
	if cfg.Path == "" {
		cfg.Path = DefaultPath
	}
	c := &Client{
		cfg:    cfg,
		runner: ExecRunner{Timeout: DefaultTimeout, MaxOutputBytes: DefaultMaxOutputBytes},
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Config returns the client's configuration.
func (c *Client) Config() Config { return c.cfg }

// Simulate asks iam-lens whether req.Principal may perform req.Action.
// Failures are reported in the response, never as a Go error.
func (c *Client) Simulate(ctx context.Context, req SimulationRequest) SimulationResponse {
	ctx, span := tracer.Start(ctx, "iamlens.Simulate", trace.WithAttributes(
		attribute.String("iam.principal", req.Principal),
		attribute.String("iam.action", req.Action),
		attribute.String("iam.resource", req.Resource),
	))
	defer span.End()

	resp := SimulationResponse{Principal: req.Principal, Action: req.Action}
	if req.Resource != "" {
		r := req.Resource
		resp.Resource = &r
	}

	var res Result
	if verr := validateSimulation(req); verr != nil {
		c.log.Warn("rejected simulate request", zap.Error(verr))
		res = Fail(verr, nil)
	} else {
		res = c.run(ctx, OperationSimulate, BuildSimulateArgs(req, c.cfg.CollectConfigs))
	}

	if f := res.Failure; f != nil {
		span.SetStatus(codes.Error, f.Message)
		resp.Error = f.Message
		resp.ExitCode = f.ExitCode
		return resp
	}
	resp.Result = res.Data
	return resp
}

// WhoCanAccess asks iam-lens which principals may perform req.Actions on req.Resource.
// The tool's answer is returned unfiltered.
func (c *Client) WhoCanAccess(ctx context.Context, req AccessQueryRequest) AccessQueryResponse {
	ctx, span := tracer.Start(ctx, "iamlens.WhoCanAccess", trace.WithAttributes(
		attribute.String("iam.resource", req.Resource),
		attribute.StringSlice("iam.actions", req.Actions),
	))
	defer span.End()

	actions := req.Actions
	if actions == nil {
		actions = []string{}
	}
	resp := AccessQueryResponse{Resource: req.Resource, Actions: actions}

	var res Result
	if verr := validateAccessQuery(req); verr != nil {
		c.log.Warn("rejected who-can request", zap.Error(verr))
		res = Fail(verr, nil)
	} else {
		res = c.run(ctx, OperationWhoCan, BuildWhoCanArgs(req, c.cfg.CollectConfigs))
	}

	if f := res.Failure; f != nil {
		span.SetStatus(codes.Error, f.Message)
		resp.Error = f.Message
		resp.ExitCode = f.ExitCode
		return resp
	}
	resp.PrincipalsWithAccess = res.Data
	return resp
}

func (c *Client) run(ctx context.Context, op string, args []string) Result {
	inv := Invocation{ID: uuid.NewString(), Operation: op, Args: args, StartedAt: time.Now()}
	out, err := c.runner.Run(ctx, c.cfg.Path, args)
	inv.Duration = time.Since(inv.StartedAt)

	res := Normalize(c.cfg.Path, out, err)
	inv.Outcome = res.Outcome()
	if err == nil {
		code := out.ExitCode
		inv.ExitCode = &code
	}

	fields := []zap.Field{
		zap.String("invocation_id", inv.ID),
		zap.String("operation", op),
		zap.Strings("args", args),
		zap.String("outcome", inv.Outcome),
		zap.Duration("duration", inv.Duration),
	}
	if out.Truncated {
		fields = append(fields, zap.Bool("truncated", true))
	}
	switch {
	case err != nil:
		c.log.Error("iam-lens invocation failed", append(fields, zap.Error(err))...)
	case !res.OK():
		c.log.Warn("iam-lens reported failure", append(fields, zap.Int("exit_code", out.ExitCode))...)
	default:
		c.log.Info("iam-lens invocation", fields...)
	}

	for _, o := range c.observers {
		o.Observe(ctx, inv)
	}
	return res
}

func validateSimulation(req SimulationRequest) *errmodel.Error {
	var missing []string
	if strings.TrimSpace(req.Principal) == "" {
		missing = append(missing, "principal")
	}
	if strings.TrimSpace(req.Action) == "" {
		missing = append(missing, "action")
	}
	if len(missing) > 0 {
		return errmodel.Validation("missing_fields", strings.Join(missing, ", ")+" required", map[string]any{"fields": missing})
	}
	return nil
}

func validateAccessQuery(req AccessQueryRequest) *errmodel.Error {
	if strings.TrimSpace(req.Resource) == "" {
		return errmodel.Validation("missing_fields", "resource required", map[string]any{"fields": []string{"resource"}})
	}
	for i, a := range req.Actions {
		if strings.TrimSpace(a) == "" {
			return errmodel.Validation("invalid_input", "actions must not contain empty entries", map[string]any{"index": i})
		}
	}
	return nil
}
