// Package mcpserver exports registered tools over the Model Context Protocol,
// on stdio or streamable HTTP.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	mcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wilhg/iamlens/pkg/errmodel"
	"github.com/wilhg/iamlens/pkg/tool"
)

// Implementation name reported during the MCP handshake.
const Name = "iam-lens"

const shutdownTimeout = 5 * time.Second

type Server struct {
	srv     *mcp.Server
	log     *zap.Logger
	version string
}

type Option func(*Server)

func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithVersion sets the implementation version announced to clients.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// New creates an MCP server with no tools.
func New(_ context.Context, opts ...Option) (*Server, error) {
	s := &Server{log: zap.NewNop(), version: "dev"}
	for _, opt := range opts {
		opt(s)
	}
	s.srv = mcp.NewServer(&mcp.Implementation{Name: Name, Version: s.version}, nil)
	return s, nil
}

// MCP returns the underlying SDK server.
func (s *Server) MCP() *mcp.Server { return s.srv }

// RegisterFromRegistry exports every tool in reg. Calls go through
// tool.SafeInvoke with the given permission set and validator.
func (s *Server) RegisterFromRegistry(reg *tool.Registry, allowed map[string]bool, validate tool.ValidateFunc) error {
	if reg == nil {
		return errors.New("registry is nil")
	}
	reg.Range(func(name string, t tool.Tool) {
		d := tool.Describe(t)
		mt := &mcp.Tool{
			Name:        d.Name,
			Title:       d.Title,
			Description: d.Description,
			InputSchema: d.InputSchema,
			Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true, IdempotentHint: true},
		}
		if d.OutputSchema != nil {
			mt.OutputSchema = d.OutputSchema
		}
		s.srv.AddTool(mt, s.handler(t, allowed, validate))
		s.log.Debug("registered tool", zap.String("tool", name))
	})
	return nil
}

func (s *Server) handler(t tool.Tool, allowed map[string]bool, validate tool.ValidateFunc) mcp.ToolHandler {
	name := tool.Describe(t).Name
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args json.RawMessage
		if req != nil && req.Params != nil {
			args = req.Params.Arguments
		}
		out, err := tool.SafeInvoke(ctx, t, args, allowed, validate)
		if err != nil {
			ce := errmodel.From(err)
			s.log.Warn("tool call rejected", zap.String("tool", name), zap.String("category", ce.Category), zap.String("code", ce.Code), zap.Error(err))
			return errorResult(ce), nil
		}
		b, err := json.Marshal(out)
		if err != nil {
			return errorResult(errmodel.System("encode_failed", "failed to encode tool output", map[string]any{"tool": name}, err)), nil
		}
		res := &mcp.CallToolResult{
			Content:           []mcp.Content{&mcp.TextContent{Text: string(b)}},
			StructuredContent: json.RawMessage(b),
		}
		if f, ok := out.(interface{ Failed() bool }); ok && f.Failed() {
			res.IsError = true
		}
		return res, nil
	}
}

func errorResult(ce *errmodel.Error) *mcp.CallToolResult {
	b, err := json.Marshal(ce)
	if err != nil {
		b = []byte(ce.Error())
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(b)}},
		IsError: true,
	}
}

// ServeStdio serves a single client on stdin/stdout until ctx is done or the
// client disconnects.
func (s *Server) ServeStdio(ctx context.Context) error {
	return s.srv.Run(ctx, &mcp.StdioTransport{})
}

// Handler returns the HTTP surface: the streamable MCP endpoint on /mcp,
// a liveness probe on /healthz and, when gatherer is non-nil, /metrics.
func (s *Server) Handler(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mcpHandler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return s.srv }, nil)
	mux.Handle("/mcp", otelhttp.NewHandler(mcpHandler, "mcp"))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	return mux
}

// ServeHTTP listens on addr until ctx is done, then shuts down gracefully.
func (s *Server) ServeHTTP(ctx context.Context, addr string, h http.Handler) error {
	hs := &http.Server{Addr: addr, Handler: h, ReadHeaderTimeout: 10 * time.Second}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.log.Info("mcp http listening", zap.String("addr", addr))
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return hs.Shutdown(sctx)
	})
	return g.Wait()
}
