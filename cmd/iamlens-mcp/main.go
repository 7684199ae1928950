package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/wilhg/iamlens/pkg/audit"
	"github.com/wilhg/iamlens/pkg/config"
	"github.com/wilhg/iamlens/pkg/iamlens"
	"github.com/wilhg/iamlens/pkg/logging"
	"github.com/wilhg/iamlens/pkg/mcpserver"
	"github.com/wilhg/iamlens/pkg/metrics"
	"github.com/wilhg/iamlens/pkg/otel"
	"github.com/wilhg/iamlens/pkg/tool"
	"github.com/wilhg/iamlens/pkg/tool/tools"
)

var (
	version = "dev"
	commit  = ""
	date    = ""
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("iamlens-mcp", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		showVersion bool
		configPath  string
		transport   string
		addr        string
		lensPath    string
	)
	fs.BoolVar(&showVersion, "version", false, "print version and exit")
	fs.StringVar(&configPath, "config", getEnv("IAMLENS_CONFIG", ""), "optional YAML config file")
	fs.StringVar(&transport, "transport", "", "mcp transport: stdio or http (overrides MCP_TRANSPORT)")
	fs.StringVar(&addr, "addr", "", "http listen address (overrides MCP_ADDR)")
	fs.StringVar(&lensPath, "iam-lens-path", "", "iam-lens executable (overrides IAM_LENS_PATH)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if showVersion {
		fmt.Fprintf(stdout, "iamlens-mcp %s (commit=%s, date=%s)\n", version, commit, date)
		return 0
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	if transport != "" {
		cfg.Transport = transport
	}
	if addr != "" {
		cfg.Addr = addr
	}
	if lensPath != "" {
		cfg.IAMLensPath = lensPath
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	defer func() { _ = log.Sync() }()

	a, err := build(ctx, cfg, log)
	if err != nil {
		log.Error("startup failed", zap.Error(err))
		return 1
	}
	defer a.close(context.WithoutCancel(ctx))

	log.Info("iamlens-mcp starting",
		zap.String("version", version),
		zap.String("transport", cfg.Transport),
		zap.String("iam_lens_path", cfg.IAMLensPath),
		zap.Bool("audit", cfg.AuditDatabaseURL != ""),
	)
	if err := a.serve(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server stopped", zap.Error(err))
		return 1
	}
	return 0
}

// app holds the wired components and what must be released on exit.
type app struct {
	server   *mcpserver.Server
	gatherer prometheus.Gatherer
	closers  []func(context.Context) error
	log      *zap.Logger
}

func build(ctx context.Context, cfg config.Config, log *zap.Logger) (*app, error) {
	a := &app{log: log}

	shutdown, err := otel.Init(ctx, otel.Config{ServiceVersion: version, UseStdout: cfg.TraceStdout})
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	a.closers = append(a.closers, shutdown)

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec, err := metrics.New(promReg)
	if err != nil {
		a.close(ctx)
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	a.gatherer = promReg

	opts := []iamlens.Option{
		iamlens.WithRunner(cfg.Runner()),
		iamlens.WithLogger(log),
		iamlens.WithObserver(rec),
	}
	if cfg.AuditDatabaseURL != "" {
		st, err := audit.Open(ctx, cfg.AuditDatabaseURL, audit.WithLogger(log))
		if err != nil {
			a.close(ctx)
			return nil, fmt.Errorf("open audit store: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error { return st.Close() })
		if err := st.Migrate(ctx); err != nil {
			a.close(ctx)
			return nil, fmt.Errorf("migrate audit store: %w", err)
		}
		opts = append(opts, iamlens.WithObserver(st))
	}

	client, err := iamlens.New(cfg.Client(), opts...)
	if err != nil {
		a.close(ctx)
		return nil, err
	}

	reg := tool.NewRegistry()
	if err := tools.RegisterAll(reg, client); err != nil {
		a.close(ctx)
		return nil, err
	}
	srv, err := mcpserver.New(ctx, mcpserver.WithLogger(log), mcpserver.WithVersion(version))
	if err != nil {
		a.close(ctx)
		return nil, err
	}
	allowed := map[string]bool{tools.PermissionExec.Name: true}
	if err := srv.RegisterFromRegistry(reg, allowed, tool.JSONSchemaValidator); err != nil {
		a.close(ctx)
		return nil, err
	}
	a.server = srv
	return a, nil
}

func (a *app) serve(ctx context.Context, cfg config.Config) error {
	if cfg.Transport == config.TransportHTTP {
		return a.server.ServeHTTP(ctx, cfg.Addr, a.server.Handler(a.gatherer))
	}
	return a.server.ServeStdio(ctx)
}

// close releases resources in reverse order of acquisition.
func (a *app) close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.log.Warn("shutdown", zap.Error(err))
		}
	}
	a.closers = nil
}

func getEnv(key string, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
