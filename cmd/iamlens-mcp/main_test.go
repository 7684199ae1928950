package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	mcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/wilhg/iamlens/pkg/audit"
	"github.com/wilhg/iamlens/pkg/config"
	"github.com/wilhg/iamlens/pkg/tool/tools"
)

func TestGetEnv(t *testing.T) {
	t.Setenv("FOO", "bar")
	if got := getEnv("FOO", "default"); got != "bar" {
		t.Fatalf("getEnv returned %q, want %q", got, "bar")
	}
	if got := getEnv("MISSING", "default"); got != "default" {
		t.Fatalf("getEnv returned %q, want %q", got, "default")
	}
}

func TestRun_Version(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run(context.Background(), []string{"-version"}, &stdout, &stderr); code != 0 {
		t.Fatalf("exit=%d stderr=%s", code, stderr.String())
	}
	if !strings.HasPrefix(stdout.String(), "iamlens-mcp dev") {
		t.Fatalf("stdout=%q", stdout.String())
	}
}

func TestRun_MissingCollectConfigsIsFatal(t *testing.T) {
	t.Setenv("COLLECT_CONFIGS", "")
	t.Setenv("IAMLENS_CONFIG", "")
	var stdout, stderr bytes.Buffer
	if code := run(context.Background(), nil, &stdout, &stderr); code != 1 {
		t.Fatalf("exit=%d want 1", code)
	}
	if !strings.Contains(stderr.String(), "COLLECT_CONFIGS") {
		t.Fatalf("stderr=%q", stderr.String())
	}
	if stdout.Len() != 0 {
		t.Fatalf("stdout must stay clean, got %q", stdout.String())
	}
}

func TestRun_BadTransport(t *testing.T) {
	t.Setenv("COLLECT_CONFIGS", "/data")
	var stdout, stderr bytes.Buffer
	if code := run(context.Background(), []string{"-transport", "carrier-pigeon"}, &stdout, &stderr); code != 1 {
		t.Fatalf("exit=%d want 1", code)
	}
}

func TestBuild_WiresToolsAndAudit(t *testing.T) {
	ctx := context.Background()
	dbURL := "sqlite:file:" + filepath.Join(t.TempDir(), "audit.sqlite") + "?_pragma=busy_timeout(5000)"
	cfg := config.Config{
		CollectConfigs:   "/data",
		IAMLensPath:      "/nonexistent/iam-lens",
		Transport:        config.TransportStdio,
		LogLevel:         "info",
		AuditDatabaseURL: dbURL,
	}
	a, err := build(ctx, cfg, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { a.close(context.Background()) })

	st, ct := mcp.NewInMemoryTransports()
	ss, err := a.server.MCP().Connect(ctx, st, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = ss.Close() })
	cs, err := mcp.NewClient(&mcp.Implementation{Name: "main-test", Version: "v0"}, nil).Connect(ctx, ct, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = cs.Close() })

	res, err := cs.CallTool(ctx, &mcp.CallToolParams{
		Name:      tools.SimulateName,
		Arguments: map[string]any{"principal": "p", "action": "a"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsError {
		t.Fatal("expected launch failure to be reported as an error result")
	}

	mfs, err := a.gatherer.Gather()
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, mf := range mfs {
		if mf.GetName() == "iamlens_invocations_total" {
			found = true
		}
	}
	if !found {
		t.Fatal("invocation metric not registered")
	}

	aud, err := audit.Open(ctx, dbURL)
	if err != nil {
		t.Fatal(err)
	}
	defer aud.Close()
	recs, err := aud.List(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || recs[0].Outcome != "launch_failed" || recs[0].ExitCode != nil {
		t.Fatalf("unexpected audit records: %+v", recs)
	}
}
