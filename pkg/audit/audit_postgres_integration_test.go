//go:build integration

package audit

import (
	"context"
	"testing"
	"time"

	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

func TestPostgresAppendAndList(t *testing.T) {
	ctx := context.Background()
	pg, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("iamlens"),
		tcpostgres.WithUsername("iamlens"),
		tcpostgres.WithPassword("iamlens"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Skipf("skip: cannot start postgres: %v", err)
	}
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	dsn, err := pg.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatal(err)
	}
	st, err := Open(ctx, dsn)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = st.Close() })
	if err := st.Migrate(ctx); err != nil {
		t.Fatal(err)
	}

	now := time.Now()
	two := 2
	if err := st.Append(ctx, Record{ID: "pg1", Operation: "simulate", Args: []string{"simulate"}, Outcome: "ok", CreatedAt: now}); err != nil {
		t.Fatal(err)
	}
	if err := st.Append(ctx, Record{ID: "pg2", Operation: "who-can", Args: []string{"who-can"}, Outcome: "nonzero_exit", ExitCode: &two, CreatedAt: now.Add(time.Second)}); err != nil {
		t.Fatal(err)
	}

	got, err := st.List(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("len=%d want 2", len(got))
	}
	if got[0].ID != "pg2" || got[0].ExitCode == nil || *got[0].ExitCode != 2 {
		t.Fatalf("unexpected newest record: %+v", got[0])
	}
}
