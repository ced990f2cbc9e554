package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ffpull/ffpull/internal/engine"
	"github.com/ffpull/ffpull/internal/project"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func progress(i, total int, name string, outcome engine.Outcome) engine.Progress {
	return engine.Progress{
		Index:    i,
		Total:    total,
		Record:   project.Record{Path: "/src/" + name, Name: name},
		Outcome:  outcome,
		Fraction: float64(i) / float64(total),
	}
}

func TestOpenCreatesSchema(t *testing.T) {
	db := testDB(t)

	for _, table := range []string{"runs", "results"} {
		var count int
		err := db.conn.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&count)
		if err != nil {
			t.Fatalf("failed to query table %s: %v", table, err)
		}
		if count != 1 {
			t.Errorf("table %s does not exist", table)
		}
	}

	// Idempotent
	if err := db.InitSchema(context.Background()); err != nil {
		t.Errorf("second InitSchema() failed: %v", err)
	}
}

func TestRecordAndQuery(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	runID, err := db.BeginRun(ctx, 3)
	if err != nil {
		t.Fatalf("BeginRun() failed: %v", err)
	}

	items := []engine.Progress{
		progress(1, 3, "alpha", engine.Outcome{Kind: engine.UpToDate, OldHead: "aaa", NewHead: "aaa"}),
		progress(2, 3, "beta", engine.Outcome{Kind: engine.FetchFailed, Reason: "network down"}),
		progress(3, 3, "gamma", engine.Outcome{Kind: engine.FastForwarded, OldHead: "aaa", NewHead: "bbb"}),
	}
	summary := engine.Summary{Total: 3}
	for _, p := range items {
		if err := db.RecordResult(ctx, runID, p, "master"); err != nil {
			t.Fatalf("RecordResult(%s) failed: %v", p.Record.Name, err)
		}
		summary.Add(p)
	}
	if err := db.FinishRun(ctx, runID, summary); err != nil {
		t.Fatalf("FinishRun() failed: %v", err)
	}

	entries, err := db.Query(ctx, Filter{})
	if err != nil {
		t.Fatalf("Query() failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	// Newest first
	if entries[0].Project != "gamma" || entries[2].Project != "alpha" {
		t.Errorf("order = %s,%s,%s", entries[0].Project, entries[1].Project, entries[2].Project)
	}
	if entries[1].Outcome.Kind != engine.FetchFailed || entries[1].Outcome.Reason != "network down" {
		t.Errorf("beta outcome = %+v", entries[1].Outcome)
	}
	if entries[0].Outcome.NewHead != "bbb" || entries[0].Branch != "master" {
		t.Errorf("gamma entry = %+v", entries[0])
	}

	runs, err := db.Runs(ctx, 10)
	if err != nil {
		t.Fatalf("Runs() failed: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("got %d runs, want 1", len(runs))
	}
	r := runs[0]
	if r.ID != runID || r.Completed != 3 || r.UpToDate != 1 || r.Updated != 1 || r.Failed != 1 || r.Canceled {
		t.Errorf("run = %+v", r)
	}
	if r.FinishedAt == nil {
		t.Error("run has no finish time")
	}
}

func TestQueryFilters(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	runID, err := db.BeginRun(ctx, 4)
	if err != nil {
		t.Fatal(err)
	}
	for i, name := range []string{"alpha", "beta", "alpha", "alpha"} {
		p := progress(i+1, 4, name, engine.Outcome{Kind: engine.UpToDate})
		if err := db.RecordResult(ctx, runID, p, "master"); err != nil {
			t.Fatal(err)
		}
	}

	alpha, err := db.Query(ctx, Filter{Project: "alpha"})
	if err != nil {
		t.Fatal(err)
	}
	if len(alpha) != 3 {
		t.Errorf("Project filter returned %d entries, want 3", len(alpha))
	}

	limited, err := db.Query(ctx, Filter{Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 2 {
		t.Errorf("Limit filter returned %d entries, want 2", len(limited))
	}

	future, err := db.Query(ctx, Filter{Since: time.Now().Add(time.Hour)})
	if err != nil {
		t.Fatal(err)
	}
	if len(future) != 0 {
		t.Errorf("Since filter returned %d entries, want 0", len(future))
	}

	past, err := db.Query(ctx, Filter{Since: time.Now().Add(-time.Hour)})
	if err != nil {
		t.Fatal(err)
	}
	if len(past) != 4 {
		t.Errorf("Since filter returned %d entries, want 4", len(past))
	}
}

func TestCanceledRun(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	runID, err := db.BeginRun(ctx, 5)
	if err != nil {
		t.Fatal(err)
	}
	summary := engine.Summary{Total: 5}
	summary.Add(progress(1, 5, "alpha", engine.Outcome{Kind: engine.UpToDate}))
	if err := db.FinishRun(ctx, runID, summary); err != nil {
		t.Fatal(err)
	}

	runs, err := db.Runs(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !runs[0].Canceled || runs[0].Completed != 1 || runs[0].Total != 5 {
		t.Errorf("run = %+v", runs[0])
	}
}

func TestCloseIdempotent(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Errorf("second Close() failed: %v", err)
	}
}
