package runlog

import (
	"context"
	"testing"
	"time"

	"distiller/internal/testsupport"
)

func TestStoreRecordAndQuery(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := Open(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	ctx := context.Background()
	base := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	for i, stage := range []string{"harvest", "html", "pdf"} {
		err := store.Record(ctx, StageRun{
			RunID:      "run-1",
			PackageID:  "2026-01-15",
			Stage:      stage,
			StartedAt:  base.Add(time.Duration(i) * time.Minute),
			FinishedAt: base.Add(time.Duration(i)*time.Minute + 30*time.Second),
			Succeeded:  5,
			Skipped:    1,
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	recent, err := store.Recent(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 2 {
		t.Fatalf("recent = %d", len(recent))
	}
	if recent[0].Stage != "pdf" || recent[1].Stage != "html" {
		t.Fatalf("order = %s, %s", recent[0].Stage, recent[1].Stage)
	}
	if !recent[0].StartedAt.Equal(base.Add(2 * time.Minute)) {
		t.Fatalf("started at = %v", recent[0].StartedAt)
	}

	byPackage, err := store.ForPackage(ctx, "2026-01-15")
	if err != nil {
		t.Fatal(err)
	}
	if len(byPackage) != 3 || byPackage[0].Stage != "harvest" {
		t.Fatalf("by package = %+v", byPackage)
	}
	if byPackage[0].Succeeded != 5 || byPackage[0].Skipped != 1 {
		t.Fatalf("counts = %+v", byPackage[0])
	}
}

func TestStoreReopenKeepsData(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := Open(cfg)
	if err != nil {
		t.Fatal(err)
	}
	now := time.Now()
	if err := store.Record(context.Background(), StageRun{
		RunID: "run-1", PackageID: "p", Stage: "harvest",
		StartedAt: now, FinishedAt: now,
	}); err != nil {
		t.Fatal(err)
	}
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := Open(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()
	runs, err := reopened.Recent(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 {
		t.Fatalf("runs = %d", len(runs))
	}
}

func TestStoreRejectsSchemaMismatch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := Open(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.db.Exec("UPDATE schema_version SET version = 99"); err != nil {
		t.Fatal(err)
	}
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	if _, err := Open(cfg); err == nil {
		t.Fatal("expected schema mismatch error")
	}
}
