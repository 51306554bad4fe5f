package transform

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"distiller/internal/logging"
	"distiller/internal/manifest"
	"distiller/internal/services"
	"distiller/internal/source"
	"distiller/internal/testsupport"
)

// stubHandler writes a marker file per article and counts invocations.
type stubHandler struct {
	stage manifest.Stage
	calls atomic.Int64
	fail  map[string]bool
}

func (s *stubHandler) Stage() manifest.Stage { return s.stage }

func (s *stubHandler) Transform(ctx context.Context, root string, entry *manifest.Entry) (Result, error) {
	s.calls.Add(1)
	if s.fail[entry.ArticleID] {
		return Result{}, errors.New("boom")
	}
	rel := fmt.Sprintf("articles/%s/%s.out", entry.ArticleID, s.stage)
	abs := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return Result{}, err
	}
	if err := os.WriteFile(abs, []byte("derivative"), 0o644); err != nil {
		return Result{}, err
	}
	return Result{Paths: []string{rel}, Pages: 1}, nil
}

func TestRunnerTransformsAllArticles(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	pipDir := testsupport.WritePIP(t, cfg, "2026-01-15", []source.Record{
		testsupport.Record("1", "One"),
		testsupport.Record("2", "Two"),
		testsupport.Record("3", "Three"),
	})
	sip, err := EnsureSIP(cfg, pipDir)
	if err != nil {
		t.Fatal(err)
	}

	h := &stubHandler{stage: manifest.StageHTML}
	outcome, err := NewRunner(cfg, logging.NewNop()).Run(context.Background(), h, sip.Root())
	if err != nil {
		t.Fatal(err)
	}
	if outcome.Succeeded != 3 || outcome.Skipped != 0 || outcome.Failed != 0 {
		t.Fatalf("outcome = %+v", outcome)
	}
	if h.calls.Load() != 3 {
		t.Fatalf("handler calls = %d", h.calls.Load())
	}

	reloaded, err := manifest.Load(sip.Root())
	if err != nil {
		t.Fatal(err)
	}
	for _, id := range reloaded.ArticleIDs() {
		d := reloaded.Entries[id].Derivative(manifest.StageHTML)
		if d == nil || d.State != manifest.StateDone {
			t.Fatalf("article %s derivative = %+v", id, d)
		}
		if len(d.Paths) != 1 {
			t.Fatalf("article %s paths = %v", id, d.Paths)
		}
	}
}

func TestRunnerIsIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	pipDir := testsupport.WritePIP(t, cfg, "2026-01-15", []source.Record{testsupport.Record("1", "One")})
	sip, err := EnsureSIP(cfg, pipDir)
	if err != nil {
		t.Fatal(err)
	}

	runner := NewRunner(cfg, logging.NewNop())
	h := &stubHandler{stage: manifest.StageHTML}
	if _, err := runner.Run(context.Background(), h, sip.Root()); err != nil {
		t.Fatal(err)
	}

	outcome, err := runner.Run(context.Background(), h, sip.Root())
	if err != nil {
		t.Fatal(err)
	}
	if outcome.Succeeded != 1 {
		t.Fatalf("outcome = %+v", outcome)
	}
	if h.calls.Load() != 1 {
		t.Fatalf("handler re-ran a finished article: calls = %d", h.calls.Load())
	}
}

func TestRunnerRecordsSkipsForUnmetPreconditions(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	pipDir := testsupport.WritePIP(t, cfg, "2026-01-15", []source.Record{testsupport.Record("1", "One")})
	sip, err := EnsureSIP(cfg, pipDir)
	if err != nil {
		t.Fatal(err)
	}

	// PDF requires the HTML derivative, which nothing has produced.
	h := &stubHandler{stage: manifest.StagePDF}
	outcome, err := NewRunner(cfg, logging.NewNop()).Run(context.Background(), h, sip.Root())
	if !errors.Is(err, services.ErrNoEligibleInput) {
		t.Fatalf("expected no-eligible-input, got %v", err)
	}
	if outcome.Skipped != 1 {
		t.Fatalf("outcome = %+v", outcome)
	}
	if h.calls.Load() != 0 {
		t.Fatal("handler should not run for skipped articles")
	}

	reloaded, err := manifest.Load(sip.Root())
	if err != nil {
		t.Fatal(err)
	}
	d := reloaded.Entries["1"].Derivative(manifest.StagePDF)
	if d == nil || d.State != manifest.StateSkipped || d.Reason == "" {
		t.Fatalf("derivative = %+v", d)
	}
}

func TestRunnerPartialFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	records := make([]source.Record, 0, 10)
	for i := 1; i <= 10; i++ {
		records = append(records, testsupport.Record(fmt.Sprintf("%d", i), fmt.Sprintf("Headline %d", i)))
	}
	pipDir := testsupport.WritePIP(t, cfg, "2026-01-15", records)
	sip, err := EnsureSIP(cfg, pipDir)
	if err != nil {
		t.Fatal(err)
	}

	h := &stubHandler{stage: manifest.StageHTML, fail: map[string]bool{"3": true, "7": true}}
	outcome, err := NewRunner(cfg, logging.NewNop()).Run(context.Background(), h, sip.Root())
	if err != nil {
		t.Fatal(err)
	}
	if outcome.Succeeded != 8 || outcome.Failed != 2 {
		t.Fatalf("outcome = %+v", outcome)
	}

	reloaded, err := manifest.Load(sip.Root())
	if err != nil {
		t.Fatal(err)
	}
	if d := reloaded.Entries["3"].Derivative(manifest.StageHTML); d == nil || d.State != manifest.StateFailed {
		t.Fatalf("derivative = %+v", d)
	}
	if d := reloaded.Entries["4"].Derivative(manifest.StageHTML); d == nil || d.State != manifest.StateDone {
		t.Fatalf("derivative = %+v", d)
	}
}

func TestRunnerRejectsSealedSIP(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	pipDir := testsupport.WritePIP(t, cfg, "2026-01-15", []source.Record{testsupport.Record("1", "One")})
	sip, err := EnsureSIP(cfg, pipDir)
	if err != nil {
		t.Fatal(err)
	}
	if err := sip.Seal(); err != nil {
		t.Fatal(err)
	}
	if err := sip.Save(); err != nil {
		t.Fatal(err)
	}

	_, err = NewRunner(cfg, logging.NewNop()).Run(context.Background(), &stubHandler{stage: manifest.StageHTML}, sip.Root())
	if !errors.Is(err, services.ErrSealedPackage) {
		t.Fatalf("expected sealed package error, got %v", err)
	}
}

func TestRunnerRejectsPIP(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	pipDir := testsupport.WritePIP(t, cfg, "2026-01-15", []source.Record{testsupport.Record("1", "One")})

	_, err := NewRunner(cfg, logging.NewNop()).Run(context.Background(), &stubHandler{stage: manifest.StageHTML}, pipDir)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestEnsureSIPCopiesArticles(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	pipDir := testsupport.WritePIP(t, cfg, "2026-01-15", []source.Record{testsupport.Record("1", "One")})
	testsupport.AttachMedia(t, pipDir, "1", "ab-12.jpg", []byte("jpeg"))

	sip, err := EnsureSIP(cfg, pipDir)
	if err != nil {
		t.Fatal(err)
	}
	if sip.Kind != manifest.KindSIP || sip.Sealed() {
		t.Fatalf("sip state = %s/%s", sip.Kind, sip.Status)
	}
	if sip.PIPID != "2026-01-15" || sip.PIPPath != pipDir {
		t.Fatalf("provenance = %q %q", sip.PIPID, sip.PIPPath)
	}
	for _, rel := range []string{"articles/1/record.json", "articles/1/media/ab-12.jpg"} {
		if _, err := os.Stat(filepath.Join(sip.Root(), filepath.FromSlash(rel))); err != nil {
			t.Fatalf("missing %s: %v", rel, err)
		}
	}
	matches, _ := filepath.Glob(filepath.Join(cfg.Paths.SIPDir, ".building-*"))
	if len(matches) != 0 {
		t.Fatalf("stale build directories: %v", matches)
	}
}

func TestEnsureSIPLoadsExisting(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	pipDir := testsupport.WritePIP(t, cfg, "2026-01-15", []source.Record{testsupport.Record("1", "One")})

	first, err := EnsureSIP(cfg, pipDir)
	if err != nil {
		t.Fatal(err)
	}
	marker := filepath.Join(first.Root(), "articles", "1", "marker")
	if err := os.WriteFile(marker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	second, err := EnsureSIP(cfg, pipDir)
	if err != nil {
		t.Fatal(err)
	}
	if second.Root() != first.Root() {
		t.Fatalf("roots differ: %q vs %q", second.Root(), first.Root())
	}
	if _, err := os.Stat(marker); err != nil {
		t.Fatal("existing sip was rebuilt")
	}
}

func TestEnsureSIPRejectsUnsealedPIP(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	dir := filepath.Join(cfg.Paths.PIPDir, "2026-01-15")
	m := manifest.New(dir, "2026-01-15", manifest.KindPIP)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := m.Save(); err != nil {
		t.Fatal(err)
	}

	_, err := EnsureSIP(cfg, dir)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
