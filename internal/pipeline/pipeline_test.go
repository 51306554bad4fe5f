package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"distiller/internal/aggregate"
	"distiller/internal/config"
	"distiller/internal/logging"
	"distiller/internal/manifest"
	"distiller/internal/runlog"
	"distiller/internal/services"
	"distiller/internal/source"
	"distiller/internal/testsupport"
	"distiller/internal/transform"
)

// stubStage writes one marker file per article and counts invocations.
type stubStage struct {
	stage manifest.Stage
	fail  bool

	mu    sync.Mutex
	calls int
}

func (s *stubStage) Stage() manifest.Stage { return s.stage }

func (s *stubStage) Transform(ctx context.Context, root string, entry *manifest.Entry) (transform.Result, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.fail {
		return transform.Result{}, errors.New("stage broken")
	}
	rel := fmt.Sprintf("articles/%s/%s.out", entry.ArticleID, s.stage)
	abs := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return transform.Result{}, err
	}
	if err := os.WriteFile(abs, []byte(string(s.stage)), 0o644); err != nil {
		return transform.Result{}, err
	}
	return transform.Result{Paths: []string{rel}, Pages: 1}, nil
}

type stubFactory struct {
	mu     sync.Mutex
	stages map[manifest.Stage]*stubStage
	fail   map[manifest.Stage]bool
}

func newStubFactory() *stubFactory {
	return &stubFactory{stages: make(map[manifest.Stage]*stubStage), fail: make(map[manifest.Stage]bool)}
}

func (f *stubFactory) factory(cfg *config.Config, stage manifest.Stage) (transform.Handler, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if h, ok := f.stages[stage]; ok {
		return h, nil
	}
	h := &stubStage{stage: stage, fail: f.fail[stage]}
	f.stages[stage] = h
	return h, nil
}

func (f *stubFactory) callCount(stage manifest.Stage) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.stages[stage]
	if !ok {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls
}

func testWindow(t *testing.T) aggregate.Window {
	t.Helper()
	w, err := aggregate.ParseWindow("2026-01-15", "")
	if err != nil {
		t.Fatal(err)
	}
	return w
}

func newPipeline(t *testing.T, cfg *config.Config, client source.Client, factory *stubFactory) (*Pipeline, *runlog.Store) {
	t.Helper()
	ledger, err := runlog.Open(cfg)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = ledger.Close() })
	return New(cfg, client, logging.NewNop(),
		WithLedger(ledger),
		WithHandlerFactory(factory.factory)), ledger
}

func TestPipelineRunsEndToEnd(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Source.DownloadMedia = false
	client := &testsupport.Client{Records: []source.Record{
		testsupport.Record("1", "One"),
		testsupport.Record("2", "Two"),
	}}
	factory := newStubFactory()
	p, ledger := newPipeline(t, cfg, client, factory)

	summary, err := p.Run(context.Background(), testWindow(t))
	if err != nil {
		t.Fatal(err)
	}
	if !summary.Sealed {
		t.Fatal("expected sealed summary")
	}
	if summary.Articles != 2 || len(summary.Outcomes) != 5 {
		t.Fatalf("summary = %+v", summary)
	}
	if _, err := os.Stat(filepath.Join(summary.SIPPath, manifest.METSName)); err != nil {
		t.Fatalf("mets document missing: %v", err)
	}

	sealed, err := manifest.Load(summary.SIPPath)
	if err != nil {
		t.Fatal(err)
	}
	if !sealed.Sealed() {
		t.Fatal("sip manifest not sealed")
	}

	// harvest + five stages + compile.
	runs, err := ledger.ForPackage(context.Background(), "2026-01-15")
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 7 {
		t.Fatalf("ledger rows = %d, want 7", len(runs))
	}
	if runs[0].Stage != "harvest" || runs[len(runs)-1].Stage != "compile" {
		t.Fatalf("ledger order = %v", runs)
	}
	for _, run := range runs {
		if run.RunID != summary.RunID {
			t.Fatalf("run id mismatch: %q vs %q", run.RunID, summary.RunID)
		}
	}
}

func TestPipelineIsIdempotentAfterSeal(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Source.DownloadMedia = false
	client := &testsupport.Client{Records: []source.Record{testsupport.Record("1", "One")}}
	factory := newStubFactory()
	p, ledger := newPipeline(t, cfg, client, factory)

	if _, err := p.Run(context.Background(), testWindow(t)); err != nil {
		t.Fatal(err)
	}
	htmlCalls := factory.callCount(manifest.StageHTML)

	summary, err := p.Run(context.Background(), testWindow(t))
	if err != nil {
		t.Fatal(err)
	}
	if !summary.Sealed {
		t.Fatal("expected sealed summary on re-run")
	}
	if factory.callCount(manifest.StageHTML) != htmlCalls {
		t.Fatal("stages re-ran on a sealed package")
	}

	runs, err := ledger.ForPackage(context.Background(), "2026-01-15")
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 7 {
		t.Fatalf("ledger rows = %d, want 7 after no-op re-run", len(runs))
	}
}

func TestPipelineShortCircuitsOnStageFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Source.DownloadMedia = false
	client := &testsupport.Client{Records: []source.Record{testsupport.Record("1", "One")}}
	factory := newStubFactory()
	factory.fail[manifest.StagePDF] = true
	p, ledger := newPipeline(t, cfg, client, factory)

	_, err := p.Run(context.Background(), testWindow(t))
	if !errors.Is(err, services.ErrNoEligibleInput) {
		t.Fatalf("expected short-circuit error, got %v", err)
	}
	if factory.callCount(manifest.StageALTO) != 0 {
		t.Fatal("downstream stage ran after total failure")
	}

	runs, err := ledger.ForPackage(context.Background(), "2026-01-15")
	if err != nil {
		t.Fatal(err)
	}
	last := runs[len(runs)-1]
	if last.Stage != "pdf" || last.Failed != 1 {
		t.Fatalf("last ledger row = %+v", last)
	}
}

func TestPipelineResumesAfterFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Source.DownloadMedia = false
	client := &testsupport.Client{Records: []source.Record{testsupport.Record("1", "One")}}

	broken := newStubFactory()
	broken.fail[manifest.StagePDF] = true
	p1, _ := newPipeline(t, cfg, client, broken)
	if _, err := p1.Run(context.Background(), testWindow(t)); err == nil {
		t.Fatal("expected first run to fail")
	}

	fixed := newStubFactory()
	p2, _ := newPipeline(t, cfg, client, fixed)
	summary, err := p2.Run(context.Background(), testWindow(t))
	if err != nil {
		t.Fatal(err)
	}
	if !summary.Sealed {
		t.Fatal("expected resumed run to seal")
	}
	// The HTML derivative survived the failed run, so only the broken
	// stage and its dependents re-ran.
	if fixed.callCount(manifest.StageHTML) != 0 {
		t.Fatal("html re-ran despite existing derivative")
	}
	if fixed.callCount(manifest.StagePDF) != 1 {
		t.Fatalf("pdf calls = %d", fixed.callCount(manifest.StagePDF))
	}
}

func TestPipelinePropagatesHarvestFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	client := &testsupport.Client{
		FetchErr: services.Wrap(services.ErrSourceUnavailable, "source", "fetch", "down", nil),
	}
	p, _ := newPipeline(t, cfg, client, newStubFactory())

	_, err := p.Run(context.Background(), testWindow(t))
	if !errors.Is(err, services.ErrSourceUnavailable) {
		t.Fatalf("expected source error, got %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(cfg.Paths.PIPDir, "2026-01-15")); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatal("pip directory created despite harvest failure")
	}
}
