package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"distiller/internal/aggregate"
	"distiller/internal/config"
	"distiller/internal/logging"
	"distiller/internal/manifest"
	"distiller/internal/mets"
	"distiller/internal/runlog"
	"distiller/internal/services"
	"distiller/internal/source"
	"distiller/internal/transform"
)

// HandlerFactory builds the handler for one transform stage. Tests substitute
// factories returning stubs.
type HandlerFactory func(cfg *config.Config, stage manifest.Stage) (transform.Handler, error)

// Summary reports what a full pipeline run did.
type Summary struct {
	RunID     string
	PackageID string
	PIPPath   string
	SIPPath   string
	Articles  int
	Outcomes  []transform.Outcome
	Sealed    bool
}

// Pipeline sequences harvest, the transformer chain, and compilation for one
// window. Every step is idempotent through the manifests, so an interrupted
// run is resumed by running the same window again.
type Pipeline struct {
	cfg      *config.Config
	client   source.Client
	logger   *slog.Logger
	ledger   *runlog.Store
	handlers HandlerFactory
}

// Option configures the pipeline.
type Option func(*Pipeline)

// WithLedger records stage invocations in the run ledger.
func WithLedger(store *runlog.Store) Option {
	return func(p *Pipeline) { p.ledger = store }
}

// WithHandlerFactory overrides stage handler construction (tests).
func WithHandlerFactory(factory HandlerFactory) Option {
	return func(p *Pipeline) {
		if factory != nil {
			p.handlers = factory
		}
	}
}

// New constructs a pipeline over the given source client.
func New(cfg *config.Config, client source.Client, logger *slog.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = logging.NewNop()
	}
	p := &Pipeline{
		cfg:      cfg,
		client:   client,
		logger:   logging.NewComponentLogger(logger, "pipeline"),
		handlers: transform.NewStageHandler,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes the full pipeline for the window. A window whose PIP already
// exists skips the harvest and picks up from the existing package.
func (p *Pipeline) Run(ctx context.Context, window aggregate.Window) (Summary, error) {
	runID := uuid.NewString()
	ctx = services.WithRequestID(services.WithPackageID(ctx, window.ID()), runID)
	log := logging.WithContext(ctx, p.logger)
	summary := Summary{RunID: runID, PackageID: window.ID()}

	pip, err := p.ensurePIP(ctx, window, &summary)
	if err != nil {
		return summary, err
	}
	summary.Articles = len(pip.Entries)

	sip, err := transform.EnsureSIP(p.cfg, summary.PIPPath)
	if err != nil {
		return summary, err
	}
	summary.SIPPath = sip.Root()
	if sip.Sealed() {
		log.Info("package already sealed; nothing to do")
		summary.Sealed = true
		return summary, nil
	}

	runner := transform.NewRunner(p.cfg, p.logger)
	for _, stage := range manifest.TransformOrder {
		handler, err := p.handlers(p.cfg, stage)
		if err != nil {
			return summary, err
		}

		started := time.Now()
		outcome, err := runner.Run(ctx, handler, sip.Root())
		p.record(ctx, runID, window.ID(), string(stage), started, outcome, err)
		summary.Outcomes = append(summary.Outcomes, outcome)
		if err != nil {
			return summary, err
		}
		if outcome.Succeeded == 0 {
			return summary, services.Wrap(services.ErrNoEligibleInput, string(stage), "pipeline",
				fmt.Sprintf("stage %s completed no articles in package %s", stage, window.ID()), nil)
		}
	}

	started := time.Now()
	sealed, err := mets.New(p.cfg, p.logger).Compile(ctx, sip.Root())
	compileOutcome := transform.Outcome{PackageID: window.ID()}
	if err == nil {
		compileOutcome.Succeeded = len(sealed.Entries)
	}
	p.record(ctx, runID, window.ID(), "compile", started, compileOutcome, err)
	if err != nil {
		return summary, err
	}
	summary.Sealed = true

	log.Info("pipeline complete",
		logging.Int("articles", summary.Articles),
		logging.String("sip", summary.SIPPath))
	return summary, nil
}

// ensurePIP harvests the window unless its PIP already exists on disk.
func (p *Pipeline) ensurePIP(ctx context.Context, window aggregate.Window, summary *Summary) (*manifest.Manifest, error) {
	pipDir := filepath.Join(p.cfg.Paths.PIPDir, window.ID())
	summary.PIPPath = pipDir

	if _, err := os.Stat(filepath.Join(pipDir, manifest.FileName)); err == nil {
		pip, loadErr := manifest.Load(pipDir)
		if loadErr != nil {
			return nil, loadErr
		}
		logging.WithContext(ctx, p.logger).Info("reusing existing harvest",
			logging.Int("articles", len(pip.Entries)))
		return pip, nil
	}

	started := time.Now()
	pip, err := aggregate.New(p.cfg, p.client, p.logger).Harvest(ctx, window)
	outcome := transform.Outcome{PackageID: window.ID()}
	if err == nil {
		outcome.Succeeded = len(pip.Entries)
		summary.PIPPath = pip.Root()
	}
	p.record(ctx, runID(ctx), window.ID(), "harvest", started, outcome, err)
	if err != nil {
		return nil, err
	}
	return pip, nil
}

func runID(ctx context.Context) string {
	id, _ := services.RequestIDFromContext(ctx)
	return id
}

// record appends a ledger row when a ledger is attached. Ledger failures are
// logged, never fatal.
func (p *Pipeline) record(ctx context.Context, runID, packageID, stage string, started time.Time, outcome transform.Outcome, runErr error) {
	if p.ledger == nil {
		return
	}
	entry := runlog.StageRun{
		RunID:      runID,
		PackageID:  packageID,
		Stage:      stage,
		StartedAt:  started,
		FinishedAt: time.Now(),
		Succeeded:  outcome.Succeeded,
		Skipped:    outcome.Skipped,
		Failed:     outcome.Failed,
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		entry.Error = runErr.Error()
	}
	if err := p.ledger.Record(ctx, entry); err != nil {
		logging.WithContext(ctx, p.logger).Warn("run ledger write failed", logging.Error(err))
	}
}
