package transform

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"distiller/internal/config"
	"distiller/internal/logging"
	"distiller/internal/manifest"
	"distiller/internal/services"
)

// Result is what a handler produced for one article.
type Result struct {
	// Paths are package-relative files written by the handler.
	Paths []string
	// Pages is the page count where the derivative is paginated.
	Pages int
}

// Handler produces one derivative kind for one article. Implementations only
// write files; the runner owns all manifest mutation.
type Handler interface {
	Stage() manifest.Stage
	Transform(ctx context.Context, root string, entry *manifest.Entry) (Result, error)
}

// Outcome summarizes one stage run over a package.
type Outcome struct {
	Stage     manifest.Stage
	PackageID string
	Succeeded int
	Skipped   int
	Failed    int
	Duration  time.Duration
}

// Total returns the number of articles considered.
func (o Outcome) Total() int { return o.Succeeded + o.Skipped + o.Failed }

// Runner executes a handler across every article in a SIP. Articles already
// carrying a done derivative are counted as successes without re-running the
// handler, so replaying a stage is always safe.
type Runner struct {
	cfg    *config.Config
	logger *slog.Logger
}

// NewRunner constructs a stage runner.
func NewRunner(cfg *config.Config, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Runner{cfg: cfg, logger: logging.NewComponentLogger(logger, "transform")}
}

// Run loads the SIP at sipDir, applies the handler to every eligible article
// through a worker pool, and persists the updated manifest. Precondition
// failures are recorded as skips, handler errors as failures; neither aborts
// the run. ErrNoEligibleInput is returned when no article is eligible and
// none has the derivative already.
func (r *Runner) Run(ctx context.Context, h Handler, sipDir string) (Outcome, error) {
	stage := h.Stage()
	outcome := Outcome{Stage: stage}
	start := time.Now()

	m, err := manifest.Load(sipDir)
	if err != nil {
		return outcome, err
	}
	outcome.PackageID = m.ID
	if m.Kind != manifest.KindSIP {
		return outcome, services.Wrap(services.ErrValidation, string(stage), "run",
			fmt.Sprintf("package %s is a %s, not a sip", m.ID, m.Kind), nil)
	}
	if m.Sealed() {
		return outcome, services.Wrap(services.ErrSealedPackage, string(stage), "run",
			fmt.Sprintf("package %s is sealed", m.ID), nil)
	}

	ctx = services.WithPackageID(services.WithStage(ctx, string(stage)), m.ID)
	log := logging.WithContext(ctx, r.logger)

	var mu sync.Mutex
	var eligible []string
	for _, id := range m.ArticleIDs() {
		entry := m.Entries[id]
		if entry.HasDone(stage) {
			outcome.Succeeded++
			continue
		}
		if reason, ok := manifest.Precondition(entry, stage); !ok {
			outcome.Skipped++
			upsertErr := m.Upsert(id, func(e *manifest.Entry) {
				e.SetDerivative(stage, manifest.Derivative{State: manifest.StateSkipped, Reason: reason})
			})
			if upsertErr != nil {
				return outcome, upsertErr
			}
			log.Info("article skipped",
				logging.String(logging.FieldArticleID, id),
				logging.String("reason", reason))
			continue
		}
		eligible = append(eligible, id)
	}

	if len(eligible) == 0 {
		if outcome.Skipped > 0 {
			if err := m.Save(); err != nil {
				return outcome, err
			}
		}
		outcome.Duration = time.Since(start)
		if outcome.Succeeded > 0 {
			return outcome, nil
		}
		return outcome, services.Wrap(services.ErrNoEligibleInput, string(stage), "run",
			fmt.Sprintf("no articles eligible for %s in package %s", stage, m.ID), nil)
	}

	workers := r.cfg.Workflow.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(eligible) {
		workers = len(eligible)
	}

	jobs := make(chan string)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range jobs {
				r.runOne(ctx, h, m, id, &mu, &outcome)
			}
		}()
	}

dispatch:
	for _, id := range eligible {
		select {
		case <-ctx.Done():
			break dispatch
		case jobs <- id:
		}
	}
	close(jobs)
	wg.Wait()

	if err := m.Save(); err != nil {
		return outcome, err
	}
	outcome.Duration = time.Since(start)

	log.Info("stage finished",
		logging.Int("succeeded", outcome.Succeeded),
		logging.Int("skipped", outcome.Skipped),
		logging.Int("failed", outcome.Failed),
		logging.Duration("duration", outcome.Duration))

	if err := ctx.Err(); err != nil {
		return outcome, err
	}
	return outcome, nil
}

func (r *Runner) runOne(ctx context.Context, h Handler, m *manifest.Manifest, id string, mu *sync.Mutex, outcome *Outcome) {
	stage := h.Stage()
	log := logging.WithContext(services.WithArticleID(ctx, id), r.logger)

	entry := m.Entries[id]
	result, err := h.Transform(ctx, m.Root(), entry)

	mu.Lock()
	defer mu.Unlock()
	if err != nil {
		outcome.Failed++
		_ = m.Upsert(id, func(e *manifest.Entry) {
			e.SetDerivative(stage, manifest.Derivative{State: manifest.StateFailed, Reason: err.Error()})
		})
		log.Error("article failed", logging.Error(err))
		return
	}
	outcome.Succeeded++
	_ = m.Upsert(id, func(e *manifest.Entry) {
		e.SetDerivative(stage, manifest.Derivative{
			State: manifest.StateDone,
			Paths: result.Paths,
			Pages: result.Pages,
		})
	})
	log.Debug("article transformed", logging.Int("files", len(result.Paths)))
}
