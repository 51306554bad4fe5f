package aggregate

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"distiller/internal/config"
	"distiller/internal/fileutil"
	"distiller/internal/logging"
	"distiller/internal/manifest"
	"distiller/internal/services"
	"distiller/internal/source"
)

// Aggregator harvests a publication window from the content source and builds
// a sealed PIP on disk.
type Aggregator struct {
	cfg    *config.Config
	client source.Client
	logger *slog.Logger
	statfs statfsFunc
}

// New constructs an aggregator over the given source client.
func New(cfg *config.Config, client source.Client, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Aggregator{
		cfg:    cfg,
		client: client,
		logger: logging.NewComponentLogger(logger, "aggregate"),
		statfs: realStatfs,
	}
}

// Harvest fetches every record in the window, writes records and media under
// a temporary directory, and renames the finished package into place. The
// returned manifest is sealed; nothing may append to the PIP afterwards.
//
// An interrupted harvest leaves only a temp directory behind, which the next
// run of the same window replaces. The final package directory appears
// atomically or not at all.
func (a *Aggregator) Harvest(ctx context.Context, window Window) (*manifest.Manifest, error) {
	if err := os.MkdirAll(a.cfg.Paths.PIPDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "aggregate", "harvest", "create pip directory", err)
	}
	if err := checkFreeSpace(a.statfs, a.cfg.Paths.PIPDir); err != nil {
		return nil, err
	}

	final := filepath.Join(a.cfg.Paths.PIPDir, window.ID())
	if _, err := os.Stat(final); err == nil {
		return nil, services.Wrap(services.ErrValidation, "aggregate", "harvest",
			fmt.Sprintf("package %s already exists at %s", window.ID(), final), nil)
	}

	ctx = services.WithPackageID(ctx, window.ID())
	log := logging.WithContext(ctx, a.logger)
	log.Info("harvesting window",
		logging.String("start", window.Start.Format(DateLayout)),
		logging.String("end", window.End.Format(DateLayout)))

	records, err := a.client.FetchWindow(ctx, window.Start, window.End)
	if err != nil {
		return nil, err
	}
	records = dedupe(records)
	if len(records) == 0 {
		return nil, services.Wrap(services.ErrNoEligibleInput, "aggregate", "harvest",
			fmt.Sprintf("no articles published between %s and %s", window.Start.Format(DateLayout), window.End.Format(DateLayout)), nil)
	}

	build := filepath.Join(a.cfg.Paths.PIPDir, ".building-"+window.ID())
	if err := os.RemoveAll(build); err != nil {
		return nil, services.Wrap(services.ErrValidation, "aggregate", "harvest", "clear stale build directory", err)
	}
	if err := os.MkdirAll(build, 0o755); err != nil {
		return nil, services.Wrap(services.ErrValidation, "aggregate", "harvest", "create build directory", err)
	}
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.RemoveAll(build)
		}
	}()

	m := manifest.New(build, window.ID(), manifest.KindPIP)
	m.Title = window.Title(a.cfg.Source.PublicationName, a.cfg.Source.Section)
	m.DateRange = window.DateRange()
	m.PDI = &manifest.PDI{
		SourceSystem: "ceo3",
		SourceURL:    a.client.BaseURL(),
		HarvestedAt:  time.Now().UTC(),
		Agent:        a.cfg.Compile.Agent,
	}

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := a.writeArticle(ctx, m, build, rec); err != nil {
			return nil, err
		}
	}

	if err := m.Seal(); err != nil {
		return nil, err
	}
	if err := m.Save(); err != nil {
		return nil, err
	}

	if err := os.Rename(build, final); err != nil {
		return nil, services.Wrap(services.ErrValidation, "aggregate", "harvest", "move package into place", err)
	}
	cleanup = false

	log.Info("harvest complete",
		logging.Int("articles", len(records)),
		logging.String("package", final))

	// Reload from the final location so the returned manifest is bound to
	// the directory callers will hand to the transformer chain.
	return manifest.Load(final)
}

func (a *Aggregator) writeArticle(ctx context.Context, m *manifest.Manifest, root string, rec source.Record) error {
	log := logging.WithContext(services.WithArticleID(ctx, rec.ID), a.logger)

	recRel := manifest.RecordPath(rec.ID)
	recAbs := filepath.Join(root, filepath.FromSlash(recRel))
	if err := os.MkdirAll(filepath.Dir(recAbs), 0o755); err != nil {
		return services.Wrap(services.ErrValidation, "aggregate", "harvest", "create article directory", err)
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return services.Wrap(services.ErrValidation, "aggregate", "harvest", "encode record", err)
	}
	if err := os.WriteFile(recAbs, append(data, '\n'), 0o644); err != nil {
		return services.Wrap(services.ErrValidation, "aggregate", "harvest", "write record", err)
	}

	var media []manifest.Media
	if a.cfg.Source.DownloadMedia && rec.Media != nil {
		item, err := a.downloadMedia(ctx, root, rec.ID, *rec.Media)
		if err != nil {
			// A missing attachment does not invalidate the article;
			// the HTML stage degrades to text-only rendering.
			log.Warn("media download failed", logging.Error(err))
		} else {
			media = append(media, item)
		}
	}

	err = m.Upsert(rec.ID, func(e *manifest.Entry) {
		e.Title = rec.Headline
		e.PublishedAt = rec.PublishedAt.Format(DateLayout)
		e.RecordPath = recRel
		e.Media = media
	})
	if err != nil {
		return err
	}

	log.Debug("article harvested", logging.String("headline", rec.Headline))
	return nil
}

func (a *Aggregator) downloadMedia(ctx context.Context, root, articleID string, ref source.MediaRef) (manifest.Media, error) {
	url := a.client.MediaURL(ref)
	data, err := a.client.FetchMedia(ctx, url)
	if err != nil {
		return manifest.Media{}, err
	}

	// Name by attachment UUID so body references, which embed the same
	// UUID in their CDN URLs, can be rewritten to the local file.
	name := ref.AttachmentUUID
	if name == "" {
		name = ref.BaseName
	}
	ext := strings.TrimPrefix(ref.Extension, ".")
	if ext != "" {
		name = name + "." + ext
	}

	rel := manifest.MediaPath(articleID, name)
	abs := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return manifest.Media{}, services.Wrap(services.ErrValidation, "aggregate", "harvest", "create media directory", err)
	}
	if err := os.WriteFile(abs, data, 0o644); err != nil {
		return manifest.Media{}, services.Wrap(services.ErrValidation, "aggregate", "harvest", "write media file", err)
	}

	sum, err := fileutil.SHA256Hex(abs)
	if err != nil {
		return manifest.Media{}, services.Wrap(services.ErrValidation, "aggregate", "harvest", "checksum media file", err)
	}

	return manifest.Media{
		OriginalURL: url,
		LocalPath:   rel,
		MediaType:   mediaType(ext),
		Checksum:    sum,
	}, nil
}

// dedupe drops repeat identifiers, keeping the first occurrence. Overlapping
// pagination windows on the source side can return the same article twice.
func dedupe(records []source.Record) []source.Record {
	seen := make(map[string]struct{}, len(records))
	out := records[:0]
	for _, rec := range records {
		if _, ok := seen[rec.ID]; ok {
			continue
		}
		seen[rec.ID] = struct{}{}
		out = append(out, rec)
	}
	return out
}

func mediaType(ext string) string {
	switch strings.ToLower(ext) {
	case "jpg", "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	case "svg":
		return "image/svg+xml"
	default:
		return "application/octet-stream"
	}
}
