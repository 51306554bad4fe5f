package testsupport

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"distiller/internal/config"
	"distiller/internal/manifest"
	"distiller/internal/source"
)

// Record returns a minimal harvested article record.
func Record(id, headline string) source.Record {
	return source.Record{
		ID:          id,
		Headline:    headline,
		Body:        "<p>The quick brown fox jumps over the lazy dog.</p>",
		PublishedAt: time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC),
		Authors:     []source.Author{{Name: "Test Reporter"}},
	}
}

// WritePIP builds a sealed PIP containing the given records under the
// configured PIP directory and returns its path.
func WritePIP(t testing.TB, cfg *config.Config, id string, records []source.Record) string {
	t.Helper()

	dir := filepath.Join(cfg.Paths.PIPDir, id)
	m := manifest.New(dir, id, manifest.KindPIP)
	m.Title = "Test Publication, " + id
	m.DateRange = [2]string{id, id}
	m.PDI = &manifest.PDI{
		SourceSystem: "ceo3",
		SourceURL:    "https://example.test",
		HarvestedAt:  time.Now().UTC(),
		Agent:        "distiller-test",
	}

	for _, rec := range records {
		rel := manifest.RecordPath(rec.ID)
		abs := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			t.Fatalf("mkdir for %s: %v", abs, err)
		}
		data, err := json.MarshalIndent(rec, "", "  ")
		if err != nil {
			t.Fatalf("encode record %s: %v", rec.ID, err)
		}
		if err := os.WriteFile(abs, data, 0o644); err != nil {
			t.Fatalf("write record %s: %v", rec.ID, err)
		}
		recID := rec.ID
		headline := rec.Headline
		published := rec.PublishedAt.Format("2006-01-02")
		if err := m.Upsert(recID, func(e *manifest.Entry) {
			e.Title = headline
			e.PublishedAt = published
			e.RecordPath = rel
		}); err != nil {
			t.Fatalf("upsert %s: %v", recID, err)
		}
	}

	if err := m.Seal(); err != nil {
		t.Fatalf("seal pip: %v", err)
	}
	if err := m.Save(); err != nil {
		t.Fatalf("save pip: %v", err)
	}
	return dir
}

// AttachMedia writes a media file for the article inside the PIP and records
// it on the manifest entry.
func AttachMedia(t testing.TB, pipDir, articleID, filename string, body []byte) {
	t.Helper()

	m, err := manifest.Load(pipDir)
	if err != nil {
		t.Fatalf("load pip: %v", err)
	}
	rel := manifest.MediaPath(articleID, filename)
	abs := filepath.Join(pipDir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		t.Fatalf("mkdir media: %v", err)
	}
	if err := os.WriteFile(abs, body, 0o644); err != nil {
		t.Fatalf("write media: %v", err)
	}

	// Sealed PIPs reject Upsert, so edit the entry directly and rewrite.
	entry, ok := m.Entries[articleID]
	if !ok {
		t.Fatalf("article %s not in pip", articleID)
	}
	entry.Media = append(entry.Media, manifest.Media{
		OriginalURL: "https://cdn.example.test/" + filename,
		LocalPath:   rel,
		MediaType:   "image/jpeg",
	})
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		t.Fatalf("encode pip manifest: %v", err)
	}
	if err := os.WriteFile(filepath.Join(pipDir, manifest.FileName), data, 0o644); err != nil {
		t.Fatalf("rewrite pip manifest: %v", err)
	}
}
