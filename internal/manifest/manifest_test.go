package manifest_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"distiller/internal/manifest"
	"distiller/internal/services"
)

func writeArticleFile(t *testing.T, root, rel string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func newSIP(t *testing.T, ids ...string) *manifest.Manifest {
	t.Helper()
	root := t.TempDir()
	m := manifest.New(root, "2026-01-15", manifest.KindSIP)
	for _, id := range ids {
		rel := manifest.RecordPath(id)
		writeArticleFile(t, root, rel)
		if err := m.Upsert(id, func(e *manifest.Entry) {
			e.RecordPath = rel
		}); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}
	return m
}

func TestSaveLoadRoundTrip(t *testing.T) {
	m := newSIP(t, "a1", "a2")
	if err := m.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := manifest.Load(m.Root())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.ID != "2026-01-15" || loaded.Kind != manifest.KindSIP {
		t.Fatalf("unexpected identity: %+v", loaded)
	}
	if got := loaded.ArticleIDs(); len(got) != 2 || got[0] != "a1" || got[1] != "a2" {
		t.Fatalf("ArticleIDs = %v", got)
	}
}

func TestLoadRejectsCorruptManifest(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, manifest.FileName), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := manifest.Load(root)
	if !errors.Is(err, services.ErrManifestCorrupt) {
		t.Fatalf("expected corrupt marker, got %v", err)
	}
}

func TestLoadMissingManifestIsNotFound(t *testing.T) {
	_, err := manifest.Load(t.TempDir())
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSaveRejectsDanglingReference(t *testing.T) {
	m := newSIP(t, "a1")
	if err := m.Upsert("a1", func(e *manifest.Entry) {
		e.SetDerivative(manifest.StageHTML, manifest.Derivative{
			State: manifest.StateDone,
			Paths: []string{manifest.HTMLPath("a1")},
		})
	}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	err := m.Save()
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected dangling reference error, got %v", err)
	}
	if err == nil || !strings.Contains(err.Error(), "article.html") {
		t.Fatalf("expected offending path in error, got %v", err)
	}
}

func TestEntryNotFound(t *testing.T) {
	m := newSIP(t, "a1")
	if _, err := m.Entry("missing"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := m.Entry("a1"); err != nil {
		t.Fatalf("Entry: %v", err)
	}
}

func TestSealIsMonotonic(t *testing.T) {
	m := newSIP(t, "a1")
	if err := m.Seal(); err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if err := m.Upsert("a1", nil); !errors.Is(err, services.ErrSealedPackage) {
		t.Fatalf("expected sealed package error, got %v", err)
	}
	if err := m.Upsert("a2", nil); !errors.Is(err, services.ErrSealedPackage) {
		t.Fatalf("expected sealed package error for new entry, got %v", err)
	}
	if err := m.Seal(); !errors.Is(err, services.ErrSealedPackage) {
		t.Fatalf("expected double seal rejection, got %v", err)
	}
	if _, ok := m.Entries["a2"]; ok {
		t.Fatal("failed upsert must not create an entry")
	}
}

func TestSealedManifestSurvivesFailedMutation(t *testing.T) {
	m := newSIP(t, "a1")
	if err := m.Seal(); err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if err := m.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}
	before, err := os.ReadFile(filepath.Join(m.Root(), manifest.FileName))
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	_ = m.Upsert("a1", func(e *manifest.Entry) { e.Title = "mutated" })

	after, err := os.ReadFile(filepath.Join(m.Root(), manifest.FileName))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(before) != string(after) {
		t.Fatal("sealed manifest changed on disk after failed mutation")
	}
}

func TestIsCompleteAndMissing(t *testing.T) {
	m := newSIP(t, "a1", "a2")
	root := m.Root()

	writeArticleFile(t, root, manifest.HTMLPath("a1"))
	if err := m.Upsert("a1", func(e *manifest.Entry) {
		e.SetDerivative(manifest.StageHTML, manifest.Derivative{
			State: manifest.StateDone,
			Paths: []string{manifest.HTMLPath("a1")},
		})
	}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	required := []manifest.Stage{manifest.StageHTML}
	if m.IsComplete(required) {
		t.Fatal("expected incomplete package")
	}
	missing := m.Missing(required)
	if len(missing) != 1 || len(missing["a2"]) != 1 || missing["a2"][0] != manifest.StageHTML {
		t.Fatalf("Missing = %v", missing)
	}
}

func TestPreconditionDependencyStates(t *testing.T) {
	entry := &manifest.Entry{ArticleID: "a1"}

	if _, ok := manifest.Precondition(entry, manifest.StageMODS); !ok {
		t.Fatal("mods must not require upstream derivatives")
	}
	if reason, ok := manifest.Precondition(entry, manifest.StagePDF); ok || !strings.Contains(reason, "html") {
		t.Fatalf("expected missing html reason, got ok=%v reason=%q", ok, reason)
	}

	entry.SetDerivative(manifest.StageHTML, manifest.Derivative{State: manifest.StateFailed, Reason: "parse error"})
	if reason, ok := manifest.Precondition(entry, manifest.StagePDF); ok || !strings.Contains(reason, "failed") {
		t.Fatalf("expected failed dep reason, got ok=%v reason=%q", ok, reason)
	}

	entry.SetDerivative(manifest.StageHTML, manifest.Derivative{State: manifest.StateDone})
	if _, ok := manifest.Precondition(entry, manifest.StagePDF); !ok {
		t.Fatal("expected pdf eligible once html done")
	}
}

func TestParseStage(t *testing.T) {
	if stage, ok := manifest.ParseStage(" ALTO "); !ok || stage != manifest.StageALTO {
		t.Fatalf("ParseStage = %v %v", stage, ok)
	}
	if _, ok := manifest.ParseStage("docx"); ok {
		t.Fatal("expected unknown stage rejection")
	}
}
