package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"distiller/internal/services"
)

// schemaVersion is stamped into new manifests. Readers reject manifests with
// a different major shape via validate.
const schemaVersion = "1.0"

// New creates an in-memory manifest bound to the given package directory.
func New(root, id string, kind Kind) *Manifest {
	return &Manifest{
		ID:      id,
		Version: schemaVersion,
		Kind:    kind,
		Status:  StatusBuilding,
		Entries: make(map[string]*Entry),
		root:    root,
	}
}

// Load reads and validates the manifest for the package rooted at dir.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, services.Wrap(services.ErrNotFound, "manifest", "load",
				fmt.Sprintf("no manifest at %s", path), err)
		}
		return nil, services.Wrap(services.ErrManifestCorrupt, "manifest", "load", "read manifest", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, services.Wrap(services.ErrManifestCorrupt, "manifest", "load", "parse manifest", err)
	}
	m.root = dir
	if m.Entries == nil {
		m.Entries = make(map[string]*Entry)
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Manifest) validate() error {
	if m.ID == "" {
		return services.Wrap(services.ErrManifestCorrupt, "manifest", "validate", "missing package id", nil)
	}
	switch m.Kind {
	case KindPIP, KindSIP:
	default:
		return services.Wrap(services.ErrManifestCorrupt, "manifest", "validate",
			fmt.Sprintf("unknown package kind %q", m.Kind), nil)
	}
	switch m.Status {
	case StatusBuilding, StatusSealed:
	default:
		return services.Wrap(services.ErrManifestCorrupt, "manifest", "validate",
			fmt.Sprintf("unknown status %q", m.Status), nil)
	}
	for id, entry := range m.Entries {
		if entry == nil || entry.ArticleID != id {
			return services.Wrap(services.ErrManifestCorrupt, "manifest", "validate",
				fmt.Sprintf("entry key %q does not match its article id", id), nil)
		}
	}
	return nil
}

// Entry returns the record for the given article identifier.
func (m *Manifest) Entry(id string) (*Entry, error) {
	entry, ok := m.Entries[id]
	if !ok {
		return nil, services.Wrap(services.ErrNotFound, "manifest", "entry",
			fmt.Sprintf("article %s not in package %s", id, m.ID), nil)
	}
	return entry, nil
}

// Upsert creates or mutates the entry for id under the seal guard. The
// mutation function receives the live entry and may modify it freely; keys
// are disjoint per article so last-writer-wins semantics are safe.
func (m *Manifest) Upsert(id string, fn func(*Entry)) error {
	if m.Sealed() {
		return services.Wrap(services.ErrSealedPackage, "manifest", "upsert",
			fmt.Sprintf("package %s is sealed", m.ID), nil)
	}
	entry, ok := m.Entries[id]
	if !ok {
		entry = &Entry{ArticleID: id}
		m.Entries[id] = entry
	}
	if fn != nil {
		fn(entry)
	}
	return nil
}

// Seal marks the package terminal. Sealing twice is an error: it signals an
// operator replaying a finished package.
func (m *Manifest) Seal() error {
	if m.Sealed() {
		return services.Wrap(services.ErrSealedPackage, "manifest", "seal",
			fmt.Sprintf("package %s already sealed", m.ID), nil)
	}
	now := time.Now().UTC()
	m.Status = StatusSealed
	m.SealedAt = &now
	return nil
}

// Save persists the manifest to its package directory. Every file referenced
// by an entry must exist on disk; a dangling reference aborts the save. The
// write is guarded by a sibling lock file and lands atomically via rename.
func (m *Manifest) Save() error {
	if m.root == "" {
		return services.Wrap(services.ErrValidation, "manifest", "save", "manifest not bound to a directory", nil)
	}
	if err := m.checkReferences(); err != nil {
		return err
	}

	lock := flock.New(filepath.Join(m.root, lockName))
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("acquire manifest lock: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	data = append(data, '\n')

	tmp := filepath.Join(m.root, FileName+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(m.root, FileName)); err != nil {
		return fmt.Errorf("replace manifest: %w", err)
	}
	return nil
}

func (m *Manifest) checkReferences() error {
	for _, id := range m.ArticleIDs() {
		entry := m.Entries[id]
		refs := make([]string, 0, 4+len(entry.Media))
		if entry.RecordPath != "" {
			refs = append(refs, entry.RecordPath)
		}
		for _, media := range entry.Media {
			refs = append(refs, media.LocalPath)
		}
		for _, d := range entry.Derivatives {
			if d.State != StateDone {
				continue
			}
			refs = append(refs, d.Paths...)
		}
		for _, ref := range refs {
			if _, err := os.Stat(filepath.Join(m.root, filepath.FromSlash(ref))); err != nil {
				return services.Wrap(services.ErrValidation, "manifest", "save",
					fmt.Sprintf("article %s references missing file %s", id, ref), err)
			}
		}
	}
	if m.METSPath != "" {
		if _, err := os.Stat(filepath.Join(m.root, filepath.FromSlash(m.METSPath))); err != nil {
			return services.Wrap(services.ErrValidation, "manifest", "save",
				fmt.Sprintf("manifest references missing METS document %s", m.METSPath), err)
		}
	}
	return nil
}

// Precondition reports whether the stage may run for the entry. A nil error
// means eligible; otherwise the returned reason explains the skip.
func Precondition(entry *Entry, stage Stage) (string, bool) {
	for _, dep := range Requires(stage) {
		d := entry.Derivative(dep)
		switch {
		case d == nil || d.State == StatePending:
			return fmt.Sprintf("requires %s derivative which has not been produced", dep), false
		case d.State == StateSkipped:
			return fmt.Sprintf("requires %s derivative which was skipped: %s", dep, d.Reason), false
		case d.State == StateFailed:
			return fmt.Sprintf("requires %s derivative which failed: %s", dep, d.Reason), false
		}
	}
	return "", true
}
