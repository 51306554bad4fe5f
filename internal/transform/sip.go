package transform

import (
	"fmt"
	"os"
	"path/filepath"

	"distiller/internal/config"
	"distiller/internal/fileutil"
	"distiller/internal/manifest"
	"distiller/internal/services"
)

// EnsureSIP materializes the SIP for a harvested PIP, or loads it when it
// already exists. A new SIP copies every record and media file so the package
// is self-contained, carries the PIP's provenance, and starts in the building
// state with no derivatives. Built under a temp directory and renamed into
// place so an interrupted copy never looks like a usable SIP.
func EnsureSIP(cfg *config.Config, pipDir string) (*manifest.Manifest, error) {
	pip, err := manifest.Load(pipDir)
	if err != nil {
		return nil, err
	}
	if pip.Kind != manifest.KindPIP {
		return nil, services.Wrap(services.ErrValidation, "transform", "ensure-sip",
			fmt.Sprintf("package %s is a %s, not a pip", pip.ID, pip.Kind), nil)
	}
	if !pip.Sealed() {
		return nil, services.Wrap(services.ErrValidation, "transform", "ensure-sip",
			fmt.Sprintf("pip %s is not sealed; re-run the harvest", pip.ID), nil)
	}

	sipDir := filepath.Join(cfg.Paths.SIPDir, pip.ID)
	if _, statErr := os.Stat(filepath.Join(sipDir, manifest.FileName)); statErr == nil {
		sip, loadErr := manifest.Load(sipDir)
		if loadErr != nil {
			return nil, loadErr
		}
		if sip.Kind != manifest.KindSIP {
			return nil, services.Wrap(services.ErrValidation, "transform", "ensure-sip",
				fmt.Sprintf("existing package at %s is not a sip", sipDir), nil)
		}
		return sip, nil
	}

	if err := os.MkdirAll(cfg.Paths.SIPDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "transform", "ensure-sip", "create sip directory", err)
	}
	build := filepath.Join(cfg.Paths.SIPDir, ".building-"+pip.ID)
	if err := os.RemoveAll(build); err != nil {
		return nil, services.Wrap(services.ErrValidation, "transform", "ensure-sip", "clear stale build directory", err)
	}
	if err := os.MkdirAll(build, 0o755); err != nil {
		return nil, services.Wrap(services.ErrValidation, "transform", "ensure-sip", "create build directory", err)
	}
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.RemoveAll(build)
		}
	}()

	sip := manifest.New(build, pip.ID, manifest.KindSIP)
	sip.Title = pip.Title
	sip.DateRange = pip.DateRange
	sip.PDI = pip.PDI
	sip.PIPID = pip.ID
	sip.PIPPath = pipDir

	for _, id := range pip.ArticleIDs() {
		entry := pip.Entries[id]
		if err := copyArticle(pipDir, build, entry); err != nil {
			return nil, err
		}
		upsertErr := sip.Upsert(id, func(e *manifest.Entry) {
			e.Title = entry.Title
			e.PublishedAt = entry.PublishedAt
			e.RecordPath = entry.RecordPath
			e.Media = append([]manifest.Media(nil), entry.Media...)
		})
		if upsertErr != nil {
			return nil, upsertErr
		}
	}

	if err := sip.Save(); err != nil {
		return nil, err
	}
	if err := os.Rename(build, sipDir); err != nil {
		return nil, services.Wrap(services.ErrValidation, "transform", "ensure-sip", "move sip into place", err)
	}
	cleanup = false

	return manifest.Load(sipDir)
}

func copyArticle(pipDir, sipDir string, entry *manifest.Entry) error {
	rels := []string{entry.RecordPath}
	for _, media := range entry.Media {
		rels = append(rels, media.LocalPath)
	}
	for _, rel := range rels {
		src := filepath.Join(pipDir, filepath.FromSlash(rel))
		dst := filepath.Join(sipDir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return services.Wrap(services.ErrValidation, "transform", "ensure-sip", "create article directory", err)
		}
		if err := fileutil.CopyFileVerified(src, dst); err != nil {
			return services.Wrap(services.ErrValidation, "transform", "ensure-sip",
				fmt.Sprintf("copy %s from pip", rel), err)
		}
	}
	return nil
}
