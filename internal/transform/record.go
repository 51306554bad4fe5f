package transform

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"distiller/internal/manifest"
	"distiller/internal/services"
	"distiller/internal/source"
)

// loadRecord reads the harvested source record referenced by the entry.
func loadRecord(root string, entry *manifest.Entry) (source.Record, error) {
	var rec source.Record
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(entry.RecordPath)))
	if err != nil {
		return rec, services.Wrap(services.ErrNotFound, "transform", "load-record",
			fmt.Sprintf("read record for article %s", entry.ArticleID), err)
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, services.Wrap(services.ErrValidation, "transform", "load-record",
			fmt.Sprintf("parse record for article %s", entry.ArticleID), err)
	}
	return rec, nil
}
