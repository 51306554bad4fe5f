package transform

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"distiller/internal/manifest"
	"distiller/internal/services"
	"distiller/internal/tools"
)

// Image rasterizes each PDF page into a JPEG with deterministic page names.
type Image struct {
	rasterizer tools.PageRasterizer
}

// NewImage constructs the page image stage over a rasterization boundary.
func NewImage(rasterizer tools.PageRasterizer) *Image {
	return &Image{rasterizer: rasterizer}
}

func (i *Image) Stage() manifest.Stage { return manifest.StageImage }

// Transform rasterizes articles/{id}/article.pdf into articles/{id}/page-NNN.jpg.
func (i *Image) Transform(ctx context.Context, root string, entry *manifest.Entry) (Result, error) {
	pdfAbs := filepath.Join(root, filepath.FromSlash(manifest.PDFPath(entry.ArticleID)))
	if _, err := os.Stat(pdfAbs); err != nil {
		return Result{}, services.Wrap(services.ErrNotFound, "image", "transform",
			fmt.Sprintf("pdf derivative missing for article %s", entry.ArticleID), err)
	}

	// Rasterize into a scratch directory, then move into the article dir
	// under final names so a crash never leaves misnumbered pages behind.
	scratch, err := os.MkdirTemp(filepath.Dir(pdfAbs), ".raster-")
	if err != nil {
		return Result{}, services.Wrap(services.ErrValidation, "image", "transform", "create scratch directory", err)
	}
	defer func() { _ = os.RemoveAll(scratch) }()

	produced, err := i.rasterizer.Rasterize(ctx, pdfAbs, filepath.Join(scratch, "page"))
	if err != nil {
		return Result{}, err
	}

	rels := make([]string, 0, len(produced))
	for page, src := range produced {
		rel := manifest.ImagePath(entry.ArticleID, page+1)
		dst := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.Rename(src, dst); err != nil {
			return Result{}, services.Wrap(services.ErrValidation, "image", "transform",
				fmt.Sprintf("place page image %d", page+1), err)
		}
		rels = append(rels, rel)
	}
	return Result{Paths: rels, Pages: len(rels)}, nil
}
