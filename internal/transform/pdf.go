package transform

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"distiller/internal/manifest"
	"distiller/internal/services"
	"distiller/internal/tools"
)

// PDF paginates the HTML derivative through the external rendering engine.
type PDF struct {
	renderer tools.PDFRenderer
}

// NewPDF constructs the PDF stage over a rendering boundary.
func NewPDF(renderer tools.PDFRenderer) *PDF {
	return &PDF{renderer: renderer}
}

func (p *PDF) Stage() manifest.Stage { return manifest.StagePDF }

// Transform renders articles/{id}/article.pdf from the HTML derivative.
func (p *PDF) Transform(ctx context.Context, root string, entry *manifest.Entry) (Result, error) {
	htmlRel := manifest.HTMLPath(entry.ArticleID)
	pdfRel := manifest.PDFPath(entry.ArticleID)
	htmlAbs := filepath.Join(root, filepath.FromSlash(htmlRel))
	pdfAbs := filepath.Join(root, filepath.FromSlash(pdfRel))

	if _, err := os.Stat(htmlAbs); err != nil {
		return Result{}, services.Wrap(services.ErrNotFound, "pdf", "transform",
			fmt.Sprintf("html derivative missing for article %s", entry.ArticleID), err)
	}
	if err := p.renderer.Render(ctx, htmlAbs, pdfAbs); err != nil {
		return Result{}, err
	}

	pages, err := countPDFPages(pdfAbs)
	if err != nil {
		return Result{}, services.Wrap(services.ErrExternalTool, "pdf", "transform",
			fmt.Sprintf("inspect rendered pdf for article %s", entry.ArticleID), err)
	}
	return Result{Paths: []string{pdfRel}, Pages: pages}, nil
}

// pagePattern matches page object declarations; the plural /Pages tree nodes
// are excluded by the boundary at the end.
var pagePattern = regexp.MustCompile(`/Type\s*/Page[^s]`)

// countPDFPages counts page objects in an uncompressed-object-table PDF. The
// rendering engine writes plain page objects, so a pattern count is reliable
// for our own output. Zero pages is reported as an error upstream.
func countPDFPages(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	// Pad so a trailing "/Type /Page" at EOF still matches.
	return len(pagePattern.FindAll(append(data, '\n'), -1)), nil
}
