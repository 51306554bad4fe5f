package tools

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"distiller/internal/config"
	"distiller/internal/services"
)

// PageRasterizer renders each page of a PDF to a JPEG file.
type PageRasterizer interface {
	// Rasterize writes one JPEG per page under outPrefix and returns the
	// produced paths in page order.
	Rasterize(ctx context.Context, pdfPath, outPrefix string) ([]string, error)
}

// Rasterizer drives the pdftoppm CLI.
type Rasterizer struct {
	binary  string
	dpi     int
	timeout time.Duration
	exec    Executor
	glob    func(pattern string) ([]string, error)
}

// NewRasterizer constructs the rasterizer from configuration.
func NewRasterizer(cfg *config.Config, opts ...Option) (*Rasterizer, error) {
	binary := strings.TrimSpace(cfg.Tools.Rasterizer)
	if binary == "" {
		return nil, errors.New("rasterizer binary required")
	}
	s := newSettings(opts)
	return &Rasterizer{
		binary:  binary,
		dpi:     cfg.Images.DPI,
		timeout: time.Duration(cfg.Tools.TimeoutSeconds) * time.Second,
		exec:    s.exec,
		glob:    filepath.Glob,
	}, nil
}

// pageSuffix matches the page number pdftoppm appends to the output prefix.
var pageSuffix = regexp.MustCompile(`-(\d+)\.jpg$`)

// Rasterize runs `pdftoppm -jpeg -r <dpi> <pdf> <outPrefix>` and collects the
// numbered output files in page order.
func (r *Rasterizer) Rasterize(ctx context.Context, pdfPath, outPrefix string) ([]string, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	args := []string{"-jpeg", "-r", strconv.Itoa(r.dpi), pdfPath, outPrefix}
	if err := r.exec.Run(ctx, r.binary, args, nil); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "tools", "rasterize",
			fmt.Sprintf("rasterize %s", pdfPath), err)
	}

	matches, err := r.glob(outPrefix + "-*.jpg")
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "tools", "rasterize", "list page images", err)
	}
	pages := make([]struct {
		num  int
		path string
	}, 0, len(matches))
	for _, match := range matches {
		m := pageSuffix.FindStringSubmatch(match)
		if m == nil {
			continue
		}
		num, convErr := strconv.Atoi(m[1])
		if convErr != nil {
			continue
		}
		pages = append(pages, struct {
			num  int
			path string
		}{num, match})
	}
	if len(pages) == 0 {
		return nil, services.Wrap(services.ErrExternalTool, "tools", "rasterize",
			fmt.Sprintf("rasterizer produced no pages for %s", pdfPath), nil)
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].num < pages[j].num })

	paths := make([]string, len(pages))
	for i, page := range pages {
		paths[i] = page.path
	}
	return paths, nil
}
