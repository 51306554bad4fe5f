package tools

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"distiller/internal/config"
	"distiller/internal/services"
)

// PDFRenderer paginates a rendered HTML file into PDF. The transformer chain
// depends on this interface; tests substitute fakes.
type PDFRenderer interface {
	Render(ctx context.Context, htmlPath, pdfPath string) error
}

// PDFEngine drives the WeasyPrint CLI.
type PDFEngine struct {
	binary  string
	timeout time.Duration
	exec    Executor
}

// NewPDFEngine constructs the engine from configuration.
func NewPDFEngine(cfg *config.Config, opts ...Option) (*PDFEngine, error) {
	binary := strings.TrimSpace(cfg.Tools.PDFEngine)
	if binary == "" {
		return nil, errors.New("pdf engine binary required")
	}
	s := newSettings(opts)
	return &PDFEngine{
		binary:  binary,
		timeout: time.Duration(cfg.Tools.TimeoutSeconds) * time.Second,
		exec:    s.exec,
	}, nil
}

// Render writes pdfPath from htmlPath. The output file must exist afterwards;
// some engine failures exit zero after writing nothing.
func (e *PDFEngine) Render(ctx context.Context, htmlPath, pdfPath string) error {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	args := []string{htmlPath, pdfPath}
	if err := e.exec.Run(ctx, e.binary, args, nil); err != nil {
		return services.Wrap(services.ErrExternalTool, "tools", "render-pdf",
			fmt.Sprintf("render %s", htmlPath), err)
	}
	info, err := os.Stat(pdfPath)
	if err != nil || info.Size() == 0 {
		return services.Wrap(services.ErrExternalTool, "tools", "render-pdf",
			fmt.Sprintf("engine produced no output at %s", pdfPath), err)
	}
	return nil
}
