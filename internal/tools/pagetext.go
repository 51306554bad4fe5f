package tools

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"strings"
	"time"

	"distiller/internal/config"
	"distiller/internal/services"
)

// Word is one token with its bounding box in PDF points, origin top-left.
type Word struct {
	Text string
	XMin float64
	YMin float64
	XMax float64
	YMax float64
}

// Line groups words sharing a baseline.
type Line struct {
	XMin  float64
	YMin  float64
	XMax  float64
	YMax  float64
	Words []Word
}

// Block is a visual text block of lines.
type Block struct {
	XMin  float64
	YMin  float64
	XMax  float64
	YMax  float64
	Lines []Line
}

// Page carries the word geometry of one PDF page.
type Page struct {
	Width  float64
	Height float64
	Blocks []Block
}

// TextExtractor recovers per-word layout geometry from a paginated PDF.
type TextExtractor interface {
	Extract(ctx context.Context, pdfPath string) ([]Page, error)
}

// PageText drives pdftotext in bbox-layout mode and parses its XHTML output.
type PageText struct {
	binary  string
	timeout time.Duration
	exec    Executor
}

// NewPageText constructs the extractor from configuration.
func NewPageText(cfg *config.Config, opts ...Option) (*PageText, error) {
	binary := strings.TrimSpace(cfg.Tools.PageText)
	if binary == "" {
		return nil, errors.New("page text binary required")
	}
	s := newSettings(opts)
	return &PageText{
		binary:  binary,
		timeout: time.Duration(cfg.Tools.TimeoutSeconds) * time.Second,
		exec:    s.exec,
	}, nil
}

// Extract runs `pdftotext -bbox-layout <pdf> -` and parses the geometry.
func (p *PageText) Extract(ctx context.Context, pdfPath string) ([]Page, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	var out strings.Builder
	args := []string{"-bbox-layout", pdfPath, "-"}
	err := p.exec.Run(ctx, p.binary, args, func(line string) {
		out.WriteString(line)
		out.WriteByte('\n')
	})
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "tools", "page-text",
			fmt.Sprintf("extract text geometry from %s", pdfPath), err)
	}

	pages, err := ParseBBoxLayout(out.String())
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "tools", "page-text",
			fmt.Sprintf("parse text geometry for %s", pdfPath), err)
	}
	return pages, nil
}

// bbox-layout wire shapes. pdftotext emits XHTML with a <doc> element holding
// page/flow/block/line/word nesting and xMin-style attributes.
type bboxDoc struct {
	Pages []bboxPage `xml:"page"`
}

type bboxPage struct {
	Width  float64    `xml:"width,attr"`
	Height float64    `xml:"height,attr"`
	Flows  []bboxFlow `xml:"flow"`
}

type bboxFlow struct {
	Blocks []bboxBlock `xml:"block"`
}

type bboxBlock struct {
	XMin  float64    `xml:"xMin,attr"`
	YMin  float64    `xml:"yMin,attr"`
	XMax  float64    `xml:"xMax,attr"`
	YMax  float64    `xml:"yMax,attr"`
	Lines []bboxLine `xml:"line"`
}

type bboxLine struct {
	XMin  float64    `xml:"xMin,attr"`
	YMin  float64    `xml:"yMin,attr"`
	XMax  float64    `xml:"xMax,attr"`
	YMax  float64    `xml:"yMax,attr"`
	Words []bboxWord `xml:"word"`
}

type bboxWord struct {
	XMin float64 `xml:"xMin,attr"`
	YMin float64 `xml:"yMin,attr"`
	XMax float64 `xml:"xMax,attr"`
	YMax float64 `xml:"yMax,attr"`
	Text string  `xml:",chardata"`
}

// ParseBBoxLayout parses pdftotext -bbox-layout output into pages. Exported
// for tests that feed captured tool output directly.
func ParseBBoxLayout(raw string) ([]Page, error) {
	start := strings.Index(raw, "<doc")
	if start < 0 {
		return nil, errors.New("no <doc> element in bbox output")
	}
	end := strings.LastIndex(raw, "</doc>")
	if end < 0 {
		return nil, errors.New("unterminated <doc> element in bbox output")
	}
	var doc bboxDoc
	if err := xml.Unmarshal([]byte(raw[start:end+len("</doc>")]), &doc); err != nil {
		return nil, fmt.Errorf("decode bbox layout: %w", err)
	}

	pages := make([]Page, 0, len(doc.Pages))
	for _, wp := range doc.Pages {
		page := Page{Width: wp.Width, Height: wp.Height}
		for _, flow := range wp.Flows {
			for _, wb := range flow.Blocks {
				block := Block{XMin: wb.XMin, YMin: wb.YMin, XMax: wb.XMax, YMax: wb.YMax}
				for _, wl := range wb.Lines {
					line := Line{XMin: wl.XMin, YMin: wl.YMin, XMax: wl.XMax, YMax: wl.YMax}
					for _, ww := range wl.Words {
						text := strings.TrimSpace(ww.Text)
						if text == "" {
							continue
						}
						line.Words = append(line.Words, Word{
							Text: text,
							XMin: ww.XMin,
							YMin: ww.YMin,
							XMax: ww.XMax,
							YMax: ww.YMax,
						})
					}
					if len(line.Words) > 0 {
						block.Lines = append(block.Lines, line)
					}
				}
				if len(block.Lines) > 0 {
					page.Blocks = append(page.Blocks, block)
				}
			}
		}
		pages = append(pages, page)
	}
	return pages, nil
}
