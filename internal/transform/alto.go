package transform

import (
	"context"
	"encoding/xml"
	"fmt"
	"math"
	"os"
	"path"
	"path/filepath"

	"distiller/internal/config"
	"distiller/internal/manifest"
	"distiller/internal/services"
	"distiller/internal/tools"
)

// altoNamespace is the ALTO 2.1 schema namespace.
const altoNamespace = "http://www.loc.gov/standards/alto/ns-v2#"

// ALTO serializes word-level layout XML from the PDF derivative. Coordinates
// arrive in PDF points and are scaled to pixels at the configured raster DPI
// so they register against the page images.
type ALTO struct {
	extractor tools.TextExtractor
	perPage   bool
	scale     float64
}

// NewALTO constructs the layout stage over a text extraction boundary.
func NewALTO(cfg *config.Config, extractor tools.TextExtractor) *ALTO {
	return &ALTO{
		extractor: extractor,
		perPage:   cfg.ALTO.PerPage,
		scale:     float64(cfg.Images.DPI) / 72.0,
	}
}

func (a *ALTO) Stage() manifest.Stage { return manifest.StageALTO }

// Transform extracts geometry from articles/{id}/article.pdf and writes one
// ALTO document per page, or a single document when per-page output is off.
func (a *ALTO) Transform(ctx context.Context, root string, entry *manifest.Entry) (Result, error) {
	pdfAbs := filepath.Join(root, filepath.FromSlash(manifest.PDFPath(entry.ArticleID)))
	if _, err := os.Stat(pdfAbs); err != nil {
		return Result{}, services.Wrap(services.ErrNotFound, "alto", "transform",
			fmt.Sprintf("pdf derivative missing for article %s", entry.ArticleID), err)
	}

	pages, err := a.extractor.Extract(ctx, pdfAbs)
	if err != nil {
		return Result{}, err
	}
	if len(pages) == 0 {
		return Result{}, services.Wrap(services.ErrExternalTool, "alto", "transform",
			fmt.Sprintf("no pages extracted for article %s", entry.ArticleID), nil)
	}

	var rels []string
	if a.perPage {
		for i, page := range pages {
			doc := a.buildDoc(entry.ArticleID, []tools.Page{page}, i+1)
			rel := manifest.ALTOPagePath(entry.ArticleID, i+1)
			if err := writeXML(filepath.Join(root, filepath.FromSlash(rel)), doc); err != nil {
				return Result{}, services.Wrap(services.ErrValidation, "alto", "transform", "write layout document", err)
			}
			rels = append(rels, rel)
		}
	} else {
		doc := a.buildDoc(entry.ArticleID, pages, 1)
		rel := manifest.ALTOArticlePath(entry.ArticleID)
		if err := writeXML(filepath.Join(root, filepath.FromSlash(rel)), doc); err != nil {
			return Result{}, services.Wrap(services.ErrValidation, "alto", "transform", "write layout document", err)
		}
		rels = append(rels, rel)
	}

	return Result{Paths: rels, Pages: len(pages)}, nil
}

// ALTO 2.1 document shapes.

type altoDoc struct {
	XMLName     xml.Name        `xml:"alto"`
	Namespace   string          `xml:"xmlns,attr"`
	Description altoDescription `xml:"Description"`
	Layout      altoLayout      `xml:"Layout"`
}

type altoDescription struct {
	MeasurementUnit string           `xml:"MeasurementUnit"`
	Source          *altoSourceImage `xml:"sourceImageInformation,omitempty"`
}

type altoSourceImage struct {
	FileName string `xml:"fileName"`
}

type altoLayout struct {
	Pages []altoPage `xml:"Page"`
}

type altoPage struct {
	ID         string         `xml:"ID,attr"`
	PhysImgNr  int            `xml:"PHYSICAL_IMG_NR,attr"`
	Width      int            `xml:"WIDTH,attr"`
	Height     int            `xml:"HEIGHT,attr"`
	PrintSpace altoPrintSpace `xml:"PrintSpace"`
}

type altoPrintSpace struct {
	HPos   int         `xml:"HPOS,attr"`
	VPos   int         `xml:"VPOS,attr"`
	Width  int         `xml:"WIDTH,attr"`
	Height int         `xml:"HEIGHT,attr"`
	Blocks []altoBlock `xml:"TextBlock"`
}

type altoBlock struct {
	ID     string     `xml:"ID,attr"`
	HPos   int        `xml:"HPOS,attr"`
	VPos   int        `xml:"VPOS,attr"`
	Width  int        `xml:"WIDTH,attr"`
	Height int        `xml:"HEIGHT,attr"`
	Lines  []altoLine `xml:"TextLine"`
}

type altoLine struct {
	HPos    int          `xml:"HPOS,attr"`
	VPos    int          `xml:"VPOS,attr"`
	Width   int          `xml:"WIDTH,attr"`
	Height  int          `xml:"HEIGHT,attr"`
	Strings []altoString `xml:"String"`
}

type altoString struct {
	Content string `xml:"CONTENT,attr"`
	HPos    int    `xml:"HPOS,attr"`
	VPos    int    `xml:"VPOS,attr"`
	Width   int    `xml:"WIDTH,attr"`
	Height  int    `xml:"HEIGHT,attr"`
}

// buildDoc converts extracted geometry into an ALTO document. firstPageNr is
// the physical page number of the first included page.
func (a *ALTO) buildDoc(articleID string, pages []tools.Page, firstPageNr int) altoDoc {
	doc := altoDoc{
		Namespace: altoNamespace,
		Description: altoDescription{
			MeasurementUnit: "pixel",
		},
	}
	if len(pages) == 1 {
		doc.Description.Source = &altoSourceImage{
			FileName: path.Base(manifest.ImagePath(articleID, firstPageNr)),
		}
	}

	for i, page := range pages {
		nr := firstPageNr + i
		ap := altoPage{
			ID:        fmt.Sprintf("PAGE_%03d", nr),
			PhysImgNr: nr,
			Width:     a.px(page.Width),
			Height:    a.px(page.Height),
		}
		ap.PrintSpace = altoPrintSpace{
			Width:  ap.Width,
			Height: ap.Height,
		}
		for bi, block := range page.Blocks {
			ab := altoBlock{
				ID:     fmt.Sprintf("PAGE_%03d_B%02d", nr, bi+1),
				HPos:   a.px(block.XMin),
				VPos:   a.px(block.YMin),
				Width:  a.px(block.XMax - block.XMin),
				Height: a.px(block.YMax - block.YMin),
			}
			for _, line := range block.Lines {
				al := altoLine{
					HPos:   a.px(line.XMin),
					VPos:   a.px(line.YMin),
					Width:  a.px(line.XMax - line.XMin),
					Height: a.px(line.YMax - line.YMin),
				}
				for _, word := range line.Words {
					al.Strings = append(al.Strings, altoString{
						Content: word.Text,
						HPos:    a.px(word.XMin),
						VPos:    a.px(word.YMin),
						Width:   a.px(word.XMax - word.XMin),
						Height:  a.px(word.YMax - word.YMin),
					})
				}
				ab.Lines = append(ab.Lines, al)
			}
			ap.PrintSpace.Blocks = append(ap.PrintSpace.Blocks, ab)
		}
		doc.Layout.Pages = append(doc.Layout.Pages, ap)
	}
	return doc
}

func (a *ALTO) px(points float64) int {
	return int(math.Round(points * a.scale))
}

// writeXML marshals doc with an XML declaration and writes it to abs.
func writeXML(abs string, doc any) error {
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return err
	}
	data, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	out := append([]byte(xml.Header), data...)
	out = append(out, '\n')
	return os.WriteFile(abs, out, 0o644)
}
