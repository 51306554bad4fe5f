package transform

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"distiller/internal/manifest"
	"distiller/internal/services"
	"distiller/internal/source"
	"distiller/internal/testsupport"
	"distiller/internal/tools"
)

type fakeRenderer struct {
	body []byte
	err  error
}

func (f *fakeRenderer) Render(ctx context.Context, htmlPath, pdfPath string) error {
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(pdfPath, f.body, 0o644)
}

type fakeExtractor struct {
	pages []tools.Page
	err   error
}

func (f *fakeExtractor) Extract(ctx context.Context, pdfPath string) ([]tools.Page, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.pages, nil
}

type fakeRasterizer struct {
	pages int
}

func (f *fakeRasterizer) Rasterize(ctx context.Context, pdfPath, outPrefix string) ([]string, error) {
	var paths []string
	for i := 1; i <= f.pages; i++ {
		path := outPrefix + "-" + string(rune('0'+i)) + ".jpg"
		if err := os.WriteFile(path, []byte("jpeg"), 0o644); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeDerivative(t *testing.T, root, rel, content string) {
	t.Helper()
	abs := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestPDFTransform(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	pipDir := testsupport.WritePIP(t, cfg, "2026-01-15", []source.Record{testsupport.Record("1", "Story")})
	sip, err := EnsureSIP(cfg, pipDir)
	if err != nil {
		t.Fatal(err)
	}
	writeDerivative(t, sip.Root(), manifest.HTMLPath("1"), "<html/>")

	renderer := &fakeRenderer{body: []byte("%PDF-1.7\n<</Type /Pages /Kids[]>>\n<</Type /Page /Parent 1>>\n<</Type /Page /Parent 1>>\n")}
	result, err := NewPDF(renderer).Transform(context.Background(), sip.Root(), sip.Entries["1"])
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Paths) != 1 || result.Paths[0] != "articles/1/article.pdf" {
		t.Fatalf("paths = %v", result.Paths)
	}
	if result.Pages != 2 {
		t.Fatalf("pages = %d", result.Pages)
	}
}

func TestPDFTransformMissingHTML(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	pipDir := testsupport.WritePIP(t, cfg, "2026-01-15", []source.Record{testsupport.Record("1", "Story")})
	sip, err := EnsureSIP(cfg, pipDir)
	if err != nil {
		t.Fatal(err)
	}

	_, err = NewPDF(&fakeRenderer{}).Transform(context.Background(), sip.Root(), sip.Entries["1"])
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestCountPDFPages(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.pdf")
	content := "<</Type /Pages /Kids []>> <</Type /Page /Parent>> <</Type/Page/Parent>> trailer /Type /Page"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := countPDFPages(path)
	if err != nil {
		t.Fatal(err)
	}
	if got != 3 {
		t.Fatalf("pages = %d, want 3", got)
	}
}

func samplePages() []tools.Page {
	return []tools.Page{
		{
			Width:  612,
			Height: 792,
			Blocks: []tools.Block{{
				XMin: 56, YMin: 72, XMax: 556, YMax: 110,
				Lines: []tools.Line{{
					XMin: 56, YMin: 72, XMax: 300, YMax: 92,
					Words: []tools.Word{
						{Text: "Campus", XMin: 56, YMin: 72, XMax: 120, YMax: 92},
						{Text: "votes", XMin: 126, YMin: 72, XMax: 180, YMax: 92},
					},
				}},
			}},
		},
		{
			Width:  612,
			Height: 792,
			Blocks: []tools.Block{{
				XMin: 56, YMin: 72, XMax: 400, YMax: 92,
				Lines: []tools.Line{{
					XMin: 56, YMin: 72, XMax: 400, YMax: 92,
					Words: []tools.Word{{Text: "Results", XMin: 56, YMin: 72, XMax: 130, YMax: 92}},
				}},
			}},
		},
	}
}

func TestALTOTransformPerPage(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	pipDir := testsupport.WritePIP(t, cfg, "2026-01-15", []source.Record{testsupport.Record("1", "Story")})
	sip, err := EnsureSIP(cfg, pipDir)
	if err != nil {
		t.Fatal(err)
	}
	writeDerivative(t, sip.Root(), manifest.PDFPath("1"), "%PDF")

	result, err := NewALTO(cfg, &fakeExtractor{pages: samplePages()}).Transform(context.Background(), sip.Root(), sip.Entries["1"])
	if err != nil {
		t.Fatal(err)
	}
	if result.Pages != 2 {
		t.Fatalf("pages = %d", result.Pages)
	}
	want := []string{"articles/1/001.alto.xml", "articles/1/002.alto.xml"}
	if len(result.Paths) != 2 || result.Paths[0] != want[0] || result.Paths[1] != want[1] {
		t.Fatalf("paths = %v", result.Paths)
	}

	data, err := os.ReadFile(filepath.Join(sip.Root(), "articles", "1", "001.alto.xml"))
	if err != nil {
		t.Fatal(err)
	}
	doc := string(data)
	for _, wantStr := range []string{
		`xmlns="http://www.loc.gov/standards/alto/ns-v2#"`,
		"<MeasurementUnit>pixel</MeasurementUnit>",
		"<fileName>page-001.jpg</fileName>",
		`CONTENT="Campus"`,
		// 56pt at 150 DPI: 56 * 150/72 rounds to 117.
		`HPOS="117"`,
		`PHYSICAL_IMG_NR="1"`,
	} {
		if !strings.Contains(doc, wantStr) {
			t.Fatalf("alto document missing %q:\n%s", wantStr, doc)
		}
	}
	if strings.Contains(doc, "Results") {
		t.Fatal("first page document contains second page text")
	}
}

func TestALTOTransformPerArticle(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithPerArticleALTO())
	pipDir := testsupport.WritePIP(t, cfg, "2026-01-15", []source.Record{testsupport.Record("1", "Story")})
	sip, err := EnsureSIP(cfg, pipDir)
	if err != nil {
		t.Fatal(err)
	}
	writeDerivative(t, sip.Root(), manifest.PDFPath("1"), "%PDF")

	result, err := NewALTO(cfg, &fakeExtractor{pages: samplePages()}).Transform(context.Background(), sip.Root(), sip.Entries["1"])
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Paths) != 1 || result.Paths[0] != "articles/1/article.alto.xml" {
		t.Fatalf("paths = %v", result.Paths)
	}
	data, err := os.ReadFile(filepath.Join(sip.Root(), "articles", "1", "article.alto.xml"))
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Count(string(data), "<Page "); got != 2 {
		t.Fatalf("page elements = %d, want 2", got)
	}
}

func TestALTOTransformMissingPDF(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	pipDir := testsupport.WritePIP(t, cfg, "2026-01-15", []source.Record{testsupport.Record("1", "Story")})
	sip, err := EnsureSIP(cfg, pipDir)
	if err != nil {
		t.Fatal(err)
	}

	_, err = NewALTO(cfg, &fakeExtractor{}).Transform(context.Background(), sip.Root(), sip.Entries["1"])
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestMODSTransform(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	rec := testsupport.Record("1", "Campus votes today")
	rec.Subhead = "Polls open"
	rec.Abstract = "An election story."
	rec.UUID = "uuid-1"
	rec.Slug = "campus-votes"
	rec.Tags = []string{"elections", "campus"}
	pipDir := testsupport.WritePIP(t, cfg, "2026-01-15", []source.Record{rec})
	sip, err := EnsureSIP(cfg, pipDir)
	if err != nil {
		t.Fatal(err)
	}

	result, err := NewMODS(cfg).Transform(context.Background(), sip.Root(), sip.Entries["1"])
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Paths) != 1 || result.Paths[0] != "articles/1/article.mods.xml" {
		t.Fatalf("paths = %v", result.Paths)
	}

	data, err := os.ReadFile(filepath.Join(sip.Root(), "articles", "1", "article.mods.xml"))
	if err != nil {
		t.Fatal(err)
	}
	doc := string(data)
	for _, want := range []string{
		`xmlns="http://www.loc.gov/mods/v3"`,
		`version="3.8"`,
		"<title>Campus votes today</title>",
		"<subTitle>Polls open</subTitle>",
		"<namePart>Test Reporter</namePart>",
		`<dateIssued encoding="w3cdtf">2026-01-15</dateIssued>`,
		"<abstract>An election story.</abstract>",
		"<topic>elections</topic>",
		`<identifier type="local">1</identifier>`,
		`<identifier type="uuid">uuid-1</identifier>`,
		`<relatedItem type="host">`,
	} {
		if !strings.Contains(doc, want) {
			t.Fatalf("mods document missing %q:\n%s", want, doc)
		}
	}
}

func TestImageTransform(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	pipDir := testsupport.WritePIP(t, cfg, "2026-01-15", []source.Record{testsupport.Record("1", "Story")})
	sip, err := EnsureSIP(cfg, pipDir)
	if err != nil {
		t.Fatal(err)
	}
	writeDerivative(t, sip.Root(), manifest.PDFPath("1"), "%PDF")

	result, err := NewImage(&fakeRasterizer{pages: 2}).Transform(context.Background(), sip.Root(), sip.Entries["1"])
	if err != nil {
		t.Fatal(err)
	}
	if result.Pages != 2 {
		t.Fatalf("pages = %d", result.Pages)
	}
	want := []string{"articles/1/page-001.jpg", "articles/1/page-002.jpg"}
	for i, rel := range want {
		if result.Paths[i] != rel {
			t.Fatalf("paths = %v", result.Paths)
		}
		if _, err := os.Stat(filepath.Join(sip.Root(), filepath.FromSlash(rel))); err != nil {
			t.Fatalf("missing %s: %v", rel, err)
		}
	}

	// The scratch directory must be cleaned up.
	matches, _ := filepath.Glob(filepath.Join(sip.Root(), "articles", "1", ".raster-*"))
	if len(matches) != 0 {
		t.Fatalf("scratch directories left behind: %v", matches)
	}
}
