package transform

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"distiller/internal/source"
	"distiller/internal/testsupport"
)

func TestHTMLTransformRendersArticle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	rec := testsupport.Record("1", "Campus votes today")
	rec.Subhead = "Polls open at dawn"
	rec.Body = `<p>Lead paragraph.</p>` +
		`<script>track()</script>` +
		`<figure><img src="https://snworksceo.imgix.net/pri/ab-12.sized-1000x1000.jpg" alt="crowd"/></figure>` +
		`<p>Closing paragraph.</p>` +
		`<figure><img src="https://elsewhere.test/chart.png"/><figcaption>Live chart</figcaption></figure>`
	rec.Media = &source.MediaRef{
		AttachmentUUID: "ab-12",
		Extension:      "jpg",
		Title:          "Voters line up",
		Credit:         "Photo: Staff",
	}
	pipDir := testsupport.WritePIP(t, cfg, "2026-01-15", []source.Record{rec})
	testsupport.AttachMedia(t, pipDir, "1", "ab-12.jpg", []byte("jpeg"))

	sip, err := EnsureSIP(cfg, pipDir)
	if err != nil {
		t.Fatal(err)
	}
	h, err := NewHTML(cfg)
	if err != nil {
		t.Fatal(err)
	}

	result, err := h.Transform(context.Background(), sip.Root(), sip.Entries["1"])
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Paths) != 1 || result.Paths[0] != "articles/1/article.html" {
		t.Fatalf("paths = %v", result.Paths)
	}

	data, err := os.ReadFile(filepath.Join(sip.Root(), "articles", "1", "article.html"))
	if err != nil {
		t.Fatal(err)
	}
	html := string(data)

	for _, want := range []string{
		"Campus votes today",
		"Polls open at dawn",
		"By Test Reporter",
		`src="media/ab-12.jpg"`,
		`href="../../assets/article.css"`,
		"Photo: Staff",
		"Closing paragraph.",
	} {
		if !strings.Contains(html, want) {
			t.Fatalf("rendered html missing %q:\n%s", want, html)
		}
	}
	for _, banned := range []string{"<script", "elsewhere.test", "Live chart"} {
		if strings.Contains(html, banned) {
			t.Fatalf("rendered html still contains %q", banned)
		}
	}

	if _, err := os.Stat(filepath.Join(sip.Root(), "assets", "article.css")); err != nil {
		t.Fatalf("stylesheet not copied: %v", err)
	}
}

func TestHTMLTransformWithoutMedia(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	pipDir := testsupport.WritePIP(t, cfg, "2026-01-15", []source.Record{testsupport.Record("1", "Plain story")})
	sip, err := EnsureSIP(cfg, pipDir)
	if err != nil {
		t.Fatal(err)
	}
	h, err := NewHTML(cfg)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := h.Transform(context.Background(), sip.Root(), sip.Entries["1"]); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(filepath.Join(sip.Root(), "articles", "1", "article.html"))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), `class="featured"`) {
		t.Fatal("featured figure rendered without media")
	}
}

func TestNewHTMLCustomTemplateDir(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	dir := t.TempDir()
	cfg.Render.TemplatesDir = dir
	if err := os.WriteFile(filepath.Join(dir, cfg.Render.Template), []byte(`<html><body>{{.Headline}}</body></html>`), 0o644); err != nil {
		t.Fatal(err)
	}

	h, err := NewHTML(cfg)
	if err != nil {
		t.Fatal(err)
	}

	pipDir := testsupport.WritePIP(t, cfg, "2026-01-15", []source.Record{testsupport.Record("1", "Custom")})
	sip, err := EnsureSIP(cfg, pipDir)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := h.Transform(context.Background(), sip.Root(), sip.Entries["1"]); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(filepath.Join(sip.Root(), "articles", "1", "article.html"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "Custom") || strings.Contains(string(data), "article-body") {
		t.Fatalf("custom template not used: %s", data)
	}
}

func TestNewHTMLMissingTemplate(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Render.Template = "no-such-template.tmpl"
	if _, err := NewHTML(cfg); err == nil {
		t.Fatal("expected error for unknown template")
	}
}

func TestRemoteBase(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"https://snworksceo.imgix.net/pri/ab-12.sized-1000x1000.jpg?w=800", "ab-12.jpg"},
		{"https://cdn.test/x/photo.png", "photo.png"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := remoteBase(tc.in); got != tc.want {
			t.Fatalf("remoteBase(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
