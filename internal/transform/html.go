package transform

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"distiller/internal/config"
	"distiller/internal/manifest"
	"distiller/internal/services"
	"distiller/internal/source"
)

//go:embed resources
var resources embed.FS

// assetsDir holds package-level render assets inside a SIP.
const assetsDir = "assets"

// HTML renders each source record through the configured template and
// stylesheet. Remote media embedded in the body is rewritten to the files the
// harvest downloaded; whatever cannot be resolved locally is dropped so the
// package renders without network access.
type HTML struct {
	cfg        *config.Config
	tmpl       *template.Template
	stylesheet []byte

	assetMu sync.Mutex
}

// NewHTML loads the template and stylesheet named in configuration, falling
// back to the embedded defaults when no override directories are set.
func NewHTML(cfg *config.Config) (*HTML, error) {
	raw, err := loadRenderAsset(cfg.Render.TemplatesDir, cfg.Render.Template)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "html", "init", "load template", err)
	}
	tmpl, err := template.New(cfg.Render.Template).Parse(string(raw))
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "html", "init",
			fmt.Sprintf("parse template %s", cfg.Render.Template), err)
	}
	stylesheet, err := loadRenderAsset(cfg.Render.StylesheetsDir, cfg.Render.Stylesheet)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "html", "init", "load stylesheet", err)
	}
	return &HTML{cfg: cfg, tmpl: tmpl, stylesheet: stylesheet}, nil
}

// loadRenderAsset reads name from dir when a directory is configured,
// otherwise from the embedded resources.
func loadRenderAsset(dir, name string) ([]byte, error) {
	if strings.TrimSpace(dir) != "" {
		return os.ReadFile(filepath.Join(dir, name))
	}
	data, err := resources.ReadFile(path.Join("resources", name))
	if err != nil {
		return nil, fmt.Errorf("no embedded resource %q; set a template directory", name)
	}
	return data, nil
}

func (h *HTML) Stage() manifest.Stage { return manifest.StageHTML }

type articleView struct {
	Headline       string
	Subhead        string
	Byline         string
	Publication    string
	PublishedAt    string
	StylesheetHref string
	FeaturedImage  string
	FeaturedAlt    string
	FeaturedCredit string
	Body           template.HTML
}

// Transform renders the article to articles/{id}/article.html.
func (h *HTML) Transform(ctx context.Context, root string, entry *manifest.Entry) (Result, error) {
	rec, err := loadRecord(root, entry)
	if err != nil {
		return Result{}, err
	}
	if err := h.ensureStylesheet(root); err != nil {
		return Result{}, err
	}

	body, err := rewriteBody(rec.Body, entry.Media)
	if err != nil {
		return Result{}, services.Wrap(services.ErrValidation, "html", "transform",
			fmt.Sprintf("rewrite body for article %s", entry.ArticleID), err)
	}

	view := articleView{
		Headline:       rec.Headline,
		Subhead:        rec.Subhead,
		Byline:         byline(rec.Authors),
		Publication:    h.cfg.Source.PublicationName,
		PublishedAt:    rec.PublishedAt.Format("January 2, 2006"),
		StylesheetHref: "../../" + assetsDir + "/" + h.cfg.Render.Stylesheet,
		Body:           template.HTML(body), //nolint:gosec
	}
	if len(entry.Media) > 0 {
		media := entry.Media[0]
		view.FeaturedImage = "media/" + path.Base(media.LocalPath)
		if rec.Media != nil {
			view.FeaturedAlt = rec.Media.Title
			view.FeaturedCredit = rec.Media.Credit
		}
	}

	var buf bytes.Buffer
	if err := h.tmpl.Execute(&buf, view); err != nil {
		return Result{}, services.Wrap(services.ErrValidation, "html", "transform",
			fmt.Sprintf("render article %s", entry.ArticleID), err)
	}

	rel := manifest.HTMLPath(entry.ArticleID)
	abs := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return Result{}, services.Wrap(services.ErrValidation, "html", "transform", "create article directory", err)
	}
	if err := os.WriteFile(abs, buf.Bytes(), 0o644); err != nil {
		return Result{}, services.Wrap(services.ErrValidation, "html", "transform", "write html derivative", err)
	}
	return Result{Paths: []string{rel}}, nil
}

// ensureStylesheet writes the package-level stylesheet once per SIP.
func (h *HTML) ensureStylesheet(root string) error {
	h.assetMu.Lock()
	defer h.assetMu.Unlock()

	abs := filepath.Join(root, assetsDir, h.cfg.Render.Stylesheet)
	if _, err := os.Stat(abs); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return services.Wrap(services.ErrValidation, "html", "transform", "create assets directory", err)
	}
	if err := os.WriteFile(abs, h.stylesheet, 0o644); err != nil {
		return services.Wrap(services.ErrValidation, "html", "transform", "write stylesheet", err)
	}
	return nil
}

// rewriteBody cleans the harvested body fragment for offline rendering:
// scripts, iframes and embeds are removed, and img tags either point at a
// downloaded media file or are dropped along with their figure wrapper.
func rewriteBody(body string, media []manifest.Media) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return "", err
	}

	doc.Find("script, iframe, noscript, embed, object").Remove()

	local := make(map[string]string, len(media))
	for _, item := range media {
		local[mediaKey(path.Base(item.LocalPath))] = "media/" + path.Base(item.LocalPath)
	}

	doc.Find("img").Each(func(_ int, img *goquery.Selection) {
		src, _ := img.Attr("src")
		if rel, ok := local[mediaKey(remoteBase(src))]; ok {
			img.SetAttr("src", rel)
			img.RemoveAttr("srcset")
			return
		}
		if figure := img.Closest("figure"); figure.Length() > 0 {
			figure.Remove()
			return
		}
		img.Remove()
	})

	return doc.Find("body").Html()
}

// remoteBase extracts the file name of a URL, dropping query and the imgix
// ".sized-WxH" sizing infix so it matches the downloaded media name.
func remoteBase(raw string) string {
	if raw == "" {
		return ""
	}
	if u, err := url.Parse(raw); err == nil && u.Path != "" {
		raw = u.Path
	}
	base := path.Base(raw)
	if i := strings.Index(base, ".sized-"); i >= 0 {
		ext := path.Ext(base)
		base = base[:i] + ext
	}
	return base
}

// mediaKey compares media file names case-insensitively without extension
// ambiguity between jpeg/jpg.
func mediaKey(name string) string {
	name = strings.ToLower(name)
	return strings.TrimSuffix(name, path.Ext(name))
}

func byline(authors []source.Author) string {
	if len(authors) == 0 {
		return ""
	}
	names := make([]string, 0, len(authors))
	for _, author := range authors {
		if strings.TrimSpace(author.Name) != "" {
			names = append(names, strings.TrimSpace(author.Name))
		}
	}
	if len(names) == 0 {
		return ""
	}
	return "By " + strings.Join(names, ", ")
}
