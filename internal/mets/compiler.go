package mets

import (
	"context"
	"encoding/xml"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"distiller/internal/config"
	"distiller/internal/fileutil"
	"distiller/internal/logging"
	"distiller/internal/manifest"
	"distiller/internal/services"
)

// Compiler validates a transformed SIP, writes its METS document, and seals
// the package. Articles missing derivatives are excluded when the configured
// tolerance allows; beyond it compilation refuses to seal.
type Compiler struct {
	cfg    *config.Config
	logger *slog.Logger
}

// New constructs a compiler.
func New(cfg *config.Config, logger *slog.Logger) *Compiler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Compiler{cfg: cfg, logger: logging.NewComponentLogger(logger, "mets")}
}

// Compile seals the SIP at sipDir. All five derivatives must be done for
// every article; articles below that bar are excluded from the METS document
// only when compile.max_excluded covers them, otherwise ErrIncompleteSIP
// reports every article's missing stages. Sealing is all-or-nothing: the
// manifest is only sealed after mets.xml is on disk.
func (c *Compiler) Compile(ctx context.Context, sipDir string) (*manifest.Manifest, error) {
	m, err := manifest.Load(sipDir)
	if err != nil {
		return nil, err
	}
	if m.Kind != manifest.KindSIP {
		return nil, services.Wrap(services.ErrValidation, "mets", "compile",
			fmt.Sprintf("package %s is a %s, not a sip", m.ID, m.Kind), nil)
	}
	if m.Sealed() {
		return nil, services.Wrap(services.ErrSealedPackage, "mets", "compile",
			fmt.Sprintf("package %s is already sealed", m.ID), nil)
	}

	ctx = services.WithPackageID(ctx, m.ID)
	log := logging.WithContext(ctx, c.logger)

	missing := m.Missing(manifest.TransformOrder)
	if len(missing) > c.cfg.Compile.MaxExcluded {
		return nil, services.Wrap(services.ErrIncompleteSIP, "mets", "compile",
			incompleteDetail(m.ID, missing), nil)
	}

	var included []string
	for _, id := range m.ArticleIDs() {
		if _, excluded := missing[id]; !excluded {
			included = append(included, id)
		}
	}
	if len(included) == 0 {
		return nil, services.Wrap(services.ErrIncompleteSIP, "mets", "compile",
			fmt.Sprintf("package %s has no complete articles to seal", m.ID), nil)
	}
	for id := range missing {
		log.Warn("excluding incomplete article",
			logging.String(logging.FieldArticleID, id),
			logging.String("missing", stageList(missing[id])))
	}

	doc, err := c.buildDocument(m, included)
	if err != nil {
		return nil, err
	}
	if err := writeDocument(filepath.Join(sipDir, manifest.METSName), doc); err != nil {
		return nil, services.Wrap(services.ErrValidation, "mets", "compile", "write mets document", err)
	}

	m.METSPath = manifest.METSName
	if err := m.Seal(); err != nil {
		return nil, err
	}
	if err := m.Save(); err != nil {
		return nil, err
	}

	log.Info("package sealed",
		logging.Int("articles", len(included)),
		logging.Int("excluded", len(missing)))
	return m, nil
}

func (c *Compiler) buildDocument(m *manifest.Manifest, included []string) (*metsDoc, error) {
	doc := &metsDoc{
		Namespace: metsNamespace,
		Xlink:     xlinkNamespace,
		ObjID:     c.cfg.Compile.ObjIDPrefix + ":" + m.ID,
		Label:     m.Title,
		Type:      "periodical-issue",
		Header: metsHdr{
			CreateDate: time.Now().UTC().Format(time.RFC3339),
			Agent: agent{
				Role: "CREATOR",
				Type: "OTHER",
				Name: c.cfg.Compile.Agent,
			},
		},
	}

	issue := issueMODS{
		Namespace: modsNamespace,
		TitleInfo: modsTitle{Title: m.Title},
		Type:      "text",
		OriginInfo: &issueOrigin{
			DateIssued: m.DateRange[0],
			Publisher:  c.cfg.Compile.Publisher,
		},
	}
	for _, id := range included {
		issue.Constituents = append(issue.Constituents, constituent{
			Type:       "constituent",
			TitleInfo:  modsTitle{Title: m.Entries[id].Title},
			Identifier: &constituentID{Type: "local", Value: id},
		})
	}
	doc.DmdSecs = []dmdSec{{
		ID: "DMD_ISSUE",
		MdWrap: mdWrap{
			MDType:  "MODS",
			XMLData: xmlData{MODS: issue},
		},
	}}

	groups := map[manifest.Stage]*fileGrp{
		manifest.StageImage: {Use: "IMGGRP"},
		manifest.StageALTO:  {Use: "ALTOGRP"},
		manifest.StagePDF:   {Use: "PDFGRP"},
		manifest.StageMODS:  {Use: "MODSGRP"},
	}
	physical := div{Type: "issue", Label: m.Title}
	logical := div{Type: "issue", Label: m.Title, DmdID: "DMD_ISSUE"}

	for order, id := range included {
		entry := m.Entries[id]

		pdfIDs, err := c.addFiles(m, groups[manifest.StagePDF], "PDF", id, entry.Derivative(manifest.StagePDF).Paths, "application/pdf")
		if err != nil {
			return nil, err
		}
		modsIDs, err := c.addFiles(m, groups[manifest.StageMODS], "MODS", id, entry.Derivative(manifest.StageMODS).Paths, "text/xml")
		if err != nil {
			return nil, err
		}
		altoIDs, err := c.addFiles(m, groups[manifest.StageALTO], "ALTO", id, entry.Derivative(manifest.StageALTO).Paths, "text/xml")
		if err != nil {
			return nil, err
		}
		imgIDs, err := c.addFiles(m, groups[manifest.StageImage], "IMG", id, entry.Derivative(manifest.StageImage).Paths, "image/jpeg")
		if err != nil {
			return nil, err
		}

		article := div{Type: "article", Label: entry.Title, Order: order + 1}
		for _, fileID := range pdfIDs {
			article.Fptrs = append(article.Fptrs, fptr{FileID: fileID})
		}
		for page, imgID := range imgIDs {
			pageDiv := div{Type: "page", Order: page + 1, Fptrs: []fptr{{FileID: imgID}}}
			// Page-level layout files pair 1:1 with page images; a
			// single whole-article file attaches to the article div.
			if len(altoIDs) == len(imgIDs) {
				pageDiv.Fptrs = append(pageDiv.Fptrs, fptr{FileID: altoIDs[page]})
			}
			article.Divs = append(article.Divs, pageDiv)
		}
		if len(altoIDs) != len(imgIDs) {
			for _, altoID := range altoIDs {
				article.Fptrs = append(article.Fptrs, fptr{FileID: altoID})
			}
		}
		physical.Divs = append(physical.Divs, article)

		logicalArticle := div{Type: "article", Label: entry.Title, Order: order + 1}
		for _, fileID := range append(append([]string{}, pdfIDs...), modsIDs...) {
			logicalArticle.Fptrs = append(logicalArticle.Fptrs, fptr{FileID: fileID})
		}
		logical.Divs = append(logical.Divs, logicalArticle)
	}

	doc.FileSec = fileSec{Groups: []fileGrp{
		*groups[manifest.StageImage],
		*groups[manifest.StageALTO],
		*groups[manifest.StagePDF],
		*groups[manifest.StageMODS],
	}}
	doc.StructMap = []structMap{
		{Type: "physical", Div: physical},
		{Type: "logical", Div: logical},
	}
	return doc, nil
}

// addFiles appends one checksummed file element per derivative path and
// returns the generated file IDs in path order.
func (c *Compiler) addFiles(m *manifest.Manifest, grp *fileGrp, prefix, articleID string, rels []string, mime string) ([]string, error) {
	ids := make([]string, 0, len(rels))
	for i, rel := range rels {
		abs := filepath.Join(m.Root(), filepath.FromSlash(rel))
		sum, err := fileutil.SHA256Hex(abs)
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "mets", "compile",
				fmt.Sprintf("checksum %s", rel), err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "mets", "compile",
				fmt.Sprintf("stat %s", rel), err)
		}

		fileID := fmt.Sprintf("%s_%s", prefix, articleID)
		if len(rels) > 1 {
			fileID = fmt.Sprintf("%s_%s_P%03d", prefix, articleID, i+1)
		}
		grp.Files = append(grp.Files, metsFile{
			ID:           fileID,
			MimeType:     mime,
			Checksum:     sum,
			ChecksumType: "SHA-256",
			Size:         info.Size(),
			FLocat: fLocat{
				LocType: "URL",
				Href:    rel,
			},
		})
		ids = append(ids, fileID)
	}
	return ids, nil
}

func writeDocument(abs string, doc *metsDoc) error {
	data, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	out := append([]byte(xml.Header), data...)
	out = append(out, '\n')
	return os.WriteFile(abs, out, 0o644)
}

// incompleteDetail renders per-article missing stages deterministically.
func incompleteDetail(pkgID string, missing map[string][]manifest.Stage) string {
	ids := make([]string, 0, len(missing))
	for id := range missing {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, fmt.Sprintf("article %s missing %s", id, stageList(missing[id])))
	}
	return fmt.Sprintf("package %s incomplete: %s", pkgID, strings.Join(parts, "; "))
}

func stageList(stages []manifest.Stage) string {
	names := make([]string, len(stages))
	for i, stage := range stages {
		names[i] = string(stage)
	}
	return strings.Join(names, ", ")
}
