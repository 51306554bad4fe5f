package transform

import (
	"context"
	"encoding/xml"
	"path/filepath"
	"strings"

	"distiller/internal/config"
	"distiller/internal/manifest"
	"distiller/internal/services"
	"distiller/internal/source"
)

// modsNamespace is the MODS schema namespace; version pinned at 3.8.
const (
	modsNamespace = "http://www.loc.gov/mods/v3"
	modsVersion   = "3.8"
)

// MODS derives descriptive metadata from the source record alone. It runs
// independently of the rendering stages, so a broken PDF chain still yields
// article-level metadata.
type MODS struct {
	publication string
}

// NewMODS constructs the descriptive metadata stage.
func NewMODS(cfg *config.Config) *MODS {
	return &MODS{publication: cfg.Source.PublicationName}
}

func (m *MODS) Stage() manifest.Stage { return manifest.StageMODS }

// Transform writes articles/{id}/article.mods.xml from the harvested record.
func (m *MODS) Transform(ctx context.Context, root string, entry *manifest.Entry) (Result, error) {
	rec, err := loadRecord(root, entry)
	if err != nil {
		return Result{}, err
	}

	doc := buildMODS(rec, m.publication)
	rel := manifest.MODSPath(entry.ArticleID)
	if err := writeXML(filepath.Join(root, filepath.FromSlash(rel)), doc); err != nil {
		return Result{}, services.Wrap(services.ErrValidation, "mods", "transform", "write metadata document", err)
	}
	return Result{Paths: []string{rel}}, nil
}

// MODS document shapes. Only the elements the records can populate are
// modeled.

type modsDoc struct {
	XMLName     xml.Name         `xml:"mods"`
	Namespace   string           `xml:"xmlns,attr"`
	Version     string           `xml:"version,attr"`
	TitleInfo   modsTitleInfo    `xml:"titleInfo"`
	Names       []modsName       `xml:"name,omitempty"`
	Type        string           `xml:"typeOfResource"`
	Genre       string           `xml:"genre,omitempty"`
	OriginInfo  *modsOriginInfo  `xml:"originInfo,omitempty"`
	Abstract    string           `xml:"abstract,omitempty"`
	Subjects    []modsSubject    `xml:"subject,omitempty"`
	Identifiers []modsIdentifier `xml:"identifier,omitempty"`
	RelatedItem *modsRelated     `xml:"relatedItem,omitempty"`
}

type modsTitleInfo struct {
	Title    string `xml:"title"`
	SubTitle string `xml:"subTitle,omitempty"`
}

type modsName struct {
	Type     string    `xml:"type,attr"`
	NamePart string    `xml:"namePart"`
	Role     *modsRole `xml:"role,omitempty"`
}

type modsRole struct {
	Term modsRoleTerm `xml:"roleTerm"`
}

type modsRoleTerm struct {
	Type  string `xml:"type,attr"`
	Value string `xml:",chardata"`
}

type modsOriginInfo struct {
	DateIssued *modsDate `xml:"dateIssued,omitempty"`
	Publisher  string    `xml:"publisher,omitempty"`
}

type modsDate struct {
	Encoding string `xml:"encoding,attr"`
	Value    string `xml:",chardata"`
}

type modsSubject struct {
	Topic string `xml:"topic"`
}

type modsIdentifier struct {
	Type  string `xml:"type,attr"`
	Value string `xml:",chardata"`
}

type modsRelated struct {
	Type      string        `xml:"type,attr"`
	TitleInfo modsTitleInfo `xml:"titleInfo"`
}

func buildMODS(rec source.Record, publication string) modsDoc {
	doc := modsDoc{
		Namespace: modsNamespace,
		Version:   modsVersion,
		TitleInfo: modsTitleInfo{
			Title:    rec.Headline,
			SubTitle: rec.Subhead,
		},
		Type:     "text",
		Genre:    "article",
		Abstract: rec.Abstract,
	}

	for _, author := range rec.Authors {
		name := strings.TrimSpace(author.Name)
		if name == "" {
			continue
		}
		doc.Names = append(doc.Names, modsName{
			Type:     "personal",
			NamePart: name,
			Role: &modsRole{Term: modsRoleTerm{
				Type:  "text",
				Value: "author",
			}},
		})
	}

	origin := &modsOriginInfo{Publisher: publication}
	if !rec.PublishedAt.IsZero() {
		origin.DateIssued = &modsDate{
			Encoding: "w3cdtf",
			Value:    rec.PublishedAt.Format("2006-01-02"),
		}
	}
	doc.OriginInfo = origin

	for _, tag := range rec.Tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			doc.Subjects = append(doc.Subjects, modsSubject{Topic: tag})
		}
	}

	doc.Identifiers = append(doc.Identifiers, modsIdentifier{Type: "local", Value: rec.ID})
	if rec.UUID != "" {
		doc.Identifiers = append(doc.Identifiers, modsIdentifier{Type: "uuid", Value: rec.UUID})
	}
	if rec.Slug != "" {
		doc.Identifiers = append(doc.Identifiers, modsIdentifier{Type: "slug", Value: rec.Slug})
	}

	if publication != "" {
		doc.RelatedItem = &modsRelated{
			Type:      "host",
			TitleInfo: modsTitleInfo{Title: publication},
		}
	}
	return doc
}
