package manifest

import (
	"sort"
	"strings"
	"time"
)

// Kind distinguishes the two package flavours on disk.
type Kind string

const (
	KindPIP Kind = "pip"
	KindSIP Kind = "sip"
)

// Status represents the package lifecycle.
type Status string

const (
	StatusBuilding Status = "building"
	StatusSealed   Status = "sealed"
)

// Stage identifies a derivative kind produced by the transformer chain.
type Stage string

const (
	StageHTML  Stage = "html"
	StagePDF   Stage = "pdf"
	StageALTO  Stage = "alto"
	StageMODS  Stage = "mods"
	StageImage Stage = "image"
)

// TransformOrder is the fixed execution order of the transformer chain.
var TransformOrder = []Stage{StageHTML, StagePDF, StageALTO, StageMODS, StageImage}

// stageDeps maps each stage to the upstream derivatives it consumes. Stages
// with no dependencies read the source record directly.
var stageDeps = map[Stage][]Stage{
	StageHTML:  nil,
	StagePDF:   {StageHTML},
	StageALTO:  {StagePDF},
	StageMODS:  nil,
	StageImage: {StagePDF},
}

// Requires returns the upstream stages a derivative depends on.
func Requires(stage Stage) []Stage {
	deps := stageDeps[stage]
	cp := make([]Stage, len(deps))
	copy(cp, deps)
	return cp
}

// ParseStage converts a string into a known Stage.
func ParseStage(value string) (Stage, bool) {
	normalized := Stage(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := stageDeps[normalized]; !ok {
		return "", false
	}
	return normalized, true
}

// State tracks one derivative for one article.
type State string

const (
	StatePending State = "pending"
	StateDone    State = "done"
	StateSkipped State = "skipped"
	StateFailed  State = "failed"
)

// Derivative records the outcome of one stage for one article.
type Derivative struct {
	State     State     `json:"state"`
	Reason    string    `json:"reason,omitempty"`
	Paths     []string  `json:"paths,omitempty"`
	Pages     int       `json:"pages,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Media describes a downloaded media file belonging to an article.
type Media struct {
	OriginalURL string `json:"original_url"`
	LocalPath   string `json:"local_path"`
	MediaType   string `json:"media_type,omitempty"`
	Checksum    string `json:"checksum,omitempty"`
}

// Entry is the per-article status record inside a manifest.
type Entry struct {
	ArticleID   string                 `json:"article_id"`
	Title       string                 `json:"title,omitempty"`
	PublishedAt string                 `json:"published_at,omitempty"`
	RecordPath  string                 `json:"record_path"`
	Media       []Media                `json:"media,omitempty"`
	Derivatives map[Stage]*Derivative  `json:"derivatives,omitempty"`
}

// Derivative returns the stage record for the entry, or nil when the stage has
// never been attempted.
func (e *Entry) Derivative(stage Stage) *Derivative {
	if e == nil || e.Derivatives == nil {
		return nil
	}
	return e.Derivatives[stage]
}

// HasDone reports whether the stage completed successfully for this entry.
func (e *Entry) HasDone(stage Stage) bool {
	d := e.Derivative(stage)
	return d != nil && d.State == StateDone
}

// SetDerivative records a stage outcome on the entry.
func (e *Entry) SetDerivative(stage Stage, d Derivative) {
	if e.Derivatives == nil {
		e.Derivatives = make(map[Stage]*Derivative)
	}
	if d.UpdatedAt.IsZero() {
		d.UpdatedAt = time.Now().UTC()
	}
	e.Derivatives[stage] = &d
}

// PDI captures OAIS preservation description information for a harvest.
type PDI struct {
	SourceSystem string    `json:"source_system"`
	SourceURL    string    `json:"source_url,omitempty"`
	HarvestedAt  time.Time `json:"harvested_at"`
	Agent        string    `json:"agent"`
}

// Manifest is the persisted index for a PIP or SIP directory. It is the single
// source of truth for package readiness and completeness.
type Manifest struct {
	ID        string            `json:"id"`
	Version   string            `json:"version"`
	Kind      Kind              `json:"kind"`
	Title     string            `json:"title,omitempty"`
	DateRange [2]string         `json:"date_range"`
	Status    Status            `json:"status"`
	PDI       *PDI              `json:"pdi,omitempty"`
	PIPID     string            `json:"pip_id,omitempty"`
	PIPPath   string            `json:"pip_path,omitempty"`
	METSPath  string            `json:"mets_path,omitempty"`
	SealedAt  *time.Time        `json:"sealed_at,omitempty"`
	Entries   map[string]*Entry `json:"entries"`

	root string
}

// Root returns the package directory the manifest was loaded from or bound to.
func (m *Manifest) Root() string { return m.root }

// Sealed reports whether the package has reached its terminal state.
func (m *Manifest) Sealed() bool { return m.Status == StatusSealed }

// ArticleIDs returns entry keys in deterministic order.
func (m *Manifest) ArticleIDs() []string {
	ids := make([]string, 0, len(m.Entries))
	for id := range m.Entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// IsComplete reports whether every entry holds a done derivative for each of
// the required stages.
func (m *Manifest) IsComplete(required []Stage) bool {
	for _, entry := range m.Entries {
		for _, stage := range required {
			if !entry.HasDone(stage) {
				return false
			}
		}
	}
	return true
}

// Missing returns, per article, the required stages that are not done.
// Articles with nothing missing are omitted.
func (m *Manifest) Missing(required []Stage) map[string][]Stage {
	missing := make(map[string][]Stage)
	for _, id := range m.ArticleIDs() {
		entry := m.Entries[id]
		for _, stage := range required {
			if !entry.HasDone(stage) {
				missing[id] = append(missing[id], stage)
			}
		}
	}
	return missing
}
