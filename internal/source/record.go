package source

import "time"

// WireTimeLayout is the timestamp format the CEO3 API emits.
const WireTimeLayout = "2006-01-02 15:04:05"

// Author is a byline credited on a record.
type Author struct {
	Name    string `json:"name"`
	Slug    string `json:"slug,omitempty"`
	Tagline string `json:"tagline,omitempty"`
}

// MediaRef points at a media attachment on the source CDN.
type MediaRef struct {
	AttachmentUUID string `json:"attachment_uuid"`
	BaseName       string `json:"base_name"`
	Extension      string `json:"extension"`
	Type           string `json:"type,omitempty"`
	Title          string `json:"title,omitempty"`
	Credit         string `json:"credit,omitempty"`
}

// Record is one harvested article. Immutable once harvested; the aggregator
// writes it into a PIP and downstream stages read it back unchanged.
type Record struct {
	ID          string    `json:"id"`
	UUID        string    `json:"uuid,omitempty"`
	Slug        string    `json:"slug,omitempty"`
	Headline    string    `json:"headline"`
	Subhead     string    `json:"subhead,omitempty"`
	Abstract    string    `json:"abstract,omitempty"`
	Body        string    `json:"body"`
	PublishedAt time.Time `json:"published_at"`
	Authors     []Author  `json:"authors,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	Media       *MediaRef `json:"media,omitempty"`
}
