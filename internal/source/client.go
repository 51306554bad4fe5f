package source

import (
	"context"
	"time"
)

// Client is the boundary to a periodical content source. The CEO3-backed
// client is one implementation; tests substitute fakes.
type Client interface {
	// FetchWindow returns every record published within [start, end],
	// compared at date granularity. Overlapping pagination may yield the
	// same identifier more than once; callers deduplicate.
	FetchWindow(ctx context.Context, start, end time.Time) ([]Record, error)
	// FetchMedia downloads a media attachment by absolute URL.
	FetchMedia(ctx context.Context, url string) ([]byte, error)
	// MediaURL resolves a media reference to its CDN download URL.
	MediaURL(ref MediaRef) string
	// BaseURL identifies the source for provenance records.
	BaseURL() string
}
