package testsupport

import (
	"context"
	"time"

	"distiller/internal/source"
)

// Client is a canned source client for pipeline and aggregator tests.
type Client struct {
	Records  []source.Record
	Media    []byte
	FetchErr error
	MediaErr error
}

func (c *Client) FetchWindow(ctx context.Context, start, end time.Time) ([]source.Record, error) {
	if c.FetchErr != nil {
		return nil, c.FetchErr
	}
	return c.Records, nil
}

func (c *Client) FetchMedia(ctx context.Context, url string) ([]byte, error) {
	if c.MediaErr != nil {
		return nil, c.MediaErr
	}
	return c.Media, nil
}

func (c *Client) MediaURL(ref source.MediaRef) string {
	return "https://cdn.example.test/pri/" + ref.AttachmentUUID + "." + ref.Extension
}

func (c *Client) BaseURL() string { return "https://example.test" }
