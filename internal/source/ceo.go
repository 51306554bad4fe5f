package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"distiller/internal/config"
	"distiller/internal/logging"
	"distiller/internal/services"
)

// CEOClient fetches articles from a CEO3 headless CMS section endpoint.
//
// The section API paginates newest-first, so the client walks pages until it
// sees an article older than the window start, filtering client-side.
type CEOClient struct {
	baseURL     string
	section     string
	perPage     int
	mediaCDN    string
	mediaPrefix string
	maxRetries  int
	httpClient  *http.Client
	limiter     *rate.Limiter
	logger      *slog.Logger
}

// NewCEOClient constructs a client from source configuration.
func NewCEOClient(cfg config.Source, logger *slog.Logger) *CEOClient {
	return &CEOClient{
		baseURL:     cfg.BaseURL,
		section:     cfg.Section,
		perPage:     cfg.PerPage,
		mediaCDN:    cfg.MediaCDN,
		mediaPrefix: cfg.MediaPrefix,
		maxRetries:  cfg.MaxRetries,
		httpClient:  &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		limiter:     rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), 1),
		logger:      logging.NewComponentLogger(logger, "source"),
	}
}

// BaseURL identifies the source for provenance records.
func (c *CEOClient) BaseURL() string { return c.baseURL }

// MediaURL resolves a media reference through the imgix CDN, requesting the
// standardized 1000x1000 sized rendition.
func (c *CEOClient) MediaURL(ref MediaRef) string {
	return fmt.Sprintf("%s/%s/%s.sized-1000x1000.%s", c.mediaCDN, c.mediaPrefix, ref.AttachmentUUID, ref.Extension)
}

type wireAuthor struct {
	Name    string `json:"name"`
	Slug    string `json:"slug"`
	Tagline string `json:"tagline"`
}

type wireTag struct {
	Name string `json:"name"`
}

type wireMedia struct {
	AttachmentUUID string `json:"attachment_uuid"`
	BaseName       string `json:"base_name"`
	Extension      string `json:"extension"`
	Type           string `json:"type"`
	Title          string `json:"title"`
}

type wireArticle struct {
	ID            string       `json:"id"`
	UUID          string       `json:"uuid"`
	Slug          string       `json:"slug"`
	Headline      string       `json:"headline"`
	Subhead       string       `json:"subhead"`
	Abstract      string       `json:"abstract"`
	Content       string       `json:"content"`
	PublishedAt   string       `json:"published_at"`
	Authors       []wireAuthor `json:"authors"`
	Tags          []wireTag    `json:"tags"`
	DominantMedia *wireMedia   `json:"dominantMedia"`
}

type wirePage struct {
	Articles   []wireArticle `json:"articles"`
	Pagination struct {
		Last int `json:"last"`
	} `json:"pagination"`
}

// FetchWindow walks the section listing and returns every record published
// within [start, end], compared at date granularity.
func (c *CEOClient) FetchWindow(ctx context.Context, start, end time.Time) ([]Record, error) {
	startDay := truncateToDay(start)
	endDay := truncateToDay(end)

	var records []Record
	page := 1
	for {
		body, err := c.getPage(ctx, page)
		if err != nil {
			return nil, err
		}

		var payload wirePage
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, services.Wrap(services.ErrSourceUnavailable, "source", "fetch window",
				fmt.Sprintf("malformed response on page %d", page), err)
		}
		if len(payload.Articles) == 0 {
			return records, nil
		}

		reachedOlder := false
		for _, article := range payload.Articles {
			published := parseWireTime(article.PublishedAt)
			day := truncateToDay(published)
			if day.After(endDay) {
				continue
			}
			if day.Before(startDay) {
				reachedOlder = true
				break
			}
			records = append(records, convertArticle(article, published))
		}
		if reachedOlder {
			return records, nil
		}

		page++
		if payload.Pagination.Last > 0 && page > payload.Pagination.Last {
			return records, nil
		}
	}
}

// FetchMedia downloads a media attachment by absolute URL.
func (c *CEOClient) FetchMedia(ctx context.Context, url string) ([]byte, error) {
	return c.get(ctx, url)
}

func (c *CEOClient) getPage(ctx context.Context, page int) ([]byte, error) {
	url := fmt.Sprintf("%s/section/%s.json?page=%d&perPage=%d", c.baseURL, c.section, page, c.perPage)
	c.logger.Debug("fetching section page", logging.Int("page", page))
	return c.get(ctx, url)
}

// get performs a rate-limited GET with bounded retry on transient failures.
// Authentication and client errors are never retried.
func (c *CEOClient) get(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * time.Second
			c.logger.Warn("retrying source request",
				logging.String("url", url),
				logging.Int("attempt", attempt),
				logging.Error(lastErr))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, services.Wrap(services.ErrSourceUnavailable, "source", "get", "request cancelled", ctx.Err())
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, services.Wrap(services.ErrSourceUnavailable, "source", "get", "rate limit wait", err)
		}

		body, retryable, err := c.doOnce(ctx, url)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !retryable {
			break
		}
	}
	return nil, lastErr
}

func (c *CEOClient) doOnce(ctx context.Context, url string) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, services.Wrap(services.ErrSourceUnavailable, "source", "get", "build request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, services.Wrap(services.ErrSourceUnavailable, "source", "get",
			fmt.Sprintf("request %s", url), err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
	case resp.StatusCode >= 500:
		return nil, true, services.Wrap(services.ErrSourceUnavailable, "source", "get",
			fmt.Sprintf("%s returned %s", url, resp.Status), nil)
	default:
		return nil, false, services.Wrap(services.ErrSourceUnavailable, "source", "get",
			fmt.Sprintf("%s returned %s", url, resp.Status), nil)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, services.Wrap(services.ErrSourceUnavailable, "source", "get", "read response", err)
	}
	return body, false, nil
}

func convertArticle(article wireArticle, published time.Time) Record {
	record := Record{
		ID:          article.ID,
		UUID:        article.UUID,
		Slug:        article.Slug,
		Headline:    article.Headline,
		Subhead:     article.Subhead,
		Abstract:    article.Abstract,
		Body:        article.Content,
		PublishedAt: published,
	}
	for _, author := range article.Authors {
		record.Authors = append(record.Authors, Author{
			Name:    author.Name,
			Slug:    author.Slug,
			Tagline: author.Tagline,
		})
	}
	for _, tag := range article.Tags {
		if tag.Name != "" {
			record.Tags = append(record.Tags, tag.Name)
		}
	}
	if m := article.DominantMedia; m != nil && m.AttachmentUUID != "" {
		record.Media = &MediaRef{
			AttachmentUUID: m.AttachmentUUID,
			BaseName:       m.BaseName,
			Extension:      m.Extension,
			Type:           m.Type,
			Title:          m.Title,
		}
	}
	return record
}

func parseWireTime(value string) time.Time {
	ts, err := time.Parse(WireTimeLayout, value)
	if err != nil {
		return time.Time{}
	}
	return ts
}

func truncateToDay(ts time.Time) time.Time {
	return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
}
