// Package source abstracts the periodical content API the aggregator
// harvests from.
//
// The Client interface covers windowed article listings and media downloads;
// CEOClient implements it against a CEO3 headless CMS section endpoint with
// client-side date filtering, request rate limiting, and bounded retry for
// transient failures. Network and authentication failures always surface with
// the source-unavailable marker so the aggregator can abort cleanly.
package source
