package services

import "context"

type contextKey string

const (
	packageIDKey contextKey = "package_id"
	articleIDKey contextKey = "article_id"
	stageKey     contextKey = "stage"
	requestIDKey contextKey = "request_id"
)

// WithPackageID annotates context with the PIP/SIP package identifier.
func WithPackageID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, packageIDKey, id)
}

// PackageIDFromContext extracts the package identifier if present.
func PackageIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(packageIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithArticleID annotates context with the article identifier.
func WithArticleID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, articleIDKey, id)
}

// ArticleIDFromContext extracts the article identifier if present.
func ArticleIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(articleIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithStage annotates context with the pipeline stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return context.WithValue(ctx, stageKey, stage)
}

// StageFromContext returns the stage name if present.
func StageFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(stageKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
