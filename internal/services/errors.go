package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSourceUnavailable marks network or authentication failures reaching
	// the content API. Fatal to the harvest call.
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrManifestCorrupt marks an unreadable or structurally invalid package
	// manifest. Requires manual intervention.
	ErrManifestCorrupt = errors.New("manifest corrupt")
	// ErrNotFound marks a referenced manifest entry or file that is absent.
	ErrNotFound = errors.New("not found")
	// ErrValidation marks input that failed validation before processing.
	ErrValidation = errors.New("validation error")
	// ErrExternalTool marks failures from the rendering, layout, or
	// rasterization binaries.
	ErrExternalTool = errors.New("external tool error")
	// ErrNoEligibleInput marks a transformer invocation where zero articles
	// satisfied the stage preconditions.
	ErrNoEligibleInput = errors.New("no eligible input")
	// ErrIncompleteSIP marks a compile attempt against a SIP whose manifest
	// is missing required derivatives beyond the configured tolerance.
	ErrIncompleteSIP = errors.New("incomplete sip")
	// ErrSealedPackage marks a mutation attempt against a sealed package.
	ErrSealedPackage = errors.New("sealed package")
	// ErrConfiguration marks unusable configuration discovered at run time.
	ErrConfiguration = errors.New("configuration error")
	// ErrTransient marks failures that may succeed on retry.
	ErrTransient = errors.New("transient failure")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsPackageFatal reports whether an error must terminate the whole invocation
// rather than being recorded against a single article. Per-article failures
// are downgraded to manifest records by the transform runner; everything here
// propagates to the driver and CLI.
func IsPackageFatal(err error) bool {
	switch {
	case errors.Is(err, ErrSourceUnavailable),
		errors.Is(err, ErrManifestCorrupt),
		errors.Is(err, ErrNoEligibleInput),
		errors.Is(err, ErrIncompleteSIP),
		errors.Is(err, ErrSealedPackage),
		errors.Is(err, ErrConfiguration):
		return true
	default:
		return false
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
