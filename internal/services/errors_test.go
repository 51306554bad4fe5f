package services_test

import (
	"errors"
	"strings"
	"testing"

	"distiller/internal/services"
)

func TestWrapTagsMarker(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "pdf", "render", "engine exited", base)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool marker, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped cause, got %v", err)
	}
	if !strings.Contains(err.Error(), "pdf: render: engine exited") {
		t.Fatalf("unexpected detail: %v", err)
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected default detail, got %v", err)
	}
}

func TestIsPackageFatal(t *testing.T) {
	fatal := []error{
		services.ErrSourceUnavailable,
		services.ErrManifestCorrupt,
		services.ErrNoEligibleInput,
		services.ErrIncompleteSIP,
		services.ErrSealedPackage,
		services.ErrConfiguration,
	}
	for _, err := range fatal {
		if !services.IsPackageFatal(services.Wrap(err, "stage", "op", "msg", nil)) {
			t.Fatalf("expected %v to be package fatal", err)
		}
	}
	perArticle := []error{
		services.ErrValidation,
		services.ErrExternalTool,
		services.ErrNotFound,
		services.ErrTransient,
	}
	for _, err := range perArticle {
		if services.IsPackageFatal(err) {
			t.Fatalf("expected %v to be recordable per article", err)
		}
	}
}
