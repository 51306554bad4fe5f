// Package deps reports the availability of the external binaries the
// transformer chain shells out to.
package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"distiller/internal/config"
)

// Requirement defines an external binary the pipeline relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a requirement.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Requirements lists the binaries the configured pipeline needs. The deps
// command and the pipeline preflight share this list.
func Requirements(cfg *config.Config) []Requirement {
	return []Requirement{
		{
			Name:        "PDF engine",
			Command:     cfg.Tools.PDFEngine,
			Description: "Paginates rendered HTML into PDF",
		},
		{
			Name:        "pdftotext",
			Command:     cfg.Tools.PageText,
			Description: "Extracts word geometry for layout XML",
		},
		{
			Name:        "pdftoppm",
			Command:     cfg.Tools.Rasterizer,
			Description: "Rasterizes PDF pages into JPEG images",
		},
	}
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if _, err := exec.LookPath(cmd); err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}

// MissingRequired returns the names of unavailable non-optional binaries.
func MissingRequired(statuses []Status) []string {
	var missing []string
	for _, status := range statuses {
		if !status.Available && !status.Optional {
			missing = append(missing, status.Name)
		}
	}
	return missing
}
