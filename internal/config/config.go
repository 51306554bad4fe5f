package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains workspace directory configuration.
type Paths struct {
	PIPDir string `toml:"pip_dir"`
	SIPDir string `toml:"sip_dir"`
	LogDir string `toml:"log_dir"`
}

// Source contains configuration for the CEO3 content API.
type Source struct {
	BaseURL        string  `toml:"base_url"`
	Section        string  `toml:"section"`
	PerPage        int     `toml:"per_page"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
	RequestsPerSec float64 `toml:"requests_per_sec"`
	MaxRetries     int     `toml:"max_retries"`
	MediaCDN       string  `toml:"media_cdn"`
	MediaPrefix    string  `toml:"media_prefix"`
	DownloadMedia  bool    `toml:"download_media"`
	PublicationName string `toml:"publication_name"`
}

// Render contains configuration for HTML template rendering.
type Render struct {
	Template       string `toml:"template"`
	Stylesheet     string `toml:"stylesheet"`
	TemplatesDir   string `toml:"templates_dir"`
	StylesheetsDir string `toml:"stylesheets_dir"`
}

// Tools contains configuration for the external derivation binaries.
type Tools struct {
	PDFEngine      string `toml:"pdf_engine"`
	PageText       string `toml:"page_text"`
	Rasterizer     string `toml:"rasterizer"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// ALTO contains configuration for layout XML generation.
type ALTO struct {
	PerPage bool `toml:"per_page"`
}

// Images contains configuration for page rasterization.
type Images struct {
	DPI int `toml:"dpi"`
}

// Compile contains configuration for METS compilation and sealing.
type Compile struct {
	Agent       string `toml:"agent"`
	Publisher   string `toml:"publisher"`
	ObjIDPrefix string `toml:"objid_prefix"`
	// MaxExcluded is the number of articles that may be excluded from a
	// sealed SIP for missing derivatives before sealing fails outright.
	MaxExcluded int `toml:"max_excluded"`
}

// Workflow contains configuration for stage execution.
type Workflow struct {
	Workers int `toml:"workers"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for the distiller.
//
// Configuration sections by subsystem:
//   - Paths: PIP/SIP workspace directories and log output
//   - Source: CEO3 API endpoint, pagination, rate limiting, media CDN
//   - Render: HTML template and stylesheet selection
//   - Tools: external rendering/layout/rasterization binaries
//   - ALTO: layout XML granularity
//   - Images: rasterization resolution
//   - Compile: METS agent identity and seal-time exclusion tolerance
//   - Workflow: per-stage worker pool size
//   - Logging: log format and level
type Config struct {
	Paths    Paths    `toml:"paths"`
	Source   Source   `toml:"source"`
	Render   Render   `toml:"render"`
	Tools    Tools    `toml:"tools"`
	ALTO     ALTO     `toml:"alto"`
	Images   Images   `toml:"images"`
	Compile  Compile  `toml:"compile"`
	Workflow Workflow `toml:"workflow"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/distiller/config.toml")
}

// SampleConfig returns the embedded sample configuration document.
func SampleConfig() string {
	return sampleConfig
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized. The boolean result
// reports whether a file was actually found at the resolved path.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("distiller.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates the workspace directories the pipeline writes to.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.PIPDir, c.Paths.SIPDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// ExpandPath resolves ~ and relative segments to an absolute path.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}
