package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeSource()
	if err := c.normalizeRender(); err != nil {
		return err
	}
	c.normalizeTools()
	c.normalizeLogging()
	if c.Workflow.Workers <= 0 {
		c.Workflow.Workers = defaultWorkers
	}
	if c.Images.DPI <= 0 {
		c.Images.DPI = defaultImageDPI
	}
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.PIPDir, err = expandPath(c.Paths.PIPDir); err != nil {
		return fmt.Errorf("paths.pip_dir: %w", err)
	}
	if c.Paths.SIPDir, err = expandPath(c.Paths.SIPDir); err != nil {
		return fmt.Errorf("paths.sip_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeSource() {
	c.Source.BaseURL = strings.TrimRight(strings.TrimSpace(c.Source.BaseURL), "/")
	c.Source.Section = strings.Trim(strings.TrimSpace(c.Source.Section), "/")
	c.Source.MediaCDN = strings.TrimRight(strings.TrimSpace(c.Source.MediaCDN), "/")
	c.Source.MediaPrefix = strings.Trim(strings.TrimSpace(c.Source.MediaPrefix), "/")
	if c.Source.PerPage <= 0 {
		c.Source.PerPage = defaultSourcePerPage
	}
	if c.Source.TimeoutSeconds <= 0 {
		c.Source.TimeoutSeconds = defaultSourceTimeout
	}
	if c.Source.RequestsPerSec <= 0 {
		c.Source.RequestsPerSec = defaultSourceRate
	}
	if c.Source.MaxRetries < 0 {
		c.Source.MaxRetries = 0
	}
	if strings.TrimSpace(c.Source.PublicationName) == "" {
		c.Source.PublicationName = defaultPublicationName
	}
}

func (c *Config) normalizeRender() error {
	var err error
	c.Render.Template = strings.TrimSpace(c.Render.Template)
	c.Render.Stylesheet = strings.TrimSpace(c.Render.Stylesheet)
	if c.Render.TemplatesDir != "" {
		if c.Render.TemplatesDir, err = expandPath(c.Render.TemplatesDir); err != nil {
			return fmt.Errorf("render.templates_dir: %w", err)
		}
	}
	if c.Render.StylesheetsDir != "" {
		if c.Render.StylesheetsDir, err = expandPath(c.Render.StylesheetsDir); err != nil {
			return fmt.Errorf("render.stylesheets_dir: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeTools() {
	c.Tools.PDFEngine = strings.TrimSpace(c.Tools.PDFEngine)
	c.Tools.PageText = strings.TrimSpace(c.Tools.PageText)
	c.Tools.Rasterizer = strings.TrimSpace(c.Tools.Rasterizer)
	if c.Tools.TimeoutSeconds <= 0 {
		c.Tools.TimeoutSeconds = defaultToolTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
