package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateSource(); err != nil {
		return err
	}
	if err := c.validateRender(); err != nil {
		return err
	}
	if err := c.validateTools(); err != nil {
		return err
	}
	if err := c.validateCompile(); err != nil {
		return err
	}
	if c.Images.DPI < 72 || c.Images.DPI > 1200 {
		return fmt.Errorf("images.dpi must be between 72 and 1200, got %d", c.Images.DPI)
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.PIPDir == "" {
		return errors.New("paths.pip_dir must be set")
	}
	if c.Paths.SIPDir == "" {
		return errors.New("paths.sip_dir must be set")
	}
	if c.Paths.PIPDir == c.Paths.SIPDir {
		return errors.New("paths.pip_dir and paths.sip_dir must be distinct")
	}
	return nil
}

func (c *Config) validateSource() error {
	if c.Source.BaseURL == "" {
		return errors.New("source.base_url must be set")
	}
	if c.Source.Section == "" {
		return errors.New("source.section must be set")
	}
	if c.Source.PerPage > 500 {
		return fmt.Errorf("source.per_page must be at most 500, got %d", c.Source.PerPage)
	}
	if c.Source.DownloadMedia && c.Source.MediaCDN == "" {
		return errors.New("source.media_cdn must be set when source.download_media is true")
	}
	return nil
}

func (c *Config) validateRender() error {
	if c.Render.Template == "" {
		return errors.New("render.template must be set")
	}
	if c.Render.Stylesheet == "" {
		return errors.New("render.stylesheet must be set")
	}
	return nil
}

func (c *Config) validateTools() error {
	if c.Tools.PDFEngine == "" {
		return errors.New("tools.pdf_engine must be set")
	}
	if c.Tools.PageText == "" {
		return errors.New("tools.page_text must be set")
	}
	if c.Tools.Rasterizer == "" {
		return errors.New("tools.rasterizer must be set")
	}
	return nil
}

func (c *Config) validateCompile() error {
	if c.Compile.MaxExcluded < 0 {
		return errors.New("compile.max_excluded must not be negative")
	}
	if c.Compile.Agent == "" {
		return errors.New("compile.agent must be set")
	}
	return nil
}
