package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"oligo-export/internal/export"
	"oligo-export/internal/portal"
)

// Output formats for the terminal preview
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatNone  = "none"
)

// Config holds all application configuration
type Config struct {
	// Portal
	PortalURL string
	Username  string
	Selectors portal.Selectors

	// Browser session
	Browser portal.Options

	// Collection
	MaxOrders int

	// Output
	OutputPath  string
	Format      string
	SkipInvalid bool

	// History database; empty disables it
	DBPath string

	// Logging
	LogLevel string
}

// Default returns the configuration used when nothing is overridden
func Default() *Config {
	return &Config{
		PortalURL:  portal.DefaultPortalURL,
		Selectors:  portal.DefaultSelectors(),
		Browser:    *portal.DefaultOptions(),
		MaxOrders:  portal.DefaultCollectorOptions().MaxOrders,
		OutputPath: export.DefaultPath,
		Format:     FormatTable,
		LogLevel:   "info",
	}
}

// CollectorOptions derives the collector settings
func (c *Config) CollectorOptions() portal.CollectorOptions {
	return portal.CollectorOptions{
		MaxOrders:     c.MaxOrders,
		SettleTimeout: c.Browser.SettleTimeout,
		PollInterval:  c.Browser.PollInterval,
	}
}

// SlogLevel maps LogLevel onto slog
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (c *Config) validate() error {
	u, err := url.Parse(c.PortalURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("invalid portal URL: %q", c.PortalURL)
	}

	if err := c.Selectors.Validate(); err != nil {
		return err
	}
	if err := c.Browser.Validate(); err != nil {
		return err
	}

	if c.MaxOrders < 0 {
		return fmt.Errorf("max orders cannot be negative, got %d", c.MaxOrders)
	}
	if c.OutputPath == "" {
		return fmt.Errorf("output path cannot be empty")
	}

	validFormats := []string{FormatTable, FormatJSON, FormatNone}
	isValidFormat := false
	for _, format := range validFormats {
		if c.Format == format {
			isValidFormat = true
			break
		}
	}
	if !isValidFormat {
		return fmt.Errorf("invalid format: %s (must be one of: %s)", c.Format, strings.Join(validFormats, ", "))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.LogLevel)
	}

	return nil
}
