package config

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable the tool reads
const EnvPrefix = "OLIGO_EXPORT"

// LoadWithViper loads configuration using Viper
func LoadWithViper(v *viper.Viper) (*Config, error) {
	// Set defaults
	setDefaults(v)

	// Set up environment variable binding
	setupEnvBinding(v)

	// Load configuration file if specified
	if err := loadConfigFile(v); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	// Unmarshal configuration
	config := Default()
	if err := unmarshalConfig(v, config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// LoadWithFile loads configuration from a specific file
func LoadWithFile(configFile string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configFile)
	return LoadWithViper(v)
}

// setDefaults sets default values for every key
func setDefaults(v *viper.Viper) {
	d := Default()

	// Portal defaults
	v.SetDefault("portal.url", d.PortalURL)
	v.SetDefault("portal.username", "")
	for key, value := range selectorKeys(d) {
		v.SetDefault(key, *value)
	}

	// Browser defaults
	v.SetDefault("browser.exec_path", d.Browser.ExecPath)
	v.SetDefault("browser.headless", d.Browser.Headless)
	v.SetDefault("browser.timeout", d.Browser.Timeout.String())
	v.SetDefault("browser.settle_timeout", d.Browser.SettleTimeout.String())
	v.SetDefault("browser.poll_interval", d.Browser.PollInterval.String())
	v.SetDefault("browser.debug", d.Browser.DebugMode)

	// Collection defaults
	v.SetDefault("collect.max_orders", d.MaxOrders)

	// Output defaults
	v.SetDefault("output.path", d.OutputPath)
	v.SetDefault("output.format", d.Format)
	v.SetDefault("output.skip_invalid", d.SkipInvalid)

	// Storage defaults
	v.SetDefault("storage.db_path", "")

	// Logging defaults
	v.SetDefault("logging.level", d.LogLevel)
}

// setupEnvBinding sets up environment variable binding
func setupEnvBinding(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	envBindings := map[string]string{
		"portal.url":             "PORTAL_URL",
		"portal.username":        "USERNAME",
		"browser.exec_path":      "BROWSER_EXEC_PATH",
		"browser.headless":       "BROWSER_HEADLESS",
		"browser.timeout":        "BROWSER_TIMEOUT",
		"browser.settle_timeout": "BROWSER_SETTLE_TIMEOUT",
		"browser.poll_interval":  "BROWSER_POLL_INTERVAL",
		"browser.debug":          "BROWSER_DEBUG",
		"collect.max_orders":     "MAX_ORDERS",
		"output.path":            "OUTPUT_PATH",
		"output.format":          "OUTPUT_FORMAT",
		"output.skip_invalid":    "SKIP_INVALID",
		"storage.db_path":        "DB_PATH",
		"logging.level":          "LOG_LEVEL",
	}

	for configKey, envSuffix := range envBindings {
		v.BindEnv(configKey, EnvPrefix+"_"+envSuffix)
	}
}

// loadConfigFile loads configuration file if it exists
func loadConfigFile(v *viper.Viper) error {
	// Check if a specific config file was set
	if v.ConfigFileUsed() == "" {
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.oligo-export")
		v.SetConfigName("oligo-export")
	}

	// Try to read config file
	if err := v.ReadInConfig(); err != nil {
		// Config file is optional, only return error if it's not a "not found" error
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
	}

	return nil
}

// unmarshalConfig copies Viper values into config
func unmarshalConfig(v *viper.Viper, config *Config) error {
	config.PortalURL = v.GetString("portal.url")
	config.Username = v.GetString("portal.username")
	for key, field := range selectorKeys(config) {
		*field = v.GetString(key)
	}

	config.Browser.ExecPath = v.GetString("browser.exec_path")
	config.Browser.Headless = v.GetBool("browser.headless")
	config.Browser.DebugMode = v.GetBool("browser.debug")

	var err error
	if config.Browser.Timeout, err = parseDuration(v.GetString("browser.timeout")); err != nil {
		return fmt.Errorf("invalid browser timeout: %w", err)
	}
	if config.Browser.SettleTimeout, err = parseDuration(v.GetString("browser.settle_timeout")); err != nil {
		return fmt.Errorf("invalid settle timeout: %w", err)
	}
	if config.Browser.PollInterval, err = parseDuration(v.GetString("browser.poll_interval")); err != nil {
		return fmt.Errorf("invalid poll interval: %w", err)
	}

	config.MaxOrders = v.GetInt("collect.max_orders")
	config.OutputPath = v.GetString("output.path")
	config.Format = v.GetString("output.format")
	config.SkipInvalid = v.GetBool("output.skip_invalid")
	config.DBPath = v.GetString("storage.db_path")
	config.LogLevel = v.GetString("logging.level")

	return nil
}

// selectorKeys maps config keys onto the selector fields of c
func selectorKeys(c *Config) map[string]*string {
	s := &c.Selectors
	return map[string]*string{
		"portal.selectors.username_input":     &s.UsernameInput,
		"portal.selectors.password_input":     &s.PasswordInput,
		"portal.selectors.submit_button":      &s.SubmitButton,
		"portal.selectors.order_toggle":       &s.OrderToggle,
		"portal.selectors.order_scope":        &s.OrderScope,
		"portal.selectors.collapse_control":   &s.CollapseControl,
		"portal.selectors.fragment_container": &s.FragmentContainer,
		"portal.selectors.identity_label":     &s.IdentityLabel,
		"portal.selectors.identity_value":     &s.IdentityValue,
		"portal.selectors.measurement_label":  &s.MeasurementLabel,
	}
}

// parseDuration accepts a Go duration or a whole number of seconds
func parseDuration(s string) (time.Duration, error) {
	if d, err := time.ParseDuration(s); err == nil {
		if d <= 0 {
			return 0, fmt.Errorf("duration must be positive, got %v", d)
		}
		return d, nil
	}
	seconds, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration: %s", s)
	}
	if seconds <= 0 {
		return 0, fmt.Errorf("duration must be positive, got %d seconds", seconds)
	}
	return time.Duration(seconds) * time.Second, nil
}

// ValidateConfigFilePath rejects config paths that climb out of their directory
func ValidateConfigFilePath(path string) error {
	if path == "" {
		return fmt.Errorf("config file path cannot be empty")
	}
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == ".." {
			return fmt.Errorf("config file path cannot contain '..': %s", path)
		}
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".toml", ".json":
		return nil
	default:
		return fmt.Errorf("unsupported config file type: %s", path)
	}
}
