package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the bocado configuration.
type Config struct {
	Profile  ProfileConfig  `yaml:"profile"`
	Server   ServerConfig   `yaml:"server"`
	Estimate EstimateConfig `yaml:"estimate"`
	Lookup   LookupConfig   `yaml:"lookup"`
	Suggest  SuggestConfig  `yaml:"suggest"`
	Storage  StorageConfig  `yaml:"storage"`
	UI       UIConfig       `yaml:"ui"`
}

// ProfileConfig selects the active journal profile.
type ProfileConfig struct {
	User string `yaml:"user"` // Profile name; every log row is scoped to it
}

// ServerConfig holds assistant-server settings.
type ServerConfig struct {
	Addr     string `yaml:"addr"`      // Listen address for bocado serve
	LogLevel string `yaml:"log_level"` // debug, info, warn, error
	LogFile  string `yaml:"log_file"`  // Log file path (overrides default)
}

// EstimateConfig holds macro-estimation settings.
type EstimateConfig struct {
	Provider      string `yaml:"provider"`        // gemini or off
	Model         string `yaml:"model"`           // Provider-specific model
	APIKey        string `yaml:"api_key"`         // Usually set via GEMINI_API_KEY
	TimeoutMs     int    `yaml:"timeout_ms"`      // Request timeout
	CacheTTLHours int    `yaml:"cache_ttl_hours"` // Estimation response cache lifetime
}

// LookupConfig holds barcode-lookup settings.
type LookupConfig struct {
	BaseURL   string `yaml:"base_url"`   // Product database endpoint
	TimeoutMs int    `yaml:"timeout_ms"` // Request timeout
	UserAgent string `yaml:"user_agent"` // Sent with lookup requests
}

// SuggestConfig holds suggestion surface settings. Scoring weights and
// the selection threshold are engine constants, not configuration.
type SuggestConfig struct {
	InteractiveRequireTTY bool `yaml:"interactive_require_tty"` // Require TTY for the picker
}

// StorageConfig holds storage-related settings.
type StorageConfig struct {
	DBPath        string `yaml:"db_path"`         // SQLite path (empty = default from paths)
	BusyTimeoutMs int    `yaml:"busy_timeout_ms"` // SQLite busy timeout in ms
}

// UIConfig holds terminal output settings.
type UIConfig struct {
	Color string `yaml:"color"` // auto, always, or never
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Profile: ProfileConfig{
			User: "local",
		},
		Server: ServerConfig{
			Addr:     "127.0.0.1:8636",
			LogLevel: "info",
			LogFile:  "", // Use default from paths
		},
		Estimate: EstimateConfig{
			Provider:      "gemini",
			Model:         "gemini-2.0-flash",
			APIKey:        "",
			TimeoutMs:     15000,
			CacheTTLHours: 24,
		},
		Lookup: LookupConfig{
			BaseURL:   "https://world.openfoodfacts.org",
			TimeoutMs: 8000,
			UserAgent: "bocado",
		},
		Suggest: SuggestConfig{
			InteractiveRequireTTY: true,
		},
		Storage: StorageConfig{
			DBPath:        "", // Use default from paths
			BusyTimeoutMs: 5000,
		},
		UI: UIConfig{
			Color: "auto",
		},
	}
}

// Load loads configuration from the default path.
func Load() (*Config, error) {
	paths := DefaultPaths()
	return LoadFromFile(paths.ConfigFile())
}

// LoadFromFile loads configuration from the specified file.
// If the file doesn't exist, returns default configuration.
// Environment variable overrides are applied after file loading.
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.ApplyEnvOverrides()
			return cfg, nil // Return defaults if file doesn't exist
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ApplyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Save saves the configuration to the default path.
func (c *Config) Save() error {
	paths := DefaultPaths()
	return c.SaveToFile(paths.ConfigFile())
}

// SaveToFile saves the configuration to the specified file.
func (c *Config) SaveToFile(path string) error {
	// Derive directory from path and ensure it exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// DBPath resolves the SQLite path, falling back to the default data
// directory when unset.
func (c *Config) DBPath() string {
	if c.Storage.DBPath != "" {
		return c.Storage.DBPath
	}
	return DefaultPaths().DatabaseFile()
}

// Get retrieves a configuration value by dot-separated key.
// For example: "profile.user" or "estimate.provider"
func (c *Config) Get(key string) (string, error) {
	parts := strings.Split(key, ".")
	if len(parts) != 2 {
		return "", errors.New("key must be in format 'section.key'")
	}

	section, field := parts[0], parts[1]

	switch section {
	case "profile":
		return c.getProfileField(field)
	case "server":
		return c.getServerField(field)
	case "estimate":
		return c.getEstimateField(field)
	case "lookup":
		return c.getLookupField(field)
	case "suggest":
		return c.getSuggestField(field)
	case "storage":
		return c.getStorageField(field)
	case "ui":
		return c.getUIField(field)
	default:
		return "", fmt.Errorf("unknown section: %s", section)
	}
}

// Set sets a configuration value by dot-separated key.
func (c *Config) Set(key, value string) error {
	parts := strings.Split(key, ".")
	if len(parts) != 2 {
		return errors.New("key must be in format 'section.key'")
	}

	section, field := parts[0], parts[1]

	switch section {
	case "profile":
		return c.setProfileField(field, value)
	case "server":
		return c.setServerField(field, value)
	case "estimate":
		return c.setEstimateField(field, value)
	case "lookup":
		return c.setLookupField(field, value)
	case "suggest":
		return c.setSuggestField(field, value)
	case "storage":
		return c.setStorageField(field, value)
	case "ui":
		return c.setUIField(field, value)
	default:
		return fmt.Errorf("unknown section: %s", section)
	}
}

func (c *Config) getProfileField(field string) (string, error) {
	switch field {
	case "user":
		return c.Profile.User, nil
	default:
		return "", fmt.Errorf("unknown field: profile.%s", field)
	}
}

func (c *Config) setProfileField(field, value string) error {
	switch field {
	case "user":
		if value == "" {
			return errors.New("profile.user cannot be empty")
		}
		c.Profile.User = value
	default:
		return fmt.Errorf("unknown field: profile.%s", field)
	}
	return nil
}

func (c *Config) getServerField(field string) (string, error) {
	switch field {
	case "addr":
		return c.Server.Addr, nil
	case "log_level":
		return c.Server.LogLevel, nil
	case "log_file":
		return c.Server.LogFile, nil
	default:
		return "", fmt.Errorf("unknown field: server.%s", field)
	}
}

func (c *Config) setServerField(field, value string) error {
	switch field {
	case "addr":
		if value == "" {
			return errors.New("server.addr cannot be empty")
		}
		c.Server.Addr = value
	case "log_level":
		if !isValidLogLevel(value) {
			return fmt.Errorf("invalid log_level: %s (must be debug, info, warn, or error)", value)
		}
		c.Server.LogLevel = value
	case "log_file":
		c.Server.LogFile = value
	default:
		return fmt.Errorf("unknown field: server.%s", field)
	}
	return nil
}

func (c *Config) getEstimateField(field string) (string, error) {
	switch field {
	case "provider":
		return c.Estimate.Provider, nil
	case "model":
		return c.Estimate.Model, nil
	case "api_key":
		return c.Estimate.APIKey, nil
	case "timeout_ms":
		return strconv.Itoa(c.Estimate.TimeoutMs), nil
	case "cache_ttl_hours":
		return strconv.Itoa(c.Estimate.CacheTTLHours), nil
	default:
		return "", fmt.Errorf("unknown field: estimate.%s", field)
	}
}

func (c *Config) setEstimateField(field, value string) error {
	switch field {
	case "provider":
		if !isValidEstimateProvider(value) {
			return fmt.Errorf("invalid provider: %s (must be gemini or off)", value)
		}
		c.Estimate.Provider = value
	case "model":
		c.Estimate.Model = value
	case "api_key":
		c.Estimate.APIKey = value
	case "timeout_ms":
		v, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for timeout_ms: %w", err)
		}
		if v < 1 {
			return errors.New("invalid timeout_ms: must be >= 1")
		}
		c.Estimate.TimeoutMs = v
	case "cache_ttl_hours":
		v, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for cache_ttl_hours: %w", err)
		}
		if v < 0 {
			return errors.New("invalid cache_ttl_hours: must be non-negative")
		}
		c.Estimate.CacheTTLHours = v
	default:
		return fmt.Errorf("unknown field: estimate.%s", field)
	}
	return nil
}

func (c *Config) getLookupField(field string) (string, error) {
	switch field {
	case "base_url":
		return c.Lookup.BaseURL, nil
	case "timeout_ms":
		return strconv.Itoa(c.Lookup.TimeoutMs), nil
	case "user_agent":
		return c.Lookup.UserAgent, nil
	default:
		return "", fmt.Errorf("unknown field: lookup.%s", field)
	}
}

func (c *Config) setLookupField(field, value string) error {
	switch field {
	case "base_url":
		if value == "" {
			return errors.New("lookup.base_url cannot be empty")
		}
		c.Lookup.BaseURL = value
	case "timeout_ms":
		v, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for timeout_ms: %w", err)
		}
		if v < 1 {
			return errors.New("invalid timeout_ms: must be >= 1")
		}
		c.Lookup.TimeoutMs = v
	case "user_agent":
		c.Lookup.UserAgent = value
	default:
		return fmt.Errorf("unknown field: lookup.%s", field)
	}
	return nil
}

func (c *Config) getSuggestField(field string) (string, error) {
	switch field {
	case "interactive_require_tty":
		return strconv.FormatBool(c.Suggest.InteractiveRequireTTY), nil
	default:
		return "", fmt.Errorf("unknown field: suggest.%s", field)
	}
}

func (c *Config) setSuggestField(field, value string) error {
	switch field {
	case "interactive_require_tty":
		v, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid value for interactive_require_tty: %w", err)
		}
		c.Suggest.InteractiveRequireTTY = v
	default:
		return fmt.Errorf("unknown field: suggest.%s", field)
	}
	return nil
}

func (c *Config) getStorageField(field string) (string, error) {
	switch field {
	case "db_path":
		return c.Storage.DBPath, nil
	case "busy_timeout_ms":
		return strconv.Itoa(c.Storage.BusyTimeoutMs), nil
	default:
		return "", fmt.Errorf("unknown field: storage.%s", field)
	}
}

func (c *Config) setStorageField(field, value string) error {
	switch field {
	case "db_path":
		c.Storage.DBPath = value
	case "busy_timeout_ms":
		v, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for busy_timeout_ms: %w", err)
		}
		if v < 1 {
			return errors.New("invalid busy_timeout_ms: must be >= 1")
		}
		c.Storage.BusyTimeoutMs = v
	default:
		return fmt.Errorf("unknown field: storage.%s", field)
	}
	return nil
}

func (c *Config) getUIField(field string) (string, error) {
	switch field {
	case "color":
		return c.UI.Color, nil
	default:
		return "", fmt.Errorf("unknown field: ui.%s", field)
	}
}

func (c *Config) setUIField(field, value string) error {
	switch field {
	case "color":
		if !isValidColorMode(value) {
			return fmt.Errorf("invalid color: %s (must be auto, always, or never)", value)
		}
		c.UI.Color = value
	default:
		return fmt.Errorf("unknown field: ui.%s", field)
	}
	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Profile.User == "" {
		return errors.New("profile.user cannot be empty")
	}

	if !isValidLogLevel(c.Server.LogLevel) {
		return fmt.Errorf("server.log_level must be debug, info, warn, or error (got: %s)", c.Server.LogLevel)
	}

	if !isValidEstimateProvider(c.Estimate.Provider) {
		return fmt.Errorf("estimate.provider must be gemini or off (got: %s)", c.Estimate.Provider)
	}

	if c.Estimate.CacheTTLHours < 0 {
		return errors.New("estimate.cache_ttl_hours must be >= 0")
	}

	if !isValidColorMode(c.UI.Color) {
		return fmt.Errorf("ui.color must be auto, always, or never (got: %s)", c.UI.Color)
	}

	// Numeric fields never prevent startup; they are fixed with warnings.
	c.ValidateAndFix()

	return nil
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

func isValidEstimateProvider(provider string) bool {
	switch provider {
	case "gemini", "off":
		return true
	default:
		return false
	}
}

func isValidColorMode(mode string) bool {
	switch mode {
	case "auto", "always", "never":
		return true
	default:
		return false
	}
}

// ApplyEnvOverrides applies environment variable overrides to the
// config. Environment variables override config file values.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("BOCADO_USER"); v != "" {
		c.Profile.User = v
	}
	if v := os.Getenv("BOCADO_DEBUG"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil && b {
			c.Server.LogLevel = "debug"
		}
	}
	if v := os.Getenv("BOCADO_LOG_LEVEL"); v != "" {
		if isValidLogLevel(v) {
			c.Server.LogLevel = v
		}
	}
	if v := os.Getenv("BOCADO_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("BOCADO_DB_PATH"); v != "" {
		c.Storage.DBPath = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		c.Estimate.APIKey = v
	}
}

// ListKeys returns user-facing configuration keys.
func ListKeys() []string {
	return []string{
		"profile.user",
		"server.addr",
		"server.log_level",
		"estimate.provider",
		"estimate.model",
		"estimate.timeout_ms",
		"estimate.cache_ttl_hours",
		"lookup.base_url",
		"lookup.timeout_ms",
		"suggest.interactive_require_tty",
		"storage.db_path",
		"storage.busy_timeout_ms",
		"ui.color",
	}
}

// ValidationWarning represents a config validation warning.
type ValidationWarning struct {
	Field   string
	Message string
}

// ValidateAndFix validates numeric config values. Invalid values are
// fixed by falling back to defaults. Returns a list of warnings for
// diagnostics. Validation never prevents startup.
func (c *Config) ValidateAndFix() []ValidationWarning {
	defaults := DefaultConfig()
	var warnings []ValidationWarning

	warn := func(field, msg string) {
		w := ValidationWarning{Field: field, Message: msg}
		warnings = append(warnings, w)
		log.Printf("WARN config: %s: %s", field, msg)
	}

	timeouts := []struct {
		name string
		val  *int
		def  int
	}{
		{"estimate.timeout_ms", &c.Estimate.TimeoutMs, defaults.Estimate.TimeoutMs},
		{"lookup.timeout_ms", &c.Lookup.TimeoutMs, defaults.Lookup.TimeoutMs},
		{"storage.busy_timeout_ms", &c.Storage.BusyTimeoutMs, defaults.Storage.BusyTimeoutMs},
	}
	for _, t := range timeouts {
		if *t.val < 1 {
			warn(t.name, fmt.Sprintf("must be >= 1, got %d; falling back to default %d", *t.val, t.def))
			*t.val = t.def
		}
	}

	if c.Estimate.CacheTTLHours < 0 {
		warn("estimate.cache_ttl_hours", fmt.Sprintf("must be >= 0, got %d; falling back to default %d",
			c.Estimate.CacheTTLHours, defaults.Estimate.CacheTTLHours))
		c.Estimate.CacheTTLHours = defaults.Estimate.CacheTTLHours
	}

	if c.Estimate.Model == "" {
		warn("estimate.model", fmt.Sprintf("cannot be empty; falling back to default %q", defaults.Estimate.Model))
		c.Estimate.Model = defaults.Estimate.Model
	}

	return warnings
}
