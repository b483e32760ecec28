package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config is the on-disk configuration for pharma-agent.
//
// NOTE: API keys never live in this file; they are read from environment
// variables (see ProviderConfig.ResolveAPIKey).
type Config struct {
	// ListenAddr is the HTTP listen address for the chat API.
	ListenAddr string `json:"listen_addr,omitempty"`

	// AllowedOrigins is the CORS allow-list for browser clients.
	AllowedOrigins []string `json:"allowed_origins,omitempty"`

	Provider ProviderConfig `json:"provider"`

	// MaxSteps caps model round-trips per conversation turn.
	MaxSteps int `json:"max_steps,omitempty"`

	// InventoryServiceURL is the base URL of the external stock service.
	InventoryServiceURL string `json:"inventory_service_url,omitempty"`
	// InventoryTimeoutSeconds bounds each stock lookup.
	InventoryTimeoutSeconds float64 `json:"inventory_timeout_seconds,omitempty"`

	// MedicationsPath and PharmaciesPath locate the reference data files.
	// MedicationsDBPath selects the SQLite medication source instead of the
	// JSON file; exactly one of the two medication sources must be set.
	MedicationsPath   string `json:"medications_path,omitempty"`
	MedicationsDBPath string `json:"medications_db_path,omitempty"`
	PharmaciesPath    string `json:"pharmacies_path,omitempty"`

	// UserDBPath is the SQLite file for conversations and prescriptions.
	UserDBPath string `json:"user_db_path"`

	// DefaultLanguage is used when a request carries no language hint.
	DefaultLanguage string `json:"default_language,omitempty"`

	// LogFormat is "json" or "text".
	LogFormat string `json:"log_format,omitempty"`
	// LogLevel is "debug|info|warn|error".
	LogLevel string `json:"log_level,omitempty"`
}

const (
	defaultListenAddr       = ":8000"
	defaultMaxSteps         = 10
	defaultInventoryURL     = "http://127.0.0.1:8001"
	defaultInventoryTimeout = 5.0
	defaultLanguage         = "en"
)

func (c *Config) Validate() error {
	if c == nil {
		return errors.New("nil config")
	}
	if err := c.Provider.Validate(); err != nil {
		return fmt.Errorf("invalid provider: %w", err)
	}
	hasJSON := strings.TrimSpace(c.MedicationsPath) != ""
	hasDB := strings.TrimSpace(c.MedicationsDBPath) != ""
	if !hasJSON && !hasDB {
		return errors.New("missing medication source: set medications_path or medications_db_path")
	}
	if hasJSON && hasDB {
		return errors.New("medications_path and medications_db_path are mutually exclusive")
	}
	if strings.TrimSpace(c.UserDBPath) == "" {
		return errors.New("missing user_db_path")
	}
	if c.MaxSteps < 0 {
		return fmt.Errorf("invalid max_steps %d", c.MaxSteps)
	}
	if c.InventoryTimeoutSeconds < 0 {
		return fmt.Errorf("invalid inventory_timeout_seconds %v", c.InventoryTimeoutSeconds)
	}
	return nil
}

func (c *Config) EffectiveListenAddr() string {
	if v := strings.TrimSpace(c.ListenAddr); v != "" {
		return v
	}
	return defaultListenAddr
}

func (c *Config) EffectiveMaxSteps() int {
	if c.MaxSteps > 0 {
		return c.MaxSteps
	}
	return defaultMaxSteps
}

func (c *Config) EffectiveInventoryURL() string {
	if v := strings.TrimSpace(c.InventoryServiceURL); v != "" {
		return v
	}
	return defaultInventoryURL
}

func (c *Config) EffectiveInventoryTimeout() time.Duration {
	secs := c.InventoryTimeoutSeconds
	if secs <= 0 {
		secs = defaultInventoryTimeout
	}
	return time.Duration(secs * float64(time.Second))
}

func (c *Config) EffectiveDefaultLanguage() string {
	if v := strings.TrimSpace(c.DefaultLanguage); v != "" {
		return v
	}
	return defaultLanguage
}

// DefaultConfigPath returns the default config path:
//
//	~/.pharma-agent/config.json
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil || strings.TrimSpace(home) == "" {
		return "pharma-agent.config.json"
	}
	return filepath.Join(home, ".pharma-agent", "config.json")
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errors.New("nil config")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	// Write atomically.
	tmp := path + ".tmp"
	b, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')

	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// applyEnv lets deployments override file settings without editing the file.
// The variable set mirrors the JSON field names with a PHARMA_ prefix.
func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv("PHARMA_LISTEN_ADDR")); v != "" {
		c.ListenAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("PHARMA_ALLOWED_ORIGINS")); v != "" {
		parts := strings.Split(v, ",")
		origins := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				origins = append(origins, p)
			}
		}
		c.AllowedOrigins = origins
	}
	if v := strings.TrimSpace(os.Getenv("PHARMA_PROVIDER_TYPE")); v != "" {
		c.Provider.Type = v
	}
	if v := strings.TrimSpace(os.Getenv("PHARMA_PROVIDER_BASE_URL")); v != "" {
		c.Provider.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("PHARMA_MODEL")); v != "" {
		c.Provider.Model = v
	}
	if v := strings.TrimSpace(os.Getenv("PHARMA_MAX_STEPS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxSteps = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("PHARMA_INVENTORY_SERVICE_URL")); v != "" {
		c.InventoryServiceURL = v
	}
	if v := strings.TrimSpace(os.Getenv("PHARMA_MEDICATIONS_DB_PATH")); v != "" {
		c.MedicationsDBPath = v
		c.MedicationsPath = ""
	}
	if v := strings.TrimSpace(os.Getenv("PHARMA_USER_DB_PATH")); v != "" {
		c.UserDBPath = v
	}
	if v := strings.TrimSpace(os.Getenv("PHARMA_LOG_FORMAT")); v != "" {
		c.LogFormat = v
	}
	if v := strings.TrimSpace(os.Getenv("PHARMA_LOG_LEVEL")); v != "" {
		c.LogLevel = v
	}
}
