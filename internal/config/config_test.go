package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		Provider: ProviderConfig{
			Type:  ProviderOpenAI,
			Model: "gpt-4-turbo-preview",
		},
		MedicationsPath: "data/medications.json",
		UserDBPath:      "data/users.db",
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	if err := validConfig().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing model", func(c *Config) { c.Provider.Model = "" }},
		{"bad provider type", func(c *Config) { c.Provider.Type = "cohere" }},
		{"compatible without base url", func(c *Config) { c.Provider.Type = ProviderOpenAICompatible }},
		{"bad base url scheme", func(c *Config) { c.Provider.BaseURL = "ftp://example.com" }},
		{"temperature out of range", func(c *Config) { c.Provider.Temperature = 3 }},
		{"missing medication source", func(c *Config) { c.MedicationsPath = "" }},
		{"both medication sources", func(c *Config) { c.MedicationsDBPath = "data/medications.db" }},
		{"missing user db path", func(c *Config) { c.UserDBPath = "" }},
		{"negative max steps", func(c *Config) { c.MaxSteps = -1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}

	dbOnly := validConfig()
	dbOnly.MedicationsPath = ""
	dbOnly.MedicationsDBPath = "data/medications.db"
	if err := dbOnly.Validate(); err != nil {
		t.Fatalf("sqlite-source config rejected: %v", err)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	cfg := validConfig()
	cfg.ListenAddr = ":9000"
	cfg.Provider.Temperature = 0.7
	cfg.InventoryServiceURL = "http://inventory.local"

	if err := Save(path, cfg); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.ListenAddr != ":9000" || loaded.Provider.Temperature != 0.7 {
		t.Fatalf("round trip lost fields: %+v", loaded)
	}
	if loaded.EffectiveInventoryURL() != "http://inventory.local" {
		t.Fatalf("got=%q inventory url", loaded.EffectiveInventoryURL())
	}
}

func TestDefaults(t *testing.T) {
	t.Parallel()
	cfg := validConfig()

	if got := cfg.EffectiveListenAddr(); got != ":8000" {
		t.Fatalf("got=%q, want=:8000", got)
	}
	if got := cfg.EffectiveMaxSteps(); got != 10 {
		t.Fatalf("got=%d, want=10", got)
	}
	if got := cfg.EffectiveInventoryTimeout(); got != 5*time.Second {
		t.Fatalf("got=%v, want=5s", got)
	}
	if got := cfg.EffectiveDefaultLanguage(); got != "en" {
		t.Fatalf("got=%q, want=en", got)
	}
}

func TestEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := Save(path, validConfig()); err != nil {
		t.Fatalf("save: %v", err)
	}

	t.Setenv("PHARMA_MODEL", "gpt-4o")
	t.Setenv("PHARMA_MAX_STEPS", "6")
	t.Setenv("PHARMA_ALLOWED_ORIGINS", "http://a.local, http://b.local")
	t.Setenv("PHARMA_MEDICATIONS_DB_PATH", "data/medications.db")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Provider.Model != "gpt-4o" {
		t.Fatalf("got=%q, want=gpt-4o", cfg.Provider.Model)
	}
	if cfg.MaxSteps != 6 {
		t.Fatalf("got=%d, want=6", cfg.MaxSteps)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "http://b.local" {
		t.Fatalf("unexpected origins %v", cfg.AllowedOrigins)
	}
	if cfg.MedicationsDBPath != "data/medications.db" || cfg.MedicationsPath != "" {
		t.Fatalf("db source override not applied: %+v", cfg)
	}
}

func TestResolveAPIKey(t *testing.T) {
	p := &ProviderConfig{Type: ProviderAnthropic, Model: "claude-sonnet-4-5"}
	if got := p.APIKeyEnvVar(); got != "ANTHROPIC_API_KEY" {
		t.Fatalf("got=%q, want=ANTHROPIC_API_KEY", got)
	}

	t.Setenv("ANTHROPIC_API_KEY", "")
	if _, err := p.ResolveAPIKey(); err == nil {
		t.Fatal("expected error for missing key")
	}
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")
	key, err := p.ResolveAPIKey()
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if key != "sk-test" {
		t.Fatalf("got=%q, want=sk-test", key)
	}
}

func TestSave_CreatesParentDir(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	if err := Save(path, validConfig()); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config not written: %v", err)
	}
}
