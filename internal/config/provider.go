package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
)

// ProviderConfig selects and configures the model backend.
//
// Notes:
//   - Secrets (api keys) must never be stored in config. Keys come from the
//     environment variable named by APIKeyEnvVar.
type ProviderConfig struct {
	// Type is one of: "openai" | "anthropic" | "openai_compatible".
	Type string `json:"type"`

	// BaseURL overrides the provider endpoint (example: "https://api.openai.com/v1").
	// When empty, provider defaults apply (except openai_compatible where base_url is required).
	BaseURL string `json:"base_url,omitempty"`

	// Model is the model name sent on every request.
	Model string `json:"model"`

	// Temperature applies to providers that accept it; zero means provider default.
	Temperature float64 `json:"temperature,omitempty"`
}

const (
	ProviderOpenAI           = "openai"
	ProviderAnthropic        = "anthropic"
	ProviderOpenAICompatible = "openai_compatible"
)

func (p *ProviderConfig) Validate() error {
	if p == nil {
		return errors.New("nil provider config")
	}

	t := strings.TrimSpace(strings.ToLower(p.Type))
	switch t {
	case "", ProviderOpenAI, ProviderAnthropic, ProviderOpenAICompatible:
	default:
		return fmt.Errorf("invalid type %q", p.Type)
	}

	baseURL := strings.TrimSpace(p.BaseURL)
	if t == ProviderOpenAICompatible && baseURL == "" {
		return errors.New("base_url is required for openai_compatible")
	}
	if baseURL != "" {
		u, err := url.Parse(baseURL)
		if err != nil || u == nil {
			return fmt.Errorf("invalid base_url: %w", err)
		}
		scheme := strings.ToLower(strings.TrimSpace(u.Scheme))
		if scheme != "http" && scheme != "https" {
			return fmt.Errorf("invalid base_url scheme %q", u.Scheme)
		}
		if strings.TrimSpace(u.Host) == "" {
			return errors.New("invalid base_url host")
		}
	}

	if strings.TrimSpace(p.Model) == "" {
		return errors.New("missing model")
	}
	if p.Temperature < 0 || p.Temperature > 2 {
		return fmt.Errorf("invalid temperature %v (must be in [0,2])", p.Temperature)
	}
	return nil
}

func (p *ProviderConfig) EffectiveType() string {
	t := strings.TrimSpace(strings.ToLower(p.Type))
	if t == "" {
		return ProviderOpenAI
	}
	return t
}

// APIKeyEnvVar names the environment variable holding the provider key.
func (p *ProviderConfig) APIKeyEnvVar() string {
	if p.EffectiveType() == ProviderAnthropic {
		return "ANTHROPIC_API_KEY"
	}
	return "OPENAI_API_KEY"
}

// ResolveAPIKey reads the provider key from the environment.
func (p *ProviderConfig) ResolveAPIKey() (string, error) {
	name := p.APIKeyEnvVar()
	key := strings.TrimSpace(os.Getenv(name))
	if key == "" {
		return "", fmt.Errorf("missing %s", name)
	}
	return key, nil
}
