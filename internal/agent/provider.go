package agent

import (
	"fmt"
	"strings"
)

// NewProvider builds the streaming adapter for a configured provider type.
func NewProvider(providerType, apiKey, baseURL string) (ModelProvider, error) {
	switch strings.ToLower(strings.TrimSpace(providerType)) {
	case "", "openai", "openai_compatible":
		return NewOpenAIProvider(apiKey, baseURL)
	case "anthropic":
		return NewAnthropicProvider(apiKey, baseURL)
	default:
		return nil, fmt.Errorf("agent: unsupported provider type %q", providerType)
	}
}
