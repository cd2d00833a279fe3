package server

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Config is the demo server's own configuration, loaded once at startup
// and immutable for the process lifetime. Sink credentials are loaded
// separately via tracelens.ConfigFromEnv.
type Config struct {
	// Addr is the listen address.
	Addr string `envconfig:"SERVER_ADDR" default:":8000"`

	// OpenAIAPIKey authenticates against the completion provider. When
	// empty and UseMockProvider is false, startup fails.
	OpenAIAPIKey string `envconfig:"OPENAI_API_KEY"`

	// OpenAIBaseURL overrides the provider endpoint, e.g. for a proxy.
	OpenAIBaseURL string `envconfig:"OPENAI_BASE_URL"`

	// UseMockProvider swaps in the in-process mock provider for keyless
	// local runs.
	UseMockProvider bool `envconfig:"USE_MOCK_PROVIDER"`

	// PromptsFile optionally points at a YAML file of extra prompt
	// templates, reloaded on change.
	PromptsFile string `envconfig:"PROMPTS_FILE"`

	// DefaultModel is used when a request does not name a model.
	DefaultModel string `envconfig:"DEFAULT_MODEL" default:"gpt-3.5-turbo"`
}

// LoadConfig reads configuration from the environment.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("server: failed to load config: %w", err)
	}
	if !cfg.UseMockProvider && cfg.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("server: OPENAI_API_KEY is required unless USE_MOCK_PROVIDER is set")
	}
	return &cfg, nil
}
