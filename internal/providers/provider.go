package providers

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// ReviewRequest contains the data sent to an LLM.
type ReviewRequest struct {
	SystemPrompt string
	UserPrompt   string
	MaxTokens    int
	Temperature  float64
	// Schema, when set, asks the provider for a JSON reply of this shape.
	// Providers without a native JSON mode rely on the prompt alone.
	Schema *Schema
}

// ReviewResponse contains the raw response from an LLM.
type ReviewResponse struct {
	Content    string
	TokensUsed int
}

// Reviewer is the provider abstraction interface.
type Reviewer interface {
	Review(ctx context.Context, req ReviewRequest) (ReviewResponse, error)
	Name() string
}

// Options configures a provider. Credentials are passed in explicitly;
// providers never read the environment themselves.
type Options struct {
	Provider   string
	Model      string
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
}

const defaultHTTPTimeout = 120 * time.Second

func (o Options) httpTimeout() time.Duration {
	if o.Timeout > 0 {
		return o.Timeout
	}
	return defaultHTTPTimeout
}

// Known lists the provider names accepted by New, aliases included.
var Known = []string{"openai", "anthropic", "gemini", "google", "ollama", "lmstudio"}

// IsKnown reports whether name is an accepted provider name.
func IsKnown(name string) bool {
	for _, k := range Known {
		if strings.EqualFold(k, name) {
			return true
		}
	}
	return false
}

// New creates a provider from options.
func New(opts Options) (Reviewer, error) {
	if strings.TrimSpace(opts.Model) == "" {
		return nil, fmt.Errorf("no model configured for provider %q", opts.Provider)
	}
	switch strings.ToLower(opts.Provider) {
	case "anthropic":
		return NewAnthropic(opts)
	case "openai":
		return NewOpenAI(opts)
	case "gemini", "google":
		return NewGemini(opts)
	case "ollama", "lmstudio":
		return NewLocal(opts)
	default:
		return nil, fmt.Errorf("unknown provider: %s", opts.Provider)
	}
}
