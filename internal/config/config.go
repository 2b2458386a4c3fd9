package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dshills/revbot/internal/providers"
)

// ErrMissingCredential is returned by Validate when a required secret is
// absent from the environment.
var ErrMissingCredential = errors.New("missing credential")

// Duration is a time.Duration that reads Go duration strings ("10m") or
// integer seconds from YAML.
type Duration time.Duration

// UnmarshalYAML implements the yaml.Unmarshaler interface.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw interface{}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", v, err)
		}
		*d = Duration(parsed)
	case int:
		*d = Duration(time.Duration(v) * time.Second)
	case float64:
		*d = Duration(time.Duration(v * float64(time.Second)))
	default:
		return fmt.Errorf("invalid duration type: %T", v)
	}
	return nil
}

// MarshalYAML writes the duration in Go syntax.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// AsDuration returns the underlying time.Duration.
func (d Duration) AsDuration() time.Duration {
	return time.Duration(d)
}

func parseDuration(v string) (Duration, error) {
	if n, err := strconv.Atoi(v); err == nil {
		return Duration(time.Duration(n) * time.Second), nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", v, err)
	}
	return Duration(d), nil
}

// Config represents the revbot configuration.
type Config struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"baseURL,omitempty"`
	// StructuringModel is used for the text-to-JSON pass. Empty means Model.
	StructuringModel string `yaml:"structuringModel,omitempty"`
	// StructuredOutput asks the review model for JSON directly.
	StructuredOutput  bool     `yaml:"structuredOutput"`
	ModelTimeout      Duration `yaml:"modelTimeout"`
	ModelRetries      int      `yaml:"modelRetries"`
	AllowApprovals    bool     `yaml:"allowApprovals"`
	DeleteOldComments bool     `yaml:"deleteOldComments"`
	ContextLines      int      `yaml:"contextLines"`
	MaxDiffBytes      int      `yaml:"maxDiffBytes"`
	Exclude           []string `yaml:"exclude"`
	LogLevel          string   `yaml:"logLevel"`

	Privacy PrivacyConfig `yaml:"privacy"`
	GitHub  GitHubConfig  `yaml:"github"`

	// Secrets are read from the environment only and never saved.
	Secrets Secrets `yaml:"-"`
}

// PrivacyConfig controls privacy/redaction behavior.
type PrivacyConfig struct {
	RedactSecrets bool     `yaml:"redactSecrets"`
	RedactPaths   []string `yaml:"redactPaths,omitempty"`
}

// GitHubConfig controls the GitHub API client.
type GitHubConfig struct {
	APIURL          string   `yaml:"apiURL,omitempty"`
	Timeout         Duration `yaml:"timeout"`
	CommentsPerPage int      `yaml:"commentsPerPage"`
}

// Secrets holds credentials taken from the environment.
type Secrets struct {
	APIKey      string
	GitHubToken string
}

// Default returns a Config with all defaults applied.
func Default() Config {
	return Config{
		Provider:          "openai",
		Model:             "gpt-4o",
		StructuredOutput:  true,
		ModelTimeout:      Duration(10 * time.Minute),
		AllowApprovals:    false,
		DeleteOldComments: true,
		ContextLines:      3,
		MaxDiffBytes:      500000,
		Exclude:           []string{"vendor/**", "**/dist/**"},
		LogLevel:          "info",
		Privacy: PrivacyConfig{
			RedactSecrets: true,
			RedactPaths:   []string{"**/.env", "**/.env.*", "**/*.pem", "**/*.key", "**/*secrets*"},
		},
		GitHub: GitHubConfig{
			Timeout:         Duration(30 * time.Second),
			CommentsPerPage: 100,
		},
	}
}

// ConfigDir returns the platform-appropriate config directory for revbot.
func ConfigDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "revbot"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "revbot"), nil
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "revbot"), nil
		}
		return filepath.Join(home, "AppData", "Roaming", "revbot"), nil
	default:
		return filepath.Join(home, ".config", "revbot"), nil
	}
}

// ConfigPath returns the full path to the default config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// LoadFile decodes the YAML file at path over base, so keys absent from the
// file keep their base values. A missing file returns base unchanged.
func LoadFile(path string, base Config) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return base, nil
		}
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}
	cfg := base
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the config to path, creating parent directories.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Load builds the effective config by merging: defaults <- file <- env <- overrides.
// path selects the config file; empty means ConfigPath(). The overrides map
// comes from CLI flags (only flags the user set should be present).
func Load(path string, overrides map[string]string) (Config, error) {
	if path == "" {
		p, err := ConfigPath()
		if err != nil {
			return Config{}, err
		}
		path = p
	}

	cfg, err := LoadFile(path, Default())
	if err != nil {
		return Config{}, err
	}
	if err := mergeEnv(&cfg); err != nil {
		return Config{}, err
	}
	for key, value := range overrides {
		if err := SetField(&cfg, key, value); err != nil {
			return Config{}, fmt.Errorf("flag %s: %w", key, err)
		}
	}
	cfg.splitProviderPrefix()
	cfg.Secrets = secretsFromEnv(cfg.Provider)
	return cfg, nil
}

// envKeys maps environment variables onto config keys. Later entries win,
// so the revbot names override the compatibility names.
var envKeys = []struct{ env, key string }{
	{"OPENAI_MODEL", "model"},
	{"OPENAI_BASE_URL", "baseURL"},
	{"OPEN_PR_AGENT_ALLOW_APPROVALS", "allowApprovals"},
	{"GITHUB_API_URL", "githubAPIURL"},
	{"REVBOT_PROVIDER", "provider"},
	{"REVBOT_MODEL", "model"},
	{"REVBOT_BASE_URL", "baseURL"},
	{"REVBOT_STRUCTURING_MODEL", "structuringModel"},
	{"REVBOT_STRUCTURED_OUTPUT", "structuredOutput"},
	{"REVBOT_ALLOW_APPROVALS", "allowApprovals"},
	{"REVBOT_DELETE_OLD_COMMENTS", "deleteOldComments"},
	{"REVBOT_MODEL_TIMEOUT", "modelTimeout"},
	{"REVBOT_MODEL_RETRIES", "modelRetries"},
	{"REVBOT_CONTEXT_LINES", "contextLines"},
	{"REVBOT_MAX_DIFF_BYTES", "maxDiffBytes"},
	{"REVBOT_LOG_LEVEL", "logLevel"},
}

func mergeEnv(cfg *Config) error {
	for _, e := range envKeys {
		v := os.Getenv(e.env)
		if v == "" {
			continue
		}
		if err := SetField(cfg, e.key, v); err != nil {
			return fmt.Errorf("%s: %w", e.env, err)
		}
	}
	return nil
}

func secretsFromEnv(provider string) Secrets {
	s := Secrets{GitHubToken: os.Getenv("GITHUB_TOKEN")}
	switch strings.ToLower(provider) {
	case "openai":
		s.APIKey = os.Getenv("OPENAI_API_KEY")
	case "anthropic":
		s.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	case "gemini", "google":
		s.APIKey = os.Getenv("GEMINI_API_KEY")
		if s.APIKey == "" {
			s.APIKey = os.Getenv("GOOGLE_API_KEY")
		}
	case "ollama", "lmstudio":
		s.APIKey = os.Getenv("REVBOT_OLLAMA_API_KEY")
	}
	return s
}

// splitProviderPrefix turns model "anthropic/claude-x" into provider
// anthropic and model claude-x. Unknown prefixes are left in the model name,
// since OpenAI-compatible servers often use "org/model" identifiers.
func (c *Config) splitProviderPrefix() {
	prefix, rest, ok := strings.Cut(c.Model, "/")
	if ok && rest != "" && providers.IsKnown(prefix) {
		c.Provider = strings.ToLower(prefix)
		c.Model = rest
	}
}

// ParseTruthy reports whether v is one of "1", "true" or "yes", case-insensitively.
func ParseTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes":
		return true
	}
	return false
}

// Keys lists the config keys accepted by SetField.
var Keys = []string{
	"provider", "model", "baseURL", "structuringModel", "structuredOutput",
	"modelTimeout", "modelRetries", "allowApprovals", "deleteOldComments",
	"contextLines", "maxDiffBytes", "exclude", "logLevel", "redactSecrets",
	"githubAPIURL", "githubTimeout", "commentsPerPage",
}

// SetField sets a single config field by key name. Returns error if key is unknown.
func SetField(cfg *Config, key, value string) error {
	var err error
	switch key {
	case "provider":
		cfg.Provider = strings.ToLower(strings.TrimSpace(value))
	case "model":
		cfg.Model = strings.TrimSpace(value)
	case "baseURL":
		cfg.BaseURL = value
	case "structuringModel":
		cfg.StructuringModel = value
	case "structuredOutput":
		cfg.StructuredOutput = ParseTruthy(value)
	case "modelTimeout":
		cfg.ModelTimeout, err = parseDuration(value)
	case "modelRetries":
		cfg.ModelRetries, err = atoi(key, value)
	case "allowApprovals":
		cfg.AllowApprovals = ParseTruthy(value)
	case "deleteOldComments":
		cfg.DeleteOldComments = ParseTruthy(value)
	case "contextLines":
		cfg.ContextLines, err = atoi(key, value)
	case "maxDiffBytes":
		cfg.MaxDiffBytes, err = atoi(key, value)
	case "exclude":
		cfg.Exclude = splitList(value)
	case "logLevel":
		cfg.LogLevel = strings.ToLower(value)
	case "redactSecrets":
		cfg.Privacy.RedactSecrets = ParseTruthy(value)
	case "githubAPIURL":
		cfg.GitHub.APIURL = value
	case "githubTimeout":
		cfg.GitHub.Timeout, err = parseDuration(value)
	case "commentsPerPage":
		cfg.GitHub.CommentsPerPage, err = atoi(key, value)
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	return err
}

func atoi(key, value string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks the config before any network activity.
func (c Config) Validate() error {
	if !providers.IsKnown(c.Provider) {
		return fmt.Errorf("unknown provider %q (known: %s)", c.Provider, strings.Join(providers.Known, ", "))
	}
	if strings.TrimSpace(c.Model) == "" {
		return errors.New("no model configured: set REVBOT_MODEL or OPENAI_MODEL")
	}
	if c.ModelTimeout <= 0 {
		return errors.New("modelTimeout must be positive")
	}
	if c.ModelRetries < 0 {
		return errors.New("modelRetries must not be negative")
	}
	if c.GitHub.CommentsPerPage < 1 || c.GitHub.CommentsPerPage > 100 {
		return fmt.Errorf("commentsPerPage must be between 1 and 100, got %d", c.GitHub.CommentsPerPage)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logLevel %q", c.LogLevel)
	}
	if c.RequiresAPIKey() && c.Secrets.APIKey == "" {
		return fmt.Errorf("%w: %s", ErrMissingCredential, apiKeyEnv(c.Provider))
	}
	return nil
}

// RequiresAPIKey reports whether the provider needs an API key.
func (c Config) RequiresAPIKey() bool {
	switch strings.ToLower(c.Provider) {
	case "ollama", "lmstudio":
		return false
	}
	return true
}

// ProviderOptions returns the options for the review model.
func (c Config) ProviderOptions() providers.Options {
	return providers.Options{
		Provider:   c.Provider,
		Model:      c.Model,
		APIKey:     c.Secrets.APIKey,
		BaseURL:    c.BaseURL,
		Timeout:    c.ModelTimeout.AsDuration(),
		MaxRetries: c.ModelRetries,
	}
}

// StructuringOptions returns the options for the structuring model.
func (c Config) StructuringOptions() providers.Options {
	opts := c.ProviderOptions()
	if c.StructuringModel != "" {
		opts.Model = c.StructuringModel
	}
	return opts
}

func apiKeyEnv(provider string) string {
	switch strings.ToLower(provider) {
	case "anthropic":
		return "ANTHROPIC_API_KEY"
	case "gemini", "google":
		return "GEMINI_API_KEY or GOOGLE_API_KEY"
	default:
		return "OPENAI_API_KEY"
	}
}
