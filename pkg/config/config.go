package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/cockroachdb/errors"
	"github.com/invopop/jsonschema"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// CommitConvention represents the convention to use for commit messages
type CommitConvention string

const (
	// NoConvention indicates no specific convention
	NoConvention CommitConvention = "none"
	// ConventionalCommits follows the conventional commits spec
	ConventionalCommits CommitConvention = "conventional"
)

// AIProvider represents the AI service to use
type AIProvider string

const (
	// OpenAI (or any OpenAI-compatible endpoint set through base_url)
	OpenAI AIProvider = "openai"
	// Ollama (local) provider, reached through its OpenAI-compatible API
	Ollama AIProvider = "ollama"
)

// compatibleBaseURLs maps providers without a native backend to their
// OpenAI-compatible endpoints
var compatibleBaseURLs = map[AIProvider]string{
	"gemini":    "https://generativelanguage.googleapis.com/v1beta/openai/",
	"claude":    "https://api.anthropic.com/v1/",
	"anthropic": "https://api.anthropic.com/v1/",
}

// Verbosity controls how much body text the model is asked to write
type Verbosity string

const (
	VerbosityConcise  Verbosity = "concise"
	VerbosityNormal   Verbosity = "normal"
	VerbosityDetailed Verbosity = "detailed"
)

// DefaultOllamaBaseURL is used when the provider is ollama and no base_url is set
const DefaultOllamaBaseURL = "http://localhost:11434/v1"

// File names looked up for configuration
const (
	HomeFileName        = ".commitronrc"
	ProjectYAMLFileName = ".commitronrc"
	ProjectTOMLFileName = ".commitron.toml"
)

// Environment variables that override file configuration
const (
	EnvModel        = "COMMITRON_MODEL"
	EnvPremiumModel = "COMMITRON_PREMIUM_MODEL"
	EnvAPIKey       = "COMMITRON_API_KEY"
	EnvOpenAIAPIKey = "OPENAI_API_KEY"
	EnvBaseURL      = "COMMITRON_BASE_URL"
)

// Config represents the application configuration
type Config struct {
	// AI provider configuration
	AI struct {
		Provider       AIProvider `yaml:"provider" toml:"provider" jsonschema:"enum=openai,enum=ollama"`
		APIKey         string     `yaml:"api_key,omitempty" toml:"api_key"`
		BaseURL        string     `yaml:"base_url,omitempty" toml:"base_url"`
		Model          string     `yaml:"model" toml:"model"`
		PremiumModel   string     `yaml:"premium_model" toml:"premium_model"` // Used by the premium regenerate style
		Temperature    float64    `yaml:"temperature" toml:"temperature"`
		MaxTokens      int        `yaml:"max_tokens,omitempty" toml:"max_tokens"` // Maximum tokens to generate in response
		SystemPrompt   string     `yaml:"system_prompt,omitempty" toml:"system_prompt"`
		TimeoutSeconds int        `yaml:"timeout_seconds" toml:"timeout_seconds"` // Per-generation time budget
		Debug          bool       `yaml:"debug,omitempty" toml:"debug"`           // When true, logs prompts and responses
	} `yaml:"ai" toml:"ai"`

	// Commit message configuration
	Commit struct {
		Convention    CommitConvention `yaml:"convention" toml:"convention" jsonschema:"enum=conventional,enum=none"`
		IncludeScope  bool             `yaml:"include_scope" toml:"include_scope"`
		IncludeEmoji  bool             `yaml:"include_emoji" toml:"include_emoji"`
		Verbosity     Verbosity        `yaml:"verbosity" toml:"verbosity" jsonschema:"enum=concise,enum=normal,enum=detailed"`
		MaxLength     int              `yaml:"max_length" toml:"max_length"`         // Maximum subject length
		RecentCommits int              `yaml:"recent_commits" toml:"recent_commits"` // Commits shown to the model as style reference
	} `yaml:"commit" toml:"commit"`

	// Diff preparation configuration
	Diff struct {
		MaxChars           int               `yaml:"max_chars" toml:"max_chars"`
		MaxTokens          int               `yaml:"max_tokens,omitempty" toml:"max_tokens"` // 0 disables the token limit
		CharsPerToken      float64           `yaml:"chars_per_token" toml:"chars_per_token"`
		ElevationThreshold float64           `yaml:"elevation_threshold" toml:"elevation_threshold"`
		ElevationMinLines  int               `yaml:"elevation_min_lines" toml:"elevation_min_lines"`
		CollapseImports    bool              `yaml:"collapse_imports" toml:"collapse_imports"`
		ImportPatterns     map[string]string `yaml:"import_patterns,omitempty" toml:"import_patterns"` // language -> regex
	} `yaml:"diff" toml:"diff"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	cfg := &Config{}

	// Default AI settings
	cfg.AI.Provider = OpenAI
	cfg.AI.Model = "gpt-4o-mini"
	cfg.AI.PremiumModel = "gpt-4o"
	cfg.AI.Temperature = 0.7
	cfg.AI.MaxTokens = 1000
	cfg.AI.TimeoutSeconds = 60

	// Default commit settings
	cfg.Commit.Convention = ConventionalCommits
	cfg.Commit.IncludeScope = true
	cfg.Commit.IncludeEmoji = false
	cfg.Commit.Verbosity = VerbosityNormal
	cfg.Commit.MaxLength = 72
	cfg.Commit.RecentCommits = 5

	// Default diff settings
	cfg.Diff.MaxChars = 30000
	cfg.Diff.MaxTokens = 0
	cfg.Diff.CharsPerToken = 3.5
	cfg.Diff.ElevationThreshold = 0.8
	cfg.Diff.ElevationMinLines = 0
	cfg.Diff.CollapseImports = true

	return cfg
}

// Conventional reports whether subjects are rebuilt as type(scope): description
func (c *Config) Conventional() bool {
	return c.Commit.Convention == ConventionalCommits
}

// LoadOptions controls where Load looks for configuration
type LoadOptions struct {
	Path     string              // Replaces ~/.commitronrc when set
	RepoRoot string              // Enables the project file lookup
	DotEnv   bool                // Load .env from the working directory
	Getenv   func(string) string // Defaults to os.Getenv
}

// Load builds the configuration from defaults, the home (or explicit) file,
// the project file and the environment, then validates it. Invalid values are
// reset to their defaults and reported as warnings.
func Load(opts LoadOptions) (*Config, []string, error) {
	if opts.Getenv == nil {
		opts.Getenv = os.Getenv
	}
	if opts.DotEnv {
		if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
			return nil, nil, errors.Wrap(err, "load .env")
		}
	}

	path := opts.Path
	if path == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, nil, errors.Wrap(err, "get home directory")
		}
		path = filepath.Join(homeDir, HomeFileName)
	}
	cfg, err := LoadConfigFromPath(path)
	if err != nil {
		return nil, nil, err
	}

	if opts.RepoRoot != "" {
		yamlPath := filepath.Join(opts.RepoRoot, ProjectYAMLFileName)
		// The project file and the home file are the same file when the repo lives in $HOME.
		if !samePath(yamlPath, path) {
			if err := mergeFile(cfg, yamlPath); err != nil {
				return nil, nil, err
			}
		}
		if err := mergeFile(cfg, filepath.Join(opts.RepoRoot, ProjectTOMLFileName)); err != nil {
			return nil, nil, err
		}
	}

	applyEnv(cfg, opts.Getenv)

	return cfg, cfg.Validate(), nil
}

// LoadConfigFromPath loads a single configuration file over the defaults,
// without project files, environment overrides or validation. A missing file
// yields the defaults.
func LoadConfigFromPath(configPath string) (*Config, error) {
	cfg := DefaultConfig()
	if err := mergeFile(cfg, configPath); err != nil {
		return nil, err
	}
	return cfg, nil
}

// mergeFile decodes path over cfg. Only keys present in the file are replaced.
// A missing file is skipped.
func mergeFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrapf(err, "read config %s", path)
	}

	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return errors.WithHint(errors.Wrapf(err, "parse config %s", path), "check the TOML syntax of the project configuration")
		}
		return nil
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return errors.WithHint(errors.Wrapf(err, "parse config %s", path), "run 'commitron init --force' to regenerate an example configuration")
	}
	return nil
}

func applyEnv(cfg *Config, getenv func(string) string) {
	if v := strings.TrimSpace(getenv(EnvModel)); v != "" {
		cfg.AI.Model = v
	}
	if v := strings.TrimSpace(getenv(EnvPremiumModel)); v != "" {
		cfg.AI.PremiumModel = v
	}
	if v := strings.TrimSpace(getenv(EnvAPIKey)); v != "" {
		cfg.AI.APIKey = v
	} else if v := strings.TrimSpace(getenv(EnvOpenAIAPIKey)); v != "" && cfg.AI.APIKey == "" {
		cfg.AI.APIKey = v
	}
	if v := strings.TrimSpace(getenv(EnvBaseURL)); v != "" {
		cfg.AI.BaseURL = v
	}
}

// Validate resets every invalid value to its default and returns one warning per reset.
func (c *Config) Validate() []string {
	d := DefaultConfig()
	var warnings []string
	warn := func(format string, args ...any) {
		warnings = append(warnings, fmt.Sprintf(format, args...))
	}

	switch c.AI.Provider {
	case OpenAI, Ollama:
	default:
		if url, ok := compatibleBaseURLs[AIProvider(strings.ToLower(string(c.AI.Provider)))]; ok {
			if c.AI.BaseURL == "" {
				c.AI.BaseURL = url
			}
			warn("ai.provider %q is served through its OpenAI-compatible API: using %q with ai.base_url %s", c.AI.Provider, d.AI.Provider, c.AI.BaseURL)
		} else {
			warn("unsupported ai.provider %q, using %q", c.AI.Provider, d.AI.Provider)
		}
		c.AI.Provider = d.AI.Provider
	}
	if c.AI.Provider == Ollama && c.AI.BaseURL == "" {
		c.AI.BaseURL = DefaultOllamaBaseURL
	}
	if strings.TrimSpace(c.AI.Model) == "" {
		warn("ai.model is empty, using %q", d.AI.Model)
		c.AI.Model = d.AI.Model
	}
	if c.AI.Temperature < 0 || c.AI.Temperature > 2 {
		warn("ai.temperature %.2f out of range [0,2], using %.2f", c.AI.Temperature, d.AI.Temperature)
		c.AI.Temperature = d.AI.Temperature
	}
	if c.AI.MaxTokens < 0 {
		warn("ai.max_tokens %d is negative, using %d", c.AI.MaxTokens, d.AI.MaxTokens)
		c.AI.MaxTokens = d.AI.MaxTokens
	}
	if c.AI.TimeoutSeconds <= 0 {
		warn("ai.timeout_seconds %d must be positive, using %d", c.AI.TimeoutSeconds, d.AI.TimeoutSeconds)
		c.AI.TimeoutSeconds = d.AI.TimeoutSeconds
	}

	switch c.Commit.Convention {
	case ConventionalCommits, NoConvention:
	default:
		warn("unknown commit.convention %q, using %q", c.Commit.Convention, d.Commit.Convention)
		c.Commit.Convention = d.Commit.Convention
	}
	switch c.Commit.Verbosity {
	case VerbosityConcise, VerbosityNormal, VerbosityDetailed:
	default:
		warn("unknown commit.verbosity %q, using %q", c.Commit.Verbosity, d.Commit.Verbosity)
		c.Commit.Verbosity = d.Commit.Verbosity
	}
	if c.Commit.MaxLength <= 0 {
		warn("commit.max_length %d must be positive, using %d", c.Commit.MaxLength, d.Commit.MaxLength)
		c.Commit.MaxLength = d.Commit.MaxLength
	}
	if c.Commit.RecentCommits < 0 {
		warn("commit.recent_commits %d is negative, using %d", c.Commit.RecentCommits, d.Commit.RecentCommits)
		c.Commit.RecentCommits = d.Commit.RecentCommits
	}

	if c.Diff.MaxChars <= 0 {
		warn("diff.max_chars %d must be positive, using %d", c.Diff.MaxChars, d.Diff.MaxChars)
		c.Diff.MaxChars = d.Diff.MaxChars
	}
	if c.Diff.MaxTokens < 0 {
		warn("diff.max_tokens %d is negative, disabling the token limit", c.Diff.MaxTokens)
		c.Diff.MaxTokens = d.Diff.MaxTokens
	}
	if c.Diff.CharsPerToken <= 0 {
		warn("diff.chars_per_token %.2f must be positive, using %.2f", c.Diff.CharsPerToken, d.Diff.CharsPerToken)
		c.Diff.CharsPerToken = d.Diff.CharsPerToken
	}
	if c.Diff.ElevationThreshold < 0 || c.Diff.ElevationThreshold > 1 {
		warn("diff.elevation_threshold %.2f out of range [0,1], using %.2f", c.Diff.ElevationThreshold, d.Diff.ElevationThreshold)
		c.Diff.ElevationThreshold = d.Diff.ElevationThreshold
	}
	if c.Diff.ElevationMinLines < 0 {
		warn("diff.elevation_min_lines %d is negative, using %d", c.Diff.ElevationMinLines, d.Diff.ElevationMinLines)
		c.Diff.ElevationMinLines = d.Diff.ElevationMinLines
	}
	for lang, pattern := range c.Diff.ImportPatterns {
		if _, err := regexp.Compile(pattern); err != nil {
			warn("diff.import_patterns.%s is not a valid regular expression (%v), using the built-in pattern", lang, err)
			delete(c.Diff.ImportPatterns, lang)
		}
	}

	return warnings
}

// Schema returns the JSON schema of the configuration file
func Schema() ([]byte, error) {
	r := &jsonschema.Reflector{
		FieldNameTag:              "yaml",
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	schema := r.Reflect(&Config{})
	schema.Title = "commitron configuration"
	return json.MarshalIndent(schema, "", "  ")
}

// SaveExampleConfig saves an example configuration to the given path
func SaveExampleConfig(path string) error {
	cfg := DefaultConfig()

	// Add some example values
	cfg.AI.APIKey = "your-api-key-here"
	cfg.AI.Debug = false // Set to true to log prompts and responses

	cfg.Diff.ImportPatterns = map[string]string{
		"go": `^(import\s*\(?|(\w+|_|\.)?\s*"[^"]+")$`,
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	// Add comments to the YAML
	yamlWithComments := `# Commitron configuration file
# This file configures the behavior of the commitron tool.
# Project settings can live in .commitronrc or .commitron.toml at the repository root.
# COMMITRON_MODEL overrides ai.model; COMMITRON_API_KEY (or OPENAI_API_KEY) overrides ai.api_key.

` + string(data)

	return os.WriteFile(path, []byte(yamlWithComments), 0644)
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return a == b
	}
	return absA == absB
}
