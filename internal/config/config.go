package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/leofalp/aigoflow/core/refine"
	"github.com/leofalp/aigoflow/providers/ai/anthropic"
	"github.com/leofalp/aigoflow/providers/ai/gemini"
	"github.com/leofalp/aigoflow/providers/ai/openai"
	"github.com/leofalp/aigoflow/providers/observability/slogobs"
)

const (
	// DefaultFile is read when Load gets an empty path and the file exists.
	DefaultFile    = "aigoflow.yaml"
	DefaultEnvFile = ".env"

	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

var ErrInvalidConfig = errors.New("invalid config")

type RetryConfig struct {
	MaxRetries     int           `yaml:"max_retries"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
}

type RefineConfig struct {
	StartIteration int `yaml:"start_iteration"`
	MaxIterations  int `yaml:"max_iterations"`
	ParseRetries   int `yaml:"parse_retries"`
}

type ChatConfig struct {
	Database          string `yaml:"database"`
	MaxToolIterations int    `yaml:"max_tool_iterations"`
	SystemPrompt      string `yaml:"system_prompt"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config models aigoflow.yaml.
type Config struct {
	Provider       string        `yaml:"provider"`
	Model          string        `yaml:"model"`
	BaseURL        string        `yaml:"base_url"`
	APIKeyEnv      string        `yaml:"api_key_env"`
	Temperature    float32       `yaml:"temperature"`
	MaxTokens      int           `yaml:"max_tokens"`
	RequestTimeout time.Duration `yaml:"request_timeout"`

	Retry  RetryConfig  `yaml:"retry"`
	Refine RefineConfig `yaml:"refine"`
	Chat   ChatConfig   `yaml:"chat"`
	Log    LogConfig    `yaml:"log"`
}

type providerDefaults struct {
	model     string
	baseURL   string
	apiKeyEnv string
}

var defaultsByProvider = map[string]providerDefaults{
	ProviderOpenAI:    {model: openai.DefaultModel, baseURL: openai.DefaultBaseURL, apiKeyEnv: "HF_TOKEN"},
	ProviderAnthropic: {model: anthropic.DefaultModel, baseURL: anthropic.DefaultBaseURL, apiKeyEnv: "ANTHROPIC_API_KEY"},
	ProviderGemini:    {model: gemini.DefaultModel, apiKeyEnv: "GEMINI_API_KEY"},
}

// Default returns the provider-independent defaults. Load and Parse decode
// over it, so a key written as zero in the file or environment stays zero:
// retry.max_retries 0 disables retries, request_timeout 0 disables the
// per-call deadline and refine.parse_retries 0 disables corrective prompts.
func Default() *Config {
	return &Config{
		RequestTimeout: 2 * time.Minute,
		Retry: RetryConfig{
			MaxRetries:     3,
			InitialBackoff: time.Second,
			MaxBackoff:     30 * time.Second,
		},
		Refine: RefineConfig{
			StartIteration: 1,
			MaxIterations:  5,
			ParseRetries:   refine.DefaultParseRetries,
		},
		Chat: ChatConfig{
			Database:          "chatbot.db",
			MaxToolIterations: 5,
		},
		Log: LogConfig{Level: "info", Format: "compact"},
	}
}

// Load reads path (or DefaultFile when path is empty and present), then the
// .env file, then environment overrides, fills defaults and validates.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	if err := cfg.readFile(path); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	if err := loadDotEnv(DefaultEnvFile); err != nil {
		return nil, err
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML without touching the environment. Defaults are applied.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// loadDotEnv never overrides variables that are already set.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	texts := map[string]*string{
		"AIGOFLOW_PROVIDER":      &c.Provider,
		"AIGOFLOW_MODEL":         &c.Model,
		"AIGOFLOW_BASE_URL":      &c.BaseURL,
		"AIGOFLOW_API_KEY_ENV":   &c.APIKeyEnv,
		"AIGOFLOW_CHAT_DB":       &c.Chat.Database,
		"AIGOFLOW_SYSTEM_PROMPT": &c.Chat.SystemPrompt,
		"AIGOFLOW_LOG_LEVEL":     &c.Log.Level,
		"AIGOFLOW_LOG_FORMAT":    &c.Log.Format,
	}
	for key, target := range texts {
		if value, ok := lookupEnv(key); ok {
			*target = value
		}
	}

	ints := map[string]*int{
		"AIGOFLOW_MAX_TOKENS":      &c.MaxTokens,
		"AIGOFLOW_MAX_RETRIES":     &c.Retry.MaxRetries,
		"AIGOFLOW_START_ITERATION": &c.Refine.StartIteration,
		"AIGOFLOW_MAX_ITERATIONS":  &c.Refine.MaxIterations,
		"AIGOFLOW_PARSE_RETRIES":   &c.Refine.ParseRetries,
	}
	for key, target := range ints {
		value, ok := lookupEnv(key)
		if !ok {
			continue
		}
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %v", ErrInvalidConfig, key, value, err)
		}
		*target = parsed
	}

	if value, ok := lookupEnv("AIGOFLOW_TEMPERATURE"); ok {
		parsed, err := strconv.ParseFloat(value, 32)
		if err != nil {
			return fmt.Errorf("%w: AIGOFLOW_TEMPERATURE=%q: %v", ErrInvalidConfig, value, err)
		}
		c.Temperature = float32(parsed)
	}

	if value, ok := lookupEnv("AIGOFLOW_REQUEST_TIMEOUT"); ok {
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("%w: AIGOFLOW_REQUEST_TIMEOUT=%q: %v", ErrInvalidConfig, value, err)
		}
		c.RequestTimeout = parsed
	}
	return nil
}

// lookupEnv treats empty variables as unset.
func lookupEnv(key string) (string, bool) {
	value := strings.TrimSpace(os.Getenv(key))
	return value, value != ""
}

// ApplyDefaults fills the empty text fields. Provider-specific values follow
// the configured provider, so switching provider alone is enough. Numeric
// fields are not touched: their defaults come from Default.
func (c *Config) ApplyDefaults() {
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	if c.Provider == "" {
		c.Provider = ProviderOpenAI
	}
	if defaults, ok := defaultsByProvider[c.Provider]; ok {
		if c.Model == "" {
			c.Model = defaults.model
		}
		if c.BaseURL == "" {
			c.BaseURL = defaults.baseURL
		}
		if c.APIKeyEnv == "" {
			c.APIKeyEnv = defaults.apiKeyEnv
		}
	}

	if c.Chat.Database == "" {
		c.Chat.Database = "chatbot.db"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "compact"
	}
}

// Validate rejects values no component can run with.
func (c *Config) Validate() error {
	var problems []string

	if _, ok := defaultsByProvider[c.Provider]; !ok {
		problems = append(problems, fmt.Sprintf("unknown provider %q (want openai, anthropic or gemini)", c.Provider))
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		problems = append(problems, fmt.Sprintf("temperature %.2f outside 0..2", c.Temperature))
	}
	if c.MaxTokens < 0 {
		problems = append(problems, "max_tokens must not be negative")
	}
	if c.RequestTimeout < 0 {
		problems = append(problems, "request_timeout must not be negative")
	}
	if c.Retry.MaxRetries < 0 {
		problems = append(problems, "retry.max_retries must not be negative")
	}
	if c.Retry.MaxBackoff < c.Retry.InitialBackoff {
		problems = append(problems, "retry.max_backoff is shorter than retry.initial_backoff")
	}
	if c.Refine.StartIteration < 0 {
		problems = append(problems, "refine.start_iteration must not be negative")
	}
	if c.Refine.MaxIterations < 1 {
		problems = append(problems, "refine.max_iterations must be at least 1")
	}
	if c.Refine.StartIteration > c.Refine.MaxIterations {
		problems = append(problems, fmt.Sprintf("refine.start_iteration %d exceeds refine.max_iterations %d", c.Refine.StartIteration, c.Refine.MaxIterations))
	}
	if c.Refine.ParseRetries < 0 {
		problems = append(problems, "refine.parse_retries must not be negative")
	}
	if _, ok := slogobs.ParseLevel(c.Log.Level); !ok {
		problems = append(problems, fmt.Sprintf("unknown log level %q", c.Log.Level))
	}
	if c.Chat.MaxToolIterations < 1 {
		problems = append(problems, "chat.max_tool_iterations must be at least 1")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// APIKey reads the key from the variable named by APIKeyEnv.
func (c *Config) APIKey() string {
	if c.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.APIKeyEnv)
}
