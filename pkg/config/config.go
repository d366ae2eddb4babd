// Package config provides configuration loading for bone.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Mdia92/bone-framework-kiroween-edition/pkg/observability"
	"github.com/Mdia92/bone-framework-kiroween-edition/pkg/types"
)

// Generation providers.
const (
	ProviderNone    = "none"
	ProviderBedrock = "bedrock"
	ProviderOpenAI  = "openai"
	ProviderGemini  = "gemini"
)

// Default values applied by applyDefaults.
const (
	DefaultPort            = 2480
	DefaultMetricsPort     = 2490
	DefaultTemperature     = 0.3
	DefaultDaemonModel     = "gemini-2.5-flash"
	DefaultMaxSteps        = 12
	DefaultBedrockRegion   = "us-east-1"
	DefaultBedrockModelID  = "anthropic.claude-3-haiku-20240307-v1:0"
	DefaultBedrockMaxToken = 4096
	DefaultOpenAIModel     = "gpt-4o-mini"
)

// Config is the main configuration structure.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Generation    GenerationConfig    `yaml:"generation"`
	Daemon        DaemonConfig        `yaml:"daemon"`
	Pipeline      PipelineConfig      `yaml:"pipeline"`
	Auth          AuthConfig          `yaml:"auth"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit"`
	Storage       *StorageConfig      `yaml:"storage,omitempty"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Address returns host:port.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// GenerationConfig selects and configures the external generation service.
type GenerationConfig struct {
	// Provider is one of none, bedrock, openai or gemini.
	Provider string        `yaml:"provider"`
	Bedrock  BedrockConfig `yaml:"bedrock"`
	OpenAI   OpenAIConfig  `yaml:"openai"`
	Gemini   GeminiConfig  `yaml:"gemini"`
}

// BedrockConfig configures the AWS Bedrock provider.
type BedrockConfig struct {
	Region string `yaml:"region"`
	// APIKey is a Bedrock API key of the form ABSK<base64(id:secret)>.
	APIKey          string `yaml:"api_key"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	SessionToken    string `yaml:"session_token,omitempty"`
	ModelID         string `yaml:"model_id"`
	MaxTokens       int    `yaml:"max_tokens"`
	// Endpoint overrides the regional bedrock-runtime endpoint.
	Endpoint string `yaml:"endpoint,omitempty"`
}

// OpenAIConfig configures an OpenAI-compatible chat completions provider.
type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url,omitempty"`
	Model   string `yaml:"model"`
}

// GeminiConfig configures the Google GenAI provider.
type GeminiConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url,omitempty"`
	Model   string `yaml:"model"`
}

// DaemonConfig is the generation configuration recorded on every pipeline run.
type DaemonConfig struct {
	Temperature *float64 `yaml:"temperature,omitempty"`
	Model       string   `yaml:"model"`
	MaxTokens   *int     `yaml:"max_tokens,omitempty"`
}

// Types returns the pipeline-facing form of the daemon config.
func (d DaemonConfig) Types() types.DaemonConfig {
	out := types.DaemonConfig{Model: d.Model, MaxTokens: d.MaxTokens}
	if d.Temperature != nil {
		out.Temperature = *d.Temperature
	}

	return out
}

// PipelineConfig holds orchestrator settings.
type PipelineConfig struct {
	// MaxSteps bounds onboarding documents produced by the generation service.
	MaxSteps int `yaml:"max_steps"`
	// DefaultCategory is what the classifier returns for every input.
	DefaultCategory string `yaml:"default_category"`
}

// Category returns the parsed default category.
func (p PipelineConfig) Category() types.Category {
	c, err := types.ParseCategory(p.DefaultCategory)
	if err != nil {
		return types.CategoryIncident
	}

	return c
}

// AuthConfig holds API authentication configuration.
type AuthConfig struct {
	Enabled bool         `yaml:"enabled"`
	Issuer  string       `yaml:"issuer,omitempty"`
	Tokens  TokensConfig `yaml:"tokens"`
}

// TokensConfig holds JWT token configuration.
type TokensConfig struct {
	SecretKey string `yaml:"secret_key"`
}

// RateLimitConfig holds rate limiting configuration for the HTTP API.
type RateLimitConfig struct {
	Enabled bool          `yaml:"enabled"`
	Default RateLimitRule `yaml:"default"`
	// PerRoute overrides the default rule for a named route, e.g. "incidents".
	PerRoute map[string]RateLimitRule `yaml:"per_route,omitempty"`
	// TrustedProxies lists IPs or CIDR ranges whose forwarding headers are honoured.
	TrustedProxies []string `yaml:"trusted_proxies,omitempty"`
}

// RateLimitRule defines token bucket parameters.
type RateLimitRule struct {
	RequestsPerMinute int           `yaml:"requests_per_minute"`
	BurstSize         int           `yaml:"burst_size"`
	BlockDuration     time.Duration `yaml:"block_duration"`
}

// PerSecond returns the token refill rate.
func (r RateLimitRule) PerSecond() float64 {
	if r.RequestsPerMinute <= 0 {
		return 1
	}

	return float64(r.RequestsPerMinute) / 60.0
}

// Burst returns the bucket capacity, at least one.
func (r RateLimitRule) Burst() int {
	if r.BurstSize > 0 {
		return r.BurstSize
	}

	return max(1, int(r.PerSecond()))
}

// RetryAfter returns how long a limited client should wait.
func (r RateLimitRule) RetryAfter() time.Duration {
	if r.BlockDuration > 0 {
		return r.BlockDuration
	}

	return 60 * time.Second
}

// StorageConfig holds S3-compatible archive configuration.
type StorageConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Prefix    string `yaml:"prefix,omitempty"`
}

// ObservabilityConfig holds logging and metrics configuration.
type ObservabilityConfig struct {
	Logging        observability.LoggerConfig `yaml:"logging"`
	MetricsEnabled bool                       `yaml:"metrics_enabled"`
	MetricsPort    int                        `yaml:"metrics_port"`
}

// Load loads configuration from a YAML file with environment variable substitution.
func Load(path string) (*Config, error) {
	path = resolvePath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	return Parse(data)
}

// LoadOrDefault behaves like Load but returns the defaults when the file
// does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}

	return cfg, err
}

// Default returns a configuration with every default applied. It runs
// offline: the generation provider is none.
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)

	return &cfg
}

// Parse decodes YAML content, substituting environment variables first.
func Parse(data []byte) (*Config, error) {
	substituted, err := substituteEnvVars(string(data))
	if err != nil {
		return nil, fmt.Errorf("substituting env vars: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(substituted), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func resolvePath(path string) string {
	if path != "" {
		return path
	}

	if env := os.Getenv("CONFIG_PATH"); env != "" {
		return env
	}

	return "config.yaml"
}

// envVarWithDefaultPattern matches ${VAR_NAME:-default} patterns.
var envVarWithDefaultPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// substituteEnvVars replaces ${VAR_NAME} and ${VAR_NAME:-default} patterns
// with environment variable values. Comment lines are left alone and unset
// variables without a default become empty strings.
func substituteEnvVars(content string) (string, error) {
	lines := strings.Split(content, "\n")

	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}

		lines[i] = envVarWithDefaultPattern.ReplaceAllStringFunc(line, func(match string) string {
			parts := envVarWithDefaultPattern.FindStringSubmatch(match)

			if value := os.Getenv(parts[1]); value != "" {
				return value
			}

			return parts[2]
		})
	}

	return strings.Join(lines, "\n"), nil
}

// applyDefaults sets default values for configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultPort
	}

	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}

	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 2 * time.Minute
	}

	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}

	gen := &cfg.Generation
	if gen.Provider == "" {
		gen.Provider = ProviderNone
	}

	gen.Provider = strings.ToLower(gen.Provider)

	if gen.Bedrock.Region == "" {
		gen.Bedrock.Region = DefaultBedrockRegion
	}

	if gen.Bedrock.ModelID == "" {
		gen.Bedrock.ModelID = DefaultBedrockModelID
	}

	if gen.Bedrock.MaxTokens == 0 {
		gen.Bedrock.MaxTokens = DefaultBedrockMaxToken
	}

	if gen.OpenAI.Model == "" {
		gen.OpenAI.Model = DefaultOpenAIModel
	}

	if gen.Gemini.Model == "" {
		gen.Gemini.Model = DefaultDaemonModel
	}

	if cfg.Daemon.Temperature == nil {
		t := DefaultTemperature
		cfg.Daemon.Temperature = &t
	}

	if cfg.Daemon.Model == "" {
		cfg.Daemon.Model = providerModel(cfg.Generation)
	}

	if cfg.Pipeline.MaxSteps == 0 {
		cfg.Pipeline.MaxSteps = DefaultMaxSteps
	}

	if cfg.Pipeline.DefaultCategory == "" {
		cfg.Pipeline.DefaultCategory = string(types.CategoryIncident)
	}

	if cfg.RateLimit.Default.RequestsPerMinute == 0 {
		cfg.RateLimit.Default.RequestsPerMinute = 30
	}

	if cfg.RateLimit.Default.BurstSize == 0 {
		cfg.RateLimit.Default.BurstSize = 10
	}

	if cfg.Observability.MetricsPort == 0 {
		cfg.Observability.MetricsPort = DefaultMetricsPort
	}

	cfg.Observability.Logging.ApplyDefaults()
}

// providerModel returns the model the selected provider would use. Offline
// runs record the Gemini default, matching what the web apps always sent.
func providerModel(gen GenerationConfig) string {
	switch gen.Provider {
	case ProviderBedrock:
		return gen.Bedrock.ModelID
	case ProviderOpenAI:
		return gen.OpenAI.Model
	default:
		return gen.Gemini.Model
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.Generation.Provider {
	case ProviderNone, ProviderBedrock, ProviderOpenAI, ProviderGemini:
	default:
		return fmt.Errorf("unknown generation.provider %q", c.Generation.Provider)
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}

	if t := c.Daemon.Temperature; t != nil && (*t < 0 || *t > 2) {
		return fmt.Errorf("daemon.temperature %.2f must be within [0, 2]", *t)
	}

	if c.Daemon.MaxTokens != nil && *c.Daemon.MaxTokens <= 0 {
		return errors.New("daemon.max_tokens must be positive")
	}

	if c.Pipeline.MaxSteps < 1 {
		return errors.New("pipeline.max_steps must be at least 1")
	}

	if _, err := types.ParseCategory(c.Pipeline.DefaultCategory); err != nil {
		return fmt.Errorf("pipeline.default_category: %w", err)
	}

	if c.Auth.Enabled && c.Auth.Tokens.SecretKey == "" {
		return errors.New("auth.tokens.secret_key is required when auth is enabled")
	}

	if c.Storage != nil && c.Storage.Bucket == "" {
		return errors.New("storage.bucket is required when storage is configured")
	}

	return c.Observability.Logging.Validate()
}
