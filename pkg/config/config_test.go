package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mdia92/bone-framework-kiroween-edition/pkg/types"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		expectError bool
	}{
		{
			name:    "empty config uses defaults",
			content: "",
		},
		{
			name: "bedrock provider",
			content: `
generation:
  provider: bedrock
  bedrock:
    region: eu-west-1
    api_key: ${BEDROCK_KEY:-}
`,
		},
		{
			name: "provider is case insensitive",
			content: `
generation:
  provider: Gemini
`,
		},
		{
			name: "unknown provider",
			content: `
generation:
  provider: ouija
`,
			expectError: true,
		},
		{
			name: "temperature out of range",
			content: `
daemon:
  temperature: 3.5
`,
			expectError: true,
		},
		{
			name: "bad default category",
			content: `
pipeline:
  default_category: seance
`,
			expectError: true,
		},
		{
			name: "auth without secret",
			content: `
auth:
  enabled: true
`,
			expectError: true,
		},
		{
			name: "storage without bucket",
			content: `
storage:
  endpoint: http://localhost:9000
`,
			expectError: true,
		},
		{
			name: "invalid log level",
			content: `
observability:
  logging:
    level: shout
`,
			expectError: true,
		},
		{
			name:        "malformed yaml",
			content:     "server: [",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, tt.content))
			if tt.expectError {
				assert.Error(t, err)

				return
			}

			require.NoError(t, err)
			assert.NotNil(t, cfg)
		})
	}
}

func TestLoadWithEnvVars(t *testing.T) {
	content := `
server:
  port: ${TEST_PORT:-3000}
generation:
  provider: openai
  openai:
    api_key: ${TEST_OPENAI_KEY}
    model: ${TEST_MODEL:-gpt-4o}
`

	t.Setenv("TEST_PORT", "9999")
	t.Setenv("TEST_OPENAI_KEY", "sk-test")

	cfg, err := Load(writeConfig(t, content))
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "sk-test", cfg.Generation.OpenAI.APIKey)
	assert.Equal(t, "gpt-4o", cfg.Generation.OpenAI.Model)
	assert.Equal(t, "gpt-4o", cfg.Daemon.Model)
}

func TestLoadFromEnvPath(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 8088\n")
	t.Setenv("CONFIG_PATH", path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8088, cfg.Server.Port)
}

func TestLoadOrDefault(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	_, err = LoadOrDefault(writeConfig(t, "generation:\n  provider: ouija\n"))
	assert.Error(t, err)
}

func TestApplyDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 2480, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0:2480", cfg.Server.Address())
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, ProviderNone, cfg.Generation.Provider)
	assert.Equal(t, "us-east-1", cfg.Generation.Bedrock.Region)
	assert.Equal(t, DefaultBedrockModelID, cfg.Generation.Bedrock.ModelID)
	assert.Equal(t, 4096, cfg.Generation.Bedrock.MaxTokens)
	assert.Equal(t, 12, cfg.Pipeline.MaxSteps)
	assert.Equal(t, types.CategoryIncident, cfg.Pipeline.Category())
	assert.Equal(t, 2490, cfg.Observability.MetricsPort)

	daemon := cfg.Daemon.Types()
	assert.InDelta(t, 0.3, daemon.Temperature, 1e-9)
	assert.Equal(t, "gemini-2.5-flash", daemon.Model)
	assert.Nil(t, daemon.MaxTokens)
}

func TestDaemonModelFollowsProvider(t *testing.T) {
	tests := []struct {
		provider string
		expected string
	}{
		{ProviderNone, DefaultDaemonModel},
		{ProviderGemini, DefaultDaemonModel},
		{ProviderOpenAI, DefaultOpenAIModel},
		{ProviderBedrock, DefaultBedrockModelID},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			cfg := &Config{Generation: GenerationConfig{Provider: tt.provider}}
			applyDefaults(cfg)

			assert.Equal(t, tt.expected, cfg.Daemon.Model)
		})
	}
}

func TestExplicitZeroTemperatureIsKept(t *testing.T) {
	cfg, err := Load(writeConfig(t, "daemon:\n  temperature: 0\n  max_tokens: 512\n"))
	require.NoError(t, err)

	daemon := cfg.Daemon.Types()
	assert.Zero(t, daemon.Temperature)
	require.NotNil(t, daemon.MaxTokens)
	assert.Equal(t, 512, *daemon.MaxTokens)
}

func TestPipelineCategory(t *testing.T) {
	assert.Equal(t, types.CategoryOnboarding, PipelineConfig{DefaultCategory: "onboarding"}.Category())
	assert.Equal(t, types.CategoryOnboarding, PipelineConfig{DefaultCategory: "ONBOARDING"}.Category())
	assert.Equal(t, types.CategoryIncident, PipelineConfig{DefaultCategory: "???"}.Category())
}

func TestRateLimitRule(t *testing.T) {
	tests := []struct {
		name       string
		rule       RateLimitRule
		perSecond  float64
		burst      int
		retryAfter time.Duration
	}{
		{
			name:       "zero value",
			rule:       RateLimitRule{},
			perSecond:  1,
			burst:      1,
			retryAfter: time.Minute,
		},
		{
			name:       "per minute",
			rule:       RateLimitRule{RequestsPerMinute: 120},
			perSecond:  2,
			burst:      2,
			retryAfter: time.Minute,
		},
		{
			name:       "explicit burst and block",
			rule:       RateLimitRule{RequestsPerMinute: 30, BurstSize: 5, BlockDuration: 10 * time.Second},
			perSecond:  0.5,
			burst:      5,
			retryAfter: 10 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.perSecond, tt.rule.PerSecond(), 1e-9)
			assert.Equal(t, tt.burst, tt.rule.Burst())
			assert.Equal(t, tt.retryAfter, tt.rule.RetryAfter())
		})
	}
}

func TestSubstituteEnvVars(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		envVars  map[string]string
		expected string
	}{
		{
			name:     "no substitution needed",
			content:  "key: value",
			expected: "key: value",
		},
		{
			name:     "simple substitution",
			content:  "key: ${BONE_TEST_VAR}",
			envVars:  map[string]string{"BONE_TEST_VAR": "replaced"},
			expected: "key: replaced",
		},
		{
			name:     "substitution with default",
			content:  "key: ${BONE_MISSING_VAR:-default_value}",
			expected: "key: default_value",
		},
		{
			name:     "missing without default",
			content:  "key: ${BONE_MISSING_VAR}",
			expected: "key: ",
		},
		{
			name:     "comment lines skipped",
			content:  "# ${IGNORED}\nkey: value",
			expected: "# ${IGNORED}\nkey: value",
		},
		{
			name:     "multiple substitutions",
			content:  "a: ${BONE_VAR1}\nb: ${BONE_VAR2:-default}",
			envVars:  map[string]string{"BONE_VAR1": "one"},
			expected: "a: one\nb: default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			result, err := substituteEnvVars(tt.content)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}
