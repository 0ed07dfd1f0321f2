package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skosovsky/kernelsy"
)

// clearEnv unsets every variable Load reads; t.Setenv restores them after the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{EnvAPIKey, EnvBaseURL, EnvModel, EnvToolChoice, EnvMaxRounds, EnvLogLevel, EnvLogFormat, EnvTokenizer} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadFiles("", "")
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, cfg.LLM.BaseURL)
	assert.Equal(t, DefaultModel, cfg.LLM.Model)
	assert.Equal(t, DefaultTimeout, cfg.LLM.Timeout)
	assert.Equal(t, "auto", cfg.Kernel.ToolChoice)
	assert.Equal(t, kernelsy.DefaultMaxAutoInvokeAttempts, cfg.Kernel.MaxAutoInvokeAttempts)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Empty(t, cfg.Kernel.Tokenizer)
	require.ErrorIs(t, cfg.Validate(), ErrMissingAPIKey)
}

func TestLoad_YAML(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "kernelsy.yaml", `
llm:
  api_key: from-yaml
  model: meta-llama/llama-3.2-3b-instruct
  timeout: 15s
  app_title: kernelsy
kernel:
  tool_choice: required
  max_auto_invoke_attempts: 3
  temperature: 0.1
  tokenizer: p50k_base
log:
  level: debug
  format: json
`)
	cfg, err := LoadFiles(path, "")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "from-yaml", cfg.LLM.APIKey)
	assert.Equal(t, 15*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, DefaultBaseURL, cfg.LLM.BaseURL)

	s := cfg.Settings()
	assert.Equal(t, "meta-llama/llama-3.2-3b-instruct", s.ModelID)
	assert.Equal(t, kernelsy.ToolChoiceRequired, s.ToolChoice)
	assert.Equal(t, 3, s.MaxAutoInvokeAttempts)
	require.NotNil(t, s.Temperature)
	assert.InDelta(t, 0.1, *s.Temperature, 1e-6)
	assert.True(t, s.AutoInvoke)

	conn := cfg.Connector()
	assert.Equal(t, "from-yaml", conn.APIKey)
	assert.Equal(t, "kernelsy", conn.AppTitle)
	assert.Equal(t, "json", cfg.Logging().Format)
	assert.Equal(t, "p50k_base", cfg.Kernel.Tokenizer)
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "kernelsy.yaml", "llm:\n  api_key: from-yaml\n  model: yaml-model\n")
	t.Setenv(EnvAPIKey, "from-env")
	t.Setenv(EnvModel, "env-model")
	t.Setenv(EnvToolChoice, "none")
	t.Setenv(EnvMaxRounds, "2")
	t.Setenv(EnvTokenizer, "cl100k_base")

	cfg, err := LoadFiles(path, "")
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.LLM.APIKey)
	assert.Equal(t, "env-model", cfg.LLM.Model)
	assert.Equal(t, kernelsy.ToolChoiceNone, cfg.Settings().ToolChoice)
	assert.Equal(t, 2, cfg.Kernel.MaxAutoInvokeAttempts)
	assert.Equal(t, "cl100k_base", cfg.Kernel.Tokenizer)
}

func TestLoad_DotEnv(t *testing.T) {
	clearEnv(t)
	envFile := writeFile(t, ".env", EnvAPIKey+"=from-dotenv\n"+EnvLogLevel+"=warn\n")

	cfg, err := LoadFiles("", envFile)
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.LLM.APIKey)
	assert.Equal(t, "warn", cfg.Log.Level)
	require.NoError(t, cfg.Validate())
}

func TestLoad_DotEnvDoesNotOverrideEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvAPIKey, "real")
	envFile := writeFile(t, ".env", EnvAPIKey+"=from-dotenv\n")

	cfg, err := LoadFiles("", envFile)
	require.NoError(t, err)
	assert.Equal(t, "real", cfg.LLM.APIKey)
}

func TestLoad_MissingDotEnvIgnored(t *testing.T) {
	clearEnv(t)
	_, err := LoadFiles("", filepath.Join(t.TempDir(), "absent.env"))
	require.NoError(t, err)
}

func TestLoad_Errors(t *testing.T) {
	clearEnv(t)
	_, err := LoadFiles(filepath.Join(t.TempDir(), "absent.yaml"), "")
	require.Error(t, err)

	bad := writeFile(t, "bad.yaml", "llm: [unclosed\n")
	_, err = LoadFiles(bad, "")
	require.Error(t, err)

	t.Setenv(EnvMaxRounds, "many")
	_, err = LoadFiles("", "")
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := Config{
		LLM:    LLMConfig{APIKey: "k", Timeout: time.Second},
		Kernel: KernelConfig{ToolChoice: "auto", MaxAutoInvokeAttempts: 1},
	}
	require.NoError(t, base.Validate())

	bad := base
	bad.Kernel.ToolChoice = "sometimes"
	require.Error(t, bad.Validate())

	bad = base
	bad.Kernel.MaxAutoInvokeAttempts = -1
	require.Error(t, bad.Validate())

	bad = base
	bad.LLM.APIKey = ""
	require.ErrorIs(t, bad.Validate(), ErrMissingAPIKey)
}
