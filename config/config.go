// Package config loads runtime settings for the kernelsy programs from a .env file, an optional
// YAML file and environment variables, in that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/skosovsky/kernelsy"
	"github.com/skosovsky/kernelsy/connectors/openai"
	"github.com/skosovsky/kernelsy/internal/logging"
)

// Environment variables read by Load.
const (
	EnvAPIKey     = "OPENROUTER_API_KEY"
	EnvBaseURL    = "KERNELSY_BASE_URL"
	EnvModel      = "KERNELSY_MODEL"
	EnvToolChoice = "KERNELSY_TOOL_CHOICE"
	EnvMaxRounds  = "KERNELSY_MAX_AUTO_INVOKE"
	EnvLogLevel   = "KERNELSY_LOG_LEVEL"
	EnvLogFormat  = "KERNELSY_LOG_FORMAT"
	EnvTokenizer  = "KERNELSY_TOKENIZER"
)

// Defaults.
const (
	DefaultBaseURL    = openai.DefaultBaseURL
	DefaultModel      = "mistralai/mistral-nemo"
	DefaultTimeout    = 60 * time.Second
	DefaultToolChoice = "auto"
)

// ErrMissingAPIKey is returned by Validate when no API key was configured.
var ErrMissingAPIKey = errors.New("config: " + EnvAPIKey + " is not set")

// Config is the full program configuration.
type Config struct {
	LLM    LLMConfig    `yaml:"llm"`
	Kernel KernelConfig `yaml:"kernel"`
	Log    LogConfig    `yaml:"log"`
}

// LLMConfig describes the chat completion endpoint.
type LLMConfig struct {
	APIKey   string        `yaml:"api_key"`
	BaseURL  string        `yaml:"base_url"`
	Model    string        `yaml:"model"`
	Timeout  time.Duration `yaml:"timeout"`
	Referer  string        `yaml:"referer"`
	AppTitle string        `yaml:"app_title"`
}

// KernelConfig holds the default execution settings.
type KernelConfig struct {
	ToolChoice            string   `yaml:"tool_choice"`
	MaxAutoInvokeAttempts int      `yaml:"max_auto_invoke_attempts"`
	Temperature           *float32 `yaml:"temperature"`
	MaxTokens             int      `yaml:"max_tokens"`
	// Tokenizer is a tiktoken encoding such as "cl100k_base". Empty counts words.
	Tokenizer             string   `yaml:"tokenizer"`
}

// LogConfig configures internal/logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads ".env" from the working directory (if present), then the YAML file at path
// (skipped when path is empty) and finally environment overrides.
func Load(path string) (*Config, error) {
	return LoadFiles(path, ".env")
}

// LoadFiles is Load with an explicit dotenv file. Variables already present in the
// environment are not overwritten by the dotenv file.
func LoadFiles(path, envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	var cfg Config
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	set := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	set(&c.LLM.APIKey, EnvAPIKey)
	set(&c.LLM.BaseURL, EnvBaseURL)
	set(&c.LLM.Model, EnvModel)
	set(&c.Kernel.ToolChoice, EnvToolChoice)
	set(&c.Log.Level, EnvLogLevel)
	set(&c.Log.Format, EnvLogFormat)
	set(&c.Kernel.Tokenizer, EnvTokenizer)
	if v := os.Getenv(EnvMaxRounds); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvMaxRounds, err)
		}
		c.Kernel.MaxAutoInvokeAttempts = n
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = DefaultBaseURL
	}
	if c.LLM.Model == "" {
		c.LLM.Model = DefaultModel
	}
	if c.LLM.Timeout == 0 {
		c.LLM.Timeout = DefaultTimeout
	}
	if c.Kernel.ToolChoice == "" {
		c.Kernel.ToolChoice = DefaultToolChoice
	}
	if c.Kernel.MaxAutoInvokeAttempts == 0 {
		c.Kernel.MaxAutoInvokeAttempts = kernelsy.DefaultMaxAutoInvokeAttempts
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate reports configuration the programs cannot run with.
func (c *Config) Validate() error {
	if c.LLM.APIKey == "" {
		return ErrMissingAPIKey
	}
	if _, err := kernelsy.ParseToolChoice(c.Kernel.ToolChoice); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Kernel.MaxAutoInvokeAttempts < 0 {
		return fmt.Errorf("config: max_auto_invoke_attempts must not be negative, got %d", c.Kernel.MaxAutoInvokeAttempts)
	}
	if c.LLM.Timeout < 0 {
		return fmt.Errorf("config: timeout must not be negative, got %s", c.LLM.Timeout)
	}
	return nil
}

// Connector returns the chat connector configuration.
func (c *Config) Connector() openai.Config {
	return openai.Config{
		APIKey:   c.LLM.APIKey,
		BaseURL:  c.LLM.BaseURL,
		Timeout:  c.LLM.Timeout,
		Referer:  c.LLM.Referer,
		AppTitle: c.LLM.AppTitle,
	}
}

// Settings returns the kernel's default execution settings. Call Validate first.
func (c *Config) Settings() kernelsy.ExecutionSettings {
	s := kernelsy.DefaultSettings(c.LLM.Model)
	if tc, err := kernelsy.ParseToolChoice(c.Kernel.ToolChoice); err == nil {
		s.ToolChoice = tc
	}
	s.MaxAutoInvokeAttempts = c.Kernel.MaxAutoInvokeAttempts
	s.Temperature = c.Kernel.Temperature
	s.MaxTokens = c.Kernel.MaxTokens
	return s
}

// Logging returns the logger configuration.
func (c *Config) Logging() logging.Config {
	return logging.Config{Level: c.Log.Level, Format: c.Log.Format, Output: c.Log.Output}
}
