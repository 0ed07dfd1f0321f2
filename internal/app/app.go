// Package app wires configuration, logging and the chat connector into a kernel for the
// example programs.
package app

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/skosovsky/kernelsy"
	"github.com/skosovsky/kernelsy/config"
	"github.com/skosovsky/kernelsy/connectors/openai"
	"github.com/skosovsky/kernelsy/internal/logging"
)

// App is a configured kernel plus the resources backing it.
type App struct {
	Config *config.Config
	Logger *slog.Logger
	Kernel *kernelsy.Kernel

	logCloser io.Closer
}

// Load reads configuration from configPath (may be empty) and the environment.
func Load(configPath string) (*App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return New(cfg)
}

// New builds the logger, connector and kernel for cfg.
func New(cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger, closer, err := logging.New(cfg.Logging())
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	client, err := openai.New(cfg.Connector())
	if err != nil {
		_ = closer.Close()
		return nil, fmt.Errorf("connector: %w", err)
	}
	registry := kernelsy.NewRegistry()
	registry.Use(kernelsy.WithLogging(logger))
	opts := []kernelsy.KernelOption{
		kernelsy.WithRegistry(registry),
		kernelsy.WithSettings(cfg.Settings()),
		kernelsy.WithLogger(logger),
	}
	if cfg.Kernel.Tokenizer != "" {
		counter, err := kernelsy.NewTikTokenCounter(cfg.Kernel.Tokenizer)
		if err != nil {
			_ = closer.Close()
			return nil, fmt.Errorf("tokenizer: %w", err)
		}
		opts = append(opts, kernelsy.WithTokenCounter(counter))
	}
	k := kernelsy.New(client, opts...)
	logger.Debug("kernel ready", "model", cfg.LLM.Model, "base_url", cfg.LLM.BaseURL)
	return &App{Config: cfg, Logger: logger, Kernel: k, logCloser: closer}, nil
}

// Close releases the log output.
func (a *App) Close() error {
	return a.logCloser.Close()
}
