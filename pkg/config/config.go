// Package config defines the YAML configuration surface of the system:
// LLM and embedder providers, vector and document stores, agents and
// the microservice server. Values support ${VAR} environment expansion
// and every section carries SetDefaults/Validate.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoggingConfig configures the global logger.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level,omitempty"`

	// Format is "simple" or "verbose".
	Format string `yaml:"format,omitempty"`

	// File writes logs to a file instead of stderr.
	File string `yaml:"file,omitempty"`
}

// SetDefaults applies default values.
func (c *LoggingConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "simple"
	}
}

// Config is the root configuration.
type Config struct {
	// Name of this deployment.
	Name string `yaml:"name,omitempty"`

	Logging LoggingConfig `yaml:"logging,omitempty"`

	LLMs           map[string]*LLMConfig           `yaml:"llms,omitempty"`
	Embedders      map[string]*EmbedderConfig      `yaml:"embedders,omitempty"`
	VectorStores   map[string]*VectorStoreConfig   `yaml:"vector_stores,omitempty"`
	DocumentStores map[string]*DocumentStoreConfig `yaml:"document_stores,omitempty"`
	Agents         map[string]*AgentConfig         `yaml:"agents,omitempty"`
	Server         ServerConfig                    `yaml:"server,omitempty"`
}

// SetDefaults applies defaults to every section.
func (c *Config) SetDefaults() {
	c.Logging.SetDefaults()
	c.Server.SetDefaults()

	for _, llm := range c.LLMs {
		llm.SetDefaults()
	}
	for _, embedder := range c.Embedders {
		embedder.SetDefaults()
	}
	for _, store := range c.VectorStores {
		store.SetDefaults()
	}
	for _, store := range c.DocumentStores {
		store.SetDefaults()
	}
	for name, agent := range c.Agents {
		if agent.Name == "" {
			agent.Name = name
		}
		agent.SetDefaults()
	}
}

// Validate checks every section and cross-references between them.
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server: %w", err)
	}

	for name, llm := range c.LLMs {
		if err := llm.Validate(); err != nil {
			return fmt.Errorf("llms.%s: %w", name, err)
		}
	}
	for name, embedder := range c.Embedders {
		if err := embedder.Validate(); err != nil {
			return fmt.Errorf("embedders.%s: %w", name, err)
		}
	}
	for name, store := range c.VectorStores {
		if err := store.Validate(); err != nil {
			return fmt.Errorf("vector_stores.%s: %w", name, err)
		}
	}
	for name, store := range c.DocumentStores {
		if err := store.Validate(); err != nil {
			return fmt.Errorf("document_stores.%s: %w", name, err)
		}
		if store.VectorStore != "" {
			if _, ok := c.VectorStores[store.VectorStore]; !ok {
				return fmt.Errorf("document_stores.%s: unknown vector store %q", name, store.VectorStore)
			}
		}
		if store.Embedder != "" {
			if _, ok := c.Embedders[store.Embedder]; !ok {
				return fmt.Errorf("document_stores.%s: unknown embedder %q", name, store.Embedder)
			}
		}
	}
	for name, agent := range c.Agents {
		if err := agent.Validate(); err != nil {
			return fmt.Errorf("agents.%s: %w", name, err)
		}
		if agent.LLM != "" {
			if _, ok := c.LLMs[agent.LLM]; !ok {
				return fmt.Errorf("agents.%s: unknown llm %q", name, agent.LLM)
			}
		}
		for _, storeName := range agent.DocumentStores {
			if _, ok := c.DocumentStores[storeName]; !ok {
				return fmt.Errorf("agents.%s: unknown document store %q", name, storeName)
			}
		}
	}

	return nil
}

// Load reads a YAML config file, expands environment variables, applies
// defaults and validates.
func Load(path string) (*Config, error) {
	if err := LoadEnvFiles(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return Parse(data)
}

// Parse decodes YAML config bytes, expanding environment variables
// before the struct decode so expanded values keep their types.
func Parse(data []byte) (*Config, error) {
	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	expanded := ExpandEnvVarsInData(raw)

	normalized, err := yaml.Marshal(expanded)
	if err != nil {
		return nil, fmt.Errorf("failed to normalize config: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(normalized, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
