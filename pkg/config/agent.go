package config

import "fmt"

// MemoryMode selects which conversation channels an agent remembers.
type MemoryMode string

const (
	// MemoryModeChat keeps only the user-facing conversation.
	MemoryModeChat MemoryMode = "chat"
	// MemoryModeAction keeps only tool invocations and their results.
	MemoryModeAction MemoryMode = "action"
	// MemoryModeBoth keeps conversation and tool activity.
	MemoryModeBoth MemoryMode = "both"
)

// AgentConfig configures a chat agent bound to a microservice and/or
// document stores.
type AgentConfig struct {
	// Name of the agent.
	Name string `yaml:"name,omitempty"`

	// Desc describes what the agent operates.
	Desc string `yaml:"desc,omitempty"`

	// LLM references an entry in the llms section.
	LLM string `yaml:"llm,omitempty"`

	// DocumentStores lists the document stores the agent can search.
	DocumentStores []string `yaml:"document_stores,omitempty"`

	// MemoryMode selects what the agent remembers: chat, action, both.
	MemoryMode MemoryMode `yaml:"memory_mode,omitempty"`

	// HumanInteraction lets the agent ask the operator for missing
	// arguments instead of guessing.
	HumanInteraction bool `yaml:"human_interaction,omitempty"`

	// AssumeDefaults makes the agent fall back to parameter defaults
	// for missing arguments. Mutually exclusive with HumanInteraction.
	AssumeDefaults bool `yaml:"assume_defaults,omitempty"`

	// MaxIterations bounds the tool-call loop per user turn.
	MaxIterations int `yaml:"max_iterations,omitempty"`

	// ContextWindow bounds conversation history in tokens.
	ContextWindow int `yaml:"context_window,omitempty"`

	// SystemPrompt overrides the generated system prompt prefix.
	SystemPrompt string `yaml:"system_prompt,omitempty"`
}

// SetDefaults applies default values.
func (c *AgentConfig) SetDefaults() {
	if c.Name == "" {
		c.Name = "assistant"
	}
	if c.MemoryMode == "" {
		c.MemoryMode = MemoryModeBoth
	}
	if c.MaxIterations <= 0 {
		c.MaxIterations = 10
	}
	if c.ContextWindow <= 0 {
		c.ContextWindow = 8000
	}
}

// Validate checks the agent configuration.
func (c *AgentConfig) Validate() error {
	switch c.MemoryMode {
	case MemoryModeChat, MemoryModeAction, MemoryModeBoth:
	default:
		return fmt.Errorf("invalid memory mode %q (valid: chat, action, both)", c.MemoryMode)
	}

	if c.HumanInteraction && c.AssumeDefaults {
		return fmt.Errorf("human_interaction and assume_defaults cannot both be enabled")
	}

	if c.MaxIterations < 1 {
		return fmt.Errorf("max_iterations must be at least 1")
	}

	return nil
}
