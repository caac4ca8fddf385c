package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/chopralab/sciborg/pkg/command"
	"github.com/chopralab/sciborg/pkg/config"
	"github.com/chopralab/sciborg/pkg/llms"
	"github.com/chopralab/sciborg/pkg/rag"
)

// Step is one tool invocation made during a turn.
type Step struct {
	Tool        string
	Args        map[string]any
	Observation string
}

// Result is the outcome of a single agent turn.
type Result struct {
	Output     string
	Steps      []Step
	TokensUsed int
}

// Agent is a chat agent that operates a driver microservice through LLM
// tool calls. Memories are optional: chat memory carries the
// conversation across turns, action memory carries what has been done to
// the instrument.
type Agent struct {
	name             string
	llm              llms.Provider
	microservice     *command.DriverMicroservice
	tools            []Tool
	toolsByName      map[string]Tool
	actionToolNames  []string
	maxIterations    int
	humanInteraction bool
	assumeDefaults   bool
	documentSearch   bool
	systemPrompt     string

	chat      *ChatMemory
	actionLog *ActionLogMemory
	fsa       *FSAMemory

	logger *slog.Logger
}

// Option customizes an Agent at construction.
type Option func(*Agent)

// WithDocumentStore adds a retrieval tool over the given store.
func WithDocumentStore(store *rag.DocumentStore) Option {
	return func(a *Agent) {
		a.tools = append(a.tools, NewDocumentSearchTool(store))
		a.documentSearch = true
	}
}

// WithSubAgent exposes another agent as a tool.
func WithSubAgent(name, description string, delegate *Agent) Option {
	return func(a *Agent) {
		a.tools = append(a.tools, NewAgentTool(name, description, delegate))
	}
}

// WithHumanInput overrides how the human tool collects answers. Useful
// in servers and tests; the default reads from stdin.
func WithHumanInput(ask func(question string) (string, error)) Option {
	return func(a *Agent) {
		for i, tool := range a.tools {
			if _, ok := tool.(*HumanInputTool); ok {
				a.tools[i] = NewHumanInputTool(ask)
			}
		}
	}
}

// WithFSAMemory replaces the action-log summary with structured device
// state tracking against the given schema.
func WithFSAMemory(fsa *FSAMemory) Option {
	return func(a *Agent) {
		a.fsa = fsa
		a.actionLog = nil
	}
}

// WithLogger sets the agent's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Agent) { a.logger = logger }
}

// New builds an agent from its configuration. The microservice's
// commands become the agent's action tools.
func New(cfg *config.AgentConfig, llm llms.Provider, microservice *command.DriverMicroservice, opts ...Option) (*Agent, error) {
	if cfg == nil {
		cfg = &config.AgentConfig{}
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid agent config: %w", err)
	}
	if llm == nil {
		return nil, fmt.Errorf("agent %q requires an LLM provider", cfg.Name)
	}

	a := &Agent{
		name:             cfg.Name,
		llm:              llm,
		microservice:     microservice,
		maxIterations:    cfg.MaxIterations,
		humanInteraction: cfg.HumanInteraction,
		assumeDefaults:   cfg.AssumeDefaults,
		systemPrompt:     cfg.SystemPrompt,
		logger:           slog.Default(),
	}

	if microservice != nil {
		names := make([]string, 0, len(microservice.Commands))
		for name := range microservice.Commands {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			a.tools = append(a.tools, NewCommandTool(microservice.Commands[name]))
			a.actionToolNames = append(a.actionToolNames, name)
		}
	}
	if cfg.HumanInteraction {
		a.tools = append(a.tools, NewHumanInputTool(nil))
	}

	for _, opt := range opts {
		opt(a)
	}

	a.toolsByName = make(map[string]Tool, len(a.tools))
	for _, tool := range a.tools {
		if _, exists := a.toolsByName[tool.Name()]; exists {
			return nil, fmt.Errorf("duplicate tool name %q", tool.Name())
		}
		a.toolsByName[tool.Name()] = tool
	}

	if cfg.MemoryMode == config.MemoryModeChat || cfg.MemoryMode == config.MemoryModeBoth {
		chat, err := NewChatMemory(llm.GetModelName(), cfg.ContextWindow)
		if err != nil {
			return nil, err
		}
		a.chat = chat
	}
	if a.fsa == nil && (cfg.MemoryMode == config.MemoryModeAction || cfg.MemoryMode == config.MemoryModeBoth) {
		a.actionLog = NewActionLogMemory(llm, a.actionToolNames)
	}

	return a, nil
}

// Name returns the agent's name.
func (a *Agent) Name() string { return a.name }

// Tools returns the agent's tools in registration order.
func (a *Agent) Tools() []Tool { return a.tools }

// Invoke runs one user turn: the model is called with the tools, tool
// calls are executed and fed back, and the loop ends when the model
// answers in text or the iteration bound is hit. Tool errors are
// sanitized and returned to the model as observations so it can correct
// itself.
func (a *Agent) Invoke(ctx context.Context, input string) (*Result, error) {
	start := time.Now()

	var msName, msDesc string
	if a.microservice != nil {
		msName = a.microservice.Name
		msDesc = a.microservice.Desc
	}
	opts := promptOptions{
		humanInteraction: a.humanInteraction,
		assumeDefaults:   a.assumeDefaults,
		documentSearch:   a.documentSearch,
	}
	if a.actionLog != nil {
		opts.actionLog = a.actionLog.Buffer()
	}
	if a.fsa != nil {
		opts.actionLog = a.fsa.Buffer()
	}

	messages := []llms.Message{
		llms.SystemMessage(systemPrompt(a.systemPrompt, msName, msDesc, opts)),
	}
	if a.chat != nil {
		messages = append(messages, a.chat.Window()...)
	}
	messages = append(messages, llms.UserMessage(input))

	defs := toolDefinitions(a.tools)
	result := &Result{}

	for iteration := 0; iteration < a.maxIterations; iteration++ {
		response, err := a.llm.Generate(ctx, messages, defs)
		if err != nil {
			return nil, fmt.Errorf("generation failed: %w", err)
		}
		result.TokensUsed += response.TokensUsed

		if len(response.ToolCalls) == 0 {
			result.Output = response.Text
			a.finishTurn(ctx, input, result)
			a.logger.Debug("agent turn complete",
				"agent", a.name,
				"steps", len(result.Steps),
				"tokens", result.TokensUsed,
				"duration", time.Since(start))
			return result, nil
		}

		messages = append(messages, llms.AssistantMessage(response.Text, response.ToolCalls...))
		for _, call := range response.ToolCalls {
			observation := a.runTool(ctx, call)
			result.Steps = append(result.Steps, Step{
				Tool:        call.Name,
				Args:        call.Args,
				Observation: observation,
			})
			messages = append(messages, llms.ToolResultMessage(call.ID, observation))
		}
	}

	result.Output = "I could not complete the request within the allowed number of steps."
	a.finishTurn(ctx, input, result)
	return result, nil
}

func (a *Agent) runTool(ctx context.Context, call *llms.ToolCall) string {
	tool, ok := a.toolsByName[call.Name]
	if !ok {
		return fmt.Sprintf("Error: unknown tool %q", call.Name)
	}

	observation, err := tool.Call(ctx, call.Args)
	if err != nil {
		sanitized := SanitizeError(err.Error())
		a.logger.Debug("tool call failed", "agent", a.name, "tool", call.Name, "error", sanitized)
		return "Error: " + sanitized
	}
	return observation
}

func (a *Agent) finishTurn(ctx context.Context, input string, result *Result) {
	if a.chat != nil {
		a.chat.AddTurn(input, result.Output)
	}
	if a.actionLog != nil {
		if err := a.actionLog.Update(ctx, result.Steps); err != nil {
			a.logger.Warn("action log update failed", "agent", a.name, "error", err)
		}
	}
	if a.fsa != nil {
		if err := a.fsa.Update(ctx, result.Steps); err != nil {
			a.logger.Warn("state update failed", "agent", a.name, "error", err)
		}
	}
}
