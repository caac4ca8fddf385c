package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/chopralab/sciborg/pkg/llms"
	"github.com/chopralab/sciborg/pkg/utils"
)

// ChatMemory keeps the running conversation and returns a token-bounded
// window of the most recent turns.
type ChatMemory struct {
	mu        sync.Mutex
	history   []llms.Message
	counter   *utils.TokenCounter
	maxTokens int
}

// NewChatMemory builds a chat memory windowed to maxTokens, counted with
// the given model's encoding.
func NewChatMemory(model string, maxTokens int) (*ChatMemory, error) {
	counter, err := utils.NewTokenCounter(model)
	if err != nil {
		return nil, fmt.Errorf("failed to create token counter: %w", err)
	}
	if maxTokens <= 0 {
		maxTokens = 8000
	}
	return &ChatMemory{counter: counter, maxTokens: maxTokens}, nil
}

// AddTurn records a user message and the assistant's final reply.
func (m *ChatMemory) AddTurn(input, output string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = append(m.history,
		llms.UserMessage(input),
		llms.AssistantMessage(output),
	)
}

// Window returns the suffix of the conversation that fits the token
// budget, most recent turns first to be dropped last.
func (m *ChatMemory) Window() []llms.Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	countable := make([]utils.Message, len(m.history))
	for i, msg := range m.history {
		countable[i] = utils.Message{Role: string(msg.Role), Content: msg.Content}
	}
	fitted := m.counter.FitWithinLimit(countable, m.maxTokens)

	window := make([]llms.Message, 0, len(fitted))
	for _, msg := range m.history[len(m.history)-len(fitted):] {
		window = append(window, msg)
	}
	return window
}

// Len returns the number of stored messages.
func (m *ChatMemory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.history)
}

// Clear drops the conversation history.
func (m *ChatMemory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = nil
}

const actionSummaryPrompt = `Progressively summarize the device operations listed below, adding the new operations onto the previous summary and returning a new summary. Keep every value that was set and every result that was returned.

Current summary:
%s

New operations:
%s

New summary:`

// ActionLogMemory maintains an LLM-written running summary of the tool
// calls the agent has made against the instrument. Only calls to the
// named action tools are recorded; retrieval and human-input calls are
// skipped.
type ActionLogMemory struct {
	mu      sync.Mutex
	llm     llms.Provider
	actions map[string]bool
	summary string
}

// NewActionLogMemory builds an action log over the given tool names.
func NewActionLogMemory(llm llms.Provider, actionTools []string) *ActionLogMemory {
	actions := make(map[string]bool, len(actionTools))
	for _, name := range actionTools {
		actions[name] = true
	}
	return &ActionLogMemory{llm: llm, actions: actions}
}

// Update folds the steps of a completed turn into the summary.
func (m *ActionLogMemory) Update(ctx context.Context, steps []Step) error {
	var lines []string
	for _, step := range steps {
		if !m.actions[step.Tool] {
			continue
		}
		args, err := json.Marshal(step.Args)
		if err != nil {
			args = []byte("{}")
		}
		lines = append(lines, fmt.Sprintf("%s(%s) -> %s", step.Tool, args, step.Observation))
	}
	if len(lines) == 0 {
		return nil
	}

	m.mu.Lock()
	current := m.summary
	m.mu.Unlock()

	prompt := fmt.Sprintf(actionSummaryPrompt, current, strings.Join(lines, "\n"))
	response, err := m.llm.Generate(ctx, []llms.Message{llms.UserMessage(prompt)}, nil)
	if err != nil {
		return fmt.Errorf("failed to summarize action log: %w", err)
	}

	m.mu.Lock()
	m.summary = strings.TrimSpace(response.Text)
	m.mu.Unlock()
	return nil
}

// Buffer returns the current summary.
func (m *ActionLogMemory) Buffer() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.summary
}

// Clear resets the summary.
func (m *ActionLogMemory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.summary = ""
}

const fsaUpdatePrompt = `The JSON object below describes the current state of a device. Apply the listed operations to it and return the updated state. Only change fields the operations affect.

Current state:
%s

Operations:
%s

Updated state:`

// FSAMemory tracks device state as a JSON object conforming to a schema,
// updated by the LLM after each turn. The buffer replaces a free-text
// action summary with a structured state snapshot.
type FSAMemory struct {
	mu      sync.Mutex
	llm     llms.Provider
	actions map[string]bool
	schema  map[string]any
	state   json.RawMessage
}

// NewFSAMemory builds a state memory for the given schema, seeded with
// the initial state. initialState must be valid JSON.
func NewFSAMemory(llm llms.Provider, actionTools []string, schema map[string]any, initialState json.RawMessage) (*FSAMemory, error) {
	if !json.Valid(initialState) {
		return nil, fmt.Errorf("initial state is not valid JSON")
	}
	actions := make(map[string]bool, len(actionTools))
	for _, name := range actionTools {
		actions[name] = true
	}
	return &FSAMemory{llm: llm, actions: actions, schema: schema, state: initialState}, nil
}

// Update applies a completed turn's steps to the tracked state.
func (m *FSAMemory) Update(ctx context.Context, steps []Step) error {
	var lines []string
	for _, step := range steps {
		if !m.actions[step.Tool] {
			continue
		}
		args, err := json.Marshal(step.Args)
		if err != nil {
			args = []byte("{}")
		}
		lines = append(lines, fmt.Sprintf("%s(%s) -> %s", step.Tool, args, step.Observation))
	}
	if len(lines) == 0 {
		return nil
	}

	m.mu.Lock()
	current := string(m.state)
	m.mu.Unlock()

	prompt := fmt.Sprintf(fsaUpdatePrompt, current, strings.Join(lines, "\n"))
	response, err := m.llm.GenerateStructured(ctx,
		[]llms.Message{llms.UserMessage(prompt)},
		nil,
		&llms.StructuredOutputConfig{Format: "json", Schema: m.schema},
	)
	if err != nil {
		return fmt.Errorf("failed to update state: %w", err)
	}

	updated := strings.TrimSpace(response.Text)
	if !json.Valid([]byte(updated)) {
		return fmt.Errorf("state update is not valid JSON: %s", updated)
	}

	m.mu.Lock()
	m.state = json.RawMessage(updated)
	m.mu.Unlock()
	return nil
}

// Buffer returns the tracked state as a JSON string.
func (m *FSAMemory) Buffer() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return string(m.state)
}

// State unmarshals the tracked state into out.
func (m *FSAMemory) State(out any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return json.Unmarshal(m.state, out)
}
