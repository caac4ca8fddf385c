// Package agent implements the chat agent that operates a laboratory
// microservice. Driver commands become LLM tools, tool calls run in a
// bounded loop, and optional memories carry conversation and action
// context between turns.
package agent

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/chopralab/sciborg/pkg/command"
	"github.com/chopralab/sciborg/pkg/llms"
	"github.com/chopralab/sciborg/pkg/rag"
)

// Tool is a callable capability exposed to the LLM.
type Tool interface {
	Name() string
	Description() string
	// Parameters returns the JSON schema of the tool's arguments.
	Parameters() map[string]any
	Call(ctx context.Context, args map[string]any) (string, error)
}

var urlPattern = regexp.MustCompile(`https?://\S+|www\.\S+`)

// SanitizeError strips content from an error message that only distracts
// the model: URLs and the validation-library documentation pointer.
func SanitizeError(message string) string {
	sanitized := urlPattern.ReplaceAllString(message, "")
	sanitized = strings.ReplaceAll(sanitized, "For further information visit", "")
	return strings.TrimRight(sanitized, " \t\n")
}

// CommandTool exposes a driver command as an LLM tool. Arguments are
// validated against the command's parameter specs before the driver
// function runs.
type CommandTool struct {
	cmd *command.DriverCommand
}

func NewCommandTool(cmd *command.DriverCommand) *CommandTool {
	return &CommandTool{cmd: cmd}
}

func (t *CommandTool) Name() string { return t.cmd.Name }

func (t *CommandTool) Description() string {
	var b strings.Builder
	b.WriteString(t.cmd.Desc)
	if t.cmd.HasReturn && len(t.cmd.ReturnSignature) > 0 {
		b.WriteString("\nReturns:")
		keys := make([]string, 0, len(t.cmd.ReturnSignature))
		for key := range t.cmd.ReturnSignature {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			fmt.Fprintf(&b, "\n- %s: %s", key, t.cmd.ReturnSignature[key])
		}
	}
	return b.String()
}

func (t *CommandTool) Parameters() map[string]any {
	return commandSchema(t.cmd.Parameters)
}

func (t *CommandTool) Call(_ context.Context, args map[string]any) (string, error) {
	result, err := t.cmd.Execute(nil, nil, command.Args(args))
	if err != nil {
		return "", err
	}
	if result == nil {
		return "done", nil
	}
	encoded, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("failed to encode result: %w", err)
	}
	return string(encoded), nil
}

// HumanInputTool lets the agent ask the operator a question mid-turn.
type HumanInputTool struct {
	ask func(question string) (string, error)
}

// NewHumanInputTool builds a human-input tool backed by the given
// function. A nil function reads answers from stdin.
func NewHumanInputTool(ask func(question string) (string, error)) *HumanInputTool {
	if ask == nil {
		ask = promptStdin
	}
	return &HumanInputTool{ask: ask}
}

func promptStdin(question string) (string, error) {
	fmt.Fprintf(os.Stderr, "\n%s\n> ", question)
	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(answer), nil
}

func (t *HumanInputTool) Name() string { return "human" }

func (t *HumanInputTool) Description() string {
	return "Ask the human operator a question and wait for their answer. Use this when a request is ambiguous or required values are missing."
}

func (t *HumanInputTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"question": map[string]any{
				"type":        "string",
				"description": "The question to ask the human operator",
			},
		},
		"required": []string{"question"},
	}
}

func (t *HumanInputTool) Call(_ context.Context, args map[string]any) (string, error) {
	question, _ := args["question"].(string)
	if question == "" {
		return "", fmt.Errorf("question is required")
	}
	return t.ask(question)
}

// DocumentSearchTool retrieves passages from a document store and
// formats them with their citations.
type DocumentSearchTool struct {
	store *rag.DocumentStore
	topK  int
}

func NewDocumentSearchTool(store *rag.DocumentStore) *DocumentSearchTool {
	return &DocumentSearchTool{store: store, topK: 5}
}

func (t *DocumentSearchTool) Name() string { return "search_documents" }

func (t *DocumentSearchTool) Description() string {
	return "Search the indexed documents for information relevant to a question. Frame a clear, descriptive question. Results include citations (document title and page) which you should pass on to the human."
}

func (t *DocumentSearchTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"question": map[string]any{
				"type":        "string",
				"description": "A descriptive question to search the documents with",
			},
		},
		"required": []string{"question"},
	}
}

func (t *DocumentSearchTool) Call(ctx context.Context, args map[string]any) (string, error) {
	question, _ := args["question"].(string)
	if question == "" {
		return "", fmt.Errorf("question is required")
	}

	results, err := t.store.Search(ctx, question, t.topK)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "No relevant passages were found in the documents.", nil
	}

	var b strings.Builder
	for i, result := range results {
		fmt.Fprintf(&b, "[%d] %s", i+1, result.Title)
		if result.Page > 0 {
			fmt.Fprintf(&b, " (page %d)", result.Page)
		}
		fmt.Fprintf(&b, "\n%s\n\n", result.Content)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// AgentTool delegates a question to another agent, letting agents
// compose into managing/managed hierarchies.
type AgentTool struct {
	name        string
	description string
	delegate    *Agent
}

func NewAgentTool(name, description string, delegate *Agent) *AgentTool {
	return &AgentTool{name: name, description: description, delegate: delegate}
}

func (t *AgentTool) Name() string        { return t.name }
func (t *AgentTool) Description() string { return t.description }

func (t *AgentTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"question": map[string]any{
				"type":        "string",
				"description": "The request to delegate to the agent",
			},
		},
		"required": []string{"question"},
	}
}

func (t *AgentTool) Call(ctx context.Context, args map[string]any) (string, error) {
	question, _ := args["question"].(string)
	if question == "" {
		return "", fmt.Errorf("question is required")
	}
	result, err := t.delegate.Invoke(ctx, question)
	if err != nil {
		return "", err
	}
	return result.Output, nil
}

func toolDefinitions(tools []Tool) []llms.ToolDefinition {
	defs := make([]llms.ToolDefinition, 0, len(tools))
	for _, tool := range tools {
		defs = append(defs, llms.ToolDefinition{
			Name:        tool.Name(),
			Description: tool.Description(),
			Parameters:  tool.Parameters(),
		})
	}
	return defs
}
