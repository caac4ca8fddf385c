package llms

import (
	"context"
	"encoding/json"
	"fmt"
)

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is a single turn in a conversation.
type Message struct {
	Role    Role
	Content string

	// ToolCalls holds tool invocations requested by an assistant message.
	ToolCalls []*ToolCall

	// ToolCallID links a tool-result message back to the call it answers.
	ToolCallID string
}

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID   string
	Name string
	Args map[string]interface{}
}

// ToolDefinition describes a tool the model can call.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]interface{}
}

// StructuredOutputConfig requests schema-constrained output.
type StructuredOutputConfig struct {
	// Format of the output. Currently only "json".
	Format string

	// Schema the output must conform to (map or any JSON-serializable value).
	Schema interface{}

	// Prefill seeds the assistant response (Anthropic only).
	Prefill string
}

// Response is the result of a generation call.
type Response struct {
	Text       string
	ToolCalls  []*ToolCall
	TokensUsed int
}

// Provider is the interface all LLM providers must implement.
type Provider interface {
	// Generate produces a model response, possibly containing tool calls.
	Generate(ctx context.Context, messages []Message, tools []ToolDefinition) (*Response, error)

	// GenerateStructured produces output constrained to a JSON schema.
	GenerateStructured(ctx context.Context, messages []Message, tools []ToolDefinition, structConfig *StructuredOutputConfig) (*Response, error)

	GetModelName() string
	GetMaxTokens() int
	GetTemperature() float64

	Close() error
}

// SystemMessage builds a system-role message.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// UserMessage builds a user-role message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage builds an assistant-role message.
func AssistantMessage(content string, toolCalls ...*ToolCall) Message {
	return Message{Role: RoleAssistant, Content: content, ToolCalls: toolCalls}
}

// ToolResultMessage builds a tool-result message answering toolCallID.
func ToolResultMessage(toolCallID, content string) Message {
	return Message{Role: RoleTool, Content: content, ToolCallID: toolCallID}
}

// schemaToMap normalizes a schema value to a map for request bodies.
func schemaToMap(schema interface{}) (map[string]interface{}, error) {
	if m, ok := schema.(map[string]interface{}); ok {
		return m, nil
	}

	data, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}

	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("schema must serialize to an object: %w", err)
	}

	return m, nil
}
