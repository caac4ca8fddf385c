package llms

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/chopralab/sciborg/pkg/config"
)

func testLLMConfig(provider config.LLMProvider, baseURL string) *config.LLMConfig {
	temp := 0.2
	return &config.LLMConfig{
		Provider:    provider,
		Model:       "test-model",
		APIKey:      "test-key",
		BaseURL:     baseURL,
		Temperature: &temp,
		MaxTokens:   512,
	}
}

func TestNewProvider(t *testing.T) {
	tests := []struct {
		name     string
		provider config.LLMProvider
		wantErr  bool
	}{
		{"anthropic", config.LLMProviderAnthropic, false},
		{"openai", config.LLMProviderOpenAI, false},
		{"unsupported", config.LLMProvider("gemini"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewProvider(testLLMConfig(tt.provider, ""))
			if (err != nil) != tt.wantErr {
				t.Errorf("NewProvider() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewProvider_RequiresAPIKey(t *testing.T) {
	cfg := testLLMConfig(config.LLMProviderAnthropic, "")
	cfg.APIKey = ""
	if _, err := NewAnthropicProvider(cfg); err == nil {
		t.Error("expected error for missing API key")
	}

	cfg = testLLMConfig(config.LLMProviderOpenAI, "")
	cfg.APIKey = ""
	if _, err := NewOpenAIProvider(cfg); err == nil {
		t.Error("expected error for missing API key")
	}
}

func TestAnthropicGenerate(t *testing.T) {
	var gotReq anthropicRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("missing api key header")
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}

		resp := anthropicResponse{
			Content: []anthropicContent{
				{Type: "text", Text: "Setting the temperature now."},
				{
					Type:  "tool_use",
					ID:    "toolu_01",
					Name:  "set_temperature",
					Input: &map[string]interface{}{"temperature": 150.0},
				},
			},
			Usage: anthropicUsage{InputTokens: 20, OutputTokens: 12},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	provider, err := NewAnthropicProvider(testLLMConfig(config.LLMProviderAnthropic, server.URL))
	if err != nil {
		t.Fatalf("NewAnthropicProvider() error = %v", err)
	}

	messages := []Message{
		SystemMessage("You control a microwave synthesizer."),
		UserMessage("Heat to 150 C"),
	}
	tools := []ToolDefinition{
		{
			Name:        "set_temperature",
			Description: "Set the reaction temperature",
			Parameters:  map[string]interface{}{"type": "object"},
		},
	}

	resp, err := provider.Generate(context.Background(), messages, tools)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if resp.Text != "Setting the temperature now." {
		t.Errorf("unexpected text: %q", resp.Text)
	}
	if len(resp.ToolCalls) != 1 || resp.ToolCalls[0].Name != "set_temperature" {
		t.Fatalf("unexpected tool calls: %+v", resp.ToolCalls)
	}
	if resp.ToolCalls[0].Args["temperature"] != 150.0 {
		t.Errorf("unexpected tool args: %v", resp.ToolCalls[0].Args)
	}
	if resp.TokensUsed != 32 {
		t.Errorf("TokensUsed = %d, want 32", resp.TokensUsed)
	}

	// System messages must be lifted out of the message list.
	if gotReq.System != "You control a microwave synthesizer." {
		t.Errorf("unexpected system prompt: %q", gotReq.System)
	}
	if len(gotReq.Messages) != 1 {
		t.Errorf("expected 1 message in request, got %d", len(gotReq.Messages))
	}
	if len(gotReq.Tools) != 1 || gotReq.Tools[0].Name != "set_temperature" {
		t.Errorf("unexpected tools in request: %+v", gotReq.Tools)
	}
}

func TestAnthropicGenerateStructured_Prefill(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req anthropicRequest
		json.NewDecoder(r.Body).Decode(&req)

		last := req.Messages[len(req.Messages)-1]
		if last.Role != "assistant" {
			t.Errorf("expected assistant prefill message, got role %q", last.Role)
		}
		if !strings.Contains(req.System, "valid JSON") {
			t.Errorf("expected schema instructions in system prompt")
		}

		resp := anthropicResponse{
			Content: []anthropicContent{
				{Type: "text", Text: `"name": "mix", "parameters": {}}`},
			},
			Usage: anthropicUsage{InputTokens: 5, OutputTokens: 5},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	provider, err := NewAnthropicProvider(testLLMConfig(config.LLMProviderAnthropic, server.URL))
	if err != nil {
		t.Fatalf("NewAnthropicProvider() error = %v", err)
	}

	resp, err := provider.GenerateStructured(context.Background(),
		[]Message{UserMessage("plan a mix step")},
		nil,
		&StructuredOutputConfig{
			Format: "json",
			Schema: map[string]interface{}{"type": "object"},
		})
	if err != nil {
		t.Fatalf("GenerateStructured() error = %v", err)
	}

	// The prefill brace must be glued back onto the response text.
	if !strings.HasPrefix(resp.Text, "{") {
		t.Errorf("expected text to start with prefill, got %q", resp.Text)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal([]byte(resp.Text), &decoded); err != nil {
		t.Errorf("response text is not valid JSON: %v", err)
	}
}

func TestAnthropicGenerate_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(anthropicResponse{
			Error: &anthropicError{Type: "invalid_request_error", Message: "max_tokens required"},
		})
	}))
	defer server.Close()

	provider, _ := NewAnthropicProvider(testLLMConfig(config.LLMProviderAnthropic, server.URL))

	_, err := provider.Generate(context.Background(), []Message{UserMessage("hi")}, nil)
	if err == nil || !strings.Contains(err.Error(), "max_tokens required") {
		t.Errorf("expected API error, got %v", err)
	}
}

func TestOpenAIGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("missing bearer token")
		}

		resp := openaiResponse{
			Choices: []openaiChoice{
				{
					Message: openaiMessage{
						Role:    "assistant",
						Content: "",
						ToolCalls: []openaiToolCall{
							{
								ID:   "call_1",
								Type: "function",
								Function: openaiFunctionCall{
									Name:      "transfer_liquid",
									Arguments: `{"volume": 5.0, "source": "A1"}`,
								},
							},
						},
					},
					FinishReason: "tool_calls",
				},
			},
			Usage: openaiUsage{PromptTokens: 30, CompletionTokens: 15, TotalTokens: 45},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	provider, err := NewOpenAIProvider(testLLMConfig(config.LLMProviderOpenAI, server.URL))
	if err != nil {
		t.Fatalf("NewOpenAIProvider() error = %v", err)
	}

	resp, err := provider.Generate(context.Background(),
		[]Message{UserMessage("move 5 mL from A1")},
		[]ToolDefinition{{Name: "transfer_liquid", Parameters: map[string]interface{}{"type": "object"}}})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if len(resp.ToolCalls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(resp.ToolCalls))
	}
	tc := resp.ToolCalls[0]
	if tc.Name != "transfer_liquid" || tc.Args["volume"] != 5.0 || tc.Args["source"] != "A1" {
		t.Errorf("unexpected tool call: %+v", tc)
	}
	if resp.TokensUsed != 45 {
		t.Errorf("TokensUsed = %d, want 45", resp.TokensUsed)
	}
}

func TestOpenAIGenerateStructured_SchemaFormat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req openaiRequest
		json.NewDecoder(r.Body).Decode(&req)

		if req.ResponseFormat == nil || req.ResponseFormat.Type != "json_schema" {
			t.Errorf("expected json_schema response format, got %+v", req.ResponseFormat)
		}

		resp := openaiResponse{
			Choices: []openaiChoice{
				{Message: openaiMessage{Role: "assistant", Content: `{"plan": []}`}},
			},
			Usage: openaiUsage{TotalTokens: 10},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	provider, _ := NewOpenAIProvider(testLLMConfig(config.LLMProviderOpenAI, server.URL))

	resp, err := provider.GenerateStructured(context.Background(),
		[]Message{UserMessage("plan")},
		nil,
		&StructuredOutputConfig{
			Format: "json",
			Schema: map[string]interface{}{"type": "object"},
		})
	if err != nil {
		t.Fatalf("GenerateStructured() error = %v", err)
	}
	if resp.Text != `{"plan": []}` {
		t.Errorf("unexpected text: %q", resp.Text)
	}
}

func TestOpenAIGenerate_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": {"message": "Incorrect API key", "type": "invalid_request_error", "code": "invalid_api_key"}}`))
	}))
	defer server.Close()

	provider, _ := NewOpenAIProvider(testLLMConfig(config.LLMProviderOpenAI, server.URL))

	_, err := provider.Generate(context.Background(), []Message{UserMessage("hi")}, nil)
	if err == nil || !strings.Contains(err.Error(), "Incorrect API key") {
		t.Errorf("expected API error, got %v", err)
	}
}

func TestProviderRegistry(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(openaiResponse{})
	}))
	defer server.Close()

	reg := NewProviderRegistry()

	provider, err := reg.RegisterFromConfig("main", testLLMConfig(config.LLMProviderOpenAI, server.URL))
	if err != nil {
		t.Fatalf("RegisterFromConfig() error = %v", err)
	}
	if provider.GetModelName() != "test-model" {
		t.Errorf("unexpected model name: %s", provider.GetModelName())
	}

	got, ok := reg.Get("main")
	if !ok || got != provider {
		t.Error("expected registered provider back from registry")
	}

	if _, err := reg.RegisterFromConfig("bad", testLLMConfig(config.LLMProvider("none"), "")); err == nil {
		t.Error("expected error for unsupported provider")
	}

	if err := reg.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestSchemaToMap(t *testing.T) {
	m, err := schemaToMap(map[string]interface{}{"type": "object"})
	if err != nil || m["type"] != "object" {
		t.Errorf("schemaToMap(map) = %v, %v", m, err)
	}

	type schema struct {
		Type string `json:"type"`
	}
	m, err = schemaToMap(schema{Type: "object"})
	if err != nil || m["type"] != "object" {
		t.Errorf("schemaToMap(struct) = %v, %v", m, err)
	}

	if _, err := schemaToMap([]string{"not", "an", "object"}); err == nil {
		t.Error("expected error for non-object schema")
	}
}
