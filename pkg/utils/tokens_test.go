package utils

import (
	"testing"
)

func TestNewTokenCounter(t *testing.T) {
	tests := []struct {
		name  string
		model string
	}{
		{name: "known model", model: "gpt-4o"},
		{name: "chat model", model: "gpt-3.5-turbo"},
		{name: "unmapped model uses fallback encoding", model: "claude-sonnet-4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			counter, err := NewTokenCounter(tt.model)
			if err != nil {
				t.Fatalf("NewTokenCounter() error = %v", err)
			}
			if counter.Model() != tt.model {
				t.Errorf("Model() = %v, want %v", counter.Model(), tt.model)
			}
		})
	}
}

func TestTokenCounterCount(t *testing.T) {
	counter, err := NewTokenCounter("gpt-4o")
	if err != nil {
		t.Fatalf("failed to create token counter: %v", err)
	}

	tests := []struct {
		name      string
		text      string
		minTokens int
		maxTokens int
	}{
		{name: "empty string", text: "", minTokens: 0, maxTokens: 0},
		{name: "simple sentence", text: "Hello, world!", minTokens: 3, maxTokens: 5},
		{
			name:      "longer text",
			text:      "Heat the reaction vessel to 150 degrees for twenty minutes under pressure.",
			minTokens: 12,
			maxTokens: 20,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			count := counter.Count(tt.text)
			if count < tt.minTokens || count > tt.maxTokens {
				t.Errorf("Count() = %v, want between %v and %v for %q",
					count, tt.minTokens, tt.maxTokens, tt.text)
			}
		})
	}
}

func TestTokenCounterCountMessages(t *testing.T) {
	counter, err := NewTokenCounter("gpt-4o")
	if err != nil {
		t.Fatalf("failed to create token counter: %v", err)
	}

	// Reply priming alone is 3 tokens.
	if got := counter.CountMessages(nil); got != 3 {
		t.Errorf("CountMessages(nil) = %v, want 3", got)
	}

	conversation := []Message{
		{Role: "user", Content: "Open the lid."},
		{Role: "assistant", Content: "The lid is now open."},
		{Role: "user", Content: "Load vial 3."},
	}
	count := counter.CountMessages(conversation)
	if count < 15 || count > 40 {
		t.Errorf("CountMessages() = %v, want between 15 and 40", count)
	}
}

func TestTokenCounterFitWithinLimit(t *testing.T) {
	counter, err := NewTokenCounter("gpt-4o")
	if err != nil {
		t.Fatalf("failed to create token counter: %v", err)
	}

	messages := []Message{
		{Role: "user", Content: "Message 1"},
		{Role: "assistant", Content: "Response 1"},
		{Role: "user", Content: "Message 2"},
		{Role: "assistant", Content: "Response 2"},
		{Role: "user", Content: "Message 3"},
	}

	tests := []struct {
		name         string
		maxTokens    int
		expectEmpty  bool
		expectAllFit bool
	}{
		{name: "very low limit", maxTokens: 5, expectEmpty: true},
		{name: "moderate limit", maxTokens: 50},
		{name: "high limit", maxTokens: 1000, expectAllFit: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fitted := counter.FitWithinLimit(messages, tt.maxTokens)

			if tt.expectEmpty && len(fitted) > 0 {
				t.Errorf("expected empty result, got %d messages", len(fitted))
			}
			if tt.expectAllFit && len(fitted) != len(messages) {
				t.Errorf("expected all messages to fit, got %d/%d", len(fitted), len(messages))
			}

			if len(fitted) > 0 {
				if tokens := counter.CountMessages(fitted); tokens > tt.maxTokens {
					t.Errorf("fitted messages use %d tokens, limit is %d", tokens, tt.maxTokens)
				}
				// The window keeps the most recent turns.
				last := fitted[len(fitted)-1]
				if last.Content != messages[len(messages)-1].Content {
					t.Error("window should end with the most recent message")
				}
			}
		})
	}
}

func TestTokenCounterCaching(t *testing.T) {
	counter1, err := NewTokenCounter("gpt-4o")
	if err != nil {
		t.Fatalf("failed to create first counter: %v", err)
	}
	counter2, err := NewTokenCounter("gpt-4o")
	if err != nil {
		t.Fatalf("failed to create second counter: %v", err)
	}

	text := "shared encoding"
	if counter1.Count(text) != counter2.Count(text) {
		t.Error("cached counters produced different results")
	}
}
