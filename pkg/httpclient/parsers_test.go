package httpclient

import (
	"net/http"
	"testing"
	"time"
)

func TestParseAnthropicHeaders(t *testing.T) {
	headers := http.Header{}
	headers.Set("retry-after", "30")
	headers.Set("anthropic-ratelimit-requests-remaining", "50")
	headers.Set("anthropic-ratelimit-input-tokens-remaining", "10000")
	headers.Set("anthropic-ratelimit-output-tokens-remaining", "2000")

	info := ParseAnthropicHeaders(headers)

	if info.RetryAfter != 30*time.Second {
		t.Errorf("RetryAfter = %v, want 30s", info.RetryAfter)
	}
	if info.RequestsRemaining != 50 {
		t.Errorf("RequestsRemaining = %d, want 50", info.RequestsRemaining)
	}
	if info.InputTokensRemaining != 10000 {
		t.Errorf("InputTokensRemaining = %d, want 10000", info.InputTokensRemaining)
	}
	if info.OutputTokensRemaining != 2000 {
		t.Errorf("OutputTokensRemaining = %d, want 2000", info.OutputTokensRemaining)
	}
}

func TestParseAnthropicHeaders_ResetTime(t *testing.T) {
	reset := time.Now().Add(time.Minute).UTC().Truncate(time.Second)

	headers := http.Header{}
	headers.Set("anthropic-ratelimit-requests-reset", reset.Format(time.RFC3339))

	info := ParseAnthropicHeaders(headers)
	if info.ResetTime != reset.Unix() {
		t.Errorf("ResetTime = %d, want %d", info.ResetTime, reset.Unix())
	}
}

func TestParseOpenAIHeaders(t *testing.T) {
	headers := http.Header{}
	headers.Set("Retry-After", "15")
	headers.Set("x-ratelimit-remaining-requests", "100")
	headers.Set("x-ratelimit-remaining-tokens", "50000")

	info := ParseOpenAIHeaders(headers)

	if info.RetryAfter != 15*time.Second {
		t.Errorf("RetryAfter = %v, want 15s", info.RetryAfter)
	}
	if info.RequestsRemaining != 100 {
		t.Errorf("RequestsRemaining = %d, want 100", info.RequestsRemaining)
	}
	if info.TokensRemaining != 50000 {
		t.Errorf("TokensRemaining = %d, want 50000", info.TokensRemaining)
	}
}

func TestParseHeaders_Empty(t *testing.T) {
	if info := ParseAnthropicHeaders(http.Header{}); info != (RateLimitInfo{}) {
		t.Errorf("ParseAnthropicHeaders(empty) = %+v, want zero value", info)
	}
	if info := ParseOpenAIHeaders(http.Header{}); info != (RateLimitInfo{}) {
		t.Errorf("ParseOpenAIHeaders(empty) = %+v, want zero value", info)
	}
}
