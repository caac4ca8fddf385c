package drivers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGrantsGovSearchDefaults(t *testing.T) {
	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search2" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("failed to decode payload: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data": {"hitCount": 1}}`))
	}))
	t.Cleanup(server.Close)

	client := NewGrantsGov(WithGrantsGovBaseURL(server.URL))
	result, err := client.SearchOpportunities(context.Background(), GrantsGovSearch{Keyword: "synthesis"})
	if err != nil {
		t.Fatalf("SearchOpportunities() error = %v", err)
	}
	if _, ok := result["data"]; !ok {
		t.Errorf("result = %v", result)
	}

	if received["rows"] != float64(10) {
		t.Errorf("rows = %v, want default 10", received["rows"])
	}
	if received["oppStatuses"] != "forecasted|posted" {
		t.Errorf("oppStatuses = %v, want default forecasted|posted", received["oppStatuses"])
	}
	if received["keyword"] != "synthesis" {
		t.Errorf("keyword = %v", received["keyword"])
	}
}

func TestGrantsGovSearchRowLimits(t *testing.T) {
	client := NewGrantsGov()
	tests := []int{-5, 1001}
	for _, rows := range tests {
		if _, err := client.SearchOpportunities(context.Background(), GrantsGovSearch{Rows: rows}); err == nil {
			t.Errorf("rows = %d should be rejected", rows)
		}
	}
}

func TestGrantsGovFetchOpportunity(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/fetchOpportunity" {
			http.NotFound(w, r)
			return
		}
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("failed to decode payload: %v", err)
		}
		if payload["opportunityId"] != float64(289999) {
			t.Errorf("opportunityId = %v", payload["opportunityId"])
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data": {"id": 289999, "opportunityTitle": "Test Opportunity"}}`))
	}))
	t.Cleanup(server.Close)

	client := NewGrantsGov(WithGrantsGovBaseURL(server.URL))
	result, err := client.FetchOpportunity(context.Background(), 289999)
	if err != nil {
		t.Fatalf("FetchOpportunity() error = %v", err)
	}
	if _, ok := result["data"]; !ok {
		t.Errorf("result = %v", result)
	}

	if _, err := client.FetchOpportunity(context.Background(), 0); err == nil {
		t.Error("empty opportunity ID should be rejected")
	}
}

func TestGrantsGovAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such opportunity", http.StatusNotFound)
	}))
	t.Cleanup(server.Close)

	client := NewGrantsGov(WithGrantsGovBaseURL(server.URL))
	_, err := client.FetchOpportunity(context.Background(), 42)
	if err == nil {
		t.Fatal("expected an API error")
	}

	var apiErr *GrantsGovError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %T, want *GrantsGovError", err)
	}
	if apiErr.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", apiErr.StatusCode)
	}
}
