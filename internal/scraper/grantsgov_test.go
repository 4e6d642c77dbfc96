package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestGrantsGovFetchEnrichesHits(t *testing.T) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	searchCalls := 0
	mux.HandleFunc("/search2", func(w http.ResponseWriter, r *http.Request) {
		searchCalls++

		var req grantsGovSearchRequest
		if err := decodeBody(r, &req); err != nil {
			t.Errorf("decoding search request: %v", err)
		}
		if req.OppStatuses != "posted" {
			t.Errorf("unexpected oppStatuses: %q", req.OppStatuses)
		}
		if req.Keyword != "security operations" {
			t.Errorf("unexpected keyword: %q", req.Keyword)
		}

		var hits []map[string]any
		switch req.StartRecordNum {
		case 0:
			hits = []map[string]any{{"id": "360042", "number": "O-DHS-26-0042", "title": "Training"}}
		case 1:
			hits = []map[string]any{{"id": "360043", "number": "O-DHS-26-0043", "title": "Research"}}
		default:
			t.Errorf("unexpected startRecordNum %d", req.StartRecordNum)
		}

		json.NewEncoder(w).Encode(map[string]any{
			"errorcode": 0,
			"data":      map[string]any{"hitCount": 2, "oppHits": hits},
		})
	})

	mux.HandleFunc("/fetchOpportunity", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		if err := decodeBody(r, &req); err != nil {
			t.Errorf("decoding fetch request: %v", err)
		}

		if req["id"] == "360043" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"synopsis": map[string]any{"synopsisDesc": "<p>Stand up a training program.</p>"},
			},
		})
	})

	client := NewClient(time.Second, 0, zap.NewNop())
	source := NewGrantsGov(client, GrantsGovOptions{
		SearchURL: server.URL + "/search2",
		FetchURL:  server.URL + "/fetchOpportunity",
		Keyword:   "security operations",
		PageSize:  1,
	}, zap.NewNop())

	hits, err := source.Fetch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if searchCalls != 2 {
		t.Fatalf("expected 2 search pages, got %d", searchCalls)
	}

	if got := hits[0]["synopsisDesc"]; got != "<p>Stand up a training program.</p>" {
		t.Fatalf("expected synopsis enrichment, got %v", got)
	}
	if got, ok := hits[0]["url"].(string); !ok || !strings.Contains(got, "360042") {
		t.Fatalf("expected detail url, got %v", hits[0]["url"])
	}

	if _, ok := hits[1]["synopsisDesc"]; ok {
		t.Fatal("expected failed synopsis fetch to leave hit without one")
	}
	if _, ok := hits[1]["url"]; !ok {
		t.Fatal("expected detail url even without synopsis")
	}
}

func TestGrantsGovFetchReportsAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"errorcode": 2, "msg": "malformed request"})
	}))
	defer server.Close()

	client := NewClient(time.Second, 0, zap.NewNop())
	source := NewGrantsGov(client, GrantsGovOptions{
		SearchURL: server.URL,
		FetchURL:  server.URL,
	}, zap.NewNop())

	_, err := source.Fetch(context.Background())

	var unavailable *SourceUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected SourceUnavailableError, got %v", err)
	}
	if !strings.Contains(err.Error(), "malformed request") {
		t.Fatalf("expected api message in error, got %v", err)
	}
}

func TestGrantsGovNumericIDs(t *testing.T) {
	hit := map[string]any{"id": 360042.0}
	if got := stringField(hit, "id"); got != "360042" {
		t.Fatalf("expected numeric id coercion, got %q", got)
	}
}
