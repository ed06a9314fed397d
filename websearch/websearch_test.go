package websearch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	errs "github.com/neuroleaf/neuroleaf/errors"
)

func TestSearchSendsQueryAndLimit(t *testing.T) {
	var got searchRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(searchResponse{Results: []Result{
			{Title: "Early blight", URL: "https://example.com/a", Content: "Dark concentric rings."},
			{Title: "Treatment", URL: "https://example.com/b", Content: "Use copper fungicide."},
		}})
	}))
	defer server.Close()

	client := NewTavilyClient("test-key", WithBaseURL(server.URL), WithMaxResults(3))
	results, err := client.Search(context.Background(), "tomato early blight")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if got.APIKey != "test-key" {
		t.Errorf("expected api key to be sent, got %q", got.APIKey)
	}
	if got.Query != "tomato early blight" {
		t.Errorf("unexpected query %q", got.Query)
	}
	if got.MaxResults != 3 {
		t.Errorf("expected max_results 3, got %d", got.MaxResults)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Title != "Early blight" {
		t.Errorf("unexpected first result %+v", results[0])
	}
}

func TestSearchTimeoutTakesEffect(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	client := NewTavilyClient("k", WithBaseURL(server.URL), WithTimeout(50*time.Millisecond))
	if client.httpClient.Timeout != 50*time.Millisecond {
		t.Fatalf("expected configured timeout on the HTTP client, got %v", client.httpClient.Timeout)
	}
	if _, err := client.Search(context.Background(), "q"); err == nil {
		t.Error("expected an error from a stalled server within the timeout")
	}
}

func TestSearchRejectsMissingAPIKey(t *testing.T) {
	client := NewTavilyClient("")
	if _, err := client.Search(context.Background(), "q"); !errors.Is(err, errs.ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
}

func TestSearchTruncatesToMaxResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(searchResponse{Results: []Result{
			{Title: "a"}, {Title: "b"}, {Title: "c"}, {Title: "d"},
		}})
	}))
	defer server.Close()

	client := NewTavilyClient("k", WithBaseURL(server.URL), WithMaxResults(3))
	results, err := client.Search(context.Background(), "q")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 3 {
		t.Errorf("expected results capped at 3, got %d", len(results))
	}
}

func TestSearchReportsHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewTavilyClient("k", WithBaseURL(server.URL))
	if _, err := client.Search(context.Background(), "q"); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}

func TestCleanSnippet(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"plain   text\nwith gaps", "plain text with gaps"},
		{"<p>Spots on <b>leaves</b></p>", "Spots on leaves"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := CleanSnippet(tc.in); got != tc.want {
			t.Errorf("CleanSnippet(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
