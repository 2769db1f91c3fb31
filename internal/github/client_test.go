package github

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newFakeGitHub(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/users/octocat", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"login":"octocat","name":"The Octocat","public_repos":8,"followers":100}`))
	})
	mux.HandleFunc("/users/octocat/repos", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("sort") != "updated" || r.URL.Query().Get("per_page") != "10" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"name":"hello-world","stargazers_count":42,"language":"Go"}]`))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	return httptest.NewServer(mux)
}

func TestFetch(t *testing.T) {
	server := newFakeGitHub(t)
	defer server.Close()

	client := NewClient(server.URL)
	result, err := client.Fetch(context.Background(), "octocat")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if result.Profile.Login != "octocat" || result.Profile.Followers != 100 {
		t.Errorf("unexpected profile: %+v", result.Profile)
	}
	if len(result.Repositories) != 1 || result.Repositories[0].Stars != 42 {
		t.Errorf("unexpected repositories: %+v", result.Repositories)
	}
}

func TestFetchNotFound(t *testing.T) {
	server := newFakeGitHub(t)
	defer server.Close()

	client := NewClient(server.URL)
	_, err := client.Fetch(context.Background(), "ghost")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("want ErrNotFound, got %v", err)
	}
}

func TestFetchUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusForbidden)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	_, err := client.Fetch(context.Background(), "octocat")

	var upstream *UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("want UpstreamError, got %v", err)
	}
	if upstream.Status != http.StatusForbidden {
		t.Errorf("status = %d, want 403", upstream.Status)
	}
}

func TestFetchEmptyUsername(t *testing.T) {
	client := NewClient("http://localhost:0")
	if _, err := client.Fetch(context.Background(), "  "); err == nil {
		t.Error("blank username must fail before any request")
	}
}
