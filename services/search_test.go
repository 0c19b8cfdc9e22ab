package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func chatServer(t *testing.T, content string, status int) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.Header.Get("Authorization") != "Bearer key" {
			t.Errorf("authorization = %q", r.Header.Get("Authorization"))
		}
		var req llmRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "test-model" || len(req.Messages) != 2 {
			t.Errorf("request = %+v", req)
		}
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": content}},
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func newSearch(t *testing.T, url string) *SearchClient {
	t.Helper()
	s, err := NewSearchClient(SearchConfig{APIURL: url, APIKey: "key", Model: "test-model", CacheSize: 8})
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestSearchQuery(t *testing.T) {
	content := "```json\n" + `{"summary": "Roblox is a game platform.", "sites": [
		{"title": "Roblox", "url": "roblox.com", "summary": "Official site", "safety": "Safe"},
		{"title": "Forum", "url": "forum.example", "summary": "Fan forum", "safety": "potential risk"},
		{"title": "Wiki", "url": "wiki.example", "summary": "Wiki", "safety": "whatever"},
		{"title": "Empty", "url": "", "summary": "", "safety": "safe"}
	]}` + "\n```"
	srv, calls := chatServer(t, content, http.StatusOK)
	s := newSearch(t, srv.URL)

	res := s.Query(context.Background(), "What is Roblox")
	if res == nil {
		t.Fatal("nil result")
	}
	if res.Summary != "Roblox is a game platform." || len(res.Sites) != 3 {
		t.Fatalf("result = %+v", res)
	}
	wantSafety := []string{SafetySafe, SafetyPotentialRisk, SafetyMonitored}
	for i, w := range wantSafety {
		if res.Sites[i].Safety != w {
			t.Errorf("site %d safety = %q, want %q", i, res.Sites[i].Safety, w)
		}
	}

	// same query modulo case and spacing hits the cache
	if again := s.Query(context.Background(), "  what IS   roblox "); again != res {
		t.Error("expected cached result")
	}
	if n := atomic.LoadInt32(calls); n != 1 {
		t.Errorf("upstream calls = %d, want 1", n)
	}
}

func TestSearchQueryFailures(t *testing.T) {
	t.Run("upstream error", func(t *testing.T) {
		srv, _ := chatServer(t, "", http.StatusInternalServerError)
		if res := newSearch(t, srv.URL).Query(context.Background(), "q"); res != nil {
			t.Errorf("res = %+v", res)
		}
	})
	t.Run("malformed content", func(t *testing.T) {
		srv, _ := chatServer(t, "I cannot help with that.", http.StatusOK)
		if res := newSearch(t, srv.URL).Query(context.Background(), "q"); res != nil {
			t.Errorf("res = %+v", res)
		}
	})
	t.Run("disabled", func(t *testing.T) {
		s, _ := NewSearchClient(SearchConfig{})
		if s.Enabled() || s.Query(context.Background(), "q") != nil {
			t.Error("disabled client returned a result")
		}
	})
	t.Run("empty query", func(t *testing.T) {
		srv, calls := chatServer(t, "{}", http.StatusOK)
		if newSearch(t, srv.URL).Query(context.Background(), "   ") != nil || atomic.LoadInt32(calls) != 0 {
			t.Error("empty query reached upstream")
		}
	})
}

func TestIsURL(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"https://www.roblox.com", true},
		{"http://example.org/path", true},
		{"roblox.com", true},
		{"roblox.com/games/123", true},
		{"how to earn robux", false},
		{"visit roblox.com now", false},
		{"robux", false},
		{"http://", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsURL(tt.in); got != tt.want {
			t.Errorf("IsURL(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeURL(t *testing.T) {
	if got := NormalizeURL("roblox.com"); got != "https://roblox.com" {
		t.Errorf("got %q", got)
	}
	if got := NormalizeURL("http://a.test"); got != "http://a.test" {
		t.Errorf("got %q", got)
	}
}

func TestNormalizeSafety(t *testing.T) {
	cases := map[string]string{
		"safe":            SafetySafe,
		" Güvenli ":       SafetySafe,
		"Potential Risk":  SafetyPotentialRisk,
		"potansiyel risk": SafetyPotentialRisk,
		"unsafe":          SafetyPotentialRisk,
		"monitored":       SafetyMonitored,
		"":                SafetyMonitored,
	}
	for in, want := range cases {
		if got := NormalizeSafety(in); got != want {
			t.Errorf("NormalizeSafety(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizeQuery(t *testing.T) {
	if got := normalizeQuery("  Güvenli   OYUN  "); got != "guvenli oyun" {
		t.Errorf("normalizeQuery = %q", got)
	}
}
