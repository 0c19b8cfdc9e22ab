package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"browsebux-economy/metrics"

	"github.com/gosimple/unidecode"
	lru "github.com/hashicorp/golang-lru"
)

// Safety labels attached to a suggested site.
const (
	SafetySafe          = "safe"
	SafetyMonitored     = "monitored"
	SafetyPotentialRisk = "potential_risk"
)

// SiteSuggestion is one site returned by the AI search.
type SiteSuggestion struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Summary string `json:"summary"`
	Safety  string `json:"safety"`
}

// SearchResult is a summary answer plus suggested sites.
type SearchResult struct {
	Summary string           `json:"summary"`
	Sites   []SiteSuggestion `json:"sites"`
}

// SearchConfig points the client at an OpenAI-compatible chat-completions
// endpoint.
type SearchConfig struct {
	APIURL    string
	APIKey    string
	Model     string
	Timeout   time.Duration
	CacheSize int
}

// SearchClient asks an LLM for a summary and safe site suggestions. Any
// failure yields a nil result, which callers treat as "no results".
type SearchClient struct {
	cfg    SearchConfig
	client *http.Client
	cache  *lru.Cache
}

func NewSearchClient(cfg SearchConfig) (*SearchClient, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 256
	}
	cache, err := lru.New(cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("create search cache: %w", err)
	}
	return &SearchClient{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		cache:  cache,
	}, nil
}

// Enabled reports whether an API key is configured.
func (s *SearchClient) Enabled() bool {
	return s != nil && s.cfg.APIKey != "" && s.cfg.APIURL != ""
}

// Query returns the cached or freshly generated result for text, or nil.
func (s *SearchClient) Query(ctx context.Context, text string) *SearchResult {
	key := normalizeQuery(text)
	if key == "" {
		return nil
	}
	if !s.Enabled() {
		metrics.Searches.WithLabelValues("disabled").Inc()
		return nil
	}
	if v, ok := s.cache.Get(key); ok {
		metrics.Searches.WithLabelValues("hit").Inc()
		return v.(*SearchResult)
	}

	res, err := s.callLLM(ctx, strings.TrimSpace(text))
	if err != nil {
		metrics.Searches.WithLabelValues("error").Inc()
		slog.Warn("ai search failed", "error", err)
		return nil
	}
	metrics.Searches.WithLabelValues("miss").Inc()
	s.cache.Add(key, res)
	return res
}

type llmRequest struct {
	Model          string            `json:"model"`
	Messages       []llmMessage      `json:"messages"`
	Temperature    float64           `json:"temperature"`
	MaxTokens      int               `json:"max_tokens"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type llmMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type llmResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

const searchSystemPrompt = `You are a search assistant for a safe browsing app.
Given a query, return a short summary answer and up to 5 relevant websites.
For each site give a title, the bare URL, a one-sentence summary and a safety
rating: "safe", "monitored" or "potential_risk".
Return ONLY valid JSON, no markdown:
{"summary": "...", "sites": [{"title": "...", "url": "...", "summary": "...", "safety": "safe"}]}`

func (s *SearchClient) callLLM(ctx context.Context, query string) (*SearchResult, error) {
	reqBody, err := json.Marshal(llmRequest{
		Model: s.cfg.Model,
		Messages: []llmMessage{
			{Role: "system", Content: searchSystemPrompt},
			{Role: "user", Content: query},
		},
		Temperature:    0.3,
		MaxTokens:      1024,
		ResponseFormat: map[string]string{"type": "json_object"},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.APIURL, bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned %d: %.200s", resp.StatusCode, string(body))
	}

	var llmResp llmResponse
	if err := json.Unmarshal(body, &llmResp); err != nil {
		return nil, err
	}
	if len(llmResp.Choices) == 0 {
		return nil, fmt.Errorf("empty response from API")
	}

	content := strings.TrimSpace(llmResp.Choices[0].Message.Content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var res SearchResult
	if err := json.Unmarshal([]byte(content), &res); err != nil {
		return nil, fmt.Errorf("failed to parse LLM response: %w", err)
	}
	if res.Summary == "" && len(res.Sites) == 0 {
		return nil, fmt.Errorf("empty search result from LLM")
	}

	sites := res.Sites[:0]
	for _, site := range res.Sites {
		if strings.TrimSpace(site.URL) == "" {
			continue
		}
		site.Safety = NormalizeSafety(site.Safety)
		sites = append(sites, site)
	}
	res.Sites = sites
	return &res, nil
}

// NormalizeSafety maps the labels models tend to produce onto the three
// known ratings. Anything unrecognised is treated as monitored.
func NormalizeSafety(label string) string {
	switch normalizeQuery(label) {
	case "safe", "guvenli":
		return SafetySafe
	case "potential_risk", "potential risk", "risky", "unsafe", "potansiyel risk":
		return SafetyPotentialRisk
	default:
		return SafetyMonitored
	}
}

// normalizeQuery folds case, accents and whitespace so near-identical
// queries share a cache entry.
func normalizeQuery(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(unidecode.Unidecode(q))), " ")
}

var tldPattern = regexp.MustCompile(`\.[a-z]{2,}`)

// IsURL reports whether input should be opened directly instead of searched:
// an explicit http(s) URL, or a bare host such as "roblox.com/games".
func IsURL(input string) bool {
	input = strings.TrimSpace(input)
	if input == "" {
		return false
	}
	if strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://") {
		u, err := url.Parse(input)
		return err == nil && u.Host != ""
	}
	return !strings.ContainsAny(input, " \t") && tldPattern.MatchString(input)
}

// NormalizeURL prefixes bare hosts with https://.
func NormalizeURL(input string) string {
	input = strings.TrimSpace(input)
	if strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://") {
		return input
	}
	return "https://" + input
}
