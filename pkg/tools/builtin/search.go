package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tombee/ensemble/pkg/httpclient"
	"github.com/tombee/ensemble/pkg/observability"
	"github.com/tombee/ensemble/pkg/tools"
)

const (
	// defaultSearchURL is the SerpAPI search endpoint.
	defaultSearchURL = "https://serpapi.com/search.json"

	// maxSearchResults caps how many organic results are summarized.
	maxSearchResults = 3

	// maxSnippetAttr caps snippet length on span events.
	maxSnippetAttr = 100

	// maxSummaryAttr caps the output summary recorded on the span.
	maxSummaryAttr = 500
)

// SearchTool runs web searches through SerpAPI.
type SearchTool struct {
	apiKey  string
	baseURL string
	client  *http.Client
	tracer  observability.Tracer
}

// SearchOption customizes a SearchTool.
type SearchOption func(*SearchTool)

// WithSearchBaseURL overrides the API endpoint, mainly for tests.
func WithSearchBaseURL(baseURL string) SearchOption {
	return func(s *SearchTool) {
		s.baseURL = baseURL
	}
}

// WithSearchHTTPClient overrides the HTTP client.
func WithSearchHTTPClient(client *http.Client) SearchOption {
	return func(s *SearchTool) {
		s.client = client
	}
}

// NewSearchTool creates the web search tool. The key may be empty; searches
// then return an error string without making a network call.
func NewSearchTool(apiKey string, tracer observability.Tracer, opts ...SearchOption) (*SearchTool, error) {
	if tracer == nil {
		return nil, fmt.Errorf("search tool requires a tracer")
	}
	s := &SearchTool{
		apiKey:  apiKey,
		baseURL: defaultSearchURL,
		tracer:  tracer,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.client == nil {
		cfg := httpclient.DefaultConfig()
		cfg.Timeout = 15 * time.Second
		client, err := httpclient.New(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create HTTP client: %w", err)
		}
		s.client = client
	}
	return s, nil
}

// Name returns the tool identifier exposed to the model.
func (s *SearchTool) Name() string {
	return "web_search"
}

// Description returns the model-facing description.
func (s *SearchTool) Description() string {
	return "Searches the web and returns a short summary of the top results."
}

// Parameters returns the tool's argument schema.
func (s *SearchTool) Parameters() *tools.ParameterSchema {
	return &tools.ParameterSchema{
		Type: "object",
		Properties: map[string]tools.Property{
			"query": {Type: "string", Description: "The search query."},
		},
		Required: []string{"query"},
	}
}

// Execute adapts Search to the registry contract. Failures are carried
// inside the output string, never as an error.
func (s *SearchTool) Execute(ctx context.Context, args map[string]any) (map[string]any, error) {
	query, _ := args["query"].(string)
	return map[string]any{"output": s.Search(ctx, query)}, nil
}

// organicResult is one entry from SerpAPI's organic_results array.
type organicResult struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	Link    string `json:"link"`
}

type searchResponse struct {
	OrganicResults []organicResult `json:"organic_results"`
}

// Search runs one query and renders the top results as a numbered list.
// The blocking HTTP call runs on its own goroutine under a child span so a
// caller can keep a short deadline on ctx without stalling its scheduler.
// All failures come back as descriptive strings.
func (s *SearchTool) Search(ctx context.Context, query string) string {
	ctx, span := s.tracer.Start(ctx, "tool.web_search",
		observability.WithSpanKind(observability.SpanKindClient),
		observability.WithAttributes(map[string]any{
			"search.query": query,
		}),
	)
	defer span.End()

	if s.apiKey == "" {
		msg := "Error: SERP_API_KEY not configured."
		span.SetAttributes(map[string]any{"error.message": msg})
		span.SetStatus(observability.StatusCodeError, msg)
		return msg
	}

	payload, err := s.fetch(ctx, query)
	if err != nil {
		msg := fmt.Sprintf("Web search error: %v", err)
		span.SetAttributes(map[string]any{
			"exception.type":    fmt.Sprintf("%T", err),
			"exception.message": msg,
		})
		span.RecordError(err)
		return msg
	}

	if len(payload.OrganicResults) == 0 {
		span.SetAttributes(map[string]any{"search.results_count": 0})
		span.SetStatus(observability.StatusCodeOK, "")
		output := "No results found."
		span.SetAttributes(map[string]any{"tool.output_summary": output})
		return output
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Search results for '%s':\n", query)
	results := payload.OrganicResults
	if len(results) > maxSearchResults {
		results = results[:maxSearchResults]
	}
	for i, r := range results {
		title := r.Title
		if title == "" {
			title = "No Title"
		}
		link := r.Link
		if link == "" {
			link = "No Link"
		}
		fmt.Fprintf(&b, "%d. %s: %s\n", i+1, title, r.Snippet)
		span.AddEvent(fmt.Sprintf("result_%d", i+1), map[string]any{
			"title":   title,
			"snippet": capSnippet(r.Snippet),
			"link":    link,
		})
	}
	output := b.String()

	span.SetAttributes(map[string]any{
		"search.results_count": len(payload.OrganicResults),
		"tool.output_summary":  capSummary(output),
	})
	span.SetStatus(observability.StatusCodeOK, "")
	return output
}

// fetch performs the search request on a separate goroutine, with its own
// span covering the blocking call.
func (s *SearchTool) fetch(ctx context.Context, query string) (*searchResponse, error) {
	_, blockSpan := s.tracer.Start(ctx, "serpapi.search",
		observability.WithSpanKind(observability.SpanKindInternal),
	)
	defer blockSpan.End()

	type fetchResult struct {
		payload *searchResponse
		err     error
	}
	done := make(chan fetchResult, 1)

	go func() {
		payload, err := s.doRequest(ctx, query)
		done <- fetchResult{payload: payload, err: err}
	}()

	select {
	case <-ctx.Done():
		blockSpan.RecordError(ctx.Err())
		return nil, ctx.Err()
	case res := <-done:
		if res.err != nil {
			blockSpan.RecordError(res.err)
			return nil, res.err
		}
		blockSpan.SetStatus(observability.StatusCodeOK, "")
		return res.payload, nil
	}
}

func (s *SearchTool) doRequest(ctx context.Context, query string) (*searchResponse, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("api_key", s.apiKey)
	params.Set("engine", "google")
	params.Set("location", "Earth")
	params.Set("hl", "en")
	params.Set("gl", "in")
	params.Set("num", fmt.Sprintf("%d", maxSearchResults))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from search API", resp.StatusCode)
	}

	var payload searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

func capSnippet(snippet string) string {
	if len(snippet) > maxSnippetAttr {
		return snippet[:maxSnippetAttr] + "..."
	}
	return snippet
}

func capSummary(summary string) string {
	if len(summary) > maxSummaryAttr {
		return summary[:maxSummaryAttr] + "..."
	}
	return summary
}

// Compile-time check that SearchTool implements tools.Tool
var _ tools.Tool = (*SearchTool)(nil)
