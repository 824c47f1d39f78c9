package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"
	"golang.org/x/net/html"

	"github.com/Chative-core-poc-v1/orchestrator/internal/agent/model"
	errx "github.com/Chative-core-poc-v1/orchestrator/internal/core/error"
)

const (
	maxSearchResults = 10
	maxSearchBody    = 2 << 20 // 2MB
	searchUserAgent  = "Mozilla/5.0 (compatible; chative-orchestrator/1.0)"
)

// ===================================
// Web Search Tool
// ===================================

type WebSearchInput struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results,omitempty"`
}

type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
}

type WebSearchOutput struct {
	Results []SearchResult `json:"results"`
	Total   int            `json:"total"`
}

// Searcher queries the DuckDuckGo HTML endpoint.
type Searcher struct {
	client     *http.Client
	baseURL    string
	maxResults int
}

func NewSearcher(cfg model.SearchConfig, client *http.Client) *Searcher {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	max := cfg.MaxResults
	if max <= 0 || max > maxSearchResults {
		max = 5
	}
	return &Searcher{client: client, baseURL: cfg.BaseURL, maxResults: max}
}

// Search returns up to max results for query. Non-2xx answers come back as
// *errx.AppError carrying the status and headers.
func (s *Searcher) Search(ctx context.Context, query string, max int) ([]SearchResult, error) {
	if max <= 0 {
		max = s.maxResults
	}
	form := url.Values{"q": {query}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", searchUserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if appErr := errx.FromResponse(resp); appErr != nil {
		return nil, appErr
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, maxSearchBody))
	if err != nil {
		return nil, fmt.Errorf("parse search page: %w", err)
	}
	return collectResults(doc, max), nil
}

// collectResults walks the result page in document order. A result__a link
// opens a new result; the next result__snippet belongs to it.
func collectResults(doc *html.Node, max int) []SearchResult {
	var out []SearchResult
	var walk func(n *html.Node) bool
	walk = func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.Data == "a" {
			switch {
			case hasClass(n, "result__a"):
				if len(out) == max {
					return false
				}
				out = append(out, SearchResult{
					Title: strings.TrimSpace(textOf(n)),
					URL:   resolveResultURL(attr(n, "href")),
				})
				return true
			case hasClass(n, "result__snippet") && len(out) > 0:
				last := &out[len(out)-1]
				if last.Snippet == "" {
					last.Snippet = strings.TrimSpace(textOf(n))
				}
				return true
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if !walk(c) {
				return false
			}
		}
		return true
	}
	walk(doc)

	results := out[:0]
	for _, r := range out {
		if r.Title != "" && r.URL != "" {
			results = append(results, r)
		}
	}
	return results
}

// resolveResultURL unwraps DuckDuckGo's redirect links (//duckduckgo.com/l/?uddg=...).
func resolveResultURL(href string) string {
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	return href
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

func NewWebSearchTool(s *Searcher) tool.InvokableTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name: ToolWebSearch,
			Desc: "Search the web for recent or factual information. Returns titles, links and short snippets. Use it for news, facts you are unsure about, or anything after your knowledge cutoff.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"query": {
					Type:     "string",
					Desc:     "Search keywords.",
					Required: true,
				},
				"max_results": {
					Type: "number",
					Desc: fmt.Sprintf("Maximum number of results to return (default: %d, max: %d)", s.maxResults, maxSearchResults),
				},
			}),
		},
		func(ctx context.Context, in *WebSearchInput) (*WebSearchOutput, error) {
			if in == nil || in.Query == "" {
				return nil, fmt.Errorf("query is required")
			}
			results, err := s.Search(ctx, in.Query, in.MaxResults)
			if err != nil {
				return nil, err
			}
			return &WebSearchOutput{Results: results, Total: len(results)}, nil
		},
	)
}
