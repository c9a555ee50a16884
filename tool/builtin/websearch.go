package builtin

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/hupe1980/agenthub/core"
	"github.com/hupe1980/agenthub/tool"
)

// WebSearchName is the tool name exposed to the model.
const WebSearchName = "web_search"

// SearchResult is one web search hit.
type SearchResult struct {
	Title   string
	Link    string
	Snippet string
}

// WebSearch scrapes the DuckDuckGo HTML endpoint.
type WebSearch struct {
	opts HTTPOptions
}

// NewWebSearch creates a search client against html.duckduckgo.com unless
// BaseURL is set.
func NewWebSearch(optFns ...func(o *HTTPOptions)) *WebSearch {
	opts := HTTPOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.defaults("https://html.duckduckgo.com", 4)

	return &WebSearch{opts: opts}
}

// Search returns up to MaxResults hits.
func (s *WebSearch) Search(ctx context.Context, query string) ([]SearchResult, error) {
	body, err := s.opts.get(ctx, "/html/", url.Values{"q": {query}})
	if err != nil {
		return nil, err
	}

	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse search page: %w", err)
	}

	return parseResults(doc, s.opts.MaxResults), nil
}

// Run searches and formats the hits as "snippet: ..., title: ..., link: ..."
// lines.
func (s *WebSearch) Run(ctx context.Context, query string) (string, error) {
	results, err := s.Search(ctx, query)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "No good search result found", nil
	}

	lines := make([]string, len(results))
	for i, r := range results {
		lines[i] = fmt.Sprintf("snippet: %s, title: %s, link: %s", r.Snippet, r.Title, r.Link)
	}

	return truncate(strings.Join(lines, "\n"), s.opts.MaxChars), nil
}

// Tool exposes the client as a tool.
func (s *WebSearch) Tool() tool.Tool {
	return tool.NewFunctionTool(
		WebSearchName,
		"A web search engine. Useful for when you need to answer questions about current events. Input should be a search query.",
		queryParameters("search query"),
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			q, err := tool.StringArg(args, "query")
			if err != nil {
				return nil, err
			}
			tc.Logger().Debug("tool.http.request", "tool", WebSearchName, "query", q, "tool_call_id", tc.ToolCallID())
			return s.Run(tc.Context(), q)
		},
	)
}

// parseResults walks the result page. Each hit is a div.result holding an
// a.result__a link and a .result__snippet element.
func parseResults(doc *html.Node, limit int) []SearchResult {
	var results []SearchResult

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if len(results) >= limit {
			return
		}
		if n.Type == html.ElementNode && n.Data == "div" && hasClass(n, "result") {
			if r, ok := parseResult(n); ok {
				results = append(results, r)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return results
}

func parseResult(n *html.Node) (SearchResult, bool) {
	var r SearchResult

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch {
			case n.Data == "a" && hasClass(n, "result__a"):
				r.Title = nodeText(n)
				r.Link = resolveLink(attr(n, "href"))
				return
			case hasClass(n, "result__snippet"):
				r.Snippet = nodeText(n)
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)

	return r, r.Link != ""
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	writeText(&b, n)
	return strings.Join(strings.Fields(b.String()), " ")
}

// resolveLink unwraps DuckDuckGo redirect links (/l/?uddg=<target>).
func resolveLink(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	if u.Scheme == "" && strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	return href
}
