package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/hupe1980/agenthub/core"
	"github.com/hupe1980/agenthub/tool"
)

// WikipediaName is the tool name exposed to the model.
const WikipediaName = "wikipedia"

// NoWikipediaResult is returned when a search has no hits.
const NoWikipediaResult = "No good Wikipedia Search Result was found"

type wikiSearchResponse struct {
	Query struct {
		Search []struct {
			PageID  int    `json:"pageid"`
			Title   string `json:"title"`
			Snippet string `json:"snippet"`
		} `json:"search"`
	} `json:"query"`
}

type wikiExtractResponse struct {
	Query struct {
		Pages map[string]struct {
			PageID  int    `json:"pageid"`
			Title   string `json:"title"`
			Extract string `json:"extract"`
		} `json:"pages"`
	} `json:"query"`
}

// WikipediaPage is one search hit with its summary.
type WikipediaPage struct {
	Title   string
	Summary string
}

// Wikipedia queries the MediaWiki API.
type Wikipedia struct {
	opts HTTPOptions
}

// NewWikipedia creates a Wikipedia client against en.wikipedia.org unless
// BaseURL is set.
func NewWikipedia(optFns ...func(o *HTTPOptions)) *Wikipedia {
	opts := HTTPOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.defaults("https://en.wikipedia.org", 3)

	return &Wikipedia{opts: opts}
}

// Search returns up to MaxResults pages with their lead section as plain text.
// Pages without an extract fall back to the search snippet.
func (w *Wikipedia) Search(ctx context.Context, query string) ([]WikipediaPage, error) {
	body, err := w.opts.get(ctx, "/w/api.php", url.Values{
		"action":   {"query"},
		"format":   {"json"},
		"list":     {"search"},
		"srsearch": {query},
		"srlimit":  {strconv.Itoa(w.opts.MaxResults)},
	})
	if err != nil {
		return nil, err
	}

	var sr wikiSearchResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	if len(sr.Query.Search) == 0 {
		return nil, nil
	}

	ids := make([]string, len(sr.Query.Search))
	for i, hit := range sr.Query.Search {
		ids[i] = strconv.Itoa(hit.PageID)
	}

	extracts := map[int]string{}

	body, err = w.opts.get(ctx, "/w/api.php", url.Values{
		"action":      {"query"},
		"format":      {"json"},
		"prop":        {"extracts"},
		"exintro":     {"1"},
		"explaintext": {"1"},
		"pageids":     {strings.Join(ids, "|")},
	})
	if err == nil {
		var er wikiExtractResponse
		if json.Unmarshal(body, &er) == nil {
			for _, p := range er.Query.Pages {
				extracts[p.PageID] = strings.TrimSpace(p.Extract)
			}
		}
	}

	pages := make([]WikipediaPage, 0, len(sr.Query.Search))
	for _, hit := range sr.Query.Search {
		summary := extracts[hit.PageID]
		if summary == "" {
			summary = StripHTML(hit.Snippet)
		}
		pages = append(pages, WikipediaPage{Title: hit.Title, Summary: summary})
	}

	return pages, nil
}

// Run searches and formats the pages as "Page: ...\nSummary: ..." blocks.
func (w *Wikipedia) Run(ctx context.Context, query string) (string, error) {
	pages, err := w.Search(ctx, query)
	if err != nil {
		return "", err
	}
	if len(pages) == 0 {
		return NoWikipediaResult, nil
	}

	blocks := make([]string, len(pages))
	for i, p := range pages {
		blocks[i] = fmt.Sprintf("Page: %s\nSummary: %s", p.Title, p.Summary)
	}

	return truncate(strings.Join(blocks, "\n\n"), w.opts.MaxChars), nil
}

// Tool exposes the client as a tool.
func (w *Wikipedia) Tool() tool.Tool {
	return tool.NewFunctionTool(
		WikipediaName,
		"A wrapper around Wikipedia. Useful for when you need to answer general questions about "+
			"people, places, companies, facts, historical events, or other subjects. Input should be a search query.",
		queryParameters("query to look up on wikipedia"),
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			q, err := tool.StringArg(args, "query")
			if err != nil {
				return nil, err
			}
			tc.Logger().Debug("tool.http.request", "tool", WikipediaName, "query", q, "tool_call_id", tc.ToolCallID())
			return w.Run(tc.Context(), q)
		},
	)
}

func queryParameters(description string) map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{"type": "string", "description": description},
		},
		"required": []string{"query"},
	}
}
