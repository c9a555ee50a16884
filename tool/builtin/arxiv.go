package builtin

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/hupe1980/agenthub/core"
	"github.com/hupe1980/agenthub/tool"
)

// ArxivName is the tool name exposed to the model.
const ArxivName = "arxiv"

// NoArxivResult is returned when a query has no hits.
const NoArxivResult = "No good Arxiv Result was found"

var arxivIDPattern = regexp.MustCompile(`^\d{4}\.\d{4,5}(v\d+)?$|^[a-z\-]+(\.[A-Z]{2})?/\d{7}(v\d+)?$`)

type arxivFeed struct {
	Entries []arxivEntry `xml:"entry"`
}

type arxivEntry struct {
	ID        string `xml:"id"`
	Title     string `xml:"title"`
	Summary   string `xml:"summary"`
	Published string `xml:"published"`
	Authors   []struct {
		Name string `xml:"name"`
	} `xml:"author"`
}

// Paper is one arXiv search result.
type Paper struct {
	ID        string
	Title     string
	Authors   []string
	Published string
	Summary   string
}

// Arxiv queries the arXiv Atom API.
type Arxiv struct {
	opts HTTPOptions
}

// NewArxiv creates an arXiv client against export.arxiv.org unless BaseURL
// is set.
func NewArxiv(optFns ...func(o *HTTPOptions)) *Arxiv {
	opts := HTTPOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.defaults("https://export.arxiv.org", 3)

	return &Arxiv{opts: opts}
}

// Search runs a full text query, or an id lookup when every whitespace
// separated token of query looks like an arXiv identifier.
func (a *Arxiv) Search(ctx context.Context, query string) ([]Paper, error) {
	q := url.Values{"max_results": {strconv.Itoa(a.opts.MaxResults)}}
	if ids := strings.Fields(query); len(ids) > 0 && allArxivIDs(ids) {
		q.Set("id_list", strings.Join(ids, ","))
	} else {
		q.Set("search_query", "all:"+query)
	}

	body, err := a.opts.get(ctx, "/api/query", q)
	if err != nil {
		return nil, err
	}

	var feed arxivFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("decode arxiv feed: %w", err)
	}

	papers := make([]Paper, 0, len(feed.Entries))
	for _, e := range feed.Entries {
		p := Paper{
			ID:        strings.TrimSpace(e.ID),
			Title:     oneLine(e.Title),
			Summary:   oneLine(e.Summary),
			Published: publishedDate(e.Published),
		}
		for _, au := range e.Authors {
			p.Authors = append(p.Authors, strings.TrimSpace(au.Name))
		}
		papers = append(papers, p)
	}

	return papers, nil
}

// Run searches and formats each paper as a block of Published, Title,
// Authors and Summary lines.
func (a *Arxiv) Run(ctx context.Context, query string) (string, error) {
	papers, err := a.Search(ctx, query)
	if err != nil {
		return "", err
	}
	if len(papers) == 0 {
		return NoArxivResult, nil
	}

	blocks := make([]string, len(papers))
	for i, p := range papers {
		blocks[i] = fmt.Sprintf("Published: %s\nTitle: %s\nAuthors: %s\nSummary: %s",
			p.Published, p.Title, strings.Join(p.Authors, ", "), p.Summary)
	}

	return truncate(strings.Join(blocks, "\n\n"), a.opts.MaxChars), nil
}

// Tool exposes the client as a tool.
func (a *Arxiv) Tool() tool.Tool {
	return tool.NewFunctionTool(
		ArxivName,
		"A wrapper around Arxiv.org. Useful for when you need to answer questions about Physics, Mathematics, "+
			"Computer Science, Quantitative Biology, Quantitative Finance, Statistics, Electrical Engineering, "+
			"and Economics from scientific articles on arxiv.org. Input should be a search query or arXiv id.",
		queryParameters("search query or arXiv identifier"),
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			q, err := tool.StringArg(args, "query")
			if err != nil {
				return nil, err
			}
			tc.Logger().Debug("tool.http.request", "tool", ArxivName, "query", q, "tool_call_id", tc.ToolCallID())
			return a.Run(tc.Context(), q)
		},
	)
}

func allArxivIDs(tokens []string) bool {
	for _, t := range tokens {
		if !arxivIDPattern.MatchString(t) {
			return false
		}
	}
	return true
}

func oneLine(s string) string { return strings.Join(strings.Fields(s), " ") }

func publishedDate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 10 {
		return s[:10]
	}
	return s
}
