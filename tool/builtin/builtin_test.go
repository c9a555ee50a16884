package builtin

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/hupe1980/agenthub/core"
	"github.com/hupe1980/agenthub/logging"
	"github.com/hupe1980/agenthub/retrieval"
	"github.com/hupe1980/agenthub/tool"
)

func toolCtx() *core.ToolContext {
	return core.NewToolContext(context.Background(), "research-assistant", "run-1", "call-1", logging.NoOpLogger{})
}

func TestCalculator(t *testing.T) {
	calc := NewCalculator()

	tests := []struct {
		expr string
		want string
	}{
		{"2+2", "4"},
		{"37593 * 67", "2518731"},
		{"7 / 2", "3.5"},
		{"-(3 - 5) * 2", "4"},
		{"sqrt(16) + pow(2, 3)", "12"},
		{"10 % 4", "2"},
		{"math.Floor(pi)", "3"},
		{"round(e * 100)", "272"},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			out, err := calc.Call(toolCtx(), map[string]any{"expression": tt.expr})
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestCalculator_RejectsCode(t *testing.T) {
	calc := NewCalculator()

	for _, expr := range []string{
		`os.Exit(1)`,
		`func() float64 { return 1 }()`,
		`"a" + "b"`,
		`x + 1`,
		`2 ** 3`,
		`1 << 3`,
		``,
	} {
		t.Run(expr, func(t *testing.T) {
			_, err := calc.Call(toolCtx(), map[string]any{"expression": expr})
			var toolErr *tool.ToolError
			require.ErrorAs(t, err, &toolErr)
			assert.Contains(t, toolErr.Message, "Please try again with a valid numerical expression")
		})
	}
}

func TestEvaluate_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Evaluate(ctx, "1+1")
	if err != nil {
		assert.ErrorIs(t, err, context.Canceled)
	}
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "4", FormatNumber(4))
	assert.Equal(t, "0.1", FormatNumber(0.1))
	assert.Equal(t, "+Inf", FormatNumber(1/zero()))
}

func zero() float64 { return 0 }

func TestStripHTML(t *testing.T) {
	got := StripHTML(`The <span class="searchmatch">Go</span>   programming&amp;language`)
	assert.Equal(t, "The Go programming&language", got)
}

func TestWikipedia_Run(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/w/api.php", r.URL.Path)
		q := r.URL.Query()
		switch {
		case q.Get("list") == "search":
			assert.Equal(t, "golang", q.Get("srsearch"))
			fmt.Fprint(w, `{"query":{"search":[
				{"pageid":1,"title":"Go (programming language)","snippet":"<span class=\"searchmatch\">Go</span> is a language"},
				{"pageid":2,"title":"Gopher","snippet":"A <b>rodent</b>"}]}}`)
		case q.Get("prop") == "extracts":
			assert.Equal(t, "1|2", q.Get("pageids"))
			fmt.Fprint(w, `{"query":{"pages":{"1":{"pageid":1,"title":"Go (programming language)","extract":"Go is a statically typed language."},"2":{"pageid":2,"title":"Gopher","extract":""}}}}`)
		default:
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
	}))
	defer srv.Close()

	wiki := NewWikipedia(func(o *HTTPOptions) { o.BaseURL = srv.URL })

	out, err := wiki.Tool().Call(toolCtx(), map[string]any{"query": "golang"})
	require.NoError(t, err)
	assert.Equal(t, "Page: Go (programming language)\nSummary: Go is a statically typed language.\n\nPage: Gopher\nSummary: A rodent", out)
}

func TestWikipedia_NoResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"query":{"search":[]}}`)
	}))
	defer srv.Close()

	out, err := NewWikipedia(func(o *HTTPOptions) { o.BaseURL = srv.URL }).Run(context.Background(), "zzzz")
	require.NoError(t, err)
	assert.Equal(t, NoWikipediaResult, out)
}

func TestWikipedia_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewWikipedia(func(o *HTTPOptions) { o.BaseURL = srv.URL }).Tool().Call(toolCtx(), map[string]any{"query": "go"})
	var toolErr *tool.ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, tool.CodeExecution, toolErr.Code)
	assert.Contains(t, toolErr.Message, "503")
}

const atomFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <id>http://arxiv.org/abs/1706.03762v7</id>
    <published>2017-06-12T17:57:34Z</published>
    <title>Attention Is All
      You Need</title>
    <summary>  The dominant sequence transduction models are based on
      complex recurrent networks. </summary>
    <author><name>Ashish Vaswani</name></author>
    <author><name>Noam Shazeer</name></author>
  </entry>
</feed>`

func TestArxiv_Search(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/query", r.URL.Path)
		gotQuery = r.URL.RawQuery
		fmt.Fprint(w, atomFeed)
	}))
	defer srv.Close()

	ax := NewArxiv(func(o *HTTPOptions) { o.BaseURL = srv.URL })

	out, err := ax.Run(context.Background(), "transformers")
	require.NoError(t, err)
	assert.Contains(t, gotQuery, "search_query=all%3Atransformers")
	assert.Equal(t,
		"Published: 2017-06-12\nTitle: Attention Is All You Need\nAuthors: Ashish Vaswani, Noam Shazeer\n"+
			"Summary: The dominant sequence transduction models are based on complex recurrent networks.",
		out)

	papers, err := ax.Search(context.Background(), "1706.03762")
	require.NoError(t, err)
	assert.Contains(t, gotQuery, "id_list=1706.03762")
	require.Len(t, papers, 1)
	assert.Equal(t, "http://arxiv.org/abs/1706.03762v7", papers[0].ID)
}

func TestArxiv_NoResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<feed xmlns="http://www.w3.org/2005/Atom"></feed>`)
	}))
	defer srv.Close()

	out, err := NewArxiv(func(o *HTTPOptions) { o.BaseURL = srv.URL }).Run(context.Background(), "nothing")
	require.NoError(t, err)
	assert.Equal(t, NoArxivResult, out)
}

const ddgPage = `<html><body>
<div class="results">
  <div class="result results_links web-result">
    <h2 class="result__title"><a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fgo.dev%2F&amp;rut=x">The Go <b>Programming</b> Language</a></h2>
    <a class="result__snippet" href="#">Go is an open source programming language.</a>
  </div>
  <div class="result">
    <a class="result__a" href="https://example.com/">Example</a>
    <div class="result__snippet">Second hit</div>
  </div>
  <div class="result">
    <a class="result__a" href="https://example.org/">Third</a>
  </div>
</div>
</body></html>`

func TestWebSearch_Run(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/html/", r.URL.Path)
		assert.Equal(t, "golang", r.URL.Query().Get("q"))
		assert.Equal(t, DefaultUserAgent, r.Header.Get("User-Agent"))
		_, _ = io.WriteString(w, ddgPage)
	}))
	defer srv.Close()

	ws := NewWebSearch(func(o *HTTPOptions) {
		o.BaseURL = srv.URL
		o.MaxResults = 2
	})

	results, err := ws.Search(context.Background(), "golang")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, SearchResult{Title: "The Go Programming Language", Link: "https://go.dev/", Snippet: "Go is an open source programming language."}, results[0])

	out, err := ws.Run(context.Background(), "golang")
	require.NoError(t, err)
	assert.Equal(t,
		"snippet: Go is an open source programming language., title: The Go Programming Language, link: https://go.dev/\n"+
			"snippet: Second hit, title: Example, link: https://example.com/",
		out)
}

func newChinook(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "chinook.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	for _, stmt := range []string{
		`CREATE TABLE Artist (ArtistId INTEGER PRIMARY KEY, Name TEXT)`,
		`CREATE TABLE Album (AlbumId INTEGER PRIMARY KEY, Title TEXT, ArtistId INTEGER)`,
		`INSERT INTO Artist (ArtistId, Name) VALUES (1, 'AC/DC'), (2, 'Accept'), (3, 'Aerosmith'), (4, 'Alanis Morissette')`,
		`INSERT INTO Album (AlbumId, Title, ArtistId) VALUES (1, 'For Those About To Rock', 1)`,
	} {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}

	return path
}

func sqlTool(t *testing.T, d *SQLDatabase, name string) tool.Tool {
	t.Helper()
	set, err := tool.NewSet(d.Tools()...)
	require.NoError(t, err)
	tl, ok := set.Get(name)
	require.True(t, ok, name)
	return tl
}

func TestTools_LogCalls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"query":{"search":[]}}`)
	}))
	defer srv.Close()

	d, err := OpenSQLite(newChinook(t))
	require.NoError(t, err)
	defer d.Close()

	zc, logs := observer.New(zapcore.DebugLevel)
	tc := core.NewToolContext(context.Background(), "research-assistant", "run-1", "call-7", logging.NewZapAdapter(zap.New(zc)))

	_, err = NewWikipedia(func(o *HTTPOptions) { o.BaseURL = srv.URL }).Tool().Call(tc, map[string]any{"query": "golang"})
	require.NoError(t, err)
	_, err = sqlTool(t, d, SQLQueryName).Call(tc, map[string]any{"query": "SELECT Name FROM Artist"})
	require.NoError(t, err)

	httpLogs := logs.FilterMessage("tool.http.request").All()
	require.Len(t, httpLogs, 1)
	assert.Equal(t, WikipediaName, httpLogs[0].ContextMap()["tool"])
	assert.Equal(t, "golang", httpLogs[0].ContextMap()["query"])
	assert.Equal(t, "call-7", httpLogs[0].ContextMap()["tool_call_id"])

	sqlLogs := logs.FilterMessage("tool.sql.query").All()
	require.Len(t, sqlLogs, 1)
	assert.Equal(t, "SELECT Name FROM Artist", sqlLogs[0].ContextMap()["query"])
}

func TestSQLToolkit(t *testing.T) {
	d, err := OpenSQLite(newChinook(t), func(o *SQLOptions) { o.MaxRows = 2 })
	require.NoError(t, err)
	defer d.Close()

	t.Run("list tables", func(t *testing.T) {
		out, err := sqlTool(t, d, SQLListTablesName).Call(toolCtx(), map[string]any{})
		require.NoError(t, err)
		assert.Equal(t, "Album, Artist", out)
	})

	t.Run("schema", func(t *testing.T) {
		out, err := sqlTool(t, d, SQLSchemaName).Call(toolCtx(), map[string]any{"table_names": "Artist"})
		require.NoError(t, err)
		s := out.(string)
		assert.Contains(t, s, "CREATE TABLE Artist")
		assert.Contains(t, s, "3 rows from Artist table:\nArtistId\tName\n1\tAC/DC\n2\tAccept\n")
	})

	t.Run("schema unknown table", func(t *testing.T) {
		_, err := sqlTool(t, d, SQLSchemaName).Call(toolCtx(), map[string]any{"table_names": "Artist, Track"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "[Track] not found")
	})

	t.Run("query with row limit", func(t *testing.T) {
		out, err := sqlTool(t, d, SQLQueryName).Call(toolCtx(), map[string]any{"query": "SELECT ArtistId, Name FROM Artist ORDER BY ArtistId"})
		require.NoError(t, err)
		assert.Equal(t, "[(1, 'AC/DC'), (2, 'Accept')]", out)
	})

	t.Run("empty result", func(t *testing.T) {
		out, err := d.Run(context.Background(), "SELECT Name FROM Artist WHERE ArtistId = 99")
		require.NoError(t, err)
		assert.Empty(t, out)
	})

	t.Run("writes rejected", func(t *testing.T) {
		_, err := d.Run(context.Background(), "DELETE FROM Artist")
		require.Error(t, err)

		out, err := d.Run(context.Background(), "SELECT COUNT(*) FROM Artist")
		require.NoError(t, err)
		assert.Equal(t, "[(4)]", out)
	})

	t.Run("checker", func(t *testing.T) {
		checker := sqlTool(t, d, SQLQueryCheckerName)

		out, err := checker.Call(toolCtx(), map[string]any{"query": "SELECT Name FROM Artist"})
		require.NoError(t, err)
		assert.Equal(t, "The query is valid:\nSELECT Name FROM Artist", out)

		_, err = checker.Call(toolCtx(), map[string]any{"query": "SELECT Nme FROM Artistt"})
		require.Error(t, err)
	})
}

func TestDatabaseSearch(t *testing.T) {
	store := retrieval.NewInMemoryStore()
	store.Add(
		retrieval.Document{Content: "Employees get 25 vacation days per year."},
		retrieval.Document{Content: "The office opens at 9am."},
		retrieval.Document{Content: "Vacation requests need manager approval."},
	)

	search := NewDatabaseSearch(store, 2)
	assert.Equal(t, DatabaseSearchName, search.Name())
	assert.Equal(t, []string{"query"}, search.Parameters()["required"])

	_, err := search.Call(toolCtx(), map[string]any{})
	require.Error(t, err)

	out, err := search.Call(toolCtx(), map[string]any{"query": "vacation days"})
	require.NoError(t, err)
	assert.Equal(t, "Employees get 25 vacation days per year.\n\nVacation requests need manager approval.", out)
}
