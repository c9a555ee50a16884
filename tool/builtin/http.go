package builtin

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// DefaultUserAgent identifies the HTTP tools to public APIs.
const DefaultUserAgent = "agenthub/1.0 (+https://github.com/hupe1980/agenthub)"

// maxBodyBytes bounds responses read by the HTTP tools.
const maxBodyBytes = 4 << 20

// HTTPOptions holds the settings shared by the HTTP backed tools.
type HTTPOptions struct {
	// BaseURL overrides the service endpoint.
	BaseURL string
	// Client is the HTTP client used for requests.
	Client *http.Client
	// UserAgent is sent with every request.
	UserAgent string
	// MaxResults bounds the number of results returned.
	MaxResults int
	// MaxChars truncates the tool output.
	MaxChars int
}

func (o *HTTPOptions) defaults(baseURL string, maxResults int) {
	if o.BaseURL == "" {
		o.BaseURL = baseURL
	}
	if o.Client == nil {
		o.Client = http.DefaultClient
	}
	if o.UserAgent == "" {
		o.UserAgent = DefaultUserAgent
	}
	if o.MaxResults <= 0 {
		o.MaxResults = maxResults
	}
	if o.MaxChars <= 0 {
		o.MaxChars = 4000
	}
}

func (o *HTTPOptions) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	u := strings.TrimRight(o.BaseURL, "/") + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", o.UserAgent)

	resp, err := o.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("request to %s failed: %s", req.URL.Host, resp.Status)
	}

	return body, nil
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// StripHTML returns the text content of an HTML fragment with whitespace
// collapsed.
func StripHTML(fragment string) string {
	nodes, err := html.ParseFragment(strings.NewReader(fragment), &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body})
	if err != nil {
		return strings.Join(strings.Fields(fragment), " ")
	}

	var b strings.Builder
	for _, n := range nodes {
		writeText(&b, n)
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

func writeText(b *strings.Builder, n *html.Node) {
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeText(b, c)
	}
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
