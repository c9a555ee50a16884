// Package builtin provides the ready made tools the bundled agents use:
// a sandboxed calculator, Wikipedia, arXiv and web search clients, a
// read-only SQLite toolkit and a knowledge base search over a retriever.
//
// The HTTP backed tools accept HTTPOptions so tests and self-hosted mirrors
// can point them at another endpoint:
//
//	wiki := builtin.NewWikipedia(func(o *builtin.HTTPOptions) {
//	    o.BaseURL = "http://localhost:8080"
//	    o.MaxResults = 2
//	})
//	tools := []tool.Tool{wiki.Tool(), builtin.NewCalculator()}
package builtin
