package builtin

import (
	"strings"

	"github.com/hupe1980/agenthub/core"
	"github.com/hupe1980/agenthub/retrieval"
	"github.com/hupe1980/agenthub/tool"
)

// DatabaseSearchName is the tool name exposed to the model.
const DatabaseSearchName = "Database_Search"

type databaseSearchInput struct {
	Query string `json:"query" description:"what to look up in the handbook"`
}

// NewDatabaseSearch returns a tool that retrieves the k best matching
// documents from r and joins their content with blank lines.
func NewDatabaseSearch(r retrieval.Retriever, k int) tool.Tool {
	if k <= 0 {
		k = 5
	}

	return tool.NewFunctionToolFromStruct(
		DatabaseSearchName,
		"Searches the knowledge base for information in the company's handbook.",
		databaseSearchInput{},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			q, err := tool.StringArg(args, "query")
			if err != nil {
				return nil, err
			}

			docs, err := r.Search(tc.Context(), q, k)
			if err != nil {
				return nil, err
			}

			contexts := make([]string, len(docs))
			for i, d := range docs {
				contexts[i] = d.Content
			}

			return strings.Join(contexts, "\n\n"), nil
		},
	)
}
