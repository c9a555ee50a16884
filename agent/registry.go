package agent

import (
	"errors"
	"fmt"
	"slices"

	"github.com/hupe1980/agenthub/flow"
	"github.com/hupe1980/agenthub/retrieval"
	"github.com/hupe1980/agenthub/tool"
	"github.com/hupe1980/agenthub/tool/builtin"
)

// Agent ids.
const (
	Chatbot           = "chatbot"
	ResearchAssistant = "research-assistant"
	RAGAssistant      = "rag-assistant"
	SQL               = "sql"
	Wiki              = "wiki"
	Arxiv             = "arxiv"
	Supervisor        = "supervisor"

	DefaultAgent = Chatbot
)

// ErrUnknownAgent is returned for agent ids missing from the registry.
var ErrUnknownAgent = errors.New("unknown agent")

// Info describes an agent to clients.
type Info struct {
	Key         string `json:"key"`
	Description string `json:"description"`
}

// Options configure the tools behind the built-in agents.
type Options struct {
	// Retriever backs the rag-assistant. An empty store is used when nil.
	Retriever retrieval.Retriever
	// SearchResults is the number of documents Database_Search returns.
	SearchResults int
	// SQL backs the sql agent, which is only registered when set.
	SQL *builtin.SQLDatabase
	// SQLTopK is the default result limit the sql agent is told to use.
	SQLTopK int
	// HTTP options shared by the web search, Wikipedia and arXiv tools.
	HTTP []func(o *builtin.HTTPOptions)
	// Calculator options.
	Calculator []func(o *builtin.CalculatorOptions)
	// Custom agents are registered after the built-ins. A custom agent
	// named like a built-in replaces it in place.
	Custom []*flow.Config
}

// Registry is an immutable set of agent configurations.
type Registry struct {
	order   []string
	configs map[string]*flow.Config
}

// NewRegistry builds the built-in agents.
func NewRegistry(optFns ...func(o *Options)) *Registry {
	opts := Options{SearchResults: 5, SQLTopK: 5}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Retriever == nil {
		opts.Retriever = retrieval.NewInMemoryStore()
	}

	webSearch := builtin.NewWebSearch(opts.HTTP...).Tool()
	calculator := builtin.NewCalculator(opts.Calculator...)

	research := &flow.Config{
		Name:         ResearchAssistant,
		Description:  "A research assistant with web search and calculator.",
		Instructions: researchInstructions,
		Tools:        []tool.Tool{webSearch, calculator},
	}
	wiki := &flow.Config{
		Name:         Wiki,
		Description:  "A Wikipedia research assistant.",
		Instructions: wikiInstructions,
		Tools:        []tool.Tool{builtin.NewWikipedia(opts.HTTP...).Tool()},
	}
	arxiv := &flow.Config{
		Name:         Arxiv,
		Description:  "ArXiv Scholar: scientific paper search agent.",
		Instructions: arxivInstructions,
		Tools:        []tool.Tool{builtin.NewArxiv(opts.HTTP...).Tool()},
	}

	r := &Registry{configs: map[string]*flow.Config{}}
	r.add(&flow.Config{
		Name:         Chatbot,
		Description:  "A simple chatbot.",
		Instructions: chatbotInstructions,
	})
	r.add(research)
	r.add(&flow.Config{
		Name:         RAGAssistant,
		Description:  "A RAG assistant with access to information in a database.",
		Instructions: ragInstructions,
		Tools:        []tool.Tool{builtin.NewDatabaseSearch(opts.Retriever, opts.SearchResults)},
	})
	if opts.SQL != nil {
		r.add(&flow.Config{
			Name:         SQL,
			Description:  "A SQL assistant agent querying the Chinook database.",
			Instructions: sqlInstructions(opts.SQL.Dialect(), opts.SQLTopK),
			Tools:        opts.SQL.Tools(),
		})
	}
	r.add(wiki)
	r.add(arxiv)
	r.add(&flow.Config{
		Name:         Supervisor,
		Description:  "A supervisor that hands questions to the research, Wikipedia and arXiv agents.",
		Instructions: supervisorInstructions,
		SubAgents:    []*flow.Config{research, wiki, arxiv},
	})

	for _, cfg := range opts.Custom {
		if cfg != nil && cfg.Name != "" {
			r.add(cfg)
		}
	}

	return r
}

func (r *Registry) add(cfg *flow.Config) {
	if _, exists := r.configs[cfg.Name]; !exists {
		r.order = append(r.order, cfg.Name)
	}
	r.configs[cfg.Name] = cfg
}

// Get returns the configuration of the agent with id key.
func (r *Registry) Get(key string) (*flow.Config, error) {
	cfg, ok := r.configs[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAgent, key)
	}
	return cfg, nil
}

// Has reports whether key is registered.
func (r *Registry) Has(key string) bool {
	_, ok := r.configs[key]
	return ok
}

// Keys returns the agent ids in registration order.
func (r *Registry) Keys() []string { return slices.Clone(r.order) }

// Info lists all agents in registration order.
func (r *Registry) Info() []Info {
	out := make([]Info, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, Info{Key: key, Description: r.configs[key].Description})
	}
	return out
}
