// Package agenthub wires the hub together: configuration, model providers,
// the safety classifier, tools, agents, thread storage and the runner.
//
// Most applications create a Hub from a config.Config and then run turns
// with Invoke (blocking), Stream (channels) or Chat, which renders the live
// stream into a transcript.Document while it arrives. Replay renders a stored
// thread the same way.
package agenthub

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/hupe1980/agenthub/agent"
	"github.com/hupe1980/agenthub/config"
	"github.com/hupe1980/agenthub/core"
	"github.com/hupe1980/agenthub/flow"
	"github.com/hupe1980/agenthub/logging"
	"github.com/hupe1980/agenthub/model"
	"github.com/hupe1980/agenthub/providers"
	"github.com/hupe1980/agenthub/retrieval"
	"github.com/hupe1980/agenthub/runner"
	"github.com/hupe1980/agenthub/safety"
	"github.com/hupe1980/agenthub/session"
	"github.com/hupe1980/agenthub/tool/builtin"
	"github.com/hupe1980/agenthub/transcript"
)

// Options overrides the components New would otherwise build from the
// configuration.
type Options struct {
	Logger     logging.Logger
	Models     *model.Registry
	Classifier safety.Classifier
	Store      core.ThreadStore
	// Agents are registered next to the built-in agents.
	Agents []*flow.Config
}

// Hub is the high-level façade over the runner and its services.
type Hub struct {
	*runner.Runner

	cfg     *config.Config
	logger  logging.Logger
	closers []io.Closer
}

// New builds a Hub. A nil cfg uses config.DefaultConfig.
func New(cfg *config.Config, optFns ...func(o *Options)) (*Hub, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	h := &Hub{cfg: cfg, logger: opts.Logger}

	models := opts.Models
	if models == nil {
		var err error
		if models, err = providers.NewRegistry(cfg); err != nil {
			return nil, err
		}
	}
	classifier := opts.Classifier
	if classifier == nil {
		classifier = providers.NewClassifier(cfg, models, opts.Logger)
	}

	store := opts.Store
	if store == nil {
		if cfg.Storage.ThreadsDB != "" {
			sq, err := session.OpenSQLiteStore(cfg.Storage.ThreadsDB)
			if err != nil {
				return nil, err
			}
			h.closers = append(h.closers, sq)
			store = sq
		} else {
			store = session.NewInMemoryStore()
		}
	}

	agents, err := h.agentRegistry(opts.Agents)
	if err != nil {
		_ = h.Close()
		return nil, err
	}

	defaultModel := ""
	if models.Has(cfg.DefaultModel) {
		defaultModel = cfg.DefaultModel
	}

	r, err := runner.New(agents, models, func(o *runner.Options) {
		o.Store = store
		o.Classifier = classifier
		o.DefaultAgent = cfg.DefaultAgent
		o.DefaultModel = defaultModel
		o.StepBudget = cfg.StepBudget
		o.ModelTimeout = cfg.GetModelTimeout()
		o.MaxParallel = cfg.MaxParallelTools
		o.MaxConcurrentTurns = cfg.MaxConcurrentTurns
		o.Logger = opts.Logger
	})
	if err != nil {
		_ = h.Close()
		return nil, err
	}
	h.Runner = r

	return h, nil
}

func (h *Hub) agentRegistry(custom []*flow.Config) (*agent.Registry, error) {
	knowledge := retrieval.NewInMemoryStore()
	if dir := h.cfg.Tools.KnowledgeDir; dir != "" {
		n, err := retrieval.LoadDir(knowledge, dir, 0)
		if err != nil {
			return nil, fmt.Errorf("failed to load knowledge base: %w", err)
		}
		h.logger.Info("hub.knowledge.loaded", "dir", dir, "chunks", n)
	}

	var db *builtin.SQLDatabase
	if path := h.cfg.Tools.SQLitePath; path != "" {
		var err error
		if db, err = builtin.OpenSQLite(path); err != nil {
			return nil, err
		}
		h.closers = append(h.closers, db)
	}

	client := &http.Client{Timeout: h.cfg.GetHTTPTimeout()}
	userAgent := h.cfg.Tools.UserAgent

	return agent.NewRegistry(func(o *agent.Options) {
		o.Retriever = knowledge
		o.SearchResults = h.cfg.Tools.SearchResults
		o.SQL = db
		o.Custom = custom
		o.HTTP = append(o.HTTP, func(ho *builtin.HTTPOptions) {
			ho.Client = client
			if userAgent != "" {
				ho.UserAgent = userAgent
			}
		})
	}), nil
}

// Config returns the configuration the hub was built from.
func (h *Hub) Config() *config.Config { return h.cfg }

// Chat streams a turn and folds it into a document. onInstruction, when
// set, observes every render instruction as it is produced. The document is
// returned even on error and holds everything rendered before the failure.
func (h *Hub) Chat(ctx context.Context, req runner.TurnRequest, onInstruction func(transcript.Instruction)) (string, *transcript.Document, error) {
	runID, evCh, errCh, err := h.Stream(ctx, req)
	if err != nil {
		return "", nil, err
	}

	rec := transcript.New(transcript.FromChannel(evCh, errCh), func(o *transcript.Options) {
		o.Live = true
		o.Logger = h.logger
	})

	doc, err := render(ctx, rec, onInstruction)
	if err != nil {
		_ = h.Cancel(runID)
		// drain so the run goroutine can exit
		for range evCh {
		}
	}
	return runID, doc, err
}

// Replay renders the committed history of a thread.
func (h *Hub) Replay(ctx context.Context, threadID string, onInstruction func(transcript.Instruction)) (*transcript.Document, error) {
	history, err := h.History(threadID)
	if err != nil {
		return nil, err
	}
	rec := transcript.New(transcript.FromSlice(history), func(o *transcript.Options) { o.Logger = h.logger })
	return render(ctx, rec, onInstruction)
}

func render(ctx context.Context, rec *transcript.Reconstructor, onInstruction func(transcript.Instruction)) (*transcript.Document, error) {
	doc := transcript.NewDocument()
	for inst, err := range rec.Instructions(ctx) {
		if err != nil {
			return doc, err
		}
		if err := doc.Apply(inst); err != nil {
			return doc, err
		}
		if onInstruction != nil {
			onInstruction(inst)
		}
	}
	return doc, nil
}

// Close releases the databases opened by New.
func (h *Hub) Close() error {
	var errs []error
	for _, c := range h.closers {
		errs = append(errs, c.Close())
	}
	h.closers = nil
	return errors.Join(errs...)
}
