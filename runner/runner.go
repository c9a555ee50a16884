package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/hupe1980/agenthub/agent"
	"github.com/hupe1980/agenthub/core"
	"github.com/hupe1980/agenthub/flow"
	"github.com/hupe1980/agenthub/logging"
	"github.com/hupe1980/agenthub/model"
	"github.com/hupe1980/agenthub/safety"
	"github.com/hupe1980/agenthub/session"
)

// ErrRunNotFound is returned by Cancel for unknown or finished runs.
var ErrRunNotFound = errors.New("run not found")

// Options holds dependency and configuration overrides passed to New.
type Options struct {
	// Store persists thread history. Defaults to an in-memory store.
	Store core.ThreadStore
	// Classifier gates input and output of every turn. Defaults to
	// safety.AllowAll.
	Classifier safety.Classifier
	// DefaultAgent is used when a request names no agent.
	DefaultAgent string
	// DefaultModel is used when a request names no model. Empty selects the
	// model registry default.
	DefaultModel string
	// StepBudget is the per-turn step budget when a request sets none.
	StepBudget int
	// ModelTimeout bounds every model call. Zero disables it.
	ModelTimeout time.Duration
	// MaxParallel bounds concurrent tool calls within one step.
	MaxParallel int
	// MaxConcurrentTurns limits the turns executing at once across all
	// threads. Turns over the limit wait for a slot. Zero means unlimited.
	MaxConcurrentTurns int
	// EventBufferSize sets the buffering of stream channels.
	EventBufferSize int
	Logger          logging.Logger
}

// TurnRequest is the input of one turn.
type TurnRequest struct {
	// ThreadID selects the conversation. Empty starts a new thread.
	ThreadID string
	AgentID  string
	Model    string
	Message  string
	// StepBudget overrides the default step budget when positive.
	StepBudget int
}

// TurnResult is the committed outcome of a turn.
type TurnResult struct {
	RunID    string
	ThreadID string
	State    flow.State
	// Messages is the full thread after the turn.
	Messages []core.Message
	// NewMessages holds the human input and everything the turn produced.
	NewMessages []core.Message
	Safety      *core.SafetyVerdict
}

// Final returns the last message of the turn.
func (r *TurnResult) Final() core.Message {
	if len(r.NewMessages) == 0 {
		return nil
	}
	return r.NewMessages[len(r.NewMessages)-1]
}

// Runner hosts agent turns: it resolves agent and model, loads the thread,
// drives the flow machine and commits the turn once it reaches a terminal
// state. Failed or cancelled turns commit nothing. Public methods are safe
// for concurrent use.
type Runner struct {
	agents *agent.Registry
	models *model.Registry
	opts   Options
	slots  *semaphore.Weighted

	machinesMu sync.Mutex
	machines   map[machineKey]*flow.Machine

	activeRuns map[string]context.CancelFunc
	mu         sync.RWMutex
}

type machineKey struct{ agent, model string }

// New constructs a Runner with optional overrides.
func New(agents *agent.Registry, models *model.Registry, optFns ...func(o *Options)) (*Runner, error) {
	opts := Options{
		DefaultAgent:    agent.DefaultAgent,
		StepBudget:      core.DefaultStepBudget,
		EventBufferSize: 100,
		Logger:          logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	if agents == nil || models == nil {
		return nil, errors.New("runner: agent and model registries are required")
	}
	if opts.Store == nil {
		opts.Store = session.NewInMemoryStore()
	}
	if opts.Classifier == nil {
		opts.Classifier = safety.AllowAll{}
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if !agents.Has(opts.DefaultAgent) {
		return nil, fmt.Errorf("runner: default agent: %w: %s", agent.ErrUnknownAgent, opts.DefaultAgent)
	}

	r := &Runner{
		agents:     agents,
		models:     models,
		opts:       opts,
		machines:   make(map[machineKey]*flow.Machine),
		activeRuns: make(map[string]context.CancelFunc),
	}
	if opts.MaxConcurrentTurns > 0 {
		r.slots = semaphore.NewWeighted(int64(opts.MaxConcurrentTurns))
	}
	return r, nil
}

// turn is a prepared invocation.
type turn struct {
	runID    string
	threadID string
	agentID  string
	modelID  string
	history  []core.Message
	input    *core.HumanMessage
	machine  *flow.Machine
	state    *core.ConversationState
}

func (r *Runner) prepare(req TurnRequest) (*turn, error) {
	t := &turn{
		runID:    core.NewID(),
		threadID: req.ThreadID,
		agentID:  req.AgentID,
		modelID:  req.Model,
	}
	if t.threadID == "" {
		t.threadID = core.NewID()
	}
	if t.agentID == "" {
		t.agentID = r.opts.DefaultAgent
	}
	if t.modelID == "" {
		t.modelID = r.opts.DefaultModel
	}
	if t.modelID == "" {
		t.modelID = r.models.Default()
	}

	mach, err := r.machine(t.agentID, t.modelID)
	if err != nil {
		return nil, err
	}
	t.machine = mach

	thread, err := r.opts.Store.Get(t.threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to get thread: %w", err)
	}
	t.history = thread.GetMessages()

	t.input = core.NewHumanMessage(req.Message)
	t.input.RunID = t.runID

	budget := req.StepBudget
	if budget <= 0 {
		budget = r.opts.StepBudget
	}
	t.state = core.NewConversationState(t.history, t.input, budget)

	return t, nil
}

// machine returns the cached machine for an agent and model pair.
func (r *Runner) machine(agentID, modelID string) (*flow.Machine, error) {
	key := machineKey{agent: agentID, model: modelID}

	r.machinesMu.Lock()
	defer r.machinesMu.Unlock()

	if m, ok := r.machines[key]; ok {
		return m, nil
	}

	cfg, err := r.agents.Get(agentID)
	if err != nil {
		return nil, err
	}
	m, err := r.models.Get(modelID)
	if err != nil {
		return nil, err
	}

	mach, err := flow.New(cfg, m, func(o *flow.Options) {
		o.Classifier = r.opts.Classifier
		o.Logger = r.opts.Logger
		o.ModelTimeout = r.opts.ModelTimeout
		o.MaxParallel = r.opts.MaxParallel
	})
	if err != nil {
		return nil, err
	}

	r.machines[key] = mach
	return mach, nil
}

// Invoke runs a turn to completion and returns the committed result.
func (r *Runner) Invoke(ctx context.Context, req TurnRequest) (*TurnResult, error) {
	t, err := r.prepare(req)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	r.register(t.runID, cancel)
	defer r.unregister(t.runID)

	return r.execute(ctx, t, flow.Turn{RunID: t.runID})
}

// Stream starts a turn asynchronously. The event channel carries the human
// input, then token fragments and completed messages in order; it is closed
// when the turn ends. A failure is delivered on the error channel, which is
// closed after the event channel.
func (r *Runner) Stream(ctx context.Context, req TurnRequest) (string, <-chan core.StreamEvent, <-chan error, error) {
	t, err := r.prepare(req)
	if err != nil {
		return "", nil, nil, err
	}

	eventsCh := make(chan core.StreamEvent, r.opts.EventBufferSize)
	errorsCh := make(chan error, 1)

	ctx, cancel := context.WithCancel(ctx)
	r.register(t.runID, cancel)

	emit := core.Emitter(func(ev core.StreamEvent) {
		select {
		case <-ctx.Done():
		case eventsCh <- ev:
		}
	})

	go func() {
		defer func() {
			cancel()
			r.unregister(t.runID)
			close(eventsCh)
			close(errorsCh)
		}()

		emit.Message(t.input)

		if _, err := r.execute(ctx, t, flow.Turn{RunID: t.runID, Emit: emit, Stream: true}); err != nil {
			errorsCh <- err
		}
	}()

	return t.runID, eventsCh, errorsCh, nil
}

func (r *Runner) execute(ctx context.Context, t *turn, ft flow.Turn) (*TurnResult, error) {
	if r.slots != nil {
		if err := r.slots.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		defer r.slots.Release(1)
	}

	start := time.Now()
	r.opts.Logger.Info("runner.turn.start", "run_id", t.runID, "thread_id", t.threadID, "agent", t.agentID, "model", t.modelID)

	res, err := t.machine.Run(ctx, t.state, ft)
	if err != nil {
		r.opts.Logger.Error("runner.turn.failed", "run_id", t.runID, "thread_id", t.threadID, "error", err.Error())
		return nil, err
	}

	produced := res.Messages[len(t.history):]
	if err := r.opts.Store.Append(t.threadID, produced...); err != nil {
		return nil, fmt.Errorf("failed to commit turn: %w", err)
	}

	r.opts.Logger.Info("runner.turn.commit",
		"run_id", t.runID,
		"thread_id", t.threadID,
		"state", string(res.State),
		"messages", len(produced),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return &TurnResult{
		RunID:       t.runID,
		ThreadID:    t.threadID,
		State:       res.State,
		Messages:    res.Messages,
		NewMessages: produced,
		Safety:      res.Safety,
	}, nil
}

func (r *Runner) register(runID string, cancel context.CancelFunc) {
	r.mu.Lock()
	r.activeRuns[runID] = cancel
	r.mu.Unlock()
}

func (r *Runner) unregister(runID string) {
	r.mu.Lock()
	delete(r.activeRuns, runID)
	r.mu.Unlock()
}

// Cancel cancels an active run by ID.
func (r *Runner) Cancel(runID string) error {
	r.mu.RLock()
	cancel, exists := r.activeRuns[runID]
	r.mu.RUnlock()

	if !exists {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	cancel()

	return nil
}

// History returns the committed messages of a thread.
func (r *Runner) History(threadID string) ([]core.Message, error) {
	thread, err := r.opts.Store.Get(threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to get thread: %w", err)
	}
	return thread.GetMessages(), nil
}

// Threads returns the known thread ids.
func (r *Runner) Threads() ([]string, error) { return r.opts.Store.List() }

// Agents describes the available agents.
func (r *Runner) Agents() []agent.Info { return r.agents.Info() }

// DefaultAgent returns the agent used when a request names none.
func (r *Runner) DefaultAgent() string { return r.opts.DefaultAgent }

// Models returns the available model ids.
func (r *Runner) Models() []string { return r.models.IDs() }
