package flow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/agenthub/core"
	"github.com/hupe1980/agenthub/logging"
	"github.com/hupe1980/agenthub/model"
	"github.com/hupe1980/agenthub/safety"
	"github.com/hupe1980/agenthub/tool"
)

// errMultipleTransfers is reported for every delegation after the first one
// requested in the same step.
var errMultipleTransfers = errors.New("only one transfer per step is allowed")

// Machine drives turns for one agent configuration. It holds no per-turn
// state and is safe for concurrent use by independent turns.
type Machine struct {
	cfg      *Config
	model    model.Model
	tools    *tool.Set
	subs     map[string]*Machine
	executor *ToolExecutor
	opts     Options
}

// New builds the machine for cfg and, recursively, for its sub-agents. One
// delegate tool is injected per sub-agent. Cyclic sub-agent graphs are
// rejected.
func New(cfg *Config, m model.Model, optFns ...func(o *Options)) (*Machine, error) {
	opts := Options{Logger: logging.NoOpLogger{}, Now: time.Now}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Classifier == nil {
		return nil, fmt.Errorf("%w: classifier is required", ErrInvalidConfig)
	}
	if m == nil {
		return nil, fmt.Errorf("%w: model is required", ErrInvalidConfig)
	}

	return build(cfg, m, opts, map[*Config]bool{})
}

func build(cfg *Config, m model.Model, opts Options, path map[*Config]bool) (*Machine, error) {
	if cfg == nil || cfg.Name == "" {
		return nil, fmt.Errorf("%w: agent name is required", ErrInvalidConfig)
	}
	if path[cfg] {
		return nil, fmt.Errorf("%w: delegation cycle through agent %s", ErrInvalidConfig, cfg.Name)
	}
	path[cfg] = true
	defer delete(path, cfg)

	all := make([]tool.Tool, 0, len(cfg.Tools)+len(cfg.SubAgents))
	all = append(all, cfg.Tools...)

	subs := make(map[string]*Machine, len(cfg.SubAgents))
	for _, sc := range cfg.SubAgents {
		sub, err := build(sc, m, opts, path)
		if err != nil {
			return nil, err
		}
		all = append(all, tool.NewDelegateTool(sc.Name, sc.Description))
		subs[sc.Name] = sub
	}

	set, err := tool.NewSet(all...)
	if err != nil {
		return nil, fmt.Errorf("%w: agent %s: %w", ErrInvalidConfig, cfg.Name, err)
	}

	return &Machine{
		cfg:      cfg,
		model:    m,
		tools:    set,
		subs:     subs,
		executor: NewToolExecutor(ExecutorConfig{MaxParallel: opts.MaxParallel}, opts.Logger),
		opts:     opts,
	}, nil
}

// Name returns the agent name.
func (m *Machine) Name() string { return m.cfg.Name }

// Description returns the agent description.
func (m *Machine) Description() string { return m.cfg.Description }

// Tools returns the tool set offered to the model, delegate tools included.
func (m *Machine) Tools() *tool.Set { return m.tools }

// Run executes one turn over st starting at guard_input. The state is
// mutated in place (messages appended, safety replaced, steps consumed).
func (m *Machine) Run(ctx context.Context, st *core.ConversationState, turn Turn) (*Result, error) {
	start := time.Now()
	budget := st.RemainingSteps

	x := &execution{Machine: m, st: st, turn: turn}
	final, err := x.drive(ctx, StateGuardInput)

	steps := budget - st.RemainingSteps
	if err != nil {
		m.opts.Logger.Error("flow.turn.failed", "agent", m.cfg.Name, "run_id", turn.RunID, "state", string(final), "steps", steps, "error", err.Error())
		return nil, err
	}

	m.opts.Logger.Info("flow.turn.complete",
		"agent", m.cfg.Name,
		"run_id", turn.RunID,
		"state", string(final),
		"steps", steps,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return &Result{State: final, Messages: st.Snapshot(), Safety: st.Safety}, nil
}

// execution is the per-turn view of a machine.
type execution struct {
	*Machine
	st      *core.ConversationState
	turn    Turn
	handoff *Machine
}

// drive is the execution host: it runs nodes until a terminal state and owns
// the step counter.
func (x *execution) drive(ctx context.Context, state State) (State, error) {
	for !state.Terminal() {
		if err := ctx.Err(); err != nil {
			return state, err
		}
		if x.st.RemainingSteps < 0 {
			return state, fmt.Errorf("%w: agent %s entering %s", core.ErrStepBudgetExceeded, x.cfg.Name, state)
		}

		next, err := x.node(ctx, state)
		x.st.RemainingSteps--
		if err != nil {
			return state, err
		}

		x.opts.Logger.Debug("flow.transition",
			"agent", x.cfg.Name,
			"from", string(state),
			"to", string(next),
			"remaining_steps", x.st.RemainingSteps,
		)
		state = next
	}

	return state, nil
}

func (x *execution) node(ctx context.Context, state State) (State, error) {
	switch state {
	case StateGuardInput:
		return x.guardInput(ctx)
	case StateModel:
		return x.callModel(ctx)
	case StateTools:
		return x.runTools(ctx)
	case StateDelegate:
		return x.delegate(ctx)
	default:
		return state, fmt.Errorf("unknown state %q", state)
	}
}

func (x *execution) append(msg core.Message) {
	x.st.Append(msg)
	x.turn.Emit.Message(msg)
}

// classify runs the safety gate and records the verdict. Classifier errors
// always match core.ErrClassificationUnavailable.
func (x *execution) classify(ctx context.Context, role safety.Role, msgs []core.Message) (core.SafetyVerdict, error) {
	v, err := x.opts.Classifier.Classify(ctx, role, msgs)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return v, ctxErr
		}
		if !errors.Is(err, core.ErrClassificationUnavailable) {
			err = safety.Unavailable(err)
		}
		return v, err
	}
	x.st.SetSafety(v)
	return v, nil
}

func (x *execution) block(v core.SafetyVerdict) State {
	msg := safety.UnsafeMessage(v)
	msg.RunID = x.turn.RunID
	x.append(msg)

	x.opts.Logger.Warn("flow.blocked", "agent", x.cfg.Name, "categories", v.UnsafeCategories())

	return StateBlocked
}

func (x *execution) guardInput(ctx context.Context) (State, error) {
	v, err := x.classify(ctx, safety.User, x.st.Snapshot())
	if err != nil {
		return StateGuardInput, err
	}
	if v.IsUnsafe() {
		return x.block(v), nil
	}
	return StateModel, nil
}

func (x *execution) callModel(ctx context.Context) (State, error) {
	req, err := x.buildRequest(x.st, x.turn.Stream)
	if err != nil {
		return StateModel, err
	}

	callCtx := ctx
	if x.opts.ModelTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, x.opts.ModelTimeout)
		defer cancel()
	}

	info := x.model.Info()
	start := time.Now()

	respCh, errCh := x.model.Generate(callCtx, req)
	resp, err := model.Drain(callCtx, respCh, errCh, x.turn.Emit.Token)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return StateModel, ctxErr
		}
		x.opts.Logger.Error("flow.model.error", "agent", x.cfg.Name, "model", info.Name, "error", err.Error())
		var upErr *core.UpstreamError
		if errors.As(err, &upErr) {
			return StateModel, err
		}
		return StateModel, &core.UpstreamError{Provider: info.Provider, Model: info.Name, Err: err}
	}

	msg, _ := core.CloneMessage(resp.Message).(*core.AIMessage)
	x.prepare(msg)

	tokens := 0
	if msg.Metadata.Usage != nil {
		tokens = msg.Metadata.Usage.TotalTokens
	}
	x.opts.Logger.Info("flow.model.call",
		"agent", x.cfg.Name,
		"model", info.Name,
		"tool_calls", len(msg.ToolCalls),
		"finish_reason", msg.Metadata.FinishReason,
		"tokens", tokens,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	v, err := x.classify(ctx, safety.Agent, append(x.st.Snapshot(), msg))
	if err != nil {
		return StateModel, err
	}
	if v.IsUnsafe() {
		return x.block(v), nil
	}

	if x.st.RemainingSteps < 2 && msg.HasToolCalls() {
		x.opts.Logger.Warn("flow.steps.exhausted", "agent", x.cfg.Name, "remaining_steps", x.st.RemainingSteps)
		x.append(&core.AIMessage{
			ID:       msg.ID,
			Content:  NeedMoreStepsMessage,
			RunID:    x.turn.RunID,
			Metadata: core.ResponseMetadata{FinishReason: core.FinishStop, Model: msg.Metadata.Model},
		})
		return StateDone, nil
	}

	x.append(msg)

	return x.route()
}

// prepare stamps ids, tags each call with the kind of the tool it targets and
// makes sure the finish reason is set.
func (x *execution) prepare(msg *core.AIMessage) {
	if msg.ID == "" {
		msg.ID = core.NewID()
	}
	msg.RunID = x.turn.RunID

	for i, tc := range msg.ToolCalls {
		if tc.ID == "" {
			msg.ToolCalls[i].ID = core.NewID()
		}
		kind := core.CallInvoke
		if t, ok := x.tools.Get(tc.Name); ok {
			kind = tool.KindOf(t)
		}
		msg.ToolCalls[i].Kind = kind
	}

	switch {
	case msg.HasToolCalls():
		msg.Metadata.FinishReason = core.FinishToolCalls
	case msg.Metadata.FinishReason == "" || msg.Metadata.FinishReason == core.FinishToolCalls:
		msg.Metadata.FinishReason = core.FinishStop
	}
}

// route picks the successor of the model node from the last message.
func (x *execution) route() (State, error) {
	ai, err := core.AsAI(x.st.Last())
	if err != nil {
		return StateModel, err
	}
	if ai.HasToolCalls() {
		return StateTools, nil
	}
	return StateDone, nil
}

func (x *execution) runTools(ctx context.Context) (State, error) {
	ai, err := core.AsAI(x.st.Last())
	if err != nil {
		return StateTools, err
	}

	var (
		leaves   []core.ToolCall
		transfer = -1
	)
	for i, tc := range ai.ToolCalls {
		switch {
		case !tc.IsDelegation():
			leaves = append(leaves, tc)
		case transfer < 0:
			transfer = i
		}
	}

	results, err := x.executor.Execute(ctx, x.cfg.Name, x.turn.RunID, x.tools, leaves)
	if err != nil {
		return StateTools, err
	}

	next := 0
	for i, tc := range ai.ToolCalls {
		switch {
		case !tc.IsDelegation():
			x.append(results[next])
			next++
		case i != transfer:
			msg := core.NewToolMessage(tc.ID, tc.Name, tool.FormatError(errMultipleTransfers), core.ToolError)
			msg.RunID = x.turn.RunID
			x.append(msg)
		}
	}

	if transfer < 0 {
		return StateModel, nil
	}

	return x.handOff(ctx, ai.ToolCalls[transfer])
}

// handOff records the transfer of call and schedules the sub-agent.
func (x *execution) handOff(ctx context.Context, call core.ToolCall) (State, error) {
	t, _ := x.tools.Get(call.Name)
	d, ok := t.(tool.Delegator)
	if !ok {
		return StateTools, fmt.Errorf("%w: %s is not a delegate tool", core.ErrTypeMismatch, call.Name)
	}
	sub := x.subs[d.Target()]

	result, err := d.Call(core.NewToolContext(ctx, x.cfg.Name, x.turn.RunID, call.ID, x.opts.Logger), call.Args)
	if err != nil || sub == nil {
		if err == nil {
			err = fmt.Errorf("unknown agent %s", d.Target())
		}
		msg := core.NewToolMessage(call.ID, call.Name, tool.FormatError(err), core.ToolError)
		msg.RunID = x.turn.RunID
		x.append(msg)
		return StateModel, nil
	}

	msg := core.NewToolMessage(call.ID, call.Name, tool.FormatResult(result), core.ToolSuccess)
	msg.RunID = x.turn.RunID
	x.append(msg)

	x.handoff = sub

	return StateDelegate, nil
}

// delegate runs the scheduled sub-agent from its model node over the shared
// state. The parent resumes at model unless the sub-agent was blocked or
// used up the budget.
func (x *execution) delegate(ctx context.Context) (State, error) {
	sub := x.handoff
	x.handoff = nil
	if sub == nil {
		return StateDelegate, errors.New("no pending delegation")
	}

	x.opts.Logger.Info("flow.delegate", "from", x.cfg.Name, "to", sub.cfg.Name, "remaining_steps", x.st.RemainingSteps)

	child := &execution{Machine: sub, st: x.st, turn: x.turn}
	final, err := child.drive(ctx, StateModel)
	if err != nil {
		return StateDelegate, err
	}

	x.opts.Logger.Info("flow.delegate.complete", "from", x.cfg.Name, "to", sub.cfg.Name, "state", string(final))

	if final == StateBlocked {
		return StateBlocked, nil
	}
	if x.st.RemainingSteps < 1 {
		return StateDone, nil
	}

	return StateModel, nil
}
