package safety

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/hupe1980/agenthub/core"
	"github.com/hupe1980/agenthub/logging"
	"github.com/hupe1980/agenthub/model"
)

// Category is one hazard category of the Llama Guard taxonomy.
type Category struct {
	Code string
	Name string
}

// Categories is the MLCommons hazard taxonomy used by Llama Guard.
var Categories = []Category{
	{"S1", "Violent Crimes"},
	{"S2", "Non-Violent Crimes"},
	{"S3", "Sex Crimes"},
	{"S4", "Child Exploitation"},
	{"S5", "Defamation"},
	{"S6", "Specialized Advice"},
	{"S7", "Privacy"},
	{"S8", "Intellectual Property"},
	{"S9", "Indiscriminate Weapons"},
	{"S10", "Hate"},
	{"S11", "Self-Harm"},
	{"S12", "Sexual Content"},
	{"S13", "Elections"},
	{"S14", "Code Interpreter Abuse"},
}

var categoryNames = func() map[string]string {
	m := make(map[string]string, len(Categories))
	for _, c := range Categories {
		m[c.Code] = c.Name
	}
	return m
}()

var promptTemplate = template.Must(template.New("llamaguard").Parse(`Task: Check if there is unsafe content in '{{.Role}}' messages in conversations according our safety policy with the below categories.

<BEGIN UNSAFE CONTENT CATEGORIES>
{{range .Categories}}{{.Code}}: {{.Name}}.
{{end}}<END UNSAFE CONTENT CATEGORIES>

<BEGIN CONVERSATION>

{{range .Turns}}{{.}}

{{end}}<END CONVERSATION>

Provide your safety assessment for ONLY THE LAST {{.Role}} in the above conversation:
- First line must read 'safe' or 'unsafe'.
- If unsafe, a second line must include a comma-separated list of violated categories.`))

// LlamaGuardOptions configure the LlamaGuard classifier.
type LlamaGuardOptions struct {
	// Timeout bounds a single classification call. Zero disables it.
	Timeout time.Duration
	Logger  logging.Logger
}

// LlamaGuard classifies conversations by prompting a Llama Guard model.
type LlamaGuard struct {
	model model.Model
	opts  LlamaGuardOptions
}

// NewLlamaGuard creates a classifier on top of m. A nil model yields a
// classifier that always reports ErrClassificationUnavailable.
func NewLlamaGuard(m model.Model, optFns ...func(o *LlamaGuardOptions)) *LlamaGuard {
	opts := LlamaGuardOptions{Timeout: 30 * time.Second, Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &LlamaGuard{model: m, opts: opts}
}

// Classify implements Classifier.
func (g *LlamaGuard) Classify(ctx context.Context, role Role, msgs []core.Message) (core.SafetyVerdict, error) {
	if g.model == nil {
		return core.SafetyVerdict{}, Unavailable(errors.New("no guard model configured"))
	}

	prompt, err := BuildPrompt(role, msgs)
	if err != nil {
		return core.SafetyVerdict{}, Unavailable(err)
	}

	if g.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	respCh, errCh := g.model.Generate(ctx, model.Request{Messages: []core.Message{core.NewHumanMessage(prompt)}})
	resp, err := model.Drain(ctx, respCh, errCh, nil)
	if err != nil {
		g.opts.Logger.Warn("safety.classify.error", "role", string(role), "error", err.Error())
		return core.SafetyVerdict{}, Unavailable(err)
	}

	verdict, err := ParseOutput(resp.Message.Content)
	if err != nil {
		g.opts.Logger.Warn("safety.classify.unparsable", "role", string(role), "output", resp.Message.Content)
		return core.SafetyVerdict{}, Unavailable(err)
	}

	g.opts.Logger.Debug("safety.classify",
		"role", string(role),
		"assessment", string(verdict.Assessment()),
		"categories", verdict.UnsafeCategories(),
		"duration", time.Since(start),
	)

	return verdict, nil
}

// BuildPrompt renders the Llama Guard prompt. Only human and AI turns are
// shown to the classifier; tool results and custom signals are omitted, as
// are AI messages without text.
func BuildPrompt(role Role, msgs []core.Message) (string, error) {
	var turns []string
	for _, m := range msgs {
		err := core.SwitchMessage(m, core.MessageSwitch{
			Human: func(h *core.HumanMessage) error {
				turns = append(turns, "User: "+h.Content)
				return nil
			},
			AI: func(a *core.AIMessage) error {
				if a.Content != "" {
					turns = append(turns, "Agent: "+a.Content)
				}
				return nil
			},
			Tool:   func(*core.ToolMessage) error { return nil },
			Custom: func(*core.CustomMessage) error { return nil },
		})
		if err != nil {
			return "", err
		}
	}

	var buf bytes.Buffer
	err := promptTemplate.Execute(&buf, map[string]any{
		"Role":       string(role),
		"Categories": Categories,
		"Turns":      turns,
	})
	if err != nil {
		return "", err
	}

	return buf.String(), nil
}

// ParseOutput parses a Llama Guard completion: "safe", or "unsafe" followed
// by a line of comma separated category codes. Unknown codes are rejected.
func ParseOutput(output string) (core.SafetyVerdict, error) {
	lines := strings.Split(strings.TrimSpace(output), "\n")

	switch strings.ToLower(strings.TrimSpace(lines[0])) {
	case "safe":
		return core.NewSafeVerdict(), nil
	case "unsafe":
	default:
		return core.SafetyVerdict{}, fmt.Errorf("unexpected guard output %q", output)
	}

	if len(lines) < 2 {
		return core.SafetyVerdict{}, fmt.Errorf("unsafe guard output without categories %q", output)
	}

	var names []string
	for _, code := range strings.Split(lines[1], ",") {
		code = strings.ToUpper(strings.TrimSpace(code))
		if code == "" {
			continue
		}
		name, ok := categoryNames[code]
		if !ok {
			return core.SafetyVerdict{}, fmt.Errorf("unknown guard category %q", code)
		}
		names = append(names, name)
	}
	if len(names) == 0 {
		return core.SafetyVerdict{}, fmt.Errorf("unsafe guard output without categories %q", output)
	}

	return core.NewUnsafeVerdict(names...), nil
}
