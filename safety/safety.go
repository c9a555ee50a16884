package safety

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/agenthub/core"
)

// Role names the party whose content is being assessed.
type Role string

const (
	// User assesses the latest human input.
	User Role = "User"
	// Agent assesses the latest model output.
	Agent Role = "Agent"
)

// Classifier assesses a transcript. Implementations must be pure functions
// of their input: the same role and messages always yield the same verdict.
type Classifier interface {
	Classify(ctx context.Context, role Role, msgs []core.Message) (core.SafetyVerdict, error)
}

// ClassifierFunc adapts a function to the Classifier interface.
type ClassifierFunc func(ctx context.Context, role Role, msgs []core.Message) (core.SafetyVerdict, error)

// Classify implements Classifier.
func (f ClassifierFunc) Classify(ctx context.Context, role Role, msgs []core.Message) (core.SafetyVerdict, error) {
	return f(ctx, role, msgs)
}

// AllowAll never flags content. It is only used when an operator disables
// the gate explicitly.
type AllowAll struct{}

// Classify implements Classifier.
func (AllowAll) Classify(context.Context, Role, []core.Message) (core.SafetyVerdict, error) {
	return core.NewSafeVerdict(), nil
}

// Unavailable wraps cause so that it matches core.ErrClassificationUnavailable.
func Unavailable(cause error) error {
	if cause == nil {
		return core.ErrClassificationUnavailable
	}
	return fmt.Errorf("%w: %w", core.ErrClassificationUnavailable, cause)
}

// FormatUnsafeMessage renders the user-visible notice for a blocked turn.
func FormatUnsafeMessage(v core.SafetyVerdict) string {
	return "This conversation was flagged for unsafe content: " + strings.Join(v.UnsafeCategories(), ", ")
}

// UnsafeMessage builds the synthesized AI message appended when a turn is
// blocked.
func UnsafeMessage(v core.SafetyVerdict) *core.AIMessage {
	return core.NewAIMessage(FormatUnsafeMessage(v))
}
