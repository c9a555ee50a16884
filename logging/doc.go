// Package logging provides a minimal logging interface and adapters for agenthub.
//
// The Logger interface defines the standard leveled methods (Debug, Info, Warn,
// Error) taking a dotted event name plus alternating key/value pairs. The state
// machine, tool executor, runner and model adapters log through it. This
// package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping a *slog.Logger
//   - ZapAdapter wrapping a zap SugaredLogger (used by the CLI)
//   - HubLogger, an slog backed Logger with configured static attributes
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	r, err := runner.New(agents, models, func(o *runner.Options) {
//		o.Logger = logger
//	})
package logging
