// Package safety implements the moderation gate run before and after model
// inference. A Classifier turns a transcript into a core.SafetyVerdict; the
// LlamaGuard classifier does so by prompting a Llama Guard model.
//
// A classifier that cannot produce a verdict returns an error matching
// core.ErrClassificationUnavailable. Callers block the turn on such errors and
// never fall back to treating the content as safe.
package safety
