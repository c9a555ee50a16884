// Package runner hosts agent turns.
//
// A Runner resolves the requested agent and model, loads the thread history,
// drives a flow.Machine over it and commits the human input together with
// everything the turn produced. Only turns ending in done or blocked are
// committed; an error or cancellation leaves the thread untouched.
//
// Invoke blocks until the turn ends. Stream returns immediately with channels
// carrying the live event stream, which a transcript.Reconstructor can
// render. Active runs can be cancelled by id.
package runner
