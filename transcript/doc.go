// Package transcript reconstructs a hierarchical, displayable transcript
// from the event stream of a turn.
//
// A Reconstructor consumes token fragments and messages from a Source and
// yields render Instructions lazily; a Document folds them into a tree of
// containers, text, tool handles and nested sub-agent transcripts:
//
//	r := transcript.New(transcript.FromChannel(events, errs), func(o *transcript.Options) {
//	    o.Live = true
//	})
//	doc, err := transcript.Build(ctx, r)
//
// Replaying the persisted messages of a completed turn with FromSlice yields
// a document equal to the one built from the live stream.
package transcript
