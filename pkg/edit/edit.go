/*
Package edit synthesizes the text mutation behind a suggestion click.

Apply is the single place a user-visible prompt change from the highlight
UI is produced. It is pure: the caller commits the returned prompt to
application state and owns undo bookkeeping.
*/
package edit

import (
	"strings"

	"github.com/charmbracelet/log"

	"github.com/bastiangx/spanserve/pkg/locate"
	"github.com/bastiangx/spanserve/pkg/span"
	"github.com/bastiangx/spanserve/pkg/textnorm"
)

// Edit kinds.
const (
	ReplaceSpanText = "replaceSpanText"
	RemoveSpan      = "removeSpan"
)

// Edit describes the requested operation.
type Edit struct {
	Type            string `json:"type" msgpack:"type"`
	ReplacementText string `json:"replacementText,omitempty" msgpack:"replacement_text,omitempty"`
	// AnchorQuote is the last-resort quote when the span carries none.
	AnchorQuote string `json:"anchorQuote,omitempty" msgpack:"anchor_quote,omitempty"`
}

// Request bundles the inputs to Apply.
type Request struct {
	Prompt string
	Edit   Edit
	Span   *span.Span
	// Cache, when set, memoizes the relocation lookup.
	Cache *locate.Cache
}

// Result carries the outcome. UpdatedPrompt is nil when the edit was a
// no-op: empty prompt, no derivable quote, locator miss, or an edit that
// would reproduce the input text. MatchStart/MatchEnd hold the located
// range whenever the locator succeeded, even on a suppressed no-op.
type Result struct {
	UpdatedPrompt *string
	MatchStart    int
	MatchEnd      int
}

// Apply computes the edited prompt. It never fails; every precondition
// violation degrades to a nil UpdatedPrompt.
func Apply(req Request) Result {
	none := Result{MatchStart: -1, MatchEnd: -1}

	prompt := textnorm.Normalize(req.Prompt)
	if prompt == "" {
		return none
	}

	quote := deriveQuote(req)
	if strings.TrimSpace(quote) == "" {
		log.Debug("Edit skipped: no derivable quote")
		return none
	}

	opts := locate.DefaultOptions()
	if req.Span != nil {
		opts.PreferIndex = req.Span.Start
		opts.LeftCtx = req.Span.LeftCtx
		opts.RightCtx = req.Span.RightCtx
	}
	m := locate.CachedLocate(req.Cache, prompt, quote, opts)
	if m == nil {
		log.Debugf("Edit skipped: quote %q not found", quote)
		return none
	}

	var replacement string
	switch req.Edit.Type {
	case ReplaceSpanText:
		replacement = req.Edit.ReplacementText
	case RemoveSpan:
		replacement = ""
	default:
		log.Warnf("Unknown edit type %q", req.Edit.Type)
		return none
	}

	updated := prompt[:m.Start] + replacement + prompt[m.End:]
	if updated == prompt {
		// Replacing a span with itself must not generate a spurious
		// re-render or history entry.
		return Result{MatchStart: m.Start, MatchEnd: m.End}
	}
	return Result{UpdatedPrompt: &updated, MatchStart: m.Start, MatchEnd: m.End}
}

// deriveQuote picks the quote to relocate, first non-empty wins:
// span quote, then the edit's anchor quote.
func deriveQuote(req Request) string {
	if req.Span != nil && req.Span.Quote != "" {
		return req.Span.Quote
	}
	return req.Edit.AnchorQuote
}
