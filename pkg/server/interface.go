/*
Package server implements msgpack IPC for span anchoring services.

The server package provides a minimal interface for prompt span labeling,
relocation, editing and highlight rendering using msgpack serialization
over stdin/stdout.

Each message contains an ID field, a command name, and the fields that
command needs. Messages are processed synchronously except for reveal
events, which arrive as the progressive reveal tiers fire.

# IPC

Label the current prompt:

	{"id": "req_001", "cmd": "label", "text": "a cat at golden hour"}

The response carries the merged lexicon and model spans; the delayed
tiers follow as reveal events on the same stream:

	{"id": "req_001", "status": "ok", "spans": [...], "cache_key": "..."}
	{"id": "req_001", "event": "reveal", "tier": "medium", "spans": [...], "progress": 66}

Relocate a quote:

	{"id": "req_002", "cmd": "locate", "text": "...", "quote": "golden hour", "prefer_index": 9}

Apply a suggestion click:

	{"id": "req_003", "cmd": "apply_edit", "text": "...", "edit": {"type": "replaceSpanText", "replacement_text": "dusk"}, "span": {...}}

Annotate the editable surface's HTML:

	{"id": "req_004", "cmd": "annotate", "html": "<div>...</div>", "spans": [...]}

Other commands: "suggest" (proxied replacement suggestions; a newer
suggest supersedes an in-flight one silently), "focus" (scroll-to-span
directive), "cache_stats", "config" (runtime reveal threshold updates and
version-stamp cache invalidation), "health".
*/
package server

import (
	"github.com/bastiangx/spanserve/pkg/anchor"
	"github.com/bastiangx/spanserve/pkg/edit"
	"github.com/bastiangx/spanserve/pkg/span"
)

// Request is the envelope for every incoming message.
type Request struct {
	ID  string `msgpack:"id"`
	Cmd string `msgpack:"cmd"`

	Text        string      `msgpack:"text,omitempty"`
	TextID      string      `msgpack:"text_id,omitempty"`
	Quote       string      `msgpack:"quote,omitempty"`
	PreferIndex *int        `msgpack:"prefer_index,omitempty"`
	LeftCtx     string      `msgpack:"left_ctx,omitempty"`
	RightCtx    string      `msgpack:"right_ctx,omitempty"`
	HTML        string      `msgpack:"html,omitempty"`
	Spans       []span.Span `msgpack:"spans,omitempty"`
	Span        *span.Span  `msgpack:"span,omitempty"`
	Edit        *edit.Edit  `msgpack:"edit,omitempty"`
	SpanID      string      `msgpack:"span_id,omitempty"`

	// Suggest fields.
	ContextBefore string `msgpack:"context_before,omitempty"`
	ContextAfter  string `msgpack:"context_after,omitempty"`

	// Config fields.
	TemplateVersion *string  `msgpack:"template_version,omitempty"`
	HighThreshold   *float64 `msgpack:"high_threshold,omitempty"`
	MediumThreshold *float64 `msgpack:"medium_threshold,omitempty"`
}

// ErrorResponse reports a failed command.
type ErrorResponse struct {
	ID    string `msgpack:"id"`
	Error string `msgpack:"e"`
	Code  int    `msgpack:"c"`
}

// LabelResponse answers a label command with the immediately visible
// high tier; the rest arrives as RevealEvents.
type LabelResponse struct {
	ID       string      `msgpack:"id"`
	Status   string      `msgpack:"status"`
	Spans    []span.Span `msgpack:"spans"`
	Count    int         `msgpack:"count"`
	CacheKey string      `msgpack:"cache_key,omitempty"`
	// Warning carries a failed model pass: Status is "degraded", the
	// spans are the local lexicon's, and WarningKind is the classified
	// error kind ("timeout", "cancelled", "error").
	Warning     string `msgpack:"warning,omitempty"`
	WarningKind string `msgpack:"warning_kind,omitempty"`
	TimeMs      int64  `msgpack:"t"`
}

// RevealEvent delivers a delayed confidence tier.
type RevealEvent struct {
	ID       string      `msgpack:"id"`
	Event    string      `msgpack:"event"`
	Tier     string      `msgpack:"tier"`
	Spans    []span.Span `msgpack:"spans"`
	Progress int         `msgpack:"progress"`
}

// LocateResponse answers a locate command. Found is false on a miss;
// offsets are only meaningful when Found is true.
type LocateResponse struct {
	ID         string  `msgpack:"id"`
	Found      bool    `msgpack:"found"`
	Start      int     `msgpack:"start"`
	End        int     `msgpack:"end"`
	Exact      bool    `msgpack:"exact"`
	Confidence float64 `msgpack:"confidence"`
}

// ApplyEditResponse answers an apply_edit command. UpdatedPrompt is nil
// when the edit degraded to a no-op.
type ApplyEditResponse struct {
	ID            string  `msgpack:"id"`
	UpdatedPrompt *string `msgpack:"updated_prompt"`
	MatchStart    int     `msgpack:"match_start"`
	MatchEnd      int     `msgpack:"match_end"`
}

// AnnotateResponse returns the highlight-wrapped HTML.
type AnnotateResponse struct {
	ID       string `msgpack:"id"`
	HTML     string `msgpack:"html"`
	Rendered int    `msgpack:"rendered"`
	Skipped  int    `msgpack:"skipped"`
}

// SuggestEvent delivers the result of the newest suggest command.
// Superseded fetches produce no event at all.
type SuggestEvent struct {
	ID            string   `msgpack:"id"`
	Event         string   `msgpack:"event"`
	Suggestions   []string `msgpack:"suggestions"`
	IsPlaceholder bool     `msgpack:"is_placeholder"`
	ErrorKind     string   `msgpack:"error_kind,omitempty"`
	Error         string   `msgpack:"error,omitempty"`
}

// FocusResponse carries the scroll directive for a rendered span.
type FocusResponse struct {
	ID     string               `msgpack:"id"`
	Found  bool                 `msgpack:"found"`
	Target *anchor.ScrollTarget `msgpack:"target,omitempty"`
}

// StatsResponse reports position cache counters.
type StatsResponse struct {
	ID    string           `msgpack:"id"`
	Stats map[string]int64 `msgpack:"stats"`
}

// StatusResponse answers config and health commands.
type StatusResponse struct {
	ID     string `msgpack:"id"`
	Status string `msgpack:"status"`
}
