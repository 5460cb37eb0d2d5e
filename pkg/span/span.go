/*
Package span defines the labeled-substring model shared by every SpanServe
component.

A span is a substring of the prompt with a semantic role, a confidence
score, and the character offsets it had when the labeling pass saw the
text. Offsets decay as the user edits; consumers treat them as hints and
re-derive the live range through the locate package before acting.
*/
package span

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bastiangx/spanserve/pkg/textnorm"
)

// Source provenance tags.
const (
	SourceLexicon = "lexicon"
	SourceModel   = "model"
)

// Categories is the closed taxonomy of semantic roles a span may carry.
var Categories = []string{
	"subject", "action", "setting", "lighting",
	"camera", "style", "mood", "color",
}

// Span is a labeled substring of the normalized prompt text.
type Span struct {
	ID             string  `json:"id" msgpack:"id"`
	Quote          string  `json:"text" msgpack:"text"`
	Start          int     `json:"start" msgpack:"start"`
	End            int     `json:"end" msgpack:"end"`
	Category       string  `json:"category" msgpack:"category"`
	Source         string  `json:"source" msgpack:"source"`
	Confidence     float64 `json:"confidence" msgpack:"confidence"`
	LeftCtx        string  `json:"leftCtx,omitempty" msgpack:"left_ctx,omitempty"`
	RightCtx       string  `json:"rightCtx,omitempty" msgpack:"right_ctx,omitempty"`
	IdempotencyKey string  `json:"idempotencyKey,omitempty" msgpack:"idempotency_key,omitempty"`
	ValidatorPass  bool    `json:"validatorPass" msgpack:"validator_pass"`
}

// DeriveKey computes the idempotency key from quote and position, used to
// dedupe spans across repeated extraction and validation passes.
func (s *Span) DeriveKey() string {
	return textnorm.Hash(fmt.Sprintf("%s::%d::%d", s.Quote, s.Start, s.End))
}

// KnownCategory reports whether c is in the taxonomy.
func KnownCategory(c string) bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Validate runs the structural checks a span must pass before rendering:
// sane offsets against the given text length, a non-blank quote, a known
// category, and a confidence inside [0,1]. It returns the first problem
// found, or nil, and stamps ValidatorPass and the idempotency key.
func (s *Span) Validate(textLen int) error {
	s.ValidatorPass = false
	switch {
	case s.ID == "":
		return fmt.Errorf("span missing id")
	case strings.TrimSpace(s.Quote) == "":
		return fmt.Errorf("span %s: blank quote", s.ID)
	case s.Start < 0 || s.End <= s.Start || s.End > textLen:
		return fmt.Errorf("span %s: offsets [%d,%d) out of range for text length %d", s.ID, s.Start, s.End, textLen)
	case !KnownCategory(s.Category):
		return fmt.Errorf("span %s: unknown category %q", s.ID, s.Category)
	case s.Confidence < 0 || s.Confidence > 1:
		return fmt.Errorf("span %s: confidence %v outside [0,1]", s.ID, s.Confidence)
	}
	if s.Source == "" {
		s.Source = SourceModel
	}
	if s.IdempotencyKey == "" {
		s.IdempotencyKey = s.DeriveKey()
	}
	s.ValidatorPass = true
	return nil
}

// ResolveOverlaps returns the spans ordered by start offset with overlaps
// removed: when two spans share characters the higher-confidence one
// survives, earlier span winning ties. The renderer requires this
// precondition (allowOverlap=false).
func ResolveOverlaps(spans []Span) []Span {
	if len(spans) < 2 {
		return spans
	}
	ordered := make([]Span, len(spans))
	copy(ordered, spans)
	sortByStart(ordered)

	kept := ordered[:0]
	for _, s := range ordered {
		if len(kept) == 0 {
			kept = append(kept, s)
			continue
		}
		last := &kept[len(kept)-1]
		if s.Start >= last.End {
			kept = append(kept, s)
			continue
		}
		if s.Confidence > last.Confidence {
			*last = s
		}
	}
	out := make([]Span, len(kept))
	copy(out, kept)
	return out
}

func sortByStart(spans []Span) {
	sort.SliceStable(spans, func(i, j int) bool {
		if spans[i].Start != spans[j].Start {
			return spans[i].Start < spans[j].Start
		}
		return spans[i].End < spans[j].End
	})
}
