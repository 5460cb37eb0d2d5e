/*
Package lexicon produces the lexicon-matched span source.

A patricia trie maps known taxonomy terms (golden hour, wide angle, ...)
to their category. Scanning the normalized prompt against it yields spans
without a network round trip; the labeling service's model-inferred spans
complement these and the idempotency key dedupes the overlap.
*/
package lexicon

import (
	"strings"
	"unicode"

	"github.com/google/uuid"
	"github.com/tchap/go-patricia/v2/patricia"

	"github.com/bastiangx/spanserve/pkg/span"
	"github.com/bastiangx/spanserve/pkg/textnorm"
)

// DefaultConfidence is stamped on every lexicon span: high, because the
// term was matched literally, but below model certainty 1.0 since the
// lexicon has no view of the surrounding meaning.
const DefaultConfidence = 0.85

// maxTermWords bounds multi-word term lookup.
const maxTermWords = 4

// ctxBytes is how much surrounding text is captured as relocation context.
const ctxBytes = 24

// Matcher scans prompt text for known taxonomy terms.
type Matcher struct {
	trie       *patricia.Trie // lowercased term -> category
	confidence float64
	terms      int
}

// NewMatcher creates an empty Matcher stamping confidence on its spans.
// A confidence of 0 or less falls back to DefaultConfidence.
func NewMatcher(confidence float64) *Matcher {
	if confidence <= 0 {
		confidence = DefaultConfidence
	}
	return &Matcher{trie: patricia.NewTrie(), confidence: confidence}
}

// AddTerm registers a term under a category. Terms are matched
// case-insensitively; unknown categories are rejected by span validation
// later, not here, so lexicon files can ship ahead of taxonomy updates.
func (m *Matcher) AddTerm(term, category string) {
	term = strings.ToLower(strings.TrimSpace(textnorm.Normalize(term)))
	if term == "" || category == "" {
		return
	}
	if m.trie.Insert(patricia.Prefix(term), category) {
		m.terms++
	}
}

// Len returns the number of registered terms.
func (m *Matcher) Len() int {
	return m.terms
}

// wordRef is one word of the prompt with its byte offsets.
type wordRef struct {
	start, end int
}

// Match scans text and returns lexicon spans, longest term winning at
// each position, non-overlapping by construction. Offsets index the
// normalized text.
func (m *Matcher) Match(text string) []span.Span {
	text = textnorm.Normalize(text)
	if text == "" || m.terms == 0 {
		return nil
	}
	words := splitWords(text)

	var out []span.Span
	for i := 0; i < len(words); {
		matched := 0
		var matchedCategory string
		limit := minInt(maxTermWords, len(words)-i)
		for k := limit; k >= 1; k-- {
			candidate := strings.ToLower(text[words[i].start:words[i+k-1].end])
			if item := m.trie.Get(patricia.Prefix(candidate)); item != nil {
				matched = k
				matchedCategory = item.(string)
				break
			}
		}
		if matched == 0 {
			i++
			continue
		}

		start := words[i].start
		end := words[i+matched-1].end
		s := span.Span{
			ID:         uuid.NewString(),
			Quote:      text[start:end],
			Start:      start,
			End:        end,
			Category:   matchedCategory,
			Source:     span.SourceLexicon,
			Confidence: m.confidence,
			LeftCtx:    ctxBefore(text, start),
			RightCtx:   ctxAfter(text, end),
		}
		s.IdempotencyKey = s.DeriveKey()
		s.ValidatorPass = true
		out = append(out, s)
		i += matched
	}
	return out
}

// splitWords finds letter/digit runs with their byte offsets.
func splitWords(text string) []wordRef {
	var words []wordRef
	start := -1
	for i, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			words = append(words, wordRef{start: start, end: i})
			start = -1
		}
	}
	if start >= 0 {
		words = append(words, wordRef{start: start, end: len(text)})
	}
	return words
}

func ctxBefore(text string, at int) string {
	from := at - ctxBytes
	if from < 0 {
		from = 0
	}
	return text[textnorm.SnapToBoundary(text, from):at]
}

func ctxAfter(text string, at int) string {
	to := at + ctxBytes
	if to > len(text) {
		to = len(text)
	}
	return text[at:textnorm.SnapToBoundary(text, to)]
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
