/*
Package locate re-finds span quotes inside prompt text that may have
drifted since labeling.

Offsets carried on a span are hints, not guarantees: the prompt may have
been re-normalized, edited around the span, or streamed in since the
labeling pass stamped them. Locate runs a tiered search, cheapest first:

 1. literal check at the hinted offset
 2. literal global search (nearest occurrence to the hint wins)
 3. context-assisted search using the span's captured left/right context,
    then a diff-match-patch fuzzy pass as the last resort

A miss returns nil. Callers never get an invented offset; rendering skips
the span and edits abort instead.
*/
package locate

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/bastiangx/spanserve/pkg/textnorm"
)

// NoHint marks Options.PreferIndex as unset.
const NoHint = -1

// fuzzyFloor is the minimum similarity ratio a fuzzy candidate must reach
// before it is reported as a match.
const fuzzyFloor = 0.75

// Match is a resolved quote range inside the normalized haystack.
// Exact is false when the range was recovered through context-assisted or
// fuzzy search rather than literal lookup.
type Match struct {
	Start      int
	End        int
	Exact      bool
	Confidence float64
}

// Options tune a single Locate call.
type Options struct {
	// PreferIndex is a previously known start offset to try first and to
	// disambiguate between multiple occurrences. Use NoHint when unknown.
	PreferIndex int
	// LeftCtx and RightCtx are short snippets captured around the quote at
	// labeling time, used for recovery when the literal search misses.
	LeftCtx  string
	RightCtx string
}

// DefaultOptions returns Options with no hint and no context.
func DefaultOptions() Options {
	return Options{PreferIndex: NoHint}
}

// Locate finds the best range for quote inside haystack. Both inputs are
// normalized before matching, so the returned offsets index the normalized
// haystack. Returns nil when no acceptable match exists.
func Locate(haystack, quote string, opts Options) *Match {
	haystack = textnorm.Normalize(haystack)
	quote = textnorm.Normalize(quote)
	if haystack == "" || quote == "" || len(quote) > len(haystack) {
		return nil
	}

	hint := opts.PreferIndex

	// Tier 1: literal slice at the hinted offset. The common case of an
	// unedited document resolves here in O(len(quote)).
	if hint >= 0 && hint+len(quote) <= len(haystack) {
		if haystack[hint:hint+len(quote)] == quote {
			return &Match{Start: hint, End: hint + len(quote), Exact: true, Confidence: 1.0}
		}
	}

	// Tier 2: literal global search.
	if start := nearestOccurrence(haystack, quote, hint); start >= 0 {
		return &Match{Start: start, End: start + len(quote), Exact: true, Confidence: 1.0}
	}

	// Tier 3: context-assisted recovery.
	if m := contextMatch(haystack, quote, opts); m != nil {
		return m
	}
	return fuzzyMatch(haystack, quote, hint)
}

// nearestOccurrence returns the occurrence of quote closest to hint, or
// the first occurrence when hint is unset. Ties (equidistant occurrences)
// resolve to the earlier one so results stay reproducible. Returns -1 when
// quote does not occur.
func nearestOccurrence(haystack, quote string, hint int) int {
	first := strings.Index(haystack, quote)
	if first < 0 {
		return -1
	}
	if hint < 0 {
		return first
	}
	best := first
	bestDist := absInt(first - hint)
	for from := first + 1; from <= len(haystack)-len(quote); {
		idx := strings.Index(haystack[from:], quote)
		if idx < 0 {
			break
		}
		at := from + idx
		if d := absInt(at - hint); d < bestDist {
			best, bestDist = at, d
		}
		if at >= hint {
			// Occurrences only move further away from here on.
			break
		}
		from = at + 1
	}
	return best
}

// contextMatch searches for leftCtx+quote+rightCtx composites, shrinking
// the context fragments step by step so that edits near the span, but not
// inside it, still anchor the quote.
func contextMatch(haystack, quote string, opts Options) *Match {
	left := textnorm.Normalize(opts.LeftCtx)
	right := textnorm.Normalize(opts.RightCtx)
	if left == "" && right == "" {
		return nil
	}

	for _, frac := range []int{1, 2, 4} {
		lf := tailFragment(left, len(left)/frac)
		rf := headFragment(right, len(right)/frac)
		if lf == "" && rf == "" {
			continue
		}
		composite := lf + quote + rf
		if idx := strings.Index(haystack, composite); idx >= 0 {
			start := idx + len(lf)
			return &Match{Start: start, End: start + len(quote), Exact: false, Confidence: 0.9}
		}
		// One-sided fallbacks: an edit may have destroyed one side only.
		if lf != "" {
			if idx := strings.Index(haystack, lf+quote); idx >= 0 {
				start := idx + len(lf)
				return &Match{Start: start, End: start + len(quote), Exact: false, Confidence: 0.85}
			}
		}
		if rf != "" {
			if idx := strings.Index(haystack, quote+rf); idx >= 0 {
				return &Match{Start: idx, End: idx + len(quote), Exact: false, Confidence: 0.85}
			}
		}
	}
	return nil
}

// fuzzyMatch is the last tier: bitap-based approximate search. The result
// window is snapped to grapheme boundaries and verified against a
// similarity floor so a bad guess never leaks out as a match.
func fuzzyMatch(haystack, quote string, hint int) *Match {
	dmp := diffmatchpatch.New()
	loc := hint
	if loc < 0 {
		loc = 0
	}

	// Bitap is limited to MatchMaxBits pattern bytes. Longer quotes are
	// anchored by a boundary-safe prefix and extended to full length.
	pattern := quote
	if len(pattern) > dmp.MatchMaxBits {
		pattern = quote[:textnorm.SnapToBoundary(quote, dmp.MatchMaxBits)]
		if pattern == "" {
			return nil
		}
	}

	idx := dmp.MatchMain(haystack, pattern, loc)
	if idx < 0 {
		return nil
	}

	start := textnorm.SnapToBoundary(haystack, idx)
	end := textnorm.SnapToBoundary(haystack, minInt(start+len(quote), len(haystack)))
	if start >= end {
		return nil
	}

	window := haystack[start:end]
	sim := similarity(dmp, window, quote)
	if sim < fuzzyFloor {
		return nil
	}
	return &Match{Start: start, End: end, Exact: false, Confidence: sim}
}

// similarity returns the fraction of quote preserved in window, derived
// from the diff between the two.
func similarity(dmp *diffmatchpatch.DiffMatchPatch, window, quote string) float64 {
	diffs := dmp.DiffMain(window, quote, false)
	common := 0
	for _, d := range diffs {
		if d.Type == diffmatchpatch.DiffEqual {
			common += len(d.Text)
		}
	}
	denom := maxInt(len(window), len(quote))
	if denom == 0 {
		return 0
	}
	return float64(common) / float64(denom)
}

// tailFragment returns the trailing n bytes of s snapped to a grapheme
// boundary.
func tailFragment(s string, n int) string {
	if n <= 0 || s == "" {
		return ""
	}
	if n >= len(s) {
		return s
	}
	return s[textnorm.SnapToBoundary(s, len(s)-n):]
}

// headFragment returns the leading n bytes of s snapped to a grapheme
// boundary.
func headFragment(s string, n int) string {
	if n <= 0 || s == "" {
		return ""
	}
	if n >= len(s) {
		return s
	}
	return s[:textnorm.SnapToBoundary(s, n)]
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
