/*
Package textnorm canonicalizes prompt text before any offset is computed.

Every offset in SpanServe is a byte offset into the NFC-normalized form of
the prompt. Normalization happens exactly once at each ingress point
(labeling, locate, edit, annotate) so that visually identical but
differently encoded characters always land on identical offsets.
*/
package textnorm

import (
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/rivo/uniseg"
	"golang.org/x/text/unicode/norm"
)

// Normalize returns the canonical form of text: Unicode NFC composition
// with CRLF and lone CR collapsed to LF. Idempotent, never fails.
func Normalize(text string) string {
	if text == "" {
		return ""
	}
	if strings.ContainsRune(text, '\r') {
		text = strings.ReplaceAll(text, "\r\n", "\n")
		text = strings.ReplaceAll(text, "\r", "\n")
	}
	if norm.NFC.IsNormalString(text) {
		return text
	}
	return norm.NFC.String(text)
}

// IsBoundary reports whether byte offset i falls on a grapheme cluster
// boundary of s. Offsets 0 and len(s) are always boundaries.
func IsBoundary(s string, i int) bool {
	if i <= 0 || i >= len(s) {
		return i == 0 || i == len(s)
	}
	state := -1
	rest := s
	pos := 0
	for len(rest) > 0 {
		if pos == i {
			return true
		}
		if pos > i {
			return false
		}
		var cluster string
		cluster, rest, _, state = uniseg.FirstGraphemeClusterInString(rest, state)
		pos += len(cluster)
	}
	return pos == i
}

// SnapToBoundary returns the nearest grapheme cluster boundary at or
// before byte offset i. Out-of-range offsets clamp to [0, len(s)].
func SnapToBoundary(s string, i int) int {
	if i <= 0 {
		return 0
	}
	if i >= len(s) {
		return len(s)
	}
	state := -1
	rest := s
	pos := 0
	for len(rest) > 0 {
		var cluster string
		cluster, rest, _, state = uniseg.FirstGraphemeClusterInString(rest, state)
		if pos+len(cluster) > i {
			return pos
		}
		pos += len(cluster)
	}
	return pos
}

// GraphemeCount returns the number of grapheme clusters in s.
func GraphemeCount(s string) int {
	return uniseg.GraphemeClusterCount(s)
}

// Hash returns a short stable content hash of s, used to derive cache
// keys and text ids. Not cryptographic.
func Hash(s string) string {
	h := fnv.New64a()
	h.Write([]byte(s))
	return fmt.Sprintf("%x", h.Sum64())
}
