package anchor

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// normalizedView returns the canonical form of the linearized DOM text
// together with a table translating normalized byte offsets back to raw
// ones. The table is nil when the text is already canonical, the common
// case.
//
// A DOM surface is not guaranteed to hold canonical text: pasted content
// can carry decomposed sequences or CR newlines, while the locator always
// speaks offsets into the normalized form. toRaw[i] holds the raw offset
// of normalized offset i, with len(normalized)+1 entries so range ends map
// too. Offsets inside a recomposed segment map to the segment start, so a
// translated range always covers whole clusters of the raw text.
func normalizedView(raw string) (string, []int) {
	if !strings.ContainsRune(raw, '\r') && norm.NFC.IsNormalString(raw) {
		return raw, nil
	}

	nlToRaw := make([]int, 0, len(raw)+1)
	var nl strings.Builder
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c == '\r' {
			nlToRaw = append(nlToRaw, i)
			nl.WriteByte('\n')
			if i+1 < len(raw) && raw[i+1] == '\n' {
				i++
			}
			continue
		}
		nlToRaw = append(nlToRaw, i)
		nl.WriteByte(c)
	}
	nlToRaw = append(nlToRaw, len(raw))
	nlStr := nl.String()

	var it norm.Iter
	it.InitString(norm.NFC, nlStr)
	var out strings.Builder
	out.Grow(len(nlStr))
	toRaw := make([]int, 0, len(nlStr)+1)
	for !it.Done() {
		segStart := it.Pos()
		seg := it.Next()
		if string(seg) == nlStr[segStart:it.Pos()] {
			for j := range seg {
				toRaw = append(toRaw, nlToRaw[segStart+j])
			}
		} else {
			for range seg {
				toRaw = append(toRaw, nlToRaw[segStart])
			}
		}
		out.Write(seg)
	}
	toRaw = append(toRaw, len(raw))

	text := out.String()
	if text == raw {
		return raw, nil
	}
	return text, toRaw
}
