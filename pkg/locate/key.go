package locate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bastiangx/spanserve/pkg/textnorm"
)

// LookupKey builds the position-cache key for one Locate call. Text and
// quote enter as content hashes so two different documents can never
// collide, and any change to either invalidates the entry by construction.
func LookupKey(haystack, quote string, opts Options) string {
	return strings.Join([]string{
		textnorm.Hash(haystack),
		textnorm.Hash(quote),
		fmt.Sprintf("%d", opts.PreferIndex),
		textnorm.Hash(opts.LeftCtx),
		textnorm.Hash(opts.RightCtx),
	}, "::")
}

// RequestKey builds the labeling-cache key shared with the backend: an
// ordered ::-joined tuple of the request parameters plus a derived text
// id. Identical effective parameters produce identical keys; any
// difference produces a different key.
func RequestKey(maxSpans int, minConfidence float64, templateVersion string, policy map[string]string, textID, text string) string {
	return strings.Join([]string{
		fmt.Sprintf("%d", maxSpans),
		fmt.Sprintf("%g", minConfidence),
		templateVersion,
		serializePolicy(policy),
		derivedTextID(textID, text),
	}, "::")
}

// serializePolicy flattens a policy map deterministically: sorted keys,
// k=v pairs joined by commas.
func serializePolicy(policy map[string]string) string {
	if len(policy) == 0 {
		return "default"
	}
	keys := make([]string, 0, len(policy))
	for k := range policy {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+policy[k])
	}
	return strings.Join(pairs, ",")
}

func derivedTextID(textID, text string) string {
	h := textnorm.Hash(textnorm.Normalize(text))
	if textID == "" {
		return h
	}
	return textID + "-" + h
}
