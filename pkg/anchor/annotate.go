package anchor

import (
	"fmt"
	"sort"

	"github.com/charmbracelet/log"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/bastiangx/spanserve/pkg/locate"
	"github.com/bastiangx/spanserve/pkg/span"
)

// WrapperClass marks every highlight element SpanServe renders.
const WrapperClass = "spanserve-hl"

// Annotate relocates each span inside the tree's text and wraps the
// resolved ranges in highlight elements. Spans must arrive ordered and
// non-overlapping (span.ResolveOverlaps enforces this upstream). A span
// whose quote no longer resolves, or whose range cannot be wrapped, is
// skipped with a warning; one bad span never aborts the pass.
//
// Returns the number of spans actually rendered.
func Annotate(root *html.Node, spans []span.Span, cache *locate.Cache) int {
	ix := BuildIndex(root)
	if ix.Total == 0 {
		return 0
	}
	// The locator's offsets are into the canonical text; the index's are
	// into whatever bytes the DOM actually holds. toRaw bridges the two
	// when they differ.
	text, toRaw := normalizedView(ix.Text())

	rendered := 0
	for i := range spans {
		s := &spans[i]
		opts := locate.Options{PreferIndex: s.Start, LeftCtx: s.LeftCtx, RightCtx: s.RightCtx}
		m := locate.CachedLocate(cache, text, s.Quote, opts)
		if m == nil {
			log.Warnf("Span %s: quote %q no longer resolves, skipping", s.ID, s.Quote)
			continue
		}
		start, end := m.Start, m.End
		if toRaw != nil {
			start, end = toRaw[start], toRaw[end]
		}
		if err := wrapRange(ix, start, end, s); err != nil {
			log.Warnf("Span %s: %v, skipping", s.ID, err)
			continue
		}
		rendered++
	}
	return rendered
}

// wrapRange wraps [start, end) of the linearized text in highlight
// elements, one per covered node slice, and updates the index's working
// records so later wraps in the same sweep see fresh boundaries.
func wrapRange(ix *NodeIndex, start, end int, s *span.Span) error {
	if start < 0 || end > ix.Total || start >= end {
		return fmt.Errorf("range [%d,%d) out of bounds", start, end)
	}
	covered := ix.covering(start, end)
	if len(covered) == 0 {
		return fmt.Errorf("range [%d,%d) covers no text node", start, end)
	}
	for _, i := range covered {
		if ix.Records[i].Node.Parent == nil {
			return fmt.Errorf("text node at offset %d is detached", ix.Records[i].Start)
		}
	}

	// Wrap back to front so earlier record indices stay stable while the
	// slice grows.
	for n := len(covered) - 1; n >= 0; n-- {
		i := covered[n]
		rec := ix.Records[i]
		localStart := maxInt(start, rec.Start) - rec.Start
		localEnd := minInt(end, rec.Start+rec.Length) - rec.Start
		replaceWithWrapped(ix, i, localStart, localEnd, s)
	}
	return nil
}

// replaceWithWrapped splits record i's text node at [localStart, localEnd)
// and wraps the middle slice in a highlight element. The record is
// replaced by records for the resulting prefix, wrapped, and suffix nodes;
// linear offsets are untouched because the flattened text is unchanged.
func replaceWithWrapped(ix *NodeIndex, i, localStart, localEnd int, s *span.Span) {
	rec := ix.Records[i]
	parent := rec.Node.Parent
	data := rec.Node.Data

	var fresh []NodeRecord
	var nodes []*html.Node

	if localStart > 0 {
		prefix := &html.Node{Type: html.TextNode, Data: data[:localStart]}
		nodes = append(nodes, prefix)
		fresh = append(fresh, NodeRecord{Node: prefix, Start: rec.Start, Length: localStart})
	}

	mid := &html.Node{Type: html.TextNode, Data: data[localStart:localEnd]}
	mark := newWrapper(s)
	mark.AppendChild(mid)
	nodes = append(nodes, mark)
	fresh = append(fresh, NodeRecord{Node: mid, Start: rec.Start + localStart, Length: localEnd - localStart})

	if localEnd < len(data) {
		suffix := &html.Node{Type: html.TextNode, Data: data[localEnd:]}
		nodes = append(nodes, suffix)
		fresh = append(fresh, NodeRecord{Node: suffix, Start: rec.Start + localEnd, Length: len(data) - localEnd})
	}

	for _, n := range nodes {
		parent.InsertBefore(n, rec.Node)
	}
	parent.RemoveChild(rec.Node)

	ix.Records = append(ix.Records[:i], append(fresh, ix.Records[i+1:]...)...)
}

// newWrapper builds the highlight element carrying the span's metadata as
// data attributes. Attributes are emitted in sorted order so rendered
// output is reproducible.
func newWrapper(s *span.Span) *html.Node {
	attrs := s.Attrs()
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	n := &html.Node{
		Type:     html.ElementNode,
		Data:     "mark",
		DataAtom: atom.Mark,
		Attr:     []html.Attribute{{Key: "class", Val: WrapperClass}},
	}
	for _, k := range keys {
		n.Attr = append(n.Attr, html.Attribute{Key: k, Val: attrs[k]})
	}
	return n
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
