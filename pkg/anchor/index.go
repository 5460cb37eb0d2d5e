/*
Package anchor renders span highlights into the editable surface's DOM
tree without disturbing unhighlighted text.

The tree is an x/net/html node tree mirroring the client's editable
surface. Rendering works against an index of text-node boundaries built
once per pass: each wrap splits text nodes and the index's working copy is
updated in place, so linear offsets stay valid across every wrap applied
in the same sweep. Live node pointers are never trusted across passes.
*/
package anchor

import (
	"strings"

	"golang.org/x/net/html"
)

// NodeRecord ties one DOM text node to its place in the linearized text.
type NodeRecord struct {
	Node   *html.Node
	Start  int // linear byte offset of the node's first byte
	Length int
}

// NodeIndex is an ordered snapshot of the text-node sequence. Ephemeral:
// rebuilt on every render pass, never reused across structural mutations
// from outside the pass that built it.
type NodeIndex struct {
	Records []NodeRecord
	Total   int
}

// BuildIndex walks the tree in document order and accumulates text-node
// boundaries. Script and style subtrees are not part of the editable text
// and are skipped.
func BuildIndex(root *html.Node) *NodeIndex {
	ix := &NodeIndex{}
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode && n.Data != "" {
			ix.Records = append(ix.Records, NodeRecord{Node: n, Start: ix.Total, Length: len(n.Data)})
			ix.Total += len(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	if root != nil {
		walk(root)
	}
	return ix
}

// Text returns the linearized text the index was built over.
func (ix *NodeIndex) Text() string {
	var b strings.Builder
	b.Grow(ix.Total)
	for _, rec := range ix.Records {
		b.WriteString(rec.Node.Data)
	}
	return b.String()
}

// covering returns the indices of records overlapping [start, end).
func (ix *NodeIndex) covering(start, end int) []int {
	var out []int
	for i, rec := range ix.Records {
		if rec.Start+rec.Length <= start {
			continue
		}
		if rec.Start >= end {
			break
		}
		out = append(out, i)
	}
	return out
}
