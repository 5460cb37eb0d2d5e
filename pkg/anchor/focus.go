package anchor

import (
	"github.com/charmbracelet/log"
	"golang.org/x/net/html"

	"github.com/bastiangx/spanserve/pkg/span"
)

// PulseClass is the transient class the client applies to a focused
// wrapper; DefaultPulseMS is how long it stays before self-removal.
const (
	PulseClass     = "spanserve-pulse"
	DefaultPulseMS = 1200
)

// ScrollTarget tells the editor client how to bring a span into view.
// The server cannot scroll a browser; it emits this directive and the
// client executes it: smooth-scroll the wrapper to viewport center, apply
// PulseClass, remove it after PulseMS. No persistent state changes.
type ScrollTarget struct {
	SpanID     string `json:"spanId" msgpack:"span_id"`
	Behavior   string `json:"behavior" msgpack:"behavior"`
	Block      string `json:"block" msgpack:"block"`
	PulseClass string `json:"pulseClass" msgpack:"pulse_class"`
	PulseMS    int    `json:"pulseMs" msgpack:"pulse_ms"`
}

// Focus locates the rendered wrapper for id and returns its scroll
// directive, or nil when no wrapper with that id exists in the tree.
func Focus(root *html.Node, id string) *ScrollTarget {
	if FindWrapper(root, id) == nil {
		log.Debugf("Focus: no wrapper rendered for span %s", id)
		return nil
	}
	return &ScrollTarget{
		SpanID:     id,
		Behavior:   "smooth",
		Block:      "center",
		PulseClass: PulseClass,
		PulseMS:    DefaultPulseMS,
	}
}

// FindWrapper returns the first highlight element carrying the span id,
// in document order.
func FindWrapper(root *html.Node, id string) *html.Node {
	var found *html.Node
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if found != nil {
			return
		}
		if n.Type == html.ElementNode && attrValue(n, span.AttrID) == id {
			found = n
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	if root != nil {
		walk(root)
	}
	return found
}

// CollectWrapped rebuilds spans from every rendered wrapper in document
// order, the inverse of Annotate. Multi-node spans render as several
// wrappers sharing one id; the first one wins since all carry identical
// metadata.
func CollectWrapped(root *html.Node) []span.Span {
	seen := make(map[string]bool)
	var out []span.Span
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if id := attrValue(n, span.AttrID); id != "" && !seen[id] {
				seen[id] = true
				out = append(out, span.FromAttrs(attrMap(n)))
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	if root != nil {
		walk(root)
	}
	return out
}

func attrValue(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func attrMap(n *html.Node) map[string]string {
	m := make(map[string]string, len(n.Attr))
	for _, a := range n.Attr {
		m[a.Key] = a.Val
	}
	return m
}
