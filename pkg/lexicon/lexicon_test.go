package lexicon

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bastiangx/spanserve/pkg/span"
)

func TestMatchSingleTerm(t *testing.T) {
	m := NewMatcher(0)
	m.AddTerm("bokeh", "camera")

	spans := m.Match("portrait with strong bokeh behind her")
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	s := spans[0]
	if s.Quote != "bokeh" || s.Category != "camera" || s.Source != span.SourceLexicon {
		t.Errorf("bad span %+v", s)
	}
	if text := "portrait with strong bokeh behind her"; text[s.Start:s.End] != "bokeh" {
		t.Errorf("offsets off: [%d,%d)", s.Start, s.End)
	}
	if s.LeftCtx == "" || s.RightCtx == "" {
		t.Error("context snippets should be captured")
	}
	if s.ID == "" || s.IdempotencyKey == "" {
		t.Error("span should carry id and idempotency key")
	}
}

func TestMatchLongestWins(t *testing.T) {
	m := NewMatcher(0)
	m.AddTerm("golden", "color")
	m.AddTerm("golden hour", "lighting")

	spans := m.Match("shot at golden hour near the pier")
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Quote != "golden hour" || spans[0].Category != "lighting" {
		t.Errorf("longest match lost: %+v", spans[0])
	}
}

func TestMatchCaseInsensitive(t *testing.T) {
	m := NewMatcher(0)
	m.AddTerm("watercolor", "style")

	spans := m.Match("A Watercolor landscape")
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	// The quote keeps the original casing from the text.
	if spans[0].Quote != "Watercolor" {
		t.Errorf("quote %q, want original casing", spans[0].Quote)
	}
}

func TestMatchNonOverlapping(t *testing.T) {
	m := NewBuiltinMatcher()
	spans := m.Match("golden hour light, wide angle, moody watercolor mood")
	for i := 1; i < len(spans); i++ {
		if spans[i].Start < spans[i-1].End {
			t.Errorf("overlap between %+v and %+v", spans[i-1], spans[i])
		}
	}
	if len(spans) < 3 {
		t.Errorf("expected several matches, got %d", len(spans))
	}
}

func TestMatchEmpty(t *testing.T) {
	m := NewMatcher(0)
	if got := m.Match("anything"); got != nil {
		t.Errorf("empty matcher matched %+v", got)
	}
	m.AddTerm("bokeh", "camera")
	if got := m.Match(""); got != nil {
		t.Errorf("empty text matched %+v", got)
	}
}

func TestLoadDirectoryRoundTrip(t *testing.T) {
	dir := t.TempDir()
	entries := []TermEntry{
		{"neon glow", "lighting"},
		{"macro lens", "camera"},
	}
	if err := WriteBinaryFile(filepath.Join(dir, "lex_0001.bin"), entries); err != nil {
		t.Fatal(err)
	}
	text := "# comment line\nserene\tmood\nbroken line without tab\n"
	if err := os.WriteFile(filepath.Join(dir, "lex_extra.txt"), []byte(text), 0o644); err != nil {
		t.Fatal(err)
	}

	m := NewMatcher(0)
	if err := m.LoadDirectory(dir); err != nil {
		t.Fatal(err)
	}
	if m.Len() != 3 {
		t.Errorf("loaded %d terms, want 3", m.Len())
	}
	if got := m.Match("a serene macro lens shot"); len(got) != 2 {
		t.Errorf("loaded terms did not match: %+v", got)
	}
}

func TestLoadDirectoryMissing(t *testing.T) {
	m := NewMatcher(0)
	if err := m.LoadDirectory("/does/not/exist"); err == nil {
		t.Error("expected an error for a missing directory")
	}
}
