package lexicon

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/vmihailenco/msgpack/v5"
)

// TermEntry is one lexicon record.
type TermEntry struct {
	Term     string `msgpack:"t"`
	Category string `msgpack:"c"`
}

// TermFile is the binary lexicon file payload.
type TermFile struct {
	Version int         `msgpack:"v"`
	Terms   []TermEntry `msgpack:"terms"`
}

// termFileVersion is the newest binary format this loader understands.
const termFileVersion = 1

// LoadDirectory loads every lex_*.bin (msgpack) and lex_*.txt file from
// dir in name order. Missing or unreadable files are logged and skipped;
// an empty directory just leaves the matcher empty.
func (m *Matcher) LoadDirectory(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading lexicon dir %s: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, "lex_") {
			continue
		}
		if strings.HasSuffix(name, ".bin") || strings.HasSuffix(name, ".txt") {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	loaded := 0
	for _, name := range names {
		path := filepath.Join(dir, name)
		var err error
		if strings.HasSuffix(name, ".bin") {
			err = m.loadBinaryFile(path)
		} else {
			err = m.loadTextFile(path)
		}
		if err != nil {
			log.Warnf("Skipping lexicon file %s: %v", name, err)
			continue
		}
		loaded++
	}
	log.Debugf("Loaded %d lexicon files, %d terms", loaded, m.terms)
	return nil
}

// loadBinaryFile decodes a msgpack term file.
func (m *Matcher) loadBinaryFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var tf TermFile
	if err := msgpack.NewDecoder(f).Decode(&tf); err != nil {
		return fmt.Errorf("decoding msgpack: %w", err)
	}
	if tf.Version > termFileVersion {
		return fmt.Errorf("term file version %d newer than supported %d", tf.Version, termFileVersion)
	}
	for _, e := range tf.Terms {
		m.AddTerm(e.Term, e.Category)
	}
	return nil
}

// loadTextFile reads tab-separated term/category lines, # comments
// allowed.
func (m *Matcher) loadTextFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "\t", 2)
		if len(parts) != 2 {
			log.Warnf("Bad lexicon line in %s: %q", filepath.Base(path), line)
			continue
		}
		m.AddTerm(parts[0], parts[1])
	}
	return scanner.Err()
}

// WriteBinaryFile encodes entries as a msgpack term file, the format
// LoadDirectory reads back.
func WriteBinaryFile(path string, entries []TermEntry) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return msgpack.NewEncoder(f).Encode(TermFile{Version: termFileVersion, Terms: entries})
}

// BuiltinTerms returns the starter term set used when no lexicon
// directory is configured.
func BuiltinTerms() []TermEntry {
	return []TermEntry{
		{"golden hour", "lighting"},
		{"soft light", "lighting"},
		{"backlit", "lighting"},
		{"neon glow", "lighting"},
		{"wide angle", "camera"},
		{"macro lens", "camera"},
		{"shallow depth of field", "camera"},
		{"bokeh", "camera"},
		{"close up", "camera"},
		{"oil painting", "style"},
		{"watercolor", "style"},
		{"photorealistic", "style"},
		{"art deco", "style"},
		{"minimalist", "style"},
		{"moody", "mood"},
		{"serene", "mood"},
		{"dramatic", "mood"},
		{"pastel", "color"},
		{"monochrome", "color"},
		{"vivid colors", "color"},
	}
}

// NewBuiltinMatcher creates a Matcher preloaded with BuiltinTerms.
func NewBuiltinMatcher() *Matcher {
	m := NewMatcher(DefaultConfidence)
	for _, e := range BuiltinTerms() {
		m.AddTerm(e.Term, e.Category)
	}
	return m
}
