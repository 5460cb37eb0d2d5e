// Package cli handles cmd line input for DBG and testing label/locate features
package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/bastiangx/spanserve/internal/logger"
	"github.com/bastiangx/spanserve/pkg/lexicon"
	"github.com/bastiangx/spanserve/pkg/locate"
	"github.com/bastiangx/spanserve/pkg/remote"
	"github.com/bastiangx/spanserve/pkg/span"
	"github.com/bastiangx/spanserve/pkg/textnorm"
)

// InputHandler processes prompts from stdin and shows the spans the
// lexicon pass labels in them. Labeling runs through the same debounce
// path editor keystrokes use, so pasted bursts coalesce the way they
// would in a live session.
type InputHandler struct {
	matcher    *lexicon.Matcher
	cache      *locate.Cache
	debouncer  *remote.Debouncer
	out        *log.Logger
	lastPrompt string
}

// NewInputHandler handles initialization of the InputHandler with basic parameters
func NewInputHandler(matcher *lexicon.Matcher, cacheSize int, debounce time.Duration) *InputHandler {
	return &InputHandler{
		matcher:   matcher,
		cache:     locate.NewCache(cacheSize),
		debouncer: remote.NewDebouncer(debounce),
		out:       logger.Default(""),
	}
}

// Start begins the interface loop.
// It continuously prompts for input, reads a line from stdin, and passes
// the trimmed input to handleInput() for processing.
// Loop terminates if an error occurs while reading from stdin
func (h *InputHandler) Start() error {
	h.out.Print("SpanServe CLI [BETA]")
	reader := bufio.NewReader(os.Stdin)
	h.out.Print("type a prompt and press Enter to see its labeled spans (Ctrl+C to exit):")
	h.out.Print("  find <quote>   locate a quote in the last prompt")
	h.out.Print("  !              flush a pending label pass immediately")
	h.out.Print("  stats          show position cache counters")

	for {
		h.out.Print("> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			h.debouncer.Cancel()
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		h.handleInput(line)
	}
}

// handleInput routes one line: locate commands run straight away against
// the last prompt, everything else queues a debounced label pass.
func (h *InputHandler) handleInput(line string) {
	switch {
	case line == "!":
		h.debouncer.Flush()
	case line == "stats":
		for k, v := range h.cache.Snapshot() {
			h.out.Printf("%-10s %d", k, v)
		}
	case strings.HasPrefix(line, "find "):
		h.handleLocate(strings.TrimPrefix(line, "find "))
	default:
		prompt := textnorm.Normalize(line)
		h.lastPrompt = prompt
		h.debouncer.Trigger(func() {
			h.handleLabel(prompt)
		})
	}
}

func (h *InputHandler) handleLocate(quote string) {
	if h.lastPrompt == "" {
		log.Errorf("No prompt entered yet")
		return
	}

	start := time.Now()
	m := locate.CachedLocate(h.cache, h.lastPrompt, quote, locate.DefaultOptions())
	elapsed := time.Since(start)

	if m == nil {
		log.Warnf("No match for quote: '%s'", quote)
		return
	}
	h.out.Printf("Found at [%d, %d) exact=%v conf=%.2f in [ %v ]",
		m.Start, m.End, m.Exact, m.Confidence, elapsed)
}

// handleLabel runs the lexicon pass and prints each span with its range,
// category and confidence.
func (h *InputHandler) handleLabel(prompt string) {
	start := time.Now()
	spans := span.ResolveOverlaps(h.matcher.Match(prompt))
	elapsed := time.Since(start)

	log.Debugf("Took [ %v ] for prompt of %d bytes", elapsed, len(prompt))

	if len(spans) == 0 {
		log.Warnf("No spans found in prompt")
		return
	}

	h.out.Printf("Found %d spans:", len(spans))
	for i, s := range spans {
		clQuote := fmt.Sprintf("\033[38;5;75m%s\033[0m", s.Quote)
		h.out.Printf("%2d. %-40s [%3d, %3d) %-10s conf=%.2f", i+1, clQuote, s.Start, s.End, s.Category, s.Confidence)
	}
}
