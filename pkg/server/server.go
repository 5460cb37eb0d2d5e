package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/net/html"

	"github.com/bastiangx/spanserve/pkg/anchor"
	"github.com/bastiangx/spanserve/pkg/config"
	"github.com/bastiangx/spanserve/pkg/edit"
	"github.com/bastiangx/spanserve/pkg/lexicon"
	"github.com/bastiangx/spanserve/pkg/locate"
	"github.com/bastiangx/spanserve/pkg/remote"
	"github.com/bastiangx/spanserve/pkg/reveal"
	"github.com/bastiangx/spanserve/pkg/span"
	"github.com/bastiangx/spanserve/pkg/textnorm"
)

// Server handles the IPC for one editor session: one position cache, one
// reveal scheduler, one in-flight suggestion fetch.
type Server struct {
	cfg        *config.Config
	configPath string

	lex       *lexicon.Matcher
	labeler   *remote.LabelClient
	suggester *remote.SuggestSession

	cache *locate.Cache
	sched *reveal.Scheduler

	dec *msgpack.Decoder

	writeMu sync.Mutex
	enc     *msgpack.Encoder
}

// NewServer wires a session server over the given streams. The lexicon
// matcher may be nil when disabled by config; remote clients are only
// created when their URLs are configured.
func NewServer(cfg *config.Config, configPath string, lex *lexicon.Matcher, in io.Reader, out io.Writer) *Server {
	s := &Server{
		cfg:        cfg,
		configPath: configPath,
		lex:        lex,
		cache:      locate.NewCache(cfg.Locator.CacheMaxEntries),
		sched: reveal.NewScheduler(
			reveal.Thresholds{High: cfg.Reveal.HighThreshold, Medium: cfg.Reveal.MediumThreshold},
			reveal.Delays{
				Medium: time.Duration(cfg.Reveal.MediumDelayMs) * time.Millisecond,
				Low:    time.Duration(cfg.Reveal.LowDelayMs) * time.Millisecond,
			},
		),
		dec: msgpack.NewDecoder(in),
		enc: msgpack.NewEncoder(out),
	}
	if cfg.Labeling.URL != "" {
		s.labeler = remote.NewLabelClient(remote.LabelConfig{
			URL:             cfg.Labeling.URL,
			MaxSpans:        cfg.Labeling.MaxSpans,
			MinConfidence:   cfg.Labeling.MinConfidence,
			TemplateVersion: cfg.Labeling.TemplateVersion,
			Policy:          cfg.Labeling.Policy,
			Timeout:         time.Duration(cfg.Labeling.TimeoutMs) * time.Millisecond,
		}, nil)
	}
	if cfg.Suggest.URL != "" {
		s.suggester = remote.NewSuggestSession(remote.NewSuggestClient(
			cfg.Suggest.URL,
			time.Duration(cfg.Suggest.TimeoutMs)*time.Millisecond,
			nil,
		))
	}
	return s
}

// Start begins the request loop. Returns nil on clean EOF.
func (s *Server) Start() error {
	log.Debug("Starting span server.")
	s.send(map[string]string{"status": "ready"})

	for {
		var req Request
		if err := s.dec.Decode(&req); err != nil {
			s.shutdown()
			if errors.Is(err, io.EOF) {
				return nil
			}
			// A failed decode leaves the binary stream misaligned, so
			// the session is unrecoverable.
			log.Errorf("Decoding request: %v", err)
			s.sendError("", "Invalid msgpack request", 400)
			return err
		}
		s.handleRequest(req)
	}
}

func (s *Server) handleRequest(req Request) {
	switch req.Cmd {
	case "label":
		s.handleLabel(req)
	case "locate":
		s.handleLocate(req)
	case "apply_edit":
		s.handleApplyEdit(req)
	case "annotate":
		s.handleAnnotate(req)
	case "suggest":
		s.handleSuggest(req)
	case "focus":
		s.handleFocus(req)
	case "cache_stats":
		s.send(StatsResponse{ID: req.ID, Stats: s.cache.Snapshot()})
	case "config":
		s.handleConfig(req)
	case "health":
		s.send(StatusResponse{ID: req.ID, Status: "ok"})
	default:
		s.sendError(req.ID, fmt.Sprintf("Unknown command: %s", req.Cmd), 400)
	}
}

// handleLabel runs the lexicon pass, calls the labeling service when
// configured, merges and deduplicates the results, and schedules the
// progressive reveal. The response carries every span; the delayed tiers
// re-arrive as reveal events when their timers fire.
func (s *Server) handleLabel(req Request) {
	text := textnorm.Normalize(req.Text)
	if text == "" {
		s.sendError(req.ID, "Missing 'text' parameter", 400)
		return
	}
	if len(text) > s.cfg.Server.MaxPromptBytes {
		s.sendError(req.ID, fmt.Sprintf("Prompt exceeds maximum length of %d bytes", s.cfg.Server.MaxPromptBytes), 400)
		return
	}

	start := time.Now()
	var spans []span.Span
	if s.lex != nil {
		spans = s.lex.Match(text)
	}
	status := "ok"
	var cacheKey, warning, warningKind string
	if s.labeler != nil {
		cacheKey = s.labeler.CacheKey(req.TextID, text)
		labeled, err := s.labeler.Label(context.Background(), text)
		if err != nil {
			// Lexicon spans still render, but the failed model pass is
			// reported so the UI can say so, not hidden behind "ok".
			log.Warnf("Labeling service failed: %v", err)
			status = "degraded"
			warning = err.Error()
			warningKind = remote.Classify(err).String()
		}
		spans = mergeSpans(spans, labeled)
	}
	spans = span.ResolveOverlaps(spans)

	s.send(LabelResponse{
		ID:          req.ID,
		Status:      status,
		Spans:       spans,
		Count:       len(spans),
		CacheKey:    cacheKey,
		Warning:     warning,
		WarningKind: warningKind,
		TimeMs:      time.Since(start).Milliseconds(),
	})

	id := req.ID
	s.sched.Schedule(spans, func(tier reveal.Tier, batch []span.Span) {
		s.send(RevealEvent{
			ID:       id,
			Event:    "reveal",
			Tier:     tier.String(),
			Spans:    batch,
			Progress: s.sched.Progress(),
		})
	})
}

func (s *Server) handleLocate(req Request) {
	if req.Text == "" || req.Quote == "" {
		s.sendError(req.ID, "Missing 'text' or 'quote' parameter", 400)
		return
	}
	opts := locate.DefaultOptions()
	if req.PreferIndex != nil {
		opts.PreferIndex = *req.PreferIndex
	}
	opts.LeftCtx = req.LeftCtx
	opts.RightCtx = req.RightCtx

	m := locate.CachedLocate(s.cache, req.Text, req.Quote, opts)
	if m == nil {
		s.send(LocateResponse{ID: req.ID, Found: false})
		return
	}
	s.send(LocateResponse{
		ID: req.ID, Found: true,
		Start: m.Start, End: m.End, Exact: m.Exact, Confidence: m.Confidence,
	})
}

func (s *Server) handleApplyEdit(req Request) {
	if req.Edit == nil {
		s.sendError(req.ID, "Missing 'edit' parameter", 400)
		return
	}
	res := edit.Apply(edit.Request{
		Prompt: req.Text,
		Edit:   *req.Edit,
		Span:   req.Span,
		Cache:  s.cache,
	})
	s.send(ApplyEditResponse{
		ID:            req.ID,
		UpdatedPrompt: res.UpdatedPrompt,
		MatchStart:    res.MatchStart,
		MatchEnd:      res.MatchEnd,
	})
}

func (s *Server) handleAnnotate(req Request) {
	if req.HTML == "" {
		s.sendError(req.ID, "Missing 'html' parameter", 400)
		return
	}
	doc, err := html.Parse(strings.NewReader(req.HTML))
	if err != nil {
		s.sendError(req.ID, fmt.Sprintf("Unparsable html: %v", err), 400)
		return
	}
	spans := span.ResolveOverlaps(span.ValidateAll(req.Spans, len(textnorm.Normalize(req.Text))))
	rendered := anchor.Annotate(doc, spans, s.cache)

	var b strings.Builder
	if err := html.Render(&b, doc); err != nil {
		s.sendError(req.ID, fmt.Sprintf("Rendering html: %v", err), 500)
		return
	}
	s.send(AnnotateResponse{
		ID:       req.ID,
		HTML:     b.String(),
		Rendered: rendered,
		Skipped:  len(spans) - rendered,
	})
}

// handleSuggest proxies a replacement-suggestion fetch. A newer suggest
// command cancels the in-flight one; the superseded request emits no
// event at all, so the client never sees a spurious error for it.
func (s *Server) handleSuggest(req Request) {
	if s.suggester == nil {
		s.sendError(req.ID, "Suggestion service not configured", 503)
		return
	}
	id := req.ID
	s.suggester.Fetch(context.Background(), remote.SuggestRequest{
		HighlightedText: req.Quote,
		ContextBefore:   req.ContextBefore,
		ContextAfter:    req.ContextAfter,
		FullPrompt:      req.Text,
	}, func(resp *remote.SuggestResponse) {
		s.send(SuggestEvent{
			ID:            id,
			Event:         "suggest",
			Suggestions:   resp.Suggestions,
			IsPlaceholder: resp.IsPlaceholder,
		})
	}, func(err error) {
		s.send(SuggestEvent{
			ID:        id,
			Event:     "suggest",
			ErrorKind: remote.Classify(err).String(),
			Error:     err.Error(),
		})
	})
}

func (s *Server) handleFocus(req Request) {
	if req.HTML == "" || req.SpanID == "" {
		s.sendError(req.ID, "Missing 'html' or 'span_id' parameter", 400)
		return
	}
	doc, err := html.Parse(strings.NewReader(req.HTML))
	if err != nil {
		s.sendError(req.ID, fmt.Sprintf("Unparsable html: %v", err), 400)
		return
	}
	target := anchor.Focus(doc, req.SpanID)
	s.send(FocusResponse{ID: req.ID, Found: target != nil, Target: target})
}

// handleConfig applies runtime setting changes. A template version change
// invalidates every cached position since span offsets from the old
// version no longer apply.
func (s *Server) handleConfig(req Request) {
	if req.TemplateVersion != nil && *req.TemplateVersion != s.cfg.Labeling.TemplateVersion {
		s.cfg.Labeling.TemplateVersion = *req.TemplateVersion
		s.cache.Clear()
		s.sched.Cancel()
		log.Debugf("Template version changed to %s, caches cleared", *req.TemplateVersion)
	}
	if req.HighThreshold != nil || req.MediumThreshold != nil {
		if err := s.cfg.Update(s.configPath, req.HighThreshold, req.MediumThreshold, nil, nil); err != nil {
			s.sendError(req.ID, fmt.Sprintf("Saving config: %v", err), 500)
			return
		}
		s.sched.SetThresholds(reveal.Thresholds{
			High:   s.cfg.Reveal.HighThreshold,
			Medium: s.cfg.Reveal.MediumThreshold,
		})
	}
	s.send(StatusResponse{ID: req.ID, Status: "ok"})
}

func (s *Server) shutdown() {
	s.sched.Cancel()
	if s.suggester != nil {
		s.suggester.Close()
	}
	log.Debug("Span server shut down.")
}

// send marshals one response frame. The write mutex keeps reveal and
// suggest events from interleaving mid-frame with synchronous responses.
func (s *Server) send(response interface{}) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.enc.Encode(response); err != nil {
		log.Errorf("Encoding response: %v", err)
	}
}

func (s *Server) sendError(id, message string, code int) {
	s.send(ErrorResponse{ID: id, Error: message, Code: code})
}

// mergeSpans combines lexicon and model spans, deduping by idempotency
// key so repeated extraction passes don't double-highlight a range.
func mergeSpans(a, b []span.Span) []span.Span {
	if len(b) == 0 {
		return a
	}
	seen := make(map[string]bool, len(a))
	for _, s := range a {
		seen[s.IdempotencyKey] = true
	}
	out := a
	for _, s := range b {
		if s.IdempotencyKey != "" && seen[s.IdempotencyKey] {
			continue
		}
		seen[s.IdempotencyKey] = true
		out = append(out, s)
	}
	return out
}
