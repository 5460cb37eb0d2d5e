package server

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/bastiangx/spanserve/pkg/config"
	"github.com/bastiangx/spanserve/pkg/edit"
	"github.com/bastiangx/spanserve/pkg/lexicon"
)

// asInt normalizes the integer widths msgpack picks when decoding into
// interface{}.
func asInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int8:
		return int(n), true
	case int16:
		return int(n), true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case uint8:
		return int(n), true
	case uint16:
		return int(n), true
	case uint32:
		return int(n), true
	case uint64:
		return int(n), true
	}
	return 0, false
}

// runServer feeds the encoded requests through a server and returns every
// response frame after the ready banner. Start returns on EOF, so a
// buffer-backed input drives the whole loop synchronously.
func runServer(t *testing.T, requests []Request) []map[string]interface{} {
	t.Helper()

	var in bytes.Buffer
	enc := msgpack.NewEncoder(&in)
	for _, req := range requests {
		if err := enc.Encode(req); err != nil {
			t.Fatalf("encoding request: %v", err)
		}
	}

	cfg := config.DefaultConfig()
	var out bytes.Buffer
	srv := NewServer(cfg, "", lexicon.NewBuiltinMatcher(), &in, &out)
	if err := srv.Start(); err != nil {
		t.Fatalf("server loop: %v", err)
	}

	dec := msgpack.NewDecoder(&out)
	var frames []map[string]interface{}
	for {
		var frame map[string]interface{}
		if err := dec.Decode(&frame); err != nil {
			if err == io.EOF {
				break
			}
			t.Fatalf("decoding response frame: %v", err)
		}
		frames = append(frames, frame)
	}
	if len(frames) == 0 || frames[0]["status"] != "ready" {
		t.Fatalf("expected ready banner first, got %v", frames)
	}
	return frames[1:]
}

func TestHealthAndUnknownCommand(t *testing.T) {
	frames := runServer(t, []Request{
		{ID: "1", Cmd: "health"},
		{ID: "2", Cmd: "definitely_not_a_command"},
	})
	if len(frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(frames))
	}
	if frames[0]["status"] != "ok" {
		t.Errorf("health status = %v, want ok", frames[0]["status"])
	}
	if _, hasErr := frames[1]["e"]; !hasErr {
		t.Errorf("unknown command should produce an error frame, got %v", frames[1])
	}
}

func TestLocateRoundTrip(t *testing.T) {
	frames := runServer(t, []Request{
		{ID: "loc1", Cmd: "locate", Text: "hello world today", Quote: "world"},
		{ID: "loc2", Cmd: "locate", Text: "hello world today", Quote: "absent"},
	})
	if len(frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(frames))
	}
	hit := frames[0]
	if hit["found"] != true {
		t.Fatalf("expected a match, got %v", hit)
	}
	if start, ok := asInt(hit["start"]); !ok || start != 6 {
		t.Errorf("start = %v, want 6", hit["start"])
	}
	if frames[1]["found"] != false {
		t.Errorf("absent quote should report found=false, got %v", frames[1])
	}
}

func TestApplyEditThroughServer(t *testing.T) {
	frames := runServer(t, []Request{{
		ID:   "e1",
		Cmd:  "apply_edit",
		Text: "hello world today",
		Edit: &edit.Edit{
			Type:            edit.ReplaceSpanText,
			ReplacementText: "earth",
			AnchorQuote:     "world",
		},
	}})
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(frames))
	}
	got, ok := frames[0]["updated_prompt"].(string)
	if !ok || got != "hello earth today" {
		t.Errorf("updated_prompt = %v, want %q", frames[0]["updated_prompt"], "hello earth today")
	}
}

func TestLabelUsesLexicon(t *testing.T) {
	frames := runServer(t, []Request{{
		ID:   "l1",
		Cmd:  "label",
		Text: "a golden retriever in soft light",
	}})
	// The high tier fires synchronously, so at least the label response
	// arrives before EOF shuts the loop down.
	if len(frames) == 0 {
		t.Fatal("expected at least the label response")
	}
	resp := frames[0]
	if resp["status"] != "ok" {
		t.Fatalf("label status = %v, want ok", resp["status"])
	}
	count, ok := asInt(resp["count"])
	if !ok || count < 1 {
		t.Errorf("expected at least one lexicon span, got count=%v", resp["count"])
	}
}

func TestLabelReportsModelPassFailure(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer backend.Close()

	var in bytes.Buffer
	err := msgpack.NewEncoder(&in).Encode(Request{ID: "l1", Cmd: "label", Text: "soft light on water"})
	if err != nil {
		t.Fatalf("encoding request: %v", err)
	}

	cfg := config.DefaultConfig()
	cfg.Labeling.URL = backend.URL
	var out bytes.Buffer
	srv := NewServer(cfg, "", lexicon.NewBuiltinMatcher(), &in, &out)
	if err := srv.Start(); err != nil {
		t.Fatalf("server loop: %v", err)
	}

	dec := msgpack.NewDecoder(&out)
	var resp map[string]interface{}
	for {
		var frame map[string]interface{}
		if err := dec.Decode(&frame); err != nil {
			break
		}
		if frame["id"] == "l1" && frame["event"] == nil {
			resp = frame
			break
		}
	}
	if resp == nil {
		t.Fatal("no label response frame")
	}
	// The lexicon spans still arrive, but the failed model pass must be
	// visible to the client instead of masquerading as a clean result.
	if resp["status"] != "degraded" {
		t.Errorf("status = %v, want degraded", resp["status"])
	}
	if warning, _ := resp["warning"].(string); warning == "" {
		t.Error("expected a warning describing the failed model pass")
	}
	if kind, _ := resp["warning_kind"].(string); kind != "error" {
		t.Errorf("warning_kind = %v, want error", resp["warning_kind"])
	}
	if count, _ := asInt(resp["count"]); count < 1 {
		t.Errorf("lexicon spans should survive the failure, got count=%v", resp["count"])
	}
}

func TestAnnotateReturnsWrappedHTML(t *testing.T) {
	frames := runServer(t, []Request{
		{ID: "a0", Cmd: "label", Text: "soft light over a serene lake"},
	})
	if len(frames) == 0 {
		t.Fatal("expected label response")
	}

	// Reuse the labeled spans against the matching markup.
	var lr LabelResponse
	reencoded, err := msgpack.Marshal(frames[0])
	if err != nil {
		t.Fatalf("re-encoding: %v", err)
	}
	if err := msgpack.Unmarshal(reencoded, &lr); err != nil {
		t.Fatalf("decoding label response: %v", err)
	}
	if len(lr.Spans) == 0 {
		t.Fatal("expected lexicon spans for the annotate pass")
	}

	frames = runServer(t, []Request{{
		ID:    "a1",
		Cmd:   "annotate",
		Text:  "soft light over a serene lake",
		HTML:  "<div>soft light over a serene lake</div>",
		Spans: lr.Spans,
	}})
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(frames))
	}
	rendered, ok := frames[0]["html"].(string)
	if !ok || !strings.Contains(rendered, `class="spanserve-hl"`) {
		t.Errorf("annotated html missing wrapper: %v", frames[0]["html"])
	}
}

func TestConfigVersionChangeClearsCache(t *testing.T) {
	v2 := "v2"
	frames := runServer(t, []Request{
		// Warm the cache, bump the template version, then check counters.
		{ID: "c0", Cmd: "locate", Text: "hello world", Quote: "world"},
		{ID: "c1", Cmd: "config", TemplateVersion: &v2},
		{ID: "c2", Cmd: "cache_stats"},
	})
	if len(frames) != 3 {
		t.Fatalf("expected 3 frames, got %d", len(frames))
	}
	if frames[1]["status"] != "ok" {
		t.Fatalf("config response = %v, want ok", frames[1])
	}
	stats, ok := frames[2]["stats"].(map[string]interface{})
	if !ok {
		t.Fatalf("stats frame = %v", frames[2])
	}
	if entries, _ := asInt(stats["entries"]); entries != 0 {
		t.Errorf("entries after version change = %v, want 0", stats["entries"])
	}
}

func TestMalformedFrameEndsSession(t *testing.T) {
	var in bytes.Buffer
	// A bare string frame is not a Request map; the stream is
	// misaligned after it, so the session reports the error and stops.
	if err := msgpack.NewEncoder(&in).Encode("garbage"); err != nil {
		t.Fatalf("encoding: %v", err)
	}

	cfg := config.DefaultConfig()
	var out bytes.Buffer
	srv := NewServer(cfg, "", nil, &in, &out)
	if err := srv.Start(); err == nil {
		t.Fatal("expected the loop to fail on a malformed frame")
	}

	dec := msgpack.NewDecoder(&out)
	var sawError bool
	for {
		var frame map[string]interface{}
		if err := dec.Decode(&frame); err != nil {
			break
		}
		if _, ok := frame["e"]; ok {
			sawError = true
		}
	}
	if !sawError {
		t.Error("malformed frame should produce an error response before shutdown")
	}
}
