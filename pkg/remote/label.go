package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"

	"github.com/bastiangx/spanserve/pkg/locate"
	"github.com/bastiangx/spanserve/pkg/span"
	"github.com/bastiangx/spanserve/pkg/textnorm"
)

// DefaultLabelTimeout bounds one labeling call so a hung service never
// stalls the session loop.
const DefaultLabelTimeout = 5000 * time.Millisecond

// LabelConfig holds the labeling-service parameters. The same values feed
// the request body and the cache key, so a parameter change invalidates
// cached results by construction.
type LabelConfig struct {
	URL             string
	MaxSpans        int
	MinConfidence   float64
	TemplateVersion string
	Policy          map[string]string
	Timeout         time.Duration
}

// LabelClient calls the external labeling service.
type LabelClient struct {
	cfg   LabelConfig
	httpc *http.Client
}

// NewLabelClient builds a client around cfg. A nil httpc falls back to
// http.DefaultClient; a zero timeout falls back to DefaultLabelTimeout.
func NewLabelClient(cfg LabelConfig, httpc *http.Client) *LabelClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultLabelTimeout
	}
	if httpc == nil {
		httpc = http.DefaultClient
	}
	return &LabelClient{cfg: cfg, httpc: httpc}
}

type labelRequestBody struct {
	Text            string            `json:"text"`
	MaxSpans        int               `json:"maxSpans"`
	MinConfidence   float64           `json:"minConfidence"`
	Policy          map[string]string `json:"policy,omitempty"`
	TemplateVersion string            `json:"templateVersion"`
}

// Label sends text for span extraction and returns the structurally valid
// spans from the response. A malformed payload is an empty result, not an
// error; a non-2xx status surfaces as *StatusError. The client timeout is
// layered on top of ctx, so caller cancellation and deadline expiry stay
// distinguishable through Classify.
func (c *LabelClient) Label(ctx context.Context, text string) ([]span.Span, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	text = textnorm.Normalize(text)
	body, err := json.Marshal(labelRequestBody{
		Text:            text,
		MaxSpans:        c.cfg.MaxSpans,
		MinConfidence:   c.cfg.MinConfidence,
		Policy:          c.cfg.Policy,
		TemplateVersion: c.cfg.TemplateVersion,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding label request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building label request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("labeling call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Code: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading label response: %w", err)
	}

	spans := span.ParseLabelPayload(data, len(text))
	log.Debugf("Labeling returned %d valid spans", len(spans))
	return spans, nil
}

// CacheKey returns the labeling-cache key for text under this client's
// parameters.
func (c *LabelClient) CacheKey(textID, text string) string {
	return locate.RequestKey(c.cfg.MaxSpans, c.cfg.MinConfidence, c.cfg.TemplateVersion, c.cfg.Policy, textID, text)
}
