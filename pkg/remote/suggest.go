package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// DefaultSuggestTimeout bounds one suggestion fetch. Caller cancellation
// is separate: a cancelled context reports KindCancelled, an elapsed
// timeout reports KindTimeout.
const DefaultSuggestTimeout = 3000 * time.Millisecond

// SuggestRequest describes the highlighted span the user clicked.
type SuggestRequest struct {
	HighlightedText string            `json:"highlightedText"`
	ContextBefore   string            `json:"contextBefore"`
	ContextAfter    string            `json:"contextAfter"`
	FullPrompt      string            `json:"fullPrompt"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// SuggestResponse carries replacement candidates for the span.
type SuggestResponse struct {
	Suggestions   []string `json:"suggestions"`
	IsPlaceholder bool     `json:"isPlaceholder"`
}

// SuggestClient calls the external suggestion service.
type SuggestClient struct {
	url     string
	timeout time.Duration
	httpc   *http.Client
}

// NewSuggestClient builds a client for url. A timeout of 0 falls back to
// DefaultSuggestTimeout; a nil httpc falls back to http.DefaultClient.
func NewSuggestClient(url string, timeout time.Duration, httpc *http.Client) *SuggestClient {
	if timeout <= 0 {
		timeout = DefaultSuggestTimeout
	}
	if httpc == nil {
		httpc = http.DefaultClient
	}
	return &SuggestClient{url: url, timeout: timeout, httpc: httpc}
}

// Suggest fetches replacement candidates. The client's timeout is layered
// on top of ctx, so ctx cancellation and deadline expiry stay
// distinguishable through Classify. A malformed body degrades to an empty
// placeholder response with a warning.
func (c *SuggestClient) Suggest(ctx context.Context, sr SuggestRequest) (*SuggestResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(sr)
	if err != nil {
		return nil, fmt.Errorf("encoding suggest request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building suggest request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("suggestion call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Code: resp.StatusCode}
	}

	var out SuggestResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		log.Warnf("Malformed suggestion payload, treating as empty: %v", err)
		return &SuggestResponse{IsPlaceholder: true}, nil
	}
	return &out, nil
}

// SuggestSession serializes suggestion fetches for one editor session:
// starting a new fetch cancels the previous in-flight one, and only the
// newest fetch's outcome is delivered. Cancellation is swallowed here so
// a superseded request never reaches the UI as an error.
type SuggestSession struct {
	client *SuggestClient

	mu     sync.Mutex
	cancel context.CancelFunc
	gen    int64
}

// NewSuggestSession wraps client with per-session in-flight management.
func NewSuggestSession(client *SuggestClient) *SuggestSession {
	return &SuggestSession{client: client}
}

// Fetch starts a suggestion fetch, cancelling any previous one. onResult
// receives the response if this fetch is still the newest when it lands;
// onError receives timeouts and transport errors, never cancellations.
// Callbacks run under the session lock, so the staleness check and the
// delivery are one atomic step against a superseding Fetch; callbacks
// must not call back into the session.
func (s *SuggestSession) Fetch(ctx context.Context, sr SuggestRequest, onResult func(*SuggestResponse), onError func(error)) {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	go func() {
		resp, err := s.client.Suggest(ctx, sr)

		s.mu.Lock()
		defer s.mu.Unlock()
		if gen != s.gen {
			// A newer fetch owns the session now; whatever happened here
			// is history.
			return
		}

		if err != nil {
			if Classify(err) == KindCancelled {
				log.Debug("Suggestion fetch cancelled, staying silent")
				return
			}
			if onError != nil {
				onError(err)
			}
			return
		}
		if onResult != nil {
			onResult(resp)
		}
	}()
}

// Close cancels any in-flight fetch, for component unmount.
func (s *SuggestSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.gen++
}
