package narrator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/osf/network-sim/internal/domain"
	"github.com/rs/zerolog"
)

// defaultTimeout bounds how long the bridge waits for a response before
// the caller should fall back, matching the teacher's external-client
// http.Client{Timeout: ...} construction style.
const defaultTimeout = 8 * time.Second

// HTTPNarrator posts a tick's event/market context to an external
// summarization endpoint and returns its narrative text.
type HTTPNarrator struct {
	url    string
	apiKey string
	client *http.Client
	log    zerolog.Logger
}

// NewHTTPNarrator constructs a bridge to url, sent with Authorization:
// Bearer apiKey if apiKey is non-empty.
func NewHTTPNarrator(url, apiKey string, log zerolog.Logger) *HTTPNarrator {
	return &HTTPNarrator{
		url:    url,
		apiKey: apiKey,
		client: &http.Client{Timeout: defaultTimeout},
		log:    log.With().Str("component", "narrator").Logger(),
	}
}

type requestBody struct {
	Month  int                   `json:"month"`
	Events []eventSummary        `json:"events"`
	Market domain.MarketState    `json:"market"`
}

type eventSummary struct {
	Category    domain.EventCategory `json:"category"`
	Severity    domain.EventSeverity `json:"severity"`
	Title       string               `json:"title"`
	Description string               `json:"description"`
}

type responseBody struct {
	Narrative string `json:"narrative"`
}

// Summarize posts req to the configured endpoint and returns its
// narrative. Callers are expected to have a bounded ctx and to fall back
// to FallbackNarrator on any returned error.
func (n *HTTPNarrator) Summarize(ctx context.Context, req Request) (string, error) {
	body := requestBody{Month: req.Month, Market: req.Market}
	for _, e := range req.Events {
		body.Events = append(body.Events, eventSummary{
			Category: e.Category, Severity: e.Severity, Title: e.Title, Description: e.Description,
		})
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("narrator: encoding request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("narrator: building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if n.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+n.apiKey)
	}

	resp, err := n.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("narrator: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("narrator: unexpected status %d", resp.StatusCode)
	}

	var out responseBody
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("narrator: decoding response: %w", err)
	}
	if out.Narrative == "" {
		return "", fmt.Errorf("narrator: empty narrative in response")
	}
	return out.Narrative, nil
}
