package narrator_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/osf/network-sim/internal/domain"
	"github.com/osf/network-sim/internal/narrator"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFallbackNarratorCountsNotableAndCriticalEvents(t *testing.T) {
	req := narrator.Request{
		Month: 7,
		Events: []*domain.NetworkEvent{
			{Severity: domain.SeverityInfo},
			{Severity: domain.SeverityNotable},
			{Severity: domain.SeverityCritical},
		},
	}
	text, err := narrator.FallbackNarrator{}.Summarize(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "Month 7 saw 2 notable events in the network.", text)
}

func TestHTTPNarratorReturnsNarrativeOnSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]string{"narrative": "a quiet month"})
	}))
	defer srv.Close()

	n := narrator.NewHTTPNarrator(srv.URL, "test-key", zerolog.Nop())
	text, err := n.Summarize(context.Background(), narrator.Request{Month: 1})
	require.NoError(t, err)
	assert.Equal(t, "a quiet month", text)
}

func TestSummarizerFallsBackOnNarratorError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	primary := narrator.NewHTTPNarrator(srv.URL, "", zerolog.Nop())
	s := narrator.NewSummarizer(primary, zerolog.Nop())

	req := narrator.Request{Month: 3, Events: []*domain.NetworkEvent{{Severity: domain.SeverityNotable}}}
	text := s.Summarize(context.Background(), req)
	assert.Equal(t, "Month 3 saw 1 notable events in the network.", text)
}

func TestSummarizerUsesFallbackWhenNoPrimaryConfigured(t *testing.T) {
	s := narrator.NewSummarizer(nil, zerolog.Nop())
	text := s.Summarize(context.Background(), narrator.Request{Month: 2})
	assert.Equal(t, "Month 2 saw 0 notable events in the network.", text)
}

func TestSummarizerFallsBackOnTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_ = json.NewEncoder(w).Encode(map[string]string{"narrative": "too slow"})
	}))
	defer srv.Close()

	primary := narrator.NewHTTPNarrator(srv.URL, "", zerolog.Nop())
	s := narrator.NewSummarizer(primary, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	text := s.Summarize(ctx, narrator.Request{Month: 4})
	assert.Equal(t, "Month 4 saw 0 notable events in the network.", text)
}
