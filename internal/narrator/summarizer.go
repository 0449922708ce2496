package narrator

import (
	"context"

	"github.com/rs/zerolog"
)

// Summarizer composes an optional external Narrator with the always-
// available fallback. primary may be nil — missing narrator credentials
// disable narrative generation, never ticks, exactly as the ambient
// configuration section requires.
type Summarizer struct {
	primary  Narrator
	fallback Narrator
	log      zerolog.Logger
}

// NewSummarizer builds a Summarizer. Pass a nil primary to always use the
// fallback (e.g. when no narrator URL is configured).
func NewSummarizer(primary Narrator, log zerolog.Logger) *Summarizer {
	return &Summarizer{primary: primary, fallback: FallbackNarrator{}, log: log.With().Str("component", "narrator").Logger()}
}

// Summarize tries the primary narrator under a bounded timeout derived
// from ctx; any error or expiry falls back to the deterministic sentence
// so the pipeline never blocks on, or fails because of, an external call.
func (s *Summarizer) Summarize(ctx context.Context, req Request) string {
	if s.primary == nil {
		text, _ := s.fallback.Summarize(ctx, req)
		return text
	}

	callCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	text, err := s.primary.Summarize(callCtx, req)
	if err != nil {
		s.log.Warn().Err(err).Int("month", req.Month).Msg("external narrator failed, using fallback summary")
		text, _ = s.fallback.Summarize(ctx, req)
	}
	return text
}
