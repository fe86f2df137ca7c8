package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/siderealhq/genesis/internal/domain"
)

// DefaultQuestionTimeout bounds the text-generation call before falling back
// to the strategy's static template.
const DefaultQuestionTimeout = 8 * time.Second

// ProbeGenerator turns a hypothesis plus a strategy into a probe packet.
// Question phrasing is delegated to the text-generation backend under a
// bounded timeout; any failure or contract violation falls back to the
// strategy's static template, so a probe is always producible and a slow
// backend never stalls the session. The generator is a pure producer: it
// touches no counters and no stores.
type ProbeGenerator struct {
	questions domain.QuestionClient
	timeout   time.Duration
	logger    *zap.Logger
}

func NewProbeGenerator(qc domain.QuestionClient, timeout time.Duration, logger *zap.Logger) *ProbeGenerator {
	if timeout <= 0 {
		timeout = DefaultQuestionTimeout
	}
	return &ProbeGenerator{questions: qc, timeout: timeout, logger: logger}
}

func (g *ProbeGenerator) Generate(ctx context.Context, h *domain.Hypothesis, strat domain.Strategy) *domain.ProbePacket {
	if g.questions != nil {
		genCtx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()

		generated, err := g.questions.GenerateQuestion(genCtx, domain.QuestionRequest{
			SuspectedValue: h.SuspectedValue,
			Candidates:     h.Candidates,
			ProbeType:      strat.Type,
			Options:        strat.FallbackOptions,
		})
		if err == nil {
			err = validateGenerated(generated, strat)
		}
		if err == nil {
			return g.packet(h, strat, generated.Question, generated.Mappings, false)
		}

		g.logger.Warn("question generation failed, using template",
			zap.String("strategy", strat.Name),
			zap.String("hypothesis_id", h.ID.String()),
			zap.Error(err))
	}

	return g.packet(h, strat, strat.Template, fallbackMappings(h, strat), true)
}

func (g *ProbeGenerator) packet(h *domain.Hypothesis, strat domain.Strategy, question string, mappings map[string]map[string]float32, fallback bool) *domain.ProbePacket {
	p := &domain.ProbePacket{
		HypothesisID: h.ID,
		Type:         strat.Type,
		Question:     question,
		StrategyUsed: strat.Name,
		Mappings:     mappings,
		Fallback:     fallback,
	}
	if strat.Type == domain.ProbeBinaryChoice || len(strat.FallbackOptions) > 0 {
		p.Options = strat.FallbackOptions
	}
	return p
}

// validateGenerated enforces the probe packet contract on untrusted backend
// output: non-empty question, a delta map for every declared answer token,
// and finite deltas throughout.
func validateGenerated(q *domain.GeneratedQuestion, strat domain.Strategy) error {
	if q == nil || q.Question == "" {
		return fmt.Errorf("empty question")
	}
	for _, opt := range strat.FallbackOptions {
		deltas, ok := q.Mappings[opt]
		if !ok {
			return fmt.Errorf("missing mapping for option %q", opt)
		}
		for candidate, d := range deltas {
			if math.IsNaN(float64(d)) || math.IsInf(float64(d), 0) {
				return fmt.Errorf("non-finite delta for %q/%q", opt, candidate)
			}
		}
	}
	return nil
}

// fallbackMappings expands the strategy's per-answer deltas into full
// answer-to-candidate maps targeting the suspected value.
func fallbackMappings(h *domain.Hypothesis, strat domain.Strategy) map[string]map[string]float32 {
	mappings := make(map[string]map[string]float32, len(strat.FallbackDeltas))
	for answer, delta := range strat.FallbackDeltas {
		mappings[answer] = map[string]float32{h.SuspectedValue: delta}
	}
	return mappings
}
