package scoring

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fleveque/stylelab/internal/model"
)

// CallRecorder stores one row per scorer call for cost monitoring.
// storage.ScoringCallRepository satisfies it.
type CallRecorder interface {
	Create(ctx context.Context, call *model.ScoringCall) error
}

// Provider tries its clients in configured order; the first success wins.
// Calls are rate limited across all clients.
type Provider struct {
	clients  []Client
	limiter  *rate.Limiter
	recorder CallRecorder
	logger   *zap.Logger
}

// NewProvider creates a provider allowing ratePerMinute scorer calls.
func NewProvider(clients []Client, ratePerMinute int, recorder CallRecorder, logger *zap.Logger) *Provider {
	if ratePerMinute <= 0 {
		ratePerMinute = 10
	}
	return &Provider{
		clients:  clients,
		limiter:  rate.NewLimiter(rate.Every(time.Minute/time.Duration(ratePerMinute)), 1),
		recorder: recorder,
		logger:   logger,
	}
}

// Enabled reports whether any client is configured.
func (p *Provider) Enabled() bool {
	return len(p.clients) > 0
}

// ProviderNames lists the configured clients in fallback order.
func (p *Provider) ProviderNames() []string {
	names := make([]string, len(p.clients))
	for i, c := range p.clients {
		names[i] = c.ProviderName()
	}
	return names
}

// Score rates image, which was rendered from prompt for generationID.
func (p *Provider) Score(ctx context.Context, generationID string, image []byte, prompt string) (float64, error) {
	if len(p.clients) == 0 {
		return 0, fmt.Errorf("no scoring providers configured")
	}

	var lastErr error
	for i, client := range p.clients {
		if err := p.limiter.Wait(ctx); err != nil {
			return 0, fmt.Errorf("rate limit wait: %w", err)
		}

		start := time.Now()
		rating, err := client.ScoreImage(ctx, image, prompt)
		p.recordCall(ctx, client, generationID, rating, err, time.Since(start).Milliseconds())
		if err == nil {
			return rating.Score, nil
		}

		lastErr = err
		if i < len(p.clients)-1 {
			p.logger.Warn("scoring provider failed, trying next",
				zap.String("generation_id", generationID),
				zap.String("provider", client.ProviderName()),
				zap.Error(err),
			)
		}
	}

	return 0, fmt.Errorf("all scoring providers failed for %s: %w", generationID, lastErr)
}

func (p *Provider) recordCall(ctx context.Context, client Client, generationID string, rating *Rating, callErr error, durationMs int64) {
	if p.recorder == nil {
		return
	}
	call := &model.ScoringCall{
		GenerationID: generationID,
		Provider:     client.ProviderName(),
		Model:        client.ModelName(),
		Success:      callErr == nil,
		DurationMs:   &durationMs,
	}
	if rating != nil {
		call.Score = &rating.Score
	}

	if err := p.recorder.Create(ctx, call); err != nil {
		p.logger.Error("recording scoring call", zap.Error(err))
	}
}
