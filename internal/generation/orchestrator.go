// Package generation validates batch requests and runs their units one at
// a time against a Renderer, with per-model rate limiting, progress
// reporting, and cooperative interruption.
package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/fleveque/stylelab/internal/model"
	"github.com/fleveque/stylelab/internal/style"
)

// Validation bounds shared by every model.
const (
	MinPromptLength = 3
	MinGuidance     = 1.0
	MaxGuidance     = 20.0
)

// State is the lifecycle position of a batch.
type State string

const (
	StateIdle           State = "idle"
	StateValidating     State = "validating"
	StateRateLimitCheck State = "rate_limit_check"
	StateGenerating     State = "generating"
	StateCompleted      State = "completed"
	StateFailed         State = "failed"
	StateInterrupted    State = "interrupted"
)

// Terminal reports whether no further transitions can happen.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateInterrupted
}

// Unit is one single-image generation call, fully resolved.
type Unit struct {
	Index          int
	Model          model.AIModel
	Prompt         string
	NegativePrompt string
	Guidance       float64
	// Seed is nil when the request had none; the renderer picks one.
	Seed          *int64
	StylePreset   string
	CombinedWith  string
	StyleStrength *float64
}

// Renderer executes one unit: inference, upload, and persistence.
type Renderer interface {
	Render(ctx context.Context, unit Unit) (model.GenerationResult, error)
}

// UnitReport describes one finished unit, successful or not.
type UnitReport struct {
	Unit     Unit
	Result   *model.GenerationResult
	Err      error
	Duration time.Duration
	// Cancelled is set when Err comes from the caller aborting the batch
	// rather than from the unit itself.
	Cancelled bool
}

// Batch is the caller's handle on one running request. Interrupt may be
// called from any goroutine.
type Batch struct {
	// OnProgress receives the completed percentage after each unit.
	OnProgress func(percent float64)
	// OnUnit receives every finished unit.
	OnUnit func(UnitReport)

	interrupted atomic.Bool
	state       atomic.String
	progress    atomic.Float64
}

func NewBatch() *Batch {
	b := &Batch{}
	b.state.Store(string(StateIdle))
	return b
}

// Interrupt stops the batch before its next unit. A unit already in
// flight runs to completion unless the caller also cancels its context.
func (b *Batch) Interrupt() {
	b.interrupted.Store(true)
}

func (b *Batch) Interrupted() bool { return b.interrupted.Load() }

func (b *Batch) State() State { return State(b.state.Load()) }

// Progress is the completed percentage, 0..100.
func (b *Batch) Progress() float64 { return b.progress.Load() }

func (b *Batch) setState(s State) { b.state.Store(string(s)) }

// Outcome is the terminal state of a batch and the results it collected,
// in submission order.
type Outcome struct {
	State   State
	Results []model.GenerationResult
}

// Orchestrator runs batches. One orchestrator is shared by all callers.
type Orchestrator struct {
	combiner *style.Combiner
	renderer Renderer
	limiter  *RateLimiter
	logger   *zap.Logger
}

func NewOrchestrator(combiner *style.Combiner, renderer Renderer, limiter *RateLimiter, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		combiner: combiner,
		renderer: renderer,
		limiter:  limiter,
		logger:   logger,
	}
}

// Plan is a validated, rate-limit-admitted batch ready to execute.
type Plan struct {
	Params model.GenerationParams
	Units  []Unit
}

// Run prepares and executes a batch. Interruption, by Interrupt or by
// cancelling ctx, ends it with StateInterrupted and a nil error.
func (o *Orchestrator) Run(ctx context.Context, b *Batch, params model.GenerationParams) (Outcome, error) {
	plan, err := o.Prepare(b, params)
	if err != nil {
		return Outcome{State: StateFailed}, err
	}
	return o.Execute(ctx, b, plan)
}

// Prepare validates params and charges the model's rate limit once for the
// whole batch. No external call is made.
func (o *Orchestrator) Prepare(b *Batch, params model.GenerationParams) (*Plan, error) {
	b.setState(StateValidating)
	units, err := o.plan(params)
	if err != nil {
		b.setState(StateFailed)
		return nil, err
	}

	b.setState(StateRateLimitCheck)
	if err := o.limiter.Allow(params.Model); err != nil {
		b.setState(StateFailed)
		return nil, err
	}
	return &Plan{Params: params, Units: units}, nil
}

// Execute renders the plan's units sequentially, in order.
func (o *Orchestrator) Execute(ctx context.Context, b *Batch, plan *Plan) (Outcome, error) {
	params, units := plan.Params, plan.Units

	b.setState(StateGenerating)
	o.logger.Info("batch started",
		zap.String("model", params.Model),
		zap.Int("batch_size", len(units)),
		zap.Strings("styles", params.Styles()),
	)

	results := make([]model.GenerationResult, 0, len(units))
	interrupted := func() (Outcome, error) {
		b.setState(StateInterrupted)
		o.logger.Info("batch interrupted",
			zap.Int("completed", len(results)),
			zap.Int("total", len(units)),
		)
		return Outcome{State: StateInterrupted, Results: results}, nil
	}

	for _, unit := range units {
		if b.Interrupted() || ctx.Err() != nil {
			return interrupted()
		}

		start := time.Now()
		res, err := o.renderer.Render(ctx, unit)
		report := UnitReport{
			Unit:      unit,
			Err:       err,
			Duration:  time.Since(start),
			Cancelled: err != nil && aborted(ctx, err),
		}
		if err == nil {
			report.Result = &res
		}
		if b.OnUnit != nil {
			b.OnUnit(report)
		}

		if report.Cancelled {
			return interrupted()
		}
		if err != nil {
			o.logger.Error("unit failed",
				zap.String("model", params.Model),
				zap.Int("unit", unit.Index),
				zap.Error(err),
			)
			b.setState(StateFailed)
			return Outcome{State: StateFailed, Results: results}, &BatchFailedError{
				Completed: len(results),
				Total:     len(units),
				Err:       err,
				Results:   results,
			}
		}

		results = append(results, res)
		percent := float64(len(results)) / float64(len(units)) * 100
		b.progress.Store(percent)
		if b.OnProgress != nil {
			b.OnProgress(percent)
		}
	}

	b.setState(StateCompleted)
	o.logger.Info("batch completed",
		zap.String("model", params.Model),
		zap.Int("units", len(results)),
	)
	return Outcome{State: StateCompleted, Results: results}, nil
}

// aborted reports whether err is the caller's cancellation of ctx.
func aborted(ctx context.Context, err error) bool {
	cause := ctx.Err()
	return cause != nil && errors.Is(err, cause)
}

// plan validates params and resolves every unit of the batch.
func (o *Orchestrator) plan(params model.GenerationParams) ([]Unit, error) {
	m, err := Validate(params)
	if err != nil {
		return nil, err
	}

	prompt := params.Prompt
	negative := params.NegativePrompt
	guidance := params.Guidance
	var preset, partner string

	if styles := params.Styles(); len(styles) > 0 {
		sr, err := o.combiner.Combine(styles, params.StyleWeights)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidParams, err)
		}
		prompt, negative, guidance = applyStyle(params, sr)
		preset = styles[0]
		if len(styles) > 1 {
			partner = styles[1]
		}
	}

	units := make([]Unit, params.BatchSize)
	for i := range units {
		units[i] = Unit{
			Index:          i,
			Model:          m,
			Prompt:         prompt,
			NegativePrompt: negative,
			Guidance:       guidance,
			StylePreset:    preset,
			CombinedWith:   partner,
			StyleStrength:  params.StyleStrength,
		}
		if params.Seed != nil {
			seed := *params.Seed + int64(i)
			units[i].Seed = &seed
		}
	}
	return units, nil
}

// Validate checks params against the model catalog and returns the model.
func Validate(params model.GenerationParams) (model.AIModel, error) {
	m, ok := model.FindModel(params.Model)
	if !ok {
		return model.AIModel{}, fmt.Errorf("%w: unknown model %q", ErrInvalidParams, params.Model)
	}

	n := utf8.RuneCountInString(params.Prompt)
	if n < MinPromptLength {
		return model.AIModel{}, fmt.Errorf("%w: prompt must be at least %d characters", ErrInvalidParams, MinPromptLength)
	}
	if n > m.MaxPromptLength {
		return model.AIModel{}, fmt.Errorf("%w: prompt exceeds maximum length of %d", ErrInvalidParams, m.MaxPromptLength)
	}

	if params.Guidance < MinGuidance || params.Guidance > MaxGuidance {
		return model.AIModel{}, fmt.Errorf("%w: guidance must be between %g and %g", ErrInvalidParams, MinGuidance, MaxGuidance)
	}

	if params.BatchSize < 1 || params.BatchSize > m.MaxBatchSize {
		return model.AIModel{}, fmt.Errorf("%w: batch size must be between 1 and %d", ErrInvalidParams, m.MaxBatchSize)
	}

	if params.Seed != nil && !m.Supports(model.FeatureSeed) {
		return model.AIModel{}, fmt.Errorf("%w: model %s does not accept a seed", ErrInvalidParams, m.ID)
	}

	if s := params.StyleStrength; s != nil && (*s < 0 || *s > 1) {
		return model.AIModel{}, fmt.Errorf("%w: style strength must be between 0 and 1", ErrInvalidParams)
	}
	return m, nil
}

// applyStyle appends the combined style to the user's prompt. Guidance is
// the style's own unless a strength blends it with the user's value.
func applyStyle(params model.GenerationParams, sr model.StyleResult) (prompt, negative string, guidance float64) {
	prompt = params.Prompt + ", " + sr.Prompt

	var negs []string
	for _, n := range []string{params.NegativePrompt, sr.NegativePrompt} {
		if n != "" {
			negs = append(negs, n)
		}
	}
	negative = strings.Join(negs, ", ")

	guidance = sr.Guidance
	if s := params.StyleStrength; s != nil {
		guidance = (1-*s)*params.Guidance + *s*sr.Guidance
	}
	return prompt, negative, guidance
}
