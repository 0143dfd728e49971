// Package orchestrator runs the staged enrichment -> candidate-selection ->
// matching -> compliance+route+persist -> notify pipeline triggered by
// listing/demand lifecycle events (SPEC_FULL.md §4.7, component C11).
//
// Implemented, in the teacher's idiom (internal/core/services/alert_processor.go's
// stage chain), as an explicit Stage pipeline: each stage is a function
// run in sequence by Pipeline.Run, with per-stage timing and a per-stage
// recovered-panic boundary so one stage's failure cannot corrupt sibling
// stages' already-persisted work.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Stage is one step of the orchestrator pipeline. It receives the shared
// run state and mutates it in place; a returned error stops the pipeline
// unless the stage is marked best-effort by the caller.
type Stage func(ctx context.Context, state *RunState) error

// namedStage pairs a Stage with a label used in log lines and error messages.
type namedStage struct {
	name            string
	stage           Stage
	failurePropagates bool
}

// Pipeline runs an ordered list of stages against one RunState, stopping at
// the first stage whose failure propagates.
type Pipeline struct {
	stages []namedStage
	logger *slog.Logger
}

// NewPipeline builds an empty Pipeline; use AddStage to append steps.
func NewPipeline(logger *slog.Logger) *Pipeline {
	return &Pipeline{logger: logger.With("component", "orchestrator_pipeline")}
}

// AddStage appends a stage. failurePropagates controls whether a non-nil
// error from this stage halts the run (true) or is logged and swallowed so
// later stages still execute (false) — enrichment failures never propagate,
// per SPEC_FULL.md §4.7 step 1.
func (p *Pipeline) AddStage(name string, stage Stage, failurePropagates bool) {
	p.stages = append(p.stages, namedStage{name: name, stage: stage, failurePropagates: failurePropagates})
}

// Run executes every stage in order against state, honoring context
// cancellation at stage boundaries.
func (p *Pipeline) Run(ctx context.Context, state *RunState) error {
	for _, s := range p.stages {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("orchestrator: canceled before stage %s: %w", s.name, err)
		}

		start := time.Now()
		err := p.runStage(ctx, s, state)
		duration := time.Since(start)

		if err != nil {
			p.logger.Error("stage failed", "stage", s.name, "duration_ms", duration.Milliseconds(), "error", err, "propagates", s.failurePropagates)
			if s.failurePropagates {
				return fmt.Errorf("orchestrator: stage %s: %w", s.name, err)
			}
			continue
		}
		p.logger.Debug("stage complete", "stage", s.name, "duration_ms", duration.Milliseconds())
	}
	return nil
}

// runStage wraps a single stage invocation with a recovered-panic boundary
// so a single defective stage can never take down the caller's goroutine.
// Changes the stage made to the run state before panicking are kept, not
// rolled back.
func (p *Pipeline) runStage(ctx context.Context, s namedStage, state *RunState) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("orchestrator: stage %s panicked: %v", s.name, r)
		}
	}()
	return s.stage(ctx, state)
}
