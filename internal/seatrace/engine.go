package seatrace

import (
	"context"
	"fmt"

	"fitbook/pkg/logger"
)

type Step struct {
	Name    string
	Execute func(ctx context.Context, d *Drill) error
}

func NewStep(name string, execute func(ctx context.Context, d *Drill) error) Step {
	return Step{
		Name:    name,
		Execute: execute,
	}
}

type Engine struct {
	steps   []Step
	cleanup []Step
	log     *logger.Logger
}

// NewEngine runs steps in order and then every cleanup step, whether or not a
// step failed.
func NewEngine(log *logger.Logger, steps []Step, cleanup ...Step) *Engine {
	return &Engine{steps: steps, cleanup: cleanup, log: log}
}

func (e *Engine) Run(ctx context.Context, d *Drill) (err error) {
	defer func() {
		cleanupCtx := context.WithoutCancel(ctx)
		for _, step := range e.cleanup {
			if cerr := step.Execute(cleanupCtx, d); cerr != nil {
				e.log.Warn("Cleanup step failed", "step", step.Name, "error", cerr)
			}
		}
	}()

	for _, step := range e.steps {
		e.log.Debug("Running step", "step", step.Name)
		if err := step.Execute(ctx, d); err != nil {
			return fmt.Errorf("%s step failed: %w", step.Name, err)
		}
	}
	return nil
}

// runLimited executes fn once a slot in sem is free. The slot is released even
// if fn panics.
func runLimited(sem chan struct{}, fn func()) {
	sem <- struct{}{}
	defer func() { <-sem }()
	fn()
}
