// Package saga runs multi-step store operations with compensating actions.
//
// The store offers no transaction spanning node writes and index writes, so
// sequences like create-then-index compensate on failure instead: completed
// steps register a compensation, and when a later step fails the registered
// compensations run in reverse order. The failing step's error is returned
// unchanged; compensation failures are logged, never substituted for it.
package saga

import (
	"context"

	"go.uber.org/zap"
)

// Step is one unit of a saga: an action plus an optional compensation to
// undo it if a later step fails.
type Step struct {
	Name       string
	Execute    func(ctx context.Context) error
	Compensate func(ctx context.Context) error
}

// Saga executes steps in order with reverse-order compensation.
type Saga struct {
	name   string
	logger *zap.Logger
}

// New creates a saga with the given name for logging.
func New(name string, logger *zap.Logger) *Saga {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Saga{name: name, logger: logger}
}

// Run executes the steps in order. On the first failure it runs the
// compensations of all completed steps in reverse order and returns the
// failing step's error unchanged.
func (s *Saga) Run(ctx context.Context, steps ...Step) error {
	compensations := make([]Step, 0, len(steps))

	for _, step := range steps {
		if err := step.Execute(ctx); err != nil {
			s.logger.Debug("saga step failed, compensating",
				zap.String("saga", s.name),
				zap.String("step", step.Name),
				zap.Int("completed_steps", len(compensations)),
				zap.Error(err),
			)
			s.compensate(ctx, compensations)
			return err
		}
		if step.Compensate != nil {
			compensations = append(compensations, step)
		}
	}
	return nil
}

// compensate undoes completed steps in reverse order. Failures are logged
// and remaining compensations still run.
func (s *Saga) compensate(ctx context.Context, completed []Step) {
	for i := len(completed) - 1; i >= 0; i-- {
		step := completed[i]
		if err := step.Compensate(ctx); err != nil {
			s.logger.Error("saga compensation failed",
				zap.String("saga", s.name),
				zap.String("step", step.Name),
				zap.Error(err),
			)
		}
	}
}
