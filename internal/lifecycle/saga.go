package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// step is one action of a multi-step operation with an optional compensating action
type step struct {
	name string
	do   func(ctx context.Context) error
	undo func(ctx context.Context) error
}

// saga runs steps in order. When a step fails, the compensations of the
// steps that already completed run in reverse order.
type saga struct {
	steps  []step
	logger *zap.Logger
}

func (s *saga) add(name string, do, undo func(ctx context.Context) error) {
	s.steps = append(s.steps, step{name: name, do: do, undo: undo})
}

func (s *saga) run(ctx context.Context) error {
	for i, st := range s.steps {
		s.logger.Debug("running step", zap.String("step", st.name))
		err := st.do(ctx)
		if err == nil {
			continue
		}

		stepErr := fmt.Errorf("%s: %w", st.name, err)
		if rbErr := s.rollback(context.WithoutCancel(ctx), s.steps[:i]); rbErr != nil {
			return errors.Join(stepErr, rbErr)
		}
		return stepErr
	}
	return nil
}

func (s *saga) rollback(ctx context.Context, done []step) error {
	var errs []error
	for i := len(done) - 1; i >= 0; i-- {
		st := done[i]
		if st.undo == nil {
			continue
		}
		s.logger.Debug("rolling back step", zap.String("step", st.name))
		if err := st.undo(ctx); err != nil {
			s.logger.Error("rollback failed", zap.String("step", st.name), zap.Error(err))
			errs = append(errs, fmt.Errorf("rollback of %s failed: %w", st.name, err))
		}
	}
	return errors.Join(errs...)
}
