package saga

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Runner executes saga definitions synchronously on the caller's goroutine.
type Runner struct {
	logger *zap.Logger
}

// NewRunner creates a new saga runner
func NewRunner(logger *zap.Logger) *Runner {
	return &Runner{logger: logger}
}

// Run executes the steps of def in order, stopping at the first failure.
// Every completed step is released in reverse order before Run returns, on a
// context that outlives cancellation of ctx. The returned error is the failing
// step's error, wrapped.
func (r *Runner) Run(ctx context.Context, def SagaDefinition, data SagaData) (*SagaInstance, error) {
	if data == nil {
		data = SagaData{}
	}
	steps := def.Steps()

	instance := &SagaInstance{
		ID:         SagaID(uuid.NewString()),
		Definition: def.ID(),
		Stage:      StageReceived,
		Data:       data,
		Steps:      make([]StepExecution, len(steps)),
		StartedAt:  time.Now(),
	}
	for i, step := range steps {
		instance.Steps[i] = StepExecution{ID: step.ID(), State: StepStatePending}
	}

	logger := r.logger.With(zap.String("sagaID", string(instance.ID)), zap.String("definition", def.ID()))

	runCtx := ctx
	if timeout := def.Timeout(); timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	completed := 0
	defer func() {
		r.release(context.WithoutCancel(ctx), logger, instance, steps[:completed])
	}()

	for i, step := range steps {
		if err := r.executeStep(runCtx, logger, instance, i, step); err != nil {
			instance.Stage = StageFailed
			instance.Error = err.Error()
			r.finish(instance)
			return instance, fmt.Errorf("step %s failed: %w", step.ID(), err)
		}
		completed = i + 1
		instance.Stage = Stage(step.ID())
	}

	instance.Stage = StageResponded
	r.finish(instance)
	logger.Debug("Saga completed", zap.Duration("elapsed", time.Since(instance.StartedAt)))
	return instance, nil
}

func (r *Runner) executeStep(ctx context.Context, logger *zap.Logger, instance *SagaInstance, index int, step Step) error {
	exec := &instance.Steps[index]
	exec.State = StepStateRunning
	start := time.Now()
	exec.StartedAt = &start

	if err := ctx.Err(); err != nil {
		exec.State = StepStateFailed
		exec.Error = err.Error()
		return err
	}

	result := step.Execute(ctx, instance.Data)

	end := time.Now()
	exec.CompletedAt = &end

	if result.Error != nil {
		exec.State = StepStateFailed
		exec.Error = result.Error.Error()
		logger.Warn("Step failed",
			zap.String("stepID", string(step.ID())),
			zap.Duration("elapsed", end.Sub(start)),
			zap.Error(result.Error))
		return result.Error
	}

	exec.State = StepStateCompleted
	logger.Debug("Step completed",
		zap.String("stepID", string(step.ID())),
		zap.Duration("elapsed", end.Sub(start)))
	return nil
}

// release runs Release for completed steps in reverse order
func (r *Runner) release(ctx context.Context, logger *zap.Logger, instance *SagaInstance, completed []Step) {
	for i := len(completed) - 1; i >= 0; i-- {
		step := completed[i]
		if err := step.Release(ctx, instance.Data); err != nil {
			logger.Error("Release failed", zap.String("stepID", string(step.ID())), zap.Error(err))
			continue
		}
		instance.Steps[i].State = StepStateReleased
	}
}

func (r *Runner) finish(instance *SagaInstance) {
	now := time.Now()
	instance.CompletedAt = &now
}
