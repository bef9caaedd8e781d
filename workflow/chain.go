package workflow

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/flowmesh/flowmesh/types"
)

const tracerName = "github.com/flowmesh/flowmesh/workflow"

// ChainEngine executes a workflow's steps strictly in declared order.
// Declared step dependencies are informational only and not enforced.
type ChainEngine struct {
	handlers *HandlerRegistry
	state    StateStore
	errs     *ErrorStream
	logger   *zap.Logger
	tracer   trace.Tracer
}

// NewChainEngine creates a chain engine with injected collaborators.
func NewChainEngine(handlers *HandlerRegistry, state StateStore, errs *ErrorStream, logger *zap.Logger) *ChainEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChainEngine{
		handlers: handlers,
		state:    state,
		errs:     errs,
		logger:   logger.With(zap.String("component", "chain_engine")),
		tracer:   otel.Tracer(tracerName),
	}
}

// Execute runs the chain. The running data map is seeded from input; each
// step's map-shaped result is merged in with right-biased overwrite, and
// every raw result is recorded under the step's id. Any handler failure
// aborts the remaining steps, is published on the error stream, and
// surfaces as an execution-failed error; partial step results are discarded.
func (e *ChainEngine) Execute(ctx context.Context, wf *Workflow, executionID string, input map[string]any) (*Output, error) {
	logger := e.logger
	if !wf.Config.LoggingEnabled {
		logger = zap.NewNop()
	}

	runCtx := ctx
	if wf.Config.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, wf.Config.Timeout)
		defer cancel()
	}

	runCtx, span := e.tracer.Start(runCtx, "chain.execute",
		trace.WithAttributes(
			attribute.String("workflow.id", wf.ID),
			attribute.String("execution.id", executionID),
			attribute.Int("workflow.steps", len(wf.Steps)),
		))
	defer span.End()

	logger.Info("starting chain execution",
		zap.String("workflow_id", wf.ID),
		zap.String("execution_id", executionID),
		zap.Int("steps", len(wf.Steps)),
	)

	start := time.Now()
	current := copyMap(input)
	stepResults := make(map[string]any, len(wf.Steps))

	for i, step := range wf.Steps {
		select {
		case <-runCtx.Done():
			return nil, e.fail(wf, executionID, step.ID, e.deadlineError(ctx, runCtx))
		default:
		}

		handler, ok := e.handlers.Lookup(step.Type)
		if !ok {
			err := types.Errorf(types.ErrInvalidConfiguration, "no handler registered for step type %q", step.Type)
			return nil, e.fail(wf, executionID, step.ID, err)
		}

		logger.Debug("executing step",
			zap.String("step_id", step.ID),
			zap.String("step_type", string(step.Type)),
			zap.Int("position", i),
		)

		stepStart := time.Now()
		result, err := e.executeStep(runCtx, step, handler, current)
		if err != nil {
			if runCtx.Err() != nil {
				err = e.deadlineError(ctx, runCtx)
			}
			logger.Error("step failed",
				zap.String("step_id", step.ID),
				zap.Duration("duration", time.Since(stepStart)),
				zap.Error(err),
			)
			return nil, e.fail(wf, executionID, step.ID, err)
		}

		if m, isMap := result.(map[string]any); isMap {
			mergeInto(current, m)
		}
		stepResults[step.ID] = result

		logger.Debug("step completed",
			zap.String("step_id", step.ID),
			zap.Duration("duration", time.Since(stepStart)),
		)
	}

	elapsed := time.Since(start)

	if wf.Config.MemoryEnabled && e.state != nil {
		if err := e.state.Save(runCtx, "workflow:"+wf.ID+":result", current, "chain"); err != nil {
			logger.Warn("failed to persist chain result to state store", zap.Error(err))
		}
	}

	wf.markExecuted(time.Now())

	logger.Info("chain execution completed",
		zap.String("workflow_id", wf.ID),
		zap.String("execution_id", executionID),
		zap.Duration("elapsed", elapsed),
	)

	return &Output{
		Result: current,
		Metadata: map[string]any{
			"workflow_id": wf.ID,
			"elapsed":     elapsed,
		},
		Elapsed:     elapsed,
		StepResults: stepResults,
	}, nil
}

// executeStep dispatches one step to its handler with a per-step span.
func (e *ChainEngine) executeStep(ctx context.Context, step Step, handler Handler, current map[string]any) (any, error) {
	ctx, span := e.tracer.Start(ctx, "chain.step",
		trace.WithAttributes(
			attribute.String("step.id", step.ID),
			attribute.String("step.type", string(step.Type)),
		))
	defer span.End()

	return handler.Execute(ctx, current, step.Config)
}

// deadlineError distinguishes the engine's own timeout from caller
// cancellation: the former gets a distinct timeout error kind.
func (e *ChainEngine) deadlineError(callerCtx, runCtx context.Context) error {
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) && callerCtx.Err() == nil {
		return types.NewError(types.ErrExecutionTimeout, "workflow timeout exceeded").WithCause(runCtx.Err())
	}
	return types.NewError(types.ErrExecutionFailed, "execution cancelled").WithCause(callerCtx.Err())
}

// fail publishes the failure on the passive error stream and wraps it for
// the caller. Errors that already carry a flowmesh code pass through.
func (e *ChainEngine) fail(wf *Workflow, executionID, stepID string, err error) error {
	if e.errs != nil {
		e.errs.Publish(ErrorEvent{
			WorkflowID:  wf.ID,
			ExecutionID: executionID,
			Stage:       "chain",
			Err:         err,
			At:          time.Now(),
		})
	}
	if types.GetErrorCode(err) != "" {
		return err
	}
	return types.Errorf(types.ErrExecutionFailed, "step %s failed: %s", stepID, err.Error()).WithCause(err)
}
