package workflow

import (
	"context"
	"errors"
	"math/rand"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/flowmesh/flowmesh/types"
)

// GraphEngine executes nodes and edges with dependency-ordered scheduling:
// entry detection, Kahn's algorithm for the topological order, cycle
// detection, then node execution in that order.
//
// Edges are purely structural for scheduling. Edge conditions are
// evaluated by EvaluateEdgeCondition but never consulted here; see the
// package documentation for the rationale.
type GraphEngine struct {
	state  StateStore
	errs   *ErrorStream
	logger *zap.Logger
	tracer trace.Tracer
}

// NewGraphEngine creates a graph engine with injected collaborators.
func NewGraphEngine(state StateStore, errs *ErrorStream, logger *zap.Logger) *GraphEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GraphEngine{
		state:  state,
		errs:   errs,
		logger: logger.With(zap.String("component", "graph_engine")),
		tracer: otel.Tracer(tracerName),
	}
}

// Execute validates the graph and runs its nodes in topological order.
// Each node receives the accumulated map of all prior node results keyed
// by node id, except input-typed nodes, which receive the workflow's
// original input. No handler runs when validation fails.
func (e *GraphEngine) Execute(ctx context.Context, wf *Workflow, executionID string, input, callCtx map[string]any) (*Output, error) {
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

	runCtx, span := e.tracer.Start(runCtx, "graph.execute",
		trace.WithAttributes(
			attribute.String("workflow.id", wf.ID),
			attribute.String("execution.id", executionID),
			attribute.Int("workflow.nodes", len(wf.Nodes)),
			attribute.Int("workflow.edges", len(wf.Edges)),
		))
	defer span.End()

	logger.Info("starting graph execution",
		zap.String("workflow_id", wf.ID),
		zap.String("execution_id", executionID),
		zap.Int("nodes", len(wf.Nodes)),
		zap.Int("edges", len(wf.Edges)),
	)

	start := time.Now()

	entries := entryNodes(wf)
	if len(entries) == 0 {
		err := types.NewError(types.ErrInvalidGraphStructure, "graph has no entry nodes")
		return nil, e.fail(wf, executionID, err)
	}

	levels, total := topologicalLevels(wf)
	ordered := 0
	for _, level := range levels {
		ordered += len(level)
	}
	// A shorter ordering than the node population signals a cycle.
	if ordered < total {
		err := types.NewError(types.ErrInvalidGraphStructure, "cycle detected in workflow graph")
		return nil, e.fail(wf, executionID, err)
	}

	results := make(map[string]any, total)
	path := make([]string, 0, total)

	for _, level := range levels {
		if err := runCtx.Err(); err != nil {
			return nil, e.fail(wf, executionID, e.deadlineError(ctx, runCtx))
		}

		var err error
		if wf.Config.Parallel && len(level) > 1 {
			err = e.runLevelParallel(runCtx, wf, level, input, callCtx, results, logger)
		} else {
			err = e.runLevelSequential(runCtx, wf, level, input, callCtx, results, logger)
		}
		if err != nil {
			if runCtx.Err() != nil {
				err = e.deadlineError(ctx, runCtx)
			}
			return nil, e.fail(wf, executionID, err)
		}
		path = append(path, level...)
	}

	elapsed := time.Since(start)

	if wf.Config.MemoryEnabled && e.state != nil {
		if err := e.state.Save(runCtx, "workflow:"+wf.ID+":result", results, "graph"); err != nil {
			logger.Warn("failed to persist graph result to state store", zap.Error(err))
		}
	}

	wf.markExecuted(time.Now())

	logger.Info("graph execution completed",
		zap.String("workflow_id", wf.ID),
		zap.String("execution_id", executionID),
		zap.Int("nodes_executed", len(path)),
		zap.Duration("elapsed", elapsed),
	)

	return &Output{
		Result: results,
		Metadata: map[string]any{
			"workflow_id": wf.ID,
			"elapsed":     elapsed,
		},
		Elapsed:     elapsed,
		StepResults: results,
		Path:        path,
	}, nil
}

// runLevelSequential executes one topological level in declaration order.
func (e *GraphEngine) runLevelSequential(ctx context.Context, wf *Workflow, level []string, input, callCtx map[string]any, results map[string]any, logger *zap.Logger) error {
	for _, id := range level {
		result, err := e.executeNode(ctx, wf, id, input, callCtx, results, logger)
		if err != nil {
			return err
		}
		results[id] = result
	}
	return nil
}

// runLevelParallel executes one topological level concurrently. Every node
// in a level has all dependencies satisfied, so each receives the same
// snapshot of prior results; outcomes are folded back in declaration order
// to keep results and path deterministic.
func (e *GraphEngine) runLevelParallel(ctx context.Context, wf *Workflow, level []string, input, callCtx map[string]any, results map[string]any, logger *zap.Logger) error {
	levelResults := make([]any, len(level))

	g, gctx := errgroup.WithContext(ctx)
	for i, id := range level {
		g.Go(func() error {
			result, err := e.executeNode(gctx, wf, id, input, callCtx, results, logger)
			if err != nil {
				return err
			}
			// Each goroutine owns a distinct slice slot.
			levelResults[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, id := range level {
		results[id] = levelResults[i]
	}
	return nil
}

// executeNode dispatches one scheduled node id to its processor.
func (e *GraphEngine) executeNode(ctx context.Context, wf *Workflow, id string, input, callCtx map[string]any, results map[string]any, logger *zap.Logger) (any, error) {
	node, ok := wf.node(id)
	if !ok {
		return nil, types.Errorf(types.ErrNodeNotFound, "node %q referenced by an edge is not defined", id)
	}
	if node.Processor == nil {
		return nil, types.Errorf(types.ErrInvalidConfiguration, "node %q has no processor", id)
	}

	// Input nodes see the workflow's original input; everything else sees
	// the accumulated results of all prior nodes, not just direct
	// predecessors.
	var nodeInput map[string]any
	if node.Type == NodeInput {
		nodeInput = copyMap(input)
	} else {
		nodeInput = copyMap(results)
	}

	logger.Debug("executing node",
		zap.String("node_id", node.ID),
		zap.String("node_type", string(node.Type)),
	)

	ctx, span := e.tracer.Start(ctx, "graph.node",
		trace.WithAttributes(
			attribute.String("node.id", node.ID),
			attribute.String("node.type", string(node.Type)),
		))
	defer span.End()

	nodeStart := time.Now()
	result, err := node.Processor.Process(ctx, nodeInput, callCtx)
	if err != nil {
		logger.Error("node execution failed",
			zap.String("node_id", node.ID),
			zap.Duration("duration", time.Since(nodeStart)),
			zap.Error(err),
		)
		return nil, types.Errorf(types.ErrExecutionFailed, "node %s failed: %s", node.ID, err.Error()).WithCause(err)
	}

	logger.Debug("node execution completed",
		zap.String("node_id", node.ID),
		zap.Duration("duration", time.Since(nodeStart)),
	)
	return result, nil
}

// entryNodes returns nodes with no incoming edges, in declaration order.
func entryNodes(wf *Workflow) []string {
	targets := make(map[string]struct{}, len(wf.Edges))
	for _, edge := range wf.Edges {
		targets[edge.To] = struct{}{}
	}

	var entries []string
	for _, n := range wf.Nodes {
		if _, hasIncoming := targets[n.ID]; !hasIncoming {
			entries = append(entries, n.ID)
		}
	}
	return entries
}

// topologicalLevels runs Kahn's algorithm over the edge structure and
// returns the order grouped into dependency levels, plus the total node
// population (declared nodes united with edge endpoints, so an edge
// referencing an undeclared node surfaces as NODE_NOT_FOUND at execution
// rather than being silently dropped).
//
// Tie-break within a level is declaration order: the ready set is seeded
// in node declaration order and neighbors are visited in edge declaration
// order, so the computed order is deterministic.
func topologicalLevels(wf *Workflow) ([][]string, int) {
	inDegree := make(map[string]int, len(wf.Nodes))
	order := make([]string, 0, len(wf.Nodes))

	for _, n := range wf.Nodes {
		inDegree[n.ID] = 0
		order = append(order, n.ID)
	}

	adjacency := make(map[string][]string, len(wf.Edges))
	for _, edge := range wf.Edges {
		if _, known := inDegree[edge.From]; !known {
			inDegree[edge.From] = 0
			order = append(order, edge.From)
		}
		if _, known := inDegree[edge.To]; !known {
			inDegree[edge.To] = 0
			order = append(order, edge.To)
		}
		adjacency[edge.From] = append(adjacency[edge.From], edge.To)
		inDegree[edge.To]++
	}

	var queue []string
	for _, id := range order {
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	var levels [][]string
	for len(queue) > 0 {
		level := queue
		queue = nil
		for _, id := range level {
			for _, next := range adjacency[id] {
				inDegree[next]--
				if inDegree[next] == 0 {
					queue = append(queue, next)
				}
			}
		}
		levels = append(levels, level)
	}

	return levels, len(order)
}

// EvaluateEdgeCondition evaluates an edge's condition annotation. A nil
// condition and the always kind are true; an expression condition is true
// iff its expression is non-empty; a probability condition is true with
// probability equal to the expression parsed as a number (false when
// unparseable); custom conditions are treated as true.
//
// The scheduler does not call this: edges gate nothing at execution time.
// It exists for observers and for workflow authors validating definitions.
func EvaluateEdgeCondition(cond *EdgeCondition) bool {
	if cond == nil {
		return true
	}
	switch cond.Kind {
	case EdgeAlways, EdgeCustom:
		return true
	case EdgeExpression:
		return cond.Expression != ""
	case EdgeProbability:
		p, err := strconv.ParseFloat(cond.Expression, 64)
		if err != nil {
			return false
		}
		return rand.Float64() < p
	}
	return true
}

// deadlineError distinguishes the engine's own timeout from caller
// cancellation.
func (e *GraphEngine) deadlineError(callerCtx, runCtx context.Context) error {
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) && callerCtx.Err() == nil {
		return types.NewError(types.ErrExecutionTimeout, "workflow timeout exceeded").WithCause(runCtx.Err())
	}
	return types.NewError(types.ErrExecutionFailed, "execution cancelled").WithCause(callerCtx.Err())
}

// fail publishes the failure on the passive error stream and returns the
// error for the caller, wrapping uncoded errors as execution failures.
func (e *GraphEngine) fail(wf *Workflow, executionID string, err error) error {
	if e.errs != nil {
		e.errs.Publish(ErrorEvent{
			WorkflowID:  wf.ID,
			ExecutionID: executionID,
			Stage:       "graph",
			Err:         err,
			At:          time.Now(),
		})
	}
	if types.GetErrorCode(err) != "" {
		return err
	}
	return types.Errorf(types.ErrExecutionFailed, "graph execution failed: %s", err.Error()).WithCause(err)
}
