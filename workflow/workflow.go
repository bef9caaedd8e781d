package workflow

import (
	"context"
	"sync"
	"time"

	"github.com/flowmesh/flowmesh/types"
)

// Kind identifies the execution topology of a workflow.
type Kind string

const (
	// KindChain is an ordered sequence of steps executed sequentially.
	KindChain Kind = "chain"
	// KindGraph is a set of nodes and directed edges executed in topological order.
	KindGraph Kind = "graph"
)

// StepType is the closed set of chain step kinds. Dispatch is purely by
// this tag; adding a step type is a compile-time-checked change at the
// single dispatch site in the handler registry defaults.
type StepType string

const (
	StepPrompt      StepType = "prompt"
	StepGeneration  StepType = "generation"
	StepToolCall    StepType = "tool_call"
	StepMemoryRead  StepType = "memory_read"
	StepParse       StepType = "parse"
	StepConditional StepType = "conditional"
	StepTransform   StepType = "transform"
	StepCustom      StepType = "custom"
)

// NodeType is the closed set of graph node kinds.
type NodeType string

const (
	NodeInput      NodeType = "input"
	NodeOutput     NodeType = "output"
	NodeProcessing NodeType = "processing"
	NodeDecision   NodeType = "decision"
	NodeAggregator NodeType = "aggregator"
	NodeTransform  NodeType = "transform"
	NodeValidator  NodeType = "validator"
	NodeCustom     NodeType = "custom"
)

// Handler executes one chain step. Implementations are pluggable black
// boxes: input is the running data map, cfg is the step's own free-form
// configuration.
type Handler interface {
	Execute(ctx context.Context, input map[string]any, cfg types.Values) (any, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, input map[string]any, cfg types.Values) (any, error)

// Execute implements Handler.
func (f HandlerFunc) Execute(ctx context.Context, input map[string]any, cfg types.Values) (any, error) {
	return f(ctx, input, cfg)
}

// NodeProcessor executes one graph node. input is the accumulated map of
// all prior node results (or the workflow's original input for input-typed
// nodes); callCtx is the per-call free-form context map.
type NodeProcessor interface {
	Process(ctx context.Context, input map[string]any, callCtx map[string]any) (any, error)
}

// ProcessorFunc adapts a function to the NodeProcessor interface.
type ProcessorFunc func(ctx context.Context, input map[string]any, callCtx map[string]any) (any, error)

// Process implements NodeProcessor.
func (f ProcessorFunc) Process(ctx context.Context, input map[string]any, callCtx map[string]any) (any, error) {
	return f(ctx, input, callCtx)
}

// Step is one unit of work within a chain.
type Step struct {
	// ID is unique within the owning workflow.
	ID string
	// Name is a human-readable label.
	Name string
	// Type selects the handler at dispatch time.
	Type StepType
	// DependsOn is informational only; chain order is the declared order.
	DependsOn []string
	// Config is interpreted only by this step's handler.
	Config types.Values
}

// Node is one unit of work within a graph. The processor is injected at
// construction, never selected by runtime type inspection.
type Node struct {
	// ID is unique within the owning workflow.
	ID string
	// Name is a human-readable label.
	Name string
	// Type tags the node's role in the graph.
	Type NodeType
	// Processor executes the node.
	Processor NodeProcessor
	// Config is interpreted only by this node's processor.
	Config types.Values
}

// EdgeConditionKind identifies how an edge condition is evaluated.
type EdgeConditionKind string

const (
	// EdgeAlways is unconditionally true.
	EdgeAlways EdgeConditionKind = "always"
	// EdgeExpression is true iff the expression string is non-empty.
	EdgeExpression EdgeConditionKind = "expression"
	// EdgeProbability is true with probability Expression parsed as a number.
	EdgeProbability EdgeConditionKind = "probability"
	// EdgeCustom is reserved for caller-defined evaluation; treated as true.
	EdgeCustom EdgeConditionKind = "custom"
)

// EdgeCondition annotates an edge. Scheduling is purely structural: the
// graph engine never consults conditions (see EvaluateEdgeCondition).
type EdgeCondition struct {
	Kind       EdgeConditionKind
	Expression string
}

// Edge is a directed dependency between two nodes.
type Edge struct {
	From      string
	To        string
	Condition *EdgeCondition
	Weight    float64
}

// Config carries per-workflow execution settings.
type Config struct {
	// Timeout bounds one full chain/graph execution. Zero disables the guard.
	Timeout time.Duration
	// RetryAttempts is declared but not consulted by either engine; handler
	// failures abort the execution immediately. Kept as forward-compatible
	// configuration.
	RetryAttempts int
	// Parallel opts a graph into per-level concurrent node execution.
	// Chains are ordered by definition and always run sequentially.
	Parallel bool
	// MemoryEnabled lets the engines publish the final result to the
	// shared state store.
	MemoryEnabled bool
	// LoggingEnabled controls per-execution engine logging.
	LoggingEnabled bool
}

// DefaultConfig returns the configuration applied when none is supplied.
func DefaultConfig() Config {
	return Config{
		Timeout:        30 * time.Second,
		RetryAttempts:  0,
		Parallel:       false,
		MemoryEnabled:  false,
		LoggingEnabled: true,
	}
}

// Workflow is an immutable definition owned by the Coordinator, except for
// the runtime counters guarded by mu.
type Workflow struct {
	ID        string
	Name      string
	Kind      Kind
	Steps     []Step
	Nodes     []Node
	Edges     []Edge
	Config    Config
	CreatedAt time.Time

	mu           sync.Mutex
	executions   int64
	lastExecuted time.Time
}

// Executions returns how many times the workflow completed successfully.
func (w *Workflow) Executions() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.executions
}

// LastExecuted returns the completion time of the most recent successful run.
// The zero time means the workflow has never completed.
func (w *Workflow) LastExecuted() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastExecuted
}

// markExecuted records a successful run.
func (w *Workflow) markExecuted(at time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.executions++
	w.lastExecuted = at
}

// node returns the node with the given id, scanning declaration order.
func (w *Workflow) node(id string) (*Node, bool) {
	for i := range w.Nodes {
		if w.Nodes[i].ID == id {
			return &w.Nodes[i], true
		}
	}
	return nil, false
}

// validate checks structural invariants that hold at creation time.
// Acyclicity is deliberately not checked here; it surfaces at execution.
func (w *Workflow) validate() error {
	switch w.Kind {
	case KindChain:
		seen := make(map[string]struct{}, len(w.Steps))
		for _, s := range w.Steps {
			if s.ID == "" {
				return types.NewError(types.ErrInvalidConfiguration, "step id is required")
			}
			if _, dup := seen[s.ID]; dup {
				return types.Errorf(types.ErrInvalidConfiguration, "duplicate step id %q", s.ID)
			}
			seen[s.ID] = struct{}{}
		}
	case KindGraph:
		seen := make(map[string]struct{}, len(w.Nodes))
		for _, n := range w.Nodes {
			if n.ID == "" {
				return types.NewError(types.ErrInvalidConfiguration, "node id is required")
			}
			if _, dup := seen[n.ID]; dup {
				return types.Errorf(types.ErrInvalidConfiguration, "duplicate node id %q", n.ID)
			}
			seen[n.ID] = struct{}{}
		}
	default:
		return types.Errorf(types.ErrInvalidConfiguration, "unknown workflow kind %q", w.Kind)
	}
	return nil
}

// ExecutionStatus is the lifecycle state of one invocation. A record is
// terminal once non-running; there is no transition back.
type ExecutionStatus string

const (
	StatusRunning   ExecutionStatus = "running"
	StatusCompleted ExecutionStatus = "completed"
	StatusFailed    ExecutionStatus = "failed"
	StatusCancelled ExecutionStatus = "cancelled"
)

// ExecutionRecord is the audit-trail entry for one workflow invocation.
// Records are appended at invocation time and mutated in place at
// completion, never deleted automatically.
type ExecutionRecord struct {
	ID         string
	WorkflowID string
	StartedAt  time.Time
	Input      map[string]any
	EndedAt    time.Time
	Output     *Output
	Err        string
	Status     ExecutionStatus
}

// Output is the aggregated result of one invocation.
type Output struct {
	// Result is the final data map. For graphs it equals StepResults.
	Result map[string]any
	// Metadata carries the workflow id and elapsed time.
	Metadata map[string]any
	// Elapsed is the wall-clock execution duration.
	Elapsed time.Duration
	// StepResults maps each step/node id to its raw handler result.
	StepResults map[string]any
	// Path is the ordered node-visitation sequence. Graph executions only.
	Path []string
}

// copyMap shallow-copies a data map, returning an empty map for nil input.
func copyMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// mergeInto merges src into dst with right-biased overwrite: src wins on
// key conflicts.
func mergeInto(dst, src map[string]any) {
	for k, v := range src {
		dst[k] = v
	}
}
