package workflow

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/flowmesh/flowmesh/config"
	"github.com/flowmesh/flowmesh/internal/metrics"
	"github.com/flowmesh/flowmesh/types"
)

// Metrics are the coordinator's aggregate execution statistics, recomputed
// after every execution on both the success and failure paths.
type Metrics struct {
	// Total is the execution-history length.
	Total int
	// Successful counts records with status completed.
	Successful int
	// Failed counts records with status failed.
	Failed int
	// AverageExecutionTime is the mean duration over completed entries only.
	AverageExecutionTime time.Duration
	// SuccessRate is Successful / max(Total, 1).
	SuccessRate float64
}

// Coordinator is the sole external-facing façade. It owns the workflow
// registry, the execution history, one instance of each handler registry,
// the shared state store, and both engines; engines receive their
// collaborators by injection at Initialize.
type Coordinator struct {
	mu          sync.Mutex
	initialized bool

	logger     *zap.Logger
	settings   config.Settings
	registerer prometheus.Registerer
	stateOverr StateStore

	state      StateStore
	handlers   *HandlerRegistry
	processors *ProcessorRegistry
	chain      *ChainEngine
	graph      *GraphEngine
	errs       *ErrorStream
	collector  *metrics.Collector

	workflows map[string]*Workflow
	order     []string
	history   []*ExecutionRecord
	metrics   Metrics
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets a custom zap logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Coordinator) { c.logger = logger }
}

// WithSettings applies coordinator-level settings.
func WithSettings(s config.Settings) Option {
	return func(c *Coordinator) { c.settings = s }
}

// WithStateStore injects a pre-built state store, overriding the one the
// settings would select.
func WithStateStore(store StateStore) Option {
	return func(c *Coordinator) { c.stateOverr = store }
}

// WithMetricsRegisterer enables prometheus metrics on the given registerer.
func WithMetricsRegisterer(reg prometheus.Registerer) Option {
	return func(c *Coordinator) { c.registerer = reg }
}

// NewCoordinator creates an unstarted coordinator. Call Initialize before
// any other operation.
func NewCoordinator(opts ...Option) *Coordinator {
	c := &Coordinator{
		settings:  config.Default(),
		workflows: make(map[string]*Workflow),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	c.logger = c.logger.With(zap.String("component", "coordinator"))
	return c
}

// Initialize starts the state store, registries, and both engines. It is
// idempotent and a precondition for every other operation.
func (c *Coordinator) Initialize() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.initialized {
		return nil
	}

	switch {
	case c.stateOverr != nil:
		c.state = c.stateOverr
	case c.settings.Redis != nil:
		c.state = NewRedisStateStore(RedisStateStoreConfig{
			Addr:      c.settings.Redis.Addr,
			Password:  c.settings.Redis.Password,
			DB:        c.settings.Redis.DB,
			KeyPrefix: c.settings.Redis.KeyPrefix,
		}, c.logger)
	default:
		c.state = NewMemoryStateStore(c.logger)
	}

	c.handlers = NewHandlerRegistry(c.logger)
	registerDefaultHandlers(c.handlers, c.state)

	c.processors = NewProcessorRegistry(c.logger)
	registerDefaultProcessors(c.processors)

	c.errs = NewErrorStream(c.settings.ErrorBufferSize, c.logger)
	c.chain = NewChainEngine(c.handlers, c.state, c.errs, c.logger)
	c.graph = NewGraphEngine(c.state, c.errs, c.logger)

	if c.registerer != nil {
		collector, err := metrics.NewCollector(c.settings.MetricsNamespace, c.registerer, c.logger)
		if err != nil {
			return types.NewError(types.ErrInvalidConfiguration, "register metrics").WithCause(err)
		}
		c.collector = collector
	}

	c.initialized = true
	c.logger.Info("coordinator initialized")
	return nil
}

// defaultWorkflowConfig derives a Config from the coordinator settings.
func (c *Coordinator) defaultWorkflowConfig() Config {
	d := c.settings.DefaultWorkflow
	return Config{
		Timeout:        time.Duration(d.TimeoutSeconds * float64(time.Second)),
		RetryAttempts:  d.RetryAttempts,
		Parallel:       d.Parallel,
		MemoryEnabled:  d.MemoryEnabled,
		LoggingEnabled: d.LoggingEnabled,
	}
}

// CreateChainWorkflow registers a chain workflow and returns it. A nil cfg
// applies the coordinator's default configuration.
func (c *Coordinator) CreateChainWorkflow(name string, steps []Step, cfg *Config) (*Workflow, error) {
	return c.createWorkflow(&Workflow{
		Name:  name,
		Kind:  KindChain,
		Steps: steps,
	}, cfg)
}

// CreateGraphWorkflow registers a graph workflow and returns it. Graph
// acyclicity is not validated here; it surfaces at execution time.
func (c *Coordinator) CreateGraphWorkflow(name string, nodes []Node, edges []Edge, cfg *Config) (*Workflow, error) {
	return c.createWorkflow(&Workflow{
		Name:  name,
		Kind:  KindGraph,
		Nodes: nodes,
		Edges: edges,
	}, cfg)
}

func (c *Coordinator) createWorkflow(wf *Workflow, cfg *Config) (*Workflow, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.initialized {
		return nil, types.NewError(types.ErrNotInitialized, "coordinator not initialized")
	}

	if cfg != nil {
		wf.Config = *cfg
	} else {
		wf.Config = c.defaultWorkflowConfig()
	}

	if err := wf.validate(); err != nil {
		return nil, err
	}

	wf.ID = uuid.NewString()
	wf.CreatedAt = time.Now()

	c.workflows[wf.ID] = wf
	c.order = append(c.order, wf.ID)
	if c.collector != nil {
		c.collector.SetActiveWorkflows(len(c.workflows))
	}

	c.logger.Info("workflow created",
		zap.String("workflow_id", wf.ID),
		zap.String("name", wf.Name),
		zap.String("kind", string(wf.Kind)),
	)
	return wf, nil
}

// Execute runs a workflow by id. The execution record is appended with
// status running before the engine is invoked, then re-located by id and
// mutated in place at completion; aggregate metrics are recomputed on both
// paths. callCtx is the per-call free-form context map passed to node
// processors.
func (c *Coordinator) Execute(ctx context.Context, workflowID string, input, callCtx map[string]any) (*Output, error) {
	c.mu.Lock()
	if !c.initialized {
		c.mu.Unlock()
		return nil, types.NewError(types.ErrNotInitialized, "coordinator not initialized")
	}
	wf, ok := c.workflows[workflowID]
	if !ok {
		c.mu.Unlock()
		return nil, types.Errorf(types.ErrWorkflowNotFound, "workflow %s not found", workflowID)
	}

	record := &ExecutionRecord{
		ID:         uuid.NewString(),
		WorkflowID: wf.ID,
		StartedAt:  time.Now(),
		Input:      copyMap(input),
		Status:     StatusRunning,
	}
	c.history = append(c.history, record)
	executionID := record.ID
	c.mu.Unlock()

	var out *Output
	var err error
	switch wf.Kind {
	case KindChain:
		out, err = c.chain.Execute(ctx, wf, executionID, input)
	case KindGraph:
		out, err = c.graph.Execute(ctx, wf, executionID, input, callCtx)
	default:
		err = types.Errorf(types.ErrInvalidConfiguration, "unknown workflow kind %q", wf.Kind)
	}

	c.finish(wf, executionID, out, err)
	return out, err
}

// finish re-locates the execution record by id (not by held reference) and
// mutates it in place, then recomputes aggregate metrics.
func (c *Coordinator) finish(wf *Workflow, executionID string, out *Output, execErr error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var record *ExecutionRecord
	for _, r := range c.history {
		if r.ID == executionID {
			record = r
			break
		}
	}
	if record == nil {
		// History is append-only, so a missing record means external
		// tampering; log and keep the engines' result intact.
		c.logger.Error("execution record vanished", zap.String("execution_id", executionID))
		return
	}

	record.EndedAt = time.Now()
	switch {
	case execErr == nil:
		record.Status = StatusCompleted
		record.Output = out
	case errors.Is(execErr, context.Canceled):
		record.Status = StatusCancelled
		record.Err = execErr.Error()
	default:
		record.Status = StatusFailed
		record.Err = execErr.Error()
	}

	c.recomputeMetricsLocked()

	if c.collector != nil {
		c.collector.ObserveExecution(wf.Name, string(record.Status), record.EndedAt.Sub(record.StartedAt))
		if out != nil {
			kind := "step"
			if wf.Kind == KindGraph {
				kind = "node"
			}
			c.collector.AddUnitsExecuted(kind, len(out.StepResults))
		}
	}
}

// recomputeMetricsLocked rebuilds the aggregate metrics from the history.
// Average execution time only considers completed entries.
func (c *Coordinator) recomputeMetricsLocked() {
	m := Metrics{Total: len(c.history)}

	var completedTotal time.Duration
	for _, r := range c.history {
		switch r.Status {
		case StatusCompleted:
			m.Successful++
			completedTotal += r.EndedAt.Sub(r.StartedAt)
		case StatusFailed:
			m.Failed++
		}
	}

	completedCount := m.Successful
	if completedCount < 1 {
		completedCount = 1
	}
	m.AverageExecutionTime = completedTotal / time.Duration(completedCount)

	total := m.Total
	if total < 1 {
		total = 1
	}
	m.SuccessRate = float64(m.Successful) / float64(total)

	c.metrics = m
}

// GetWorkflow returns a registered workflow by id.
func (c *Coordinator) GetWorkflow(id string) (*Workflow, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.initialized {
		return nil, types.NewError(types.ErrNotInitialized, "coordinator not initialized")
	}
	wf, ok := c.workflows[id]
	if !ok {
		return nil, types.Errorf(types.ErrWorkflowNotFound, "workflow %s not found", id)
	}
	return wf, nil
}

// ListWorkflows returns all registered workflows in creation order.
func (c *Coordinator) ListWorkflows() ([]*Workflow, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.initialized {
		return nil, types.NewError(types.ErrNotInitialized, "coordinator not initialized")
	}
	out := make([]*Workflow, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.workflows[id])
	}
	return out, nil
}

// RemoveWorkflow unregisters a workflow. Its execution records remain in
// the history.
func (c *Coordinator) RemoveWorkflow(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.initialized {
		return types.NewError(types.ErrNotInitialized, "coordinator not initialized")
	}
	if _, ok := c.workflows[id]; !ok {
		return types.Errorf(types.ErrWorkflowNotFound, "workflow %s not found", id)
	}
	delete(c.workflows, id)
	for i, existing := range c.order {
		if existing == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	if c.collector != nil {
		c.collector.SetActiveWorkflows(len(c.workflows))
	}
	c.logger.Info("workflow removed", zap.String("workflow_id", id))
	return nil
}

// History returns a snapshot of the execution records. Record values are
// copied so observers never race with in-place completion updates.
func (c *Coordinator) History() ([]ExecutionRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.initialized {
		return nil, types.NewError(types.ErrNotInitialized, "coordinator not initialized")
	}
	out := make([]ExecutionRecord, len(c.history))
	for i, r := range c.history {
		out[i] = *r
	}
	return out, nil
}

// Metrics returns the current aggregate execution metrics.
func (c *Coordinator) Metrics() (Metrics, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.initialized {
		return Metrics{}, types.NewError(types.ErrNotInitialized, "coordinator not initialized")
	}
	return c.metrics, nil
}

// Errors exposes the passive error-notification stream. One event is
// emitted per engine-level failure, supplementary to the error returned by
// Execute.
func (c *Coordinator) Errors() <-chan ErrorEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.errs == nil {
		return nil
	}
	return c.errs.Events()
}

// State returns the shared state store. Nil before Initialize.
func (c *Coordinator) State() StateStore {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Handlers returns the chain handler registry. Nil before Initialize.
func (c *Coordinator) Handlers() *HandlerRegistry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handlers
}

// Processors returns the shared node-processor registry. Nil before
// Initialize.
func (c *Coordinator) Processors() *ProcessorRegistry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.processors
}

// Close shuts the error stream down. The coordinator is not reusable after
// Close.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.errs != nil {
		c.errs.Close()
	}
}
