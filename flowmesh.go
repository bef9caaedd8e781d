// Package flowmesh provides a top-level convenience entry point for
// creating an initialized workflow coordinator with minimal boilerplate.
//
// Usage:
//
//	import "github.com/flowmesh/flowmesh"
//
//	coord, err := flowmesh.New(flowmesh.WithLogger(logger))
//	wf, err := coord.CreateChainWorkflow("summarize", steps, nil)
//	out, err := coord.Execute(ctx, wf.ID, input, nil)
//
// This is a thin wrapper around [workflow.NewCoordinator] plus
// [workflow.Coordinator.Initialize]; use the workflow package directly when
// you need to defer initialization.
package flowmesh

import (
	"github.com/flowmesh/flowmesh/workflow"
)

// Option configures the coordinator created by [New].
type Option = workflow.Option

// New creates and initializes a workflow coordinator.
func New(opts ...Option) (*workflow.Coordinator, error) {
	coord := workflow.NewCoordinator(opts...)
	if err := coord.Initialize(); err != nil {
		return nil, err
	}
	return coord, nil
}

// Re-export coordinator options so callers never need to import workflow/.

// WithLogger sets a custom zap logger.
var WithLogger = workflow.WithLogger

// WithSettings applies coordinator-level settings loaded via config/.
var WithSettings = workflow.WithSettings

// WithStateStore injects a pre-built state store.
var WithStateStore = workflow.WithStateStore

// WithMetricsRegisterer enables prometheus metrics on the given registerer.
var WithMetricsRegisterer = workflow.WithMetricsRegisterer
