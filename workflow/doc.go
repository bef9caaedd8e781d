// Package workflow implements the flowmesh orchestration engine.
//
// Two execution topologies share one runtime: chains (an ordered list of
// steps executed sequentially) and graphs (nodes and directed edges executed
// in topological order). The Coordinator is the only component external
// callers address directly; it owns the workflow registry, the execution
// history, the handler registries, the shared state store, and both engines.
//
// Basic usage:
//
//	coord := workflow.NewCoordinator(workflow.WithLogger(logger))
//	if err := coord.Initialize(); err != nil { ... }
//
//	wf, err := coord.CreateChainWorkflow("summarize", steps, nil)
//	out, err := coord.Execute(ctx, wf.ID, input, nil)
//
// Engine-level failures are returned to the caller and, independently,
// published on the coordinator's passive error stream (see Errors).
package workflow
