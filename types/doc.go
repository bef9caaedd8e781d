// Package types defines the shared primitives used across flowmesh:
// the coded error type returned by the coordinator and both engines,
// and the tagged Value union used for step and node configuration maps.
package types
