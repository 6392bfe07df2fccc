// Package types defines the shared contracts of the stageflow engine:
// session state snapshots, state change records, stage execution results
// with their next-action tags, and the structured error type used across
// the framework.
//
// The package has no dependencies on other stageflow packages so that
// executors, observers and the engine can all share these types without
// import cycles.
package types
