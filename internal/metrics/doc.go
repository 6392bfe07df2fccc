// Package metrics provides internal metrics collection for workflow runs.
// This package is internal and should not be imported by external projects.
package metrics
