// Package types defines the data structures shared across the pipeline:
// FileRecord and Batch for files in flight, and Profile with its rule
// vocabulary for selection and transform configuration.
package types
