// Package sync orchestrates one incremental history-rewrite run.
//
// It validates the run configuration, acquires the exclusive-run guard,
// refreshes the source mirror, prepares the worker repository, rewrites each
// in-scope branch, publishes the result, and prunes the destination. It also
// assembles the cobra command that exposes the pipeline on the CLI.
package sync
