// Package runlock serializes concurrent invocations sharing a worker repository.
//
// It wraps an OS-level advisory exclusive lock on the worker sentinel file,
// retrying with a bounded wait interval and reporting liveness while
// contended. Locking can be disabled, which makes the guard a no-op.
package runlock
