// Package rewrite drives the incremental history rewrite of source branches.
//
// It owns the worker ref namespace, the per-branch delta computation, the
// rewrite-engine invocation with its persistent state branch, the parsed
// commit-mapping snapshot, and the ancestor-walking tag mapper used for tags
// whose commits fall outside the rewritten range.
package rewrite
