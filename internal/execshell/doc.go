// Package execshell provides structured helpers for invoking the git tool.
//
// It wraps os/exec with logging via ShellExecutor, exposes OSCommandRunner
// for default process execution, and defines the abstractions used across
// filtersync to run git in a testable manner.
package execshell
