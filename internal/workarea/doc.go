// Package workarea manages the persistent working directory shared by runs.
//
// It derives stable directory names from repository URLs, lays out the
// mirror, worker, lock, scratch, and map paths, keeps the source mirror
// fresh, and prepares the long-lived worker repository with its source and
// destination remotes.
package workarea
