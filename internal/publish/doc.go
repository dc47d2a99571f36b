// Package publish reconciles the destination repository with the rewrite.
//
// It composes the single force push that lands rewritten branches and
// converted tags, and the follow-up prune passes that delete destination
// refs the filtered source view no longer justifies.
package publish
