// Package filterspec parses and validates history-rewrite filter directives.
//
// Specs arrive either as a single shell-quoted string or as a YAML profile
// file; both forms are expanded into an ordered directive list and checked
// against the accepted directive shapes before any repository work begins.
package filterspec
