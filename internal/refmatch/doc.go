// Package refmatch decides whether branch and tag names are in scope.
//
// It implements whitelist/blacklist matching over literal names and
// rx:-prefixed anchored POSIX extended regular expressions, with blacklist
// entries taking strict precedence.
package refmatch
