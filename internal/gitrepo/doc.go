// Package gitrepo contains helpers for interrogating and manipulating bare
// Git repositories through the external git tool.
//
// It exposes Repository for ref inspection, fetches, pushes, and plumbing
// updates, along with package-level helpers for creating mirrors and bare
// repositories. All operations run through an execshell executor so they can
// be exercised with fake runners in tests.
package gitrepo
