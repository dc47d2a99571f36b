package refmatch

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	regexEntryPrefixConstant        = "rx:"
	anchoredPatternTemplateConstant = "^(%s)$"
	patternCompileErrorTemplate     = "invalid ref name pattern %q: %w"
)

type patternKind int

const (
	patternKindLiteral patternKind = iota
	patternKindRegex
)

type refNamePattern struct {
	kind     patternKind
	literal  string
	compiled *regexp.Regexp
}

func (pattern refNamePattern) matches(name string) bool {
	switch pattern.kind {
	case patternKindRegex:
		return pattern.compiled.MatchString(name)
	default:
		return pattern.literal == name
	}
}

// Matcher evaluates ref names against a whitelist and a blacklist.
type Matcher struct {
	whitelistPatterns []refNamePattern
	blacklistPatterns []refNamePattern
}

// NewMatcher compiles the provided entries into a Matcher.
//
// Entries beginning with "rx:" are compiled as POSIX extended regular
// expressions anchored at both ends; all other entries match literally.
// Empty and whitespace-only entries are dropped.
func NewMatcher(whitelistEntries []string, blacklistEntries []string) (*Matcher, error) {
	whitelistPatterns, whitelistError := compileEntries(whitelistEntries)
	if whitelistError != nil {
		return nil, whitelistError
	}

	blacklistPatterns, blacklistError := compileEntries(blacklistEntries)
	if blacklistError != nil {
		return nil, blacklistError
	}

	return &Matcher{whitelistPatterns: whitelistPatterns, blacklistPatterns: blacklistPatterns}, nil
}

// Passes reports whether the supplied name is in scope.
//
// Blacklist entries take strict precedence over whitelist entries; an empty
// whitelist accepts every name not blacklisted.
func (matcher *Matcher) Passes(name string) bool {
	for _, blacklistPattern := range matcher.blacklistPatterns {
		if blacklistPattern.matches(name) {
			return false
		}
	}

	if len(matcher.whitelistPatterns) == 0 {
		return true
	}

	for _, whitelistPattern := range matcher.whitelistPatterns {
		if whitelistPattern.matches(name) {
			return true
		}
	}

	return false
}

func compileEntries(entries []string) ([]refNamePattern, error) {
	compiledPatterns := make([]refNamePattern, 0, len(entries))
	for _, entry := range entries {
		if len(strings.TrimSpace(entry)) == 0 {
			continue
		}

		if strings.HasPrefix(entry, regexEntryPrefixConstant) {
			expressionSource := strings.TrimPrefix(entry, regexEntryPrefixConstant)
			compiledExpression, compileError := regexp.CompilePOSIX(fmt.Sprintf(anchoredPatternTemplateConstant, expressionSource))
			if compileError != nil {
				return nil, fmt.Errorf(patternCompileErrorTemplate, entry, compileError)
			}
			compiledPatterns = append(compiledPatterns, refNamePattern{kind: patternKindRegex, compiled: compiledExpression})
			continue
		}

		compiledPatterns = append(compiledPatterns, refNamePattern{kind: patternKindLiteral, literal: entry})
	}

	return compiledPatterns, nil
}
