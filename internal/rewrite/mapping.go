package rewrite

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	mappingLineSeparatorConstant       = ":"
	mappingLinePatternConstant         = `^[0-9a-f]{40}:[0-9a-f]{40}$`
	malformedMappingLineTemplate       = "malformed mapping line %d: %q"
	expectedMappingFieldCountNumber    = 2
	mappingOriginalFieldIndexConstant  = 0
	mappingRewrittenFieldIndexConstant = 1
)

var mappingLineExpression = regexp.MustCompile(mappingLinePatternConstant)

// CommitMap is the parsed original-to-rewritten commit table.
type CommitMap struct {
	entries map[string]string
}

// ParseCommitMap parses the newline-delimited originalSha:rewrittenSha format.
func ParseCommitMap(mappingContent string) (CommitMap, error) {
	parsedEntries := map[string]string{}

	for lineIndex, mappingLine := range strings.Split(mappingContent, "\n") {
		trimmedLine := strings.TrimSpace(mappingLine)
		if len(trimmedLine) == 0 {
			continue
		}
		if !mappingLineExpression.MatchString(trimmedLine) {
			return CommitMap{}, fmt.Errorf(malformedMappingLineTemplate, lineIndex+1, trimmedLine)
		}

		lineFields := strings.SplitN(trimmedLine, mappingLineSeparatorConstant, expectedMappingFieldCountNumber)
		parsedEntries[lineFields[mappingOriginalFieldIndexConstant]] = lineFields[mappingRewrittenFieldIndexConstant]
	}

	return CommitMap{entries: parsedEntries}, nil
}

// EmptyCommitMap returns a map with no entries.
func EmptyCommitMap() CommitMap {
	return CommitMap{entries: map[string]string{}}
}

// Lookup returns the rewritten commit for an original commit.
func (commitMap CommitMap) Lookup(originalCommit string) (string, bool) {
	rewrittenCommit, entryExists := commitMap.entries[originalCommit]
	return rewrittenCommit, entryExists
}

// Size reports the number of mapping entries.
func (commitMap CommitMap) Size() int {
	return len(commitMap.entries)
}
