package rewrite

import (
	"fmt"
	"strings"
)

const (
	remoteSourceBranchRefTemplateConstant = "refs/remotes/source/%s"
	sourceBranchRefTemplateConstant       = "refs/heads/filter-branch/source/%s"
	resultBranchRefTemplateConstant       = "refs/heads/filter-branch/result/%s"
	filteredMarkerRefTemplateConstant     = "refs/heads/filter-branch/filtered/%s"
	originalsNamespaceTemplateConstant    = "refs/filter-branch/originals/%s"
	convertedTagRefTemplateConstant       = "refs/tags/%s%s"
	stateBranchRefConstant                = "refs/filter-branch/state"
	convertedTagNamePrefixConstant        = "filter-branch/converted-tags/"
	convertedTagRefPrefixConstant         = "refs/tags/filter-branch/converted-tags"
	mappingFileNameConstant               = "filter.map"
	mappingBlobSpecTemplateConstant       = "%s:%s"
)

// StateBranchRef names the ref carrying the authoritative commit mapping.
func StateBranchRef() string {
	return stateBranchRefConstant
}

// MappingBlobSpec addresses the mapping file inside the state branch tree.
func MappingBlobSpec() string {
	return fmt.Sprintf(mappingBlobSpecTemplateConstant, stateBranchRefConstant, mappingFileNameConstant)
}

// RemoteSourceBranchRef names the pristine source tip for a branch.
func RemoteSourceBranchRef(branchName string) string {
	return fmt.Sprintf(remoteSourceBranchRefTemplateConstant, branchName)
}

// SourceBranchRef names the commit handed to the rewrite engine for a branch.
func SourceBranchRef(branchName string) string {
	return fmt.Sprintf(sourceBranchRefTemplateConstant, branchName)
}

// ResultBranchRef names the rewritten tip for a branch.
func ResultBranchRef(branchName string) string {
	return fmt.Sprintf(resultBranchRefTemplateConstant, branchName)
}

// FilteredMarkerRef names the marker recording the last fully rewritten source commit.
func FilteredMarkerRef(branchName string) string {
	return fmt.Sprintf(filteredMarkerRefTemplateConstant, branchName)
}

// OriginalsNamespace names the backup namespace the rewrite engine writes for a branch.
func OriginalsNamespace(branchName string) string {
	return fmt.Sprintf(originalsNamespaceTemplateConstant, branchName)
}

// ConvertedTagRef names the worker-local converted tag for a source tag.
func ConvertedTagRef(tagName string) string {
	return fmt.Sprintf(convertedTagRefTemplateConstant, convertedTagNamePrefixConstant, tagName)
}

// ConvertedTagRefPrefix is the ref prefix under which converted tags live.
func ConvertedTagRefPrefix() string {
	return convertedTagRefPrefixConstant
}

// ConvertedTagNamePrefix is the tag-name prefix applied by the tag-name filter.
func ConvertedTagNamePrefix() string {
	return convertedTagNamePrefixConstant
}

// IsConvertedTagName reports whether a tag name already lives in the converted namespace.
func IsConvertedTagName(tagName string) bool {
	return strings.HasPrefix(tagName, convertedTagNamePrefixConstant)
}

// SourceTagFromConvertedRef recovers the source tag name from a converted tag ref.
func SourceTagFromConvertedRef(refName string) string {
	return strings.TrimPrefix(strings.TrimPrefix(refName, convertedTagRefPrefixConstant), "/")
}
