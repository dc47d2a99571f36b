package filterspec

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	profileReferencePrefixConstant       = "@"
	profileReadErrorTemplateConstant     = "unable to read filter profile %s: %w"
	profileParseErrorTemplateConstant    = "unable to parse filter profile %s: %w"
	profileFilterMissingFieldsTemplate   = "filter profile %s: filter entry %d needs both phase and command"
	phaseFilterDirectiveTemplateConstant = "--%s-filter"
)

// ProfileFilter describes one phase filter declared in a YAML profile.
type ProfileFilter struct {
	Phase   string `yaml:"phase"`
	Command string `yaml:"command"`
}

// Profile is the YAML document shape for a reusable filter spec.
type Profile struct {
	Setup      string          `yaml:"setup"`
	Filters    []ProfileFilter `yaml:"filters"`
	PruneEmpty bool            `yaml:"prune_empty"`
}

// IsProfileReference reports whether the raw spec argument names a profile file.
func IsProfileReference(rawSpec string) bool {
	return strings.HasPrefix(rawSpec, profileReferencePrefixConstant)
}

// ParseProfile loads a YAML filter profile and validates the expanded directives.
func ParseProfile(rawSpec string) (Spec, error) {
	profilePath := strings.TrimPrefix(rawSpec, profileReferencePrefixConstant)

	profileContent, readError := os.ReadFile(profilePath)
	if readError != nil {
		return Spec{}, ValidationError{Message: fmt.Errorf(profileReadErrorTemplateConstant, profilePath, readError).Error()}
	}

	var parsedProfile Profile
	if unmarshalError := yaml.Unmarshal(profileContent, &parsedProfile); unmarshalError != nil {
		return Spec{}, ValidationError{Message: fmt.Errorf(profileParseErrorTemplateConstant, profilePath, unmarshalError).Error()}
	}

	expandedTokens := make([]string, 0, len(parsedProfile.Filters)*2+3)
	if len(strings.TrimSpace(parsedProfile.Setup)) > 0 {
		expandedTokens = append(expandedTokens, setupDirectiveTokenConstant, parsedProfile.Setup)
	}
	for filterIndex, profileFilter := range parsedProfile.Filters {
		if len(strings.TrimSpace(profileFilter.Phase)) == 0 || len(strings.TrimSpace(profileFilter.Command)) == 0 {
			return Spec{}, ValidationError{Message: fmt.Sprintf(profileFilterMissingFieldsTemplate, profilePath, filterIndex)}
		}
		expandedTokens = append(expandedTokens, fmt.Sprintf(phaseFilterDirectiveTemplateConstant, profileFilter.Phase), profileFilter.Command)
	}
	if parsedProfile.PruneEmpty {
		expandedTokens = append(expandedTokens, pruneEmptyDirectiveTokenConstant)
	}

	return Validate(expandedTokens)
}

// Parse resolves a raw spec argument, dispatching between inline and profile forms.
func Parse(rawSpec string) (Spec, error) {
	if IsProfileReference(rawSpec) {
		return ParseProfile(rawSpec)
	}
	return ParseInline(rawSpec)
}
