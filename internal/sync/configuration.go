package sync

import (
	"errors"
	"fmt"
	"strings"

	"github.com/temirov/filtersync/internal/filterspec"
	"github.com/temirov/filtersync/internal/rewrite"
)

const (
	defaultWorkingDirectoryConstant       = "./temp"
	defaultTagHistoryLookupDepthNumber    = 50
	sourceURLMissingMessageConstant       = "source repository is required"
	destinationURLMissingMessageConstant  = "destination repository is required"
	lookupDepthInvalidTemplateConstant    = "tags max history lookup must be a positive integer, got %d"
	tagFiltersWithNonePolicyMessage       = "tag whitelist/blacklist requires a tags plan other than none"
	branchPruneWithNonePolicyMessage      = "--prune-branches requires a tags plan other than none"
	tagPruneWithNonePolicyMessage         = "--prune-tags requires a tags plan other than none"
)

// CommandConfiguration carries file-sourced defaults for the sync command.
type CommandConfiguration struct {
	WorkingDirectory      string   `mapstructure:"workdir"`
	BranchWhitelist       []string `mapstructure:"branch_whitelist"`
	BranchBlacklist       []string `mapstructure:"branch_blacklist"`
	TagWhitelist          []string `mapstructure:"tag_whitelist"`
	TagBlacklist          []string `mapstructure:"tag_blacklist"`
	TagsPlan              string   `mapstructure:"tags_plan"`
	TagHistoryLookupDepth int      `mapstructure:"tags_max_history_lookup"`
	PruneBranches         bool     `mapstructure:"prune_branches"`
	PruneTags             bool     `mapstructure:"prune_tags"`
	DisableHardlinks      bool     `mapstructure:"no_hardlinks"`
	AtomicPush            bool     `mapstructure:"atomic_push"`
	LockingEnabled        bool     `mapstructure:"locking"`
}

// DefaultCommandConfiguration supplies the documented defaults.
func DefaultCommandConfiguration() CommandConfiguration {
	return CommandConfiguration{
		WorkingDirectory:      defaultWorkingDirectoryConstant,
		TagsPlan:              string(rewrite.TagPolicyVisited),
		TagHistoryLookupDepth: defaultTagHistoryLookupDepthNumber,
		AtomicPush:            true,
		LockingEnabled:        true,
	}
}

// RunConfiguration is the immutable configuration of one pipeline run.
type RunConfiguration struct {
	SourceURL             string
	DestinationURL        string
	WorkingDirectory      string
	BranchWhitelist       []string
	BranchBlacklist       []string
	TagWhitelist          []string
	TagBlacklist          []string
	TagPolicy             rewrite.TagPolicy
	TagHistoryLookupDepth int
	PruneBranches         bool
	PruneTags             bool
	DisableHardlinks      bool
	AtomicPush            bool
	LockingEnabled        bool
	FilterSpec            filterspec.Spec
}

// Validate enforces cross-field constraints before any repository work.
func (configuration RunConfiguration) Validate() error {
	if len(strings.TrimSpace(configuration.SourceURL)) == 0 {
		return NewClassifiedError(KindUsage, errors.New(sourceURLMissingMessageConstant))
	}
	if len(strings.TrimSpace(configuration.DestinationURL)) == 0 {
		return NewClassifiedError(KindUsage, errors.New(destinationURLMissingMessageConstant))
	}

	if configuration.TagHistoryLookupDepth < 1 {
		return NewClassifiedError(KindUsage, fmt.Errorf(lookupDepthInvalidTemplateConstant, configuration.TagHistoryLookupDepth))
	}

	if configuration.TagPolicy == rewrite.TagPolicyNone {
		if hasMeaningfulEntries(configuration.TagWhitelist) || hasMeaningfulEntries(configuration.TagBlacklist) {
			return NewClassifiedError(KindConfigConflict, errors.New(tagFiltersWithNonePolicyMessage))
		}
		if configuration.PruneBranches {
			return NewClassifiedError(KindConfigConflict, errors.New(branchPruneWithNonePolicyMessage))
		}
		if configuration.PruneTags {
			return NewClassifiedError(KindConfigConflict, errors.New(tagPruneWithNonePolicyMessage))
		}
	}

	return nil
}

// AppendSpaceSeparated splits flag values on whitespace and appends the pieces.
func AppendSpaceSeparated(existingEntries []string, flagValues []string) []string {
	appendedEntries := existingEntries
	for _, flagValue := range flagValues {
		appendedEntries = append(appendedEntries, strings.Fields(flagValue)...)
	}
	return appendedEntries
}

func hasMeaningfulEntries(candidateEntries []string) bool {
	for _, candidateEntry := range candidateEntries {
		if len(strings.TrimSpace(candidateEntry)) > 0 {
			return true
		}
	}
	return false
}
