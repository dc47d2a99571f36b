package sync

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/filtersync/internal/execshell"
	"github.com/temirov/filtersync/internal/filterspec"
	"github.com/temirov/filtersync/internal/gitrepo"
	"github.com/temirov/filtersync/internal/rewrite"
)

const (
	commandUseConstant              = "filtersync [flags] <source> <filter-spec> <destination>"
	commandShortDescriptionConstant = "Incrementally rewrite a source repository's history into a destination"
	commandLongDescriptionConstant  = "filtersync applies history-rewrite filters to every included branch of the source repository, reuses prior rewriting work across runs, remaps tags onto rewritten commits, and publishes the result to the destination repository."
	workdirFlagNameConstant         = "workdir"
	workdirFlagUsageConstant        = "Working-area root for mirrors, workers, and state."
	branchWhitelistFlagNameConstant = "branch-whitelist"
	branchWhitelistFlagUsage        = "Space-separated branch names or rx: patterns to include (repeatable)."
	branchBlacklistFlagNameConstant = "branch-blacklist"
	branchBlacklistFlagUsage        = "Space-separated branch names or rx: patterns to exclude (repeatable)."
	tagWhitelistFlagNameConstant    = "tag-whitelist"
	tagWhitelistFlagUsageConstant   = "Space-separated tag names or rx: patterns to include (repeatable)."
	tagBlacklistFlagNameConstant    = "tag-blacklist"
	tagBlacklistFlagUsageConstant   = "Space-separated tag names or rx: patterns to exclude (repeatable)."
	tagsPlanFlagNameConstant        = "tags-plan"
	tagsPlanFlagUsageConstant       = "Tag handling policy: visited, all, or none."
	tagsLookupFlagNameConstant      = "tags-max-history-lookup"
	tagsLookupFlagUsageConstant     = "Ancestor budget when mapping tags whose commits were dropped."
	pruneBranchesFlagNameConstant   = "prune-branches"
	pruneBranchesFlagUsageConstant  = "Delete destination branches absent from the filtered source view."
	pruneTagsFlagNameConstant       = "prune-tags"
	pruneTagsFlagUsageConstant      = "Delete destination tags absent from the filtered source view."
	noHardlinksFlagNameConstant     = "no-hardlinks"
	noHardlinksFlagUsageConstant    = "Disallow hardlink optimization when cloning the source mirror."
	noAtomicFlagNameConstant        = "no-atomic"
	noAtomicFlagUsageConstant       = "Publish destination refs without an atomic push."
	noLockFlagNameConstant          = "no-lock"
	noLockFlagUsageConstant         = "Disable the exclusive-run guard (operator assumes concurrency risk)."
	positionalArgumentCountNumber   = 3
	sourceArgumentIndexConstant     = 0
	filterSpecArgumentIndexConstant = 1
	destinationArgumentIndexNumber  = 2
	wrongArgumentCountTemplate      = "expected <source> <filter-spec> <destination>, got %d argument(s)"
)

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

// CommandBuilder assembles the synchronization Cobra command.
type CommandBuilder struct {
	LoggerProvider        LoggerProvider
	GitExecutor           gitrepo.CommandExecutor
	ConfigurationProvider func() CommandConfiguration
	EngineStandardError   io.Writer
}

type commandOptions struct {
	workingDirectory      string
	branchWhitelistValues []string
	branchBlacklistValues []string
	tagWhitelistValues    []string
	tagBlacklistValues    []string
	tagsPlanValue         string
	tagHistoryLookupDepth int
	pruneBranches         bool
	pruneTags             bool
	disableHardlinks      bool
	disableAtomicPush     bool
	disableLocking        bool
}

// Build constructs the Cobra command exposing the pipeline.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	options := &commandOptions{}

	command := &cobra.Command{
		Use:           commandUseConstant,
		Short:         commandShortDescriptionConstant,
		Long:          commandLongDescriptionConstant,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(command *cobra.Command, arguments []string) error {
			if len(arguments) != positionalArgumentCountNumber {
				return NewClassifiedError(KindUsage, fmt.Errorf(wrongArgumentCountTemplate, len(arguments)))
			}
			return nil
		},
		RunE: func(command *cobra.Command, arguments []string) error {
			return builder.run(command, arguments, options)
		},
	}

	defaults := builder.resolveConfiguration()
	flagSet := command.Flags()
	// Flag parsing stops at <source>, so a filter spec such as "--prune-empty"
	// stays a positional argument.
	flagSet.SetInterspersed(false)
	flagSet.StringVar(&options.workingDirectory, workdirFlagNameConstant, defaults.WorkingDirectory, workdirFlagUsageConstant)
	flagSet.StringArrayVar(&options.branchWhitelistValues, branchWhitelistFlagNameConstant, nil, branchWhitelistFlagUsage)
	flagSet.StringArrayVar(&options.branchBlacklistValues, branchBlacklistFlagNameConstant, nil, branchBlacklistFlagUsage)
	flagSet.StringArrayVar(&options.tagWhitelistValues, tagWhitelistFlagNameConstant, nil, tagWhitelistFlagUsageConstant)
	flagSet.StringArrayVar(&options.tagBlacklistValues, tagBlacklistFlagNameConstant, nil, tagBlacklistFlagUsageConstant)
	flagSet.StringVar(&options.tagsPlanValue, tagsPlanFlagNameConstant, defaults.TagsPlan, tagsPlanFlagUsageConstant)
	flagSet.IntVar(&options.tagHistoryLookupDepth, tagsLookupFlagNameConstant, defaults.TagHistoryLookupDepth, tagsLookupFlagUsageConstant)
	flagSet.BoolVar(&options.pruneBranches, pruneBranchesFlagNameConstant, defaults.PruneBranches, pruneBranchesFlagUsageConstant)
	flagSet.BoolVar(&options.pruneTags, pruneTagsFlagNameConstant, defaults.PruneTags, pruneTagsFlagUsageConstant)
	flagSet.BoolVar(&options.disableHardlinks, noHardlinksFlagNameConstant, defaults.DisableHardlinks, noHardlinksFlagUsageConstant)
	flagSet.BoolVar(&options.disableAtomicPush, noAtomicFlagNameConstant, !defaults.AtomicPush, noAtomicFlagUsageConstant)
	flagSet.BoolVar(&options.disableLocking, noLockFlagNameConstant, !defaults.LockingEnabled, noLockFlagUsageConstant)

	return command, nil
}

func (builder *CommandBuilder) run(command *cobra.Command, arguments []string, options *commandOptions) error {
	logger := builder.resolveLogger()

	parsedFilterSpec, filterError := filterspec.Parse(arguments[filterSpecArgumentIndexConstant])
	if filterError != nil {
		return NewClassifiedError(KindInvalidFilter, filterError)
	}

	defaults := builder.resolveConfiguration()
	flagSet := command.Flags()

	tagsPlanValue := defaults.TagsPlan
	if flagSet.Changed(tagsPlanFlagNameConstant) {
		tagsPlanValue = options.tagsPlanValue
	}
	tagPolicy, tagPolicyError := rewrite.ParseTagPolicy(tagsPlanValue)
	if tagPolicyError != nil {
		return NewClassifiedError(KindUsage, tagPolicyError)
	}

	workingDirectory := defaults.WorkingDirectory
	if flagSet.Changed(workdirFlagNameConstant) {
		workingDirectory = options.workingDirectory
	}
	tagHistoryLookupDepth := defaults.TagHistoryLookupDepth
	if flagSet.Changed(tagsLookupFlagNameConstant) {
		tagHistoryLookupDepth = options.tagHistoryLookupDepth
	}
	pruneBranches := defaults.PruneBranches || options.pruneBranches
	pruneTags := defaults.PruneTags || options.pruneTags
	disableHardlinks := defaults.DisableHardlinks || options.disableHardlinks

	atomicPush := defaults.AtomicPush
	if flagSet.Changed(noAtomicFlagNameConstant) {
		atomicPush = !options.disableAtomicPush
	}
	lockingEnabled := defaults.LockingEnabled
	if flagSet.Changed(noLockFlagNameConstant) {
		lockingEnabled = !options.disableLocking
	}

	runConfiguration := RunConfiguration{
		SourceURL:             arguments[sourceArgumentIndexConstant],
		DestinationURL:        arguments[destinationArgumentIndexNumber],
		WorkingDirectory:      workingDirectory,
		BranchWhitelist:       AppendSpaceSeparated(defaults.BranchWhitelist, options.branchWhitelistValues),
		BranchBlacklist:       AppendSpaceSeparated(defaults.BranchBlacklist, options.branchBlacklistValues),
		TagWhitelist:          AppendSpaceSeparated(defaults.TagWhitelist, options.tagWhitelistValues),
		TagBlacklist:          AppendSpaceSeparated(defaults.TagBlacklist, options.tagBlacklistValues),
		TagPolicy:             tagPolicy,
		TagHistoryLookupDepth: tagHistoryLookupDepth,
		PruneBranches:         pruneBranches,
		PruneTags:             pruneTags,
		DisableHardlinks:      disableHardlinks,
		AtomicPush:            atomicPush,
		LockingEnabled:        lockingEnabled,
		FilterSpec:            parsedFilterSpec,
	}

	gitExecutor, executorError := builder.resolveExecutor(logger)
	if executorError != nil {
		return NewClassifiedError(KindEnvironment, executorError)
	}

	pipelineService, serviceError := NewService(ServiceDependencies{
		Logger:              logger,
		GitExecutor:         gitExecutor,
		EngineStandardError: builder.EngineStandardError,
	})
	if serviceError != nil {
		return serviceError
	}

	_, runError := pipelineService.Run(command.Context(), runConfiguration)
	return runError
}

func (builder *CommandBuilder) resolveLogger() *zap.Logger {
	if builder.LoggerProvider != nil {
		if providedLogger := builder.LoggerProvider(); providedLogger != nil {
			return providedLogger
		}
	}
	return zap.NewNop()
}

func (builder *CommandBuilder) resolveConfiguration() CommandConfiguration {
	if builder.ConfigurationProvider != nil {
		return builder.ConfigurationProvider()
	}
	return DefaultCommandConfiguration()
}

func (builder *CommandBuilder) resolveExecutor(logger *zap.Logger) (gitrepo.CommandExecutor, error) {
	if builder.GitExecutor != nil {
		return builder.GitExecutor, nil
	}

	shellExecutor, executorError := execshell.NewShellExecutor(logger, execshell.NewOSCommandRunner())
	if executorError != nil {
		return nil, executorError
	}
	return shellExecutor, nil
}

// IsUsageError reports whether the failure should surface command usage text.
func IsUsageError(candidateError error) bool {
	classified := ClassifiedError{}
	if !errors.As(candidateError, &classified) {
		return false
	}
	return classified.ErrorKind == KindUsage
}
