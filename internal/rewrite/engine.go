package rewrite

import (
	"context"
	"errors"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/filtersync/internal/execshell"
	"github.com/temirov/filtersync/internal/filterspec"
)

const (
	filterBranchSubcommandConstant       = "filter-branch"
	scratchDirectoryFlagConstant         = "-d"
	remapToAncestorFlagConstant          = "--remap-to-ancestor"
	stateBranchFlagConstant              = "--state-branch"
	originalsFlagConstant                = "--original"
	forceFlagConstant                    = "--force"
	tagNameFilterFlagConstant            = "--tag-name-filter"
	tagNameFilterCommandConstant         = `sed -e 's!^!filter-branch/converted-tags/!'`
	revisionSeparatorConstant            = "--"
	rangeTemplateSeparatorConstant       = ".."
	squelchWarningEnvironmentKeyConstant = "FILTER_BRANCH_SQUELCH_WARNING"
	squelchWarningEnvironmentValue       = "1"
	nothingToRewriteLineConstant         = "Found nothing to rewrite"
	nothingToRewriteExitCodeConstant     = 1
	engineStartedMessageConstant         = "Rewrite engine started"
	engineSkippedWorkMessageConstant     = "Rewrite engine found nothing to rewrite"
	logFieldBranchConstant               = "branch"
	logFieldRangeConstant                = "range"
)

// EngineOutcome classifies a completed rewrite-engine invocation.
type EngineOutcome int

// Engine outcomes.
const (
	EngineOutcomeRewritten EngineOutcome = iota
	EngineOutcomeNothingToRewrite
)

// EngineInvocation describes one rewrite-engine run for a branch.
type EngineInvocation struct {
	BranchName           string
	WorkerPath           string
	ScratchDirectory     string
	FilterSpec           filterspec.Spec
	LastFilteredCommit   string
	InstallTagNameFilter bool
}

// Engine drives the external history-rewrite engine with persistent state.
type Engine struct {
	executor            CommandExecutor
	logger              *zap.Logger
	standardErrorMirror io.Writer
}

// CommandExecutor abstracts the execshell executor used for engine invocations.
type CommandExecutor interface {
	ExecuteGit(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// NewEngine constructs an Engine.
//
// standardErrorMirror receives the engine's stderr live so the operator can
// follow rewrite progress; it may be nil.
func NewEngine(executor CommandExecutor, logger *zap.Logger, standardErrorMirror io.Writer) (*Engine, error) {
	if executor == nil {
		return nil, errExecutorMissing
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{executor: executor, logger: logger, standardErrorMirror: standardErrorMirror}, nil
}

var errExecutorMissing = errors.New("engine executor not configured")

// Run invokes the rewrite engine for one branch delta.
//
// The invocation always carries remap-to-ancestor, the persistent state
// branch, the per-branch originals namespace, and force; the tag-name filter
// is installed only when requested. Exit code 1 accompanied by exactly a
// "nothing to rewrite" line is success with no work.
func (engine *Engine) Run(executionContext context.Context, invocation EngineInvocation) (EngineOutcome, error) {
	engineArguments := []string{
		filterBranchSubcommandConstant,
		scratchDirectoryFlagConstant, invocation.ScratchDirectory,
		remapToAncestorFlagConstant,
		stateBranchFlagConstant, StateBranchRef(),
		originalsFlagConstant, OriginalsNamespace(invocation.BranchName),
		forceFlagConstant,
	}
	if invocation.InstallTagNameFilter {
		engineArguments = append(engineArguments, tagNameFilterFlagConstant, tagNameFilterCommandConstant)
	}
	engineArguments = append(engineArguments, invocation.FilterSpec.EngineArguments()...)

	rewriteRange := ResultBranchRef(invocation.BranchName)
	if len(invocation.LastFilteredCommit) > 0 {
		rewriteRange = invocation.LastFilteredCommit + rangeTemplateSeparatorConstant + rewriteRange
	}
	engineArguments = append(engineArguments, revisionSeparatorConstant, rewriteRange)

	engine.logger.Info(
		engineStartedMessageConstant,
		zap.String(logFieldBranchConstant, invocation.BranchName),
		zap.String(logFieldRangeConstant, rewriteRange),
	)

	_, executionError := engine.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:           engineArguments,
		WorkingDirectory:    invocation.WorkerPath,
		StandardErrorMirror: engine.standardErrorMirror,
		EnvironmentVariables: map[string]string{
			squelchWarningEnvironmentKeyConstant: squelchWarningEnvironmentValue,
		},
	})
	if executionError == nil {
		return EngineOutcomeRewritten, nil
	}

	failedCommand := execshell.CommandFailedError{}
	if errors.As(executionError, &failedCommand) && isNothingToRewrite(failedCommand.Result) {
		engine.logger.Info(engineSkippedWorkMessageConstant, zap.String(logFieldBranchConstant, invocation.BranchName))
		return EngineOutcomeNothingToRewrite, nil
	}

	return EngineOutcomeRewritten, executionError
}

func isNothingToRewrite(executionResult execshell.ExecutionResult) bool {
	if executionResult.ExitCode != nothingToRewriteExitCodeConstant {
		return false
	}
	for _, standardErrorLine := range strings.Split(executionResult.StandardError, "\n") {
		if strings.TrimSpace(standardErrorLine) == nothingToRewriteLineConstant {
			return true
		}
	}
	return false
}
