package sync_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/temirov/filtersync/internal/execshell"
	syncpkg "github.com/temirov/filtersync/internal/sync"
)

const (
	testInlineFilterSpecConstant = "--prune-empty"
)

type commandHarness struct {
	command *cobra.Command
	output  *bytes.Buffer
}

func buildTestCommand(testInstance *testing.T, executor *scriptedGitExecutor) *commandHarness {
	builder := &syncpkg.CommandBuilder{
		LoggerProvider: func() *zap.Logger { return zap.NewNop() },
		GitExecutor:    executor,
	}

	command, buildError := builder.Build()
	require.NoError(testInstance, buildError)

	outputBuffer := &bytes.Buffer{}
	command.SetOut(outputBuffer)
	command.SetErr(outputBuffer)
	command.SetContext(context.Background())

	return &commandHarness{command: command, output: outputBuffer}
}

func (harness *commandHarness) execute(arguments ...string) error {
	harness.command.SetArgs(arguments)
	return harness.command.Execute()
}

func TestCommandRejectsWrongArgumentCount(testInstance *testing.T) {
	harness := buildTestCommand(testInstance, newScriptedGitExecutor())

	executionError := harness.execute("only-source")
	require.Error(testInstance, executionError)
	require.True(testInstance, syncpkg.IsUsageError(executionError))
}

func TestCommandClassifiesInvalidFilterSpec(testInstance *testing.T) {
	testCases := []struct {
		name       string
		filterSpec string
	}{
		{name: "empty_spec", filterSpec: "   "},
		{name: "tag_name_filter", filterSpec: "--tag-name-filter cat"},
		{name: "missing_argument", filterSpec: "--index-filter"},
		{name: "unknown_token", filterSpec: "--subdirectory-filter lib extra"},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			harness := buildTestCommand(testInstance, newScriptedGitExecutor())

			executionError := harness.execute(testSourceURLConstant, testCase.filterSpec, testDestinationURLConstant)
			require.Error(testInstance, executionError)

			failureKind, kindFound := syncpkg.KindOf(executionError)
			require.True(testInstance, kindFound)
			require.Equal(testInstance, syncpkg.KindInvalidFilter, failureKind)
		})
	}
}

func TestCommandRejectsUnknownTagsPlan(testInstance *testing.T) {
	harness := buildTestCommand(testInstance, newScriptedGitExecutor())

	executionError := harness.execute(
		"--tags-plan", "sometimes",
		testSourceURLConstant, testInlineFilterSpecConstant, testDestinationURLConstant,
	)
	require.Error(testInstance, executionError)
	require.True(testInstance, syncpkg.IsUsageError(executionError))
}

func TestCommandSurfacesPolicyConflict(testInstance *testing.T) {
	harness := buildTestCommand(testInstance, newScriptedGitExecutor())

	executionError := harness.execute(
		"--tags-plan", "none",
		"--prune-tags",
		"--workdir", testInstance.TempDir(),
		testSourceURLConstant, testInlineFilterSpecConstant, testDestinationURLConstant,
	)
	require.Error(testInstance, executionError)

	failureKind, kindFound := syncpkg.KindOf(executionError)
	require.True(testInstance, kindFound)
	require.Equal(testInstance, syncpkg.KindConfigConflict, failureKind)
}

func TestCommandRunsPipelineWithParsedFlags(testInstance *testing.T) {
	executor := newScriptedGitExecutor()
	executor.script(testHeadsListingPrefix, execshell.ExecutionResult{StandardOutput: testBranchListingConstant})
	scriptFreshRewrite(executor)

	harness := buildTestCommand(testInstance, executor)

	executionError := harness.execute(
		"--workdir", testInstance.TempDir(),
		"--branch-whitelist", "main",
		"--no-atomic",
		"--no-lock",
		testSourceURLConstant, testInlineFilterSpecConstant, testDestinationURLConstant,
	)
	require.NoError(testInstance, executionError)

	pushCommand := executor.commandWithPrefix("push")
	require.Equal(testInstance, []string{
		"push", "--force", "destination",
		"refs/heads/filter-branch/result/main:refs/heads/main",
	}, pushCommand)
}

func TestCommandParsesLookupDepthArgumentDirectly(testInstance *testing.T) {
	executor := newScriptedGitExecutor()
	executor.script(testHeadsListingPrefix, execshell.ExecutionResult{StandardOutput: testBranchListingConstant})
	scriptFreshRewrite(executor)

	harness := buildTestCommand(testInstance, executor)

	// The lookup depth stands alone even with list flags set beforehand.
	executionError := harness.execute(
		"--workdir", testInstance.TempDir(),
		"--branch-blacklist", "dev",
		"--tags-max-history-lookup", "5",
		testSourceURLConstant, testInlineFilterSpecConstant, testDestinationURLConstant,
	)
	require.NoError(testInstance, executionError)
}

func TestCommandRejectsNonPositiveLookupDepth(testInstance *testing.T) {
	harness := buildTestCommand(testInstance, newScriptedGitExecutor())

	executionError := harness.execute(
		"--tags-max-history-lookup", "0",
		"--workdir", testInstance.TempDir(),
		testSourceURLConstant, testInlineFilterSpecConstant, testDestinationURLConstant,
	)
	require.Error(testInstance, executionError)
	require.True(testInstance, syncpkg.IsUsageError(executionError))
}
