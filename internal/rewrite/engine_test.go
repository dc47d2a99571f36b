package rewrite_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/temirov/filtersync/internal/execshell"
	"github.com/temirov/filtersync/internal/filterspec"
	"github.com/temirov/filtersync/internal/rewrite"
)

const (
	testWorkerPathConstant       = "/work/worker-abc"
	testScratchPathConstant      = "/work/worker-abc.filter-branch"
	testBranchNameConstant       = "main"
	testLastFilteredShaConstant  = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	testNothingToRewriteStderr   = "Found nothing to rewrite\n"
	testUnrelatedFailureStderr   = "fatal: bad revision\n"
	testPruneEmptyDirectiveValue = "--prune-empty"
)

func testFilterSpec(testInstance *testing.T) filterspec.Spec {
	validatedSpec, validationError := filterspec.Validate([]string{testPruneEmptyDirectiveValue})
	require.NoError(testInstance, validationError)
	return validatedSpec
}

func newTestEngine(testInstance *testing.T, executor rewrite.CommandExecutor) *rewrite.Engine {
	engine, creationError := rewrite.NewEngine(executor, zap.NewNop(), nil)
	require.NoError(testInstance, creationError)
	return engine
}

func TestEngineComposesInvocationArguments(testInstance *testing.T) {
	executor := newScriptedGitExecutor()
	engine := newTestEngine(testInstance, executor)

	outcome, runError := engine.Run(context.Background(), rewrite.EngineInvocation{
		BranchName:           testBranchNameConstant,
		WorkerPath:           testWorkerPathConstant,
		ScratchDirectory:     testScratchPathConstant,
		FilterSpec:           testFilterSpec(testInstance),
		LastFilteredCommit:   testLastFilteredShaConstant,
		InstallTagNameFilter: true,
	})
	require.NoError(testInstance, runError)
	require.Equal(testInstance, rewrite.EngineOutcomeRewritten, outcome)

	require.Len(testInstance, executor.recordedCommands, 1)
	recordedCommand := executor.recordedCommands[0]
	require.Equal(testInstance, testWorkerPathConstant, recordedCommand.WorkingDirectory)
	require.Equal(testInstance, "1", recordedCommand.EnvironmentVariables["FILTER_BRANCH_SQUELCH_WARNING"])

	expectedArguments := []string{
		"filter-branch",
		"-d", testScratchPathConstant,
		"--remap-to-ancestor",
		"--state-branch", "refs/filter-branch/state",
		"--original", "refs/filter-branch/originals/main",
		"--force",
		"--tag-name-filter", `sed -e 's!^!filter-branch/converted-tags/!'`,
		"--prune-empty",
		"--",
		testLastFilteredShaConstant + "..refs/heads/filter-branch/result/main",
	}
	require.Equal(testInstance, expectedArguments, recordedCommand.Arguments)
}

func TestEngineOmitsOptionalPieces(testInstance *testing.T) {
	executor := newScriptedGitExecutor()
	engine := newTestEngine(testInstance, executor)

	_, runError := engine.Run(context.Background(), rewrite.EngineInvocation{
		BranchName:       testBranchNameConstant,
		WorkerPath:       testWorkerPathConstant,
		ScratchDirectory: testScratchPathConstant,
		FilterSpec:       testFilterSpec(testInstance),
	})
	require.NoError(testInstance, runError)

	recordedArguments := executor.recordedCommands[0].Arguments
	require.NotContains(testInstance, recordedArguments, "--tag-name-filter")
	require.Equal(testInstance, "refs/heads/filter-branch/result/main", recordedArguments[len(recordedArguments)-1])
}

func TestEngineClassifiesOutcomes(testInstance *testing.T) {
	testCases := []struct {
		name            string
		scriptedResult  execshell.ExecutionResult
		expectedOutcome rewrite.EngineOutcome
		expectedError   bool
	}{
		{
			name:            "nothing_to_rewrite_escape",
			scriptedResult:  execshell.ExecutionResult{ExitCode: 1, StandardError: testNothingToRewriteStderr},
			expectedOutcome: rewrite.EngineOutcomeNothingToRewrite,
		},
		{
			name:           "exit_one_with_real_failure",
			scriptedResult: execshell.ExecutionResult{ExitCode: 1, StandardError: testUnrelatedFailureStderr},
			expectedError:  true,
		},
		{
			name:           "other_exit_code",
			scriptedResult: execshell.ExecutionResult{ExitCode: 128, StandardError: testNothingToRewriteStderr},
			expectedError:  true,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			executor := newScriptedGitExecutor()
			executor.script("filter-branch", testCase.scriptedResult)
			engine := newTestEngine(testInstance, executor)

			outcome, runError := engine.Run(context.Background(), rewrite.EngineInvocation{
				BranchName:       testBranchNameConstant,
				WorkerPath:       testWorkerPathConstant,
				ScratchDirectory: testScratchPathConstant,
				FilterSpec:       testFilterSpec(testInstance),
			})

			if testCase.expectedError {
				require.Error(testInstance, runError)
				return
			}
			require.NoError(testInstance, runError)
			require.Equal(testInstance, testCase.expectedOutcome, outcome)
		})
	}
}
