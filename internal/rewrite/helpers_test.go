package rewrite_test

import (
	"context"
	"strings"

	"github.com/temirov/filtersync/internal/execshell"
)

// scriptedGitExecutor answers git invocations by longest matching argument prefix.
type scriptedGitExecutor struct {
	scriptedResults  map[string]execshell.ExecutionResult
	recordedCommands []execshell.CommandDetails
}

func newScriptedGitExecutor() *scriptedGitExecutor {
	return &scriptedGitExecutor{scriptedResults: map[string]execshell.ExecutionResult{}}
}

func (executor *scriptedGitExecutor) script(argumentPrefix string, result execshell.ExecutionResult) {
	executor.scriptedResults[argumentPrefix] = result
}

func (executor *scriptedGitExecutor) ExecuteGit(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error) {
	executor.recordedCommands = append(executor.recordedCommands, details)
	joinedArguments := strings.Join(details.Arguments, " ")

	matchedPrefix := ""
	for argumentPrefix := range executor.scriptedResults {
		if strings.HasPrefix(joinedArguments, argumentPrefix) && len(argumentPrefix) > len(matchedPrefix) {
			matchedPrefix = argumentPrefix
		}
	}
	if len(matchedPrefix) == 0 {
		return execshell.ExecutionResult{}, nil
	}

	scriptedResult := executor.scriptedResults[matchedPrefix]
	if scriptedResult.ExitCode != 0 {
		return scriptedResult, execshell.CommandFailedError{
			Command: execshell.ShellCommand{Name: execshell.CommandGit, Details: details},
			Result:  scriptedResult,
		}
	}
	return scriptedResult, nil
}

func (executor *scriptedGitExecutor) commandWithPrefix(argumentPrefix string) []string {
	for _, recordedCommand := range executor.recordedCommands {
		if strings.HasPrefix(strings.Join(recordedCommand.Arguments, " "), argumentPrefix) {
			return recordedCommand.Arguments
		}
	}
	return nil
}

func (executor *scriptedGitExecutor) countWithPrefix(argumentPrefix string) int {
	matchedCount := 0
	for _, recordedCommand := range executor.recordedCommands {
		if strings.HasPrefix(strings.Join(recordedCommand.Arguments, " "), argumentPrefix) {
			matchedCount++
		}
	}
	return matchedCount
}
