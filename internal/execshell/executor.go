package execshell

import (
	"context"

	"go.uber.org/zap"
)

const (
	commandStartedMessageConstant   = "Running command"
	commandCompletedMessageConstant = "Command completed"
	commandFailedMessageConstant    = "Command failed"
	logFieldCommandConstant         = "command"
	logFieldArgumentsConstant       = "arguments"
	logFieldWorkingDirConstant      = "working_directory"
	logFieldExitCodeConstant        = "exit_code"
	logFieldStandardErrorConstant   = "standard_error"
)

// ShellExecutor runs commands through a CommandRunner while logging lifecycle events.
type ShellExecutor struct {
	logger        *zap.Logger
	commandRunner CommandRunner
}

// NewShellExecutor validates dependencies and constructs a ShellExecutor.
func NewShellExecutor(logger *zap.Logger, commandRunner CommandRunner) (*ShellExecutor, error) {
	if logger == nil {
		return nil, ErrLoggerNotConfigured
	}
	if commandRunner == nil {
		return nil, ErrCommandRunnerNotConfigured
	}

	return &ShellExecutor{logger: logger, commandRunner: commandRunner}, nil
}

// ExecuteGit runs the git executable with the provided details.
func (executor *ShellExecutor) ExecuteGit(executionContext context.Context, details CommandDetails) (ExecutionResult, error) {
	return executor.execute(executionContext, ShellCommand{Name: CommandGit, Details: details})
}

func (executor *ShellExecutor) execute(executionContext context.Context, command ShellCommand) (ExecutionResult, error) {
	executor.logger.Debug(
		commandStartedMessageConstant,
		zap.String(logFieldCommandConstant, string(command.Name)),
		zap.Strings(logFieldArgumentsConstant, command.Details.Arguments),
		zap.String(logFieldWorkingDirConstant, command.Details.WorkingDirectory),
	)

	executionResult, runError := executor.commandRunner.Run(executionContext, command)
	if runError != nil {
		executionFailure := CommandExecutionError{Command: command, Cause: runError}
		executor.logger.Debug(
			commandFailedMessageConstant,
			zap.String(logFieldCommandConstant, string(command.Name)),
			zap.Error(runError),
		)
		return ExecutionResult{}, executionFailure
	}

	if executionResult.ExitCode != successfulCommandExitCodeConstant {
		executor.logger.Debug(
			commandFailedMessageConstant,
			zap.String(logFieldCommandConstant, string(command.Name)),
			zap.Int(logFieldExitCodeConstant, executionResult.ExitCode),
			zap.String(logFieldStandardErrorConstant, executionResult.StandardError),
		)
		return executionResult, CommandFailedError{Command: command, Result: executionResult}
	}

	executor.logger.Debug(
		commandCompletedMessageConstant,
		zap.String(logFieldCommandConstant, string(command.Name)),
		zap.Int(logFieldExitCodeConstant, executionResult.ExitCode),
	)

	return executionResult, nil
}
