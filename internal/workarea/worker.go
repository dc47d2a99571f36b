package workarea

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/temirov/filtersync/internal/gitrepo"
)

const (
	sourceRemoteNameConstant             = "source"
	destinationRemoteNameConstant        = "destination"
	headSentinelRefConstant              = "refs/none"
	workerRebuildMessageConstant         = "Worker repository unusable, rebuilding"
	workerRemoveErrorTemplateConstant    = "unable to remove worker %s: %w"
	workerInitErrorTemplateConstant      = "unable to initialize worker %s: %w"
	workerRootCreateErrorTemplate        = "unable to create working area %s: %w"
	logFieldWorkerPathConstant           = "worker_path"
	workingAreaDirectoryPermissionsValue = 0o755
)

// WorkerOptions configures worker repository initialization.
type WorkerOptions struct {
	DestinationURL string
}

// WorkerManager maintains the long-lived bare worker repository.
type WorkerManager struct {
	executor gitrepo.CommandExecutor
	logger   *zap.Logger
	layout   Layout
}

// NewWorkerManager constructs a WorkerManager for the provided layout.
func NewWorkerManager(executor gitrepo.CommandExecutor, logger *zap.Logger, layout Layout) (*WorkerManager, error) {
	if executor == nil {
		return nil, gitrepo.ErrExecutorMissing
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkerManager{executor: executor, logger: logger, layout: layout}, nil
}

// Ensure validates or builds the worker repository with its two remotes.
//
// A worker that fails validation is removed and rebuilt; a worker whose
// initialization fails part-way is removed so the next run starts clean.
func (manager *WorkerManager) Ensure(executionContext context.Context, options WorkerOptions) (*gitrepo.Repository, error) {
	if createError := os.MkdirAll(manager.layout.Root(), workingAreaDirectoryPermissionsValue); createError != nil {
		return nil, fmt.Errorf(workerRootCreateErrorTemplate, manager.layout.Root(), createError)
	}

	workerPath := manager.layout.WorkerPath()

	workerRepository, repositoryError := gitrepo.NewRepository(manager.executor, workerPath)
	if repositoryError != nil {
		return nil, repositoryError
	}

	if directoryExists(workerPath) {
		if workerRepository.IsUsableRepository(executionContext) {
			return workerRepository, nil
		}
		manager.logger.Warn(workerRebuildMessageConstant, zap.String(logFieldWorkerPathConstant, workerPath))
		if removeError := os.RemoveAll(workerPath); removeError != nil {
			return nil, fmt.Errorf(workerRemoveErrorTemplateConstant, workerPath, removeError)
		}
	}

	initializationError := manager.initializeWorker(executionContext, workerRepository, options)
	if initializationError != nil {
		_ = os.RemoveAll(workerPath)
		return nil, fmt.Errorf(workerInitErrorTemplateConstant, workerPath, initializationError)
	}

	return workerRepository, nil
}

func (manager *WorkerManager) initializeWorker(executionContext context.Context, workerRepository *gitrepo.Repository, options WorkerOptions) error {
	if initError := gitrepo.InitBare(executionContext, manager.executor, workerRepository.Path()); initError != nil {
		return initError
	}

	if remoteError := workerRepository.AddRemote(executionContext, sourceRemoteNameConstant, manager.layout.MirrorPath()); remoteError != nil {
		return remoteError
	}

	if remoteError := workerRepository.AddRemote(executionContext, destinationRemoteNameConstant, options.DestinationURL); remoteError != nil {
		return remoteError
	}

	if fetchError := workerRepository.Fetch(executionContext, gitrepo.FetchOptions{Remote: destinationRemoteNameConstant, Prune: true}); fetchError != nil {
		return fetchError
	}

	// Park HEAD on a sentinel so later fetches cannot move an active branch.
	if sentinelError := workerRepository.SetHeadSentinel(executionContext, headSentinelRefConstant); sentinelError != nil {
		return sentinelError
	}

	return nil
}
