package workarea

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/temirov/filtersync/internal/gitrepo"
)

const (
	originRemoteNameConstant              = "origin"
	headsRefPrefixForListingConstant      = "refs/heads"
	mirrorRefreshFailedMessageConstant    = "Mirror refresh failed, recloning"
	mirrorClonedMessageConstant           = "Source mirror cloned"
	mirrorRemoveErrorTemplateConstant     = "unable to remove stale mirror %s: %w"
	mirrorCloneErrorTemplateConstant      = "unable to mirror %s: %w"
	mirrorBranchListErrorTemplateConstant = "unable to enumerate source branches: %w"
	noSourceBranchesMessageConstant       = "source repository has no branches"
	logFieldMirrorPathConstant            = "mirror_path"
	logFieldSourceURLConstant             = "source_url"
)

// ErrNoSourceBranches reports an empty source branch enumeration.
var ErrNoSourceBranches = errors.New(noSourceBranchesMessageConstant)

// MirrorOptions configures mirror maintenance.
type MirrorOptions struct {
	SourceURL        string
	DisableHardlinks bool
}

// MirrorManager maintains the bare source mirror inside the working area.
type MirrorManager struct {
	executor gitrepo.CommandExecutor
	logger   *zap.Logger
	layout   Layout
}

// NewMirrorManager constructs a MirrorManager for the provided layout.
func NewMirrorManager(executor gitrepo.CommandExecutor, logger *zap.Logger, layout Layout) (*MirrorManager, error) {
	if executor == nil {
		return nil, gitrepo.ErrExecutorMissing
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MirrorManager{executor: executor, logger: logger, layout: layout}, nil
}

// EnsureFresh refreshes the mirror in place, recloning when the refresh fails
// or the directory is absent or corrupt.
func (manager *MirrorManager) EnsureFresh(executionContext context.Context, options MirrorOptions) (*gitrepo.Repository, error) {
	mirrorPath := manager.layout.MirrorPath()

	mirrorRepository, repositoryError := gitrepo.NewRepository(manager.executor, mirrorPath)
	if repositoryError != nil {
		return nil, repositoryError
	}

	if directoryExists(mirrorPath) && mirrorRepository.IsUsableRepository(executionContext) {
		refreshError := mirrorRepository.Fetch(executionContext, gitrepo.FetchOptions{
			Remote: originRemoteNameConstant,
			Prune:  true,
		})
		if refreshError == nil {
			return mirrorRepository, nil
		}
		manager.logger.Warn(
			mirrorRefreshFailedMessageConstant,
			zap.String(logFieldMirrorPathConstant, mirrorPath),
			zap.Error(refreshError),
		)
	}

	if removeError := os.RemoveAll(mirrorPath); removeError != nil {
		return nil, fmt.Errorf(mirrorRemoveErrorTemplateConstant, mirrorPath, removeError)
	}

	cloneError := gitrepo.CloneMirror(executionContext, manager.executor, options.SourceURL, mirrorPath, options.DisableHardlinks)
	if cloneError != nil {
		return nil, fmt.Errorf(mirrorCloneErrorTemplateConstant, options.SourceURL, cloneError)
	}

	manager.logger.Info(
		mirrorClonedMessageConstant,
		zap.String(logFieldSourceURLConstant, options.SourceURL),
		zap.String(logFieldMirrorPathConstant, mirrorPath),
	)

	return mirrorRepository, nil
}

// ListBranches enumerates source branch names, failing when none exist.
func (manager *MirrorManager) ListBranches(executionContext context.Context, mirrorRepository *gitrepo.Repository) ([]string, error) {
	branchListings, listError := mirrorRepository.ListRefs(executionContext, headsRefPrefixForListingConstant)
	if listError != nil {
		return nil, fmt.Errorf(mirrorBranchListErrorTemplateConstant, listError)
	}

	branchNames := make([]string, 0, len(branchListings))
	for _, branchListing := range branchListings {
		branchNames = append(branchNames, gitrepo.BranchNameFromRef(branchListing.Name))
	}

	if len(branchNames) == 0 {
		return nil, ErrNoSourceBranches
	}

	return branchNames, nil
}

func directoryExists(directoryPath string) bool {
	directoryInfo, statError := os.Stat(directoryPath)
	return statError == nil && directoryInfo.IsDir()
}
