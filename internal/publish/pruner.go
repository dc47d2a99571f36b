package publish

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/temirov/filtersync/internal/gitrepo"
	"github.com/temirov/filtersync/internal/refmatch"
	"github.com/temirov/filtersync/internal/rewrite"
)

const (
	tagDeletionRefspecTemplateConstant    = ":refs/tags/%s"
	branchDeletionRefspecTemplateConstant = ":refs/heads/%s"
	headBranchProtectedMessageConstant    = "Destination HEAD branch is out of scope but will not be pruned"
	nothingToPruneMessageConstant         = "No destination refs to prune"
	pruningMessageConstant                = "Pruning destination refs"
	staleConvertedTagMessageConstant      = "Dropping stale converted tag"
	destinationTagListErrorTemplate       = "unable to enumerate destination tags: %w"
	destinationBranchListErrorTemplate    = "unable to enumerate destination branches: %w"
	destinationHeadLookupErrorTemplate    = "unable to determine destination HEAD: %w"
	logFieldBranchConstant                = "branch"
	logFieldTagConstant                   = "tag"
	logFieldDeletionCountConstant         = "deletion_count"
)

// PruneOptions configures the destination prune passes.
type PruneOptions struct {
	PruneBranches   bool
	PruneTags       bool
	InScopeBranches map[string]bool
	SourceTags      map[string]bool
	TagMatcher      *refmatch.Matcher
}

// Pruner deletes destination refs the filtered source view no longer justifies.
type Pruner struct {
	workerRepository *gitrepo.Repository
	logger           *zap.Logger
}

// NewPruner constructs a Pruner over the worker repository.
func NewPruner(workerRepository *gitrepo.Repository, logger *zap.Logger) (*Pruner, error) {
	if workerRepository == nil {
		return nil, errWorkerRepositoryMissing
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pruner{workerRepository: workerRepository, logger: logger}, nil
}

// PruneDestination computes and applies destination deletions after publish.
//
// Tag and branch passes are gated independently; the destination's current
// HEAD branch is never deleted. An empty deletion set skips the push.
func (pruner *Pruner) PruneDestination(executionContext context.Context, options PruneOptions) ([]string, error) {
	deletionRefspecs := []string{}

	if options.PruneTags {
		tagDeletions, tagPassError := pruner.collectTagDeletions(executionContext, options)
		if tagPassError != nil {
			return nil, tagPassError
		}
		deletionRefspecs = append(deletionRefspecs, tagDeletions...)
	}

	if options.PruneBranches {
		branchDeletions, branchPassError := pruner.collectBranchDeletions(executionContext, options)
		if branchPassError != nil {
			return nil, branchPassError
		}
		deletionRefspecs = append(deletionRefspecs, branchDeletions...)
	}

	if len(deletionRefspecs) == 0 {
		pruner.logger.Info(nothingToPruneMessageConstant)
		return nil, nil
	}

	pruner.logger.Info(pruningMessageConstant, zap.Int(logFieldDeletionCountConstant, len(deletionRefspecs)))

	pushError := pruner.workerRepository.Push(executionContext, gitrepo.PushOptions{
		Remote:   destinationRemoteNameConstant,
		RefSpecs: deletionRefspecs,
		Force:    true,
	})
	if pushError != nil {
		return nil, pushError
	}

	return deletionRefspecs, nil
}

func (pruner *Pruner) collectTagDeletions(executionContext context.Context, options PruneOptions) ([]string, error) {
	remoteTags, listError := pruner.workerRepository.ListRemoteTags(executionContext, destinationRemoteNameConstant)
	if listError != nil {
		return nil, fmt.Errorf(destinationTagListErrorTemplate, listError)
	}

	tagDeletions := []string{}
	for _, remoteTag := range remoteTags {
		if gitrepo.IsPeeledRemoteRef(remoteTag.Name) {
			continue
		}
		remoteTagName := gitrepo.TagNameFromRef(remoteTag.Name)
		if options.TagMatcher.Passes(remoteTagName) && options.SourceTags[remoteTagName] {
			continue
		}
		tagDeletions = append(tagDeletions, fmt.Sprintf(tagDeletionRefspecTemplateConstant, remoteTagName))
	}
	return tagDeletions, nil
}

func (pruner *Pruner) collectBranchDeletions(executionContext context.Context, options PruneOptions) ([]string, error) {
	remoteBranches, listError := pruner.workerRepository.ListRemoteHeads(executionContext, destinationRemoteNameConstant)
	if listError != nil {
		return nil, fmt.Errorf(destinationBranchListErrorTemplate, listError)
	}

	destinationHeadBranch, headLookupError := pruner.workerRepository.RemoteHeadBranch(executionContext, destinationRemoteNameConstant)
	if headLookupError != nil {
		return nil, fmt.Errorf(destinationHeadLookupErrorTemplate, headLookupError)
	}

	branchDeletions := []string{}
	for _, remoteBranch := range remoteBranches {
		remoteBranchName := gitrepo.BranchNameFromRef(remoteBranch.Name)
		if options.InScopeBranches[remoteBranchName] {
			continue
		}
		if remoteBranchName == destinationHeadBranch {
			pruner.logger.Warn(headBranchProtectedMessageConstant, zap.String(logFieldBranchConstant, remoteBranchName))
			continue
		}
		branchDeletions = append(branchDeletions, fmt.Sprintf(branchDeletionRefspecTemplateConstant, remoteBranchName))
	}
	return branchDeletions, nil
}

// CleanConvertedTags drops worker-local converted tags that are out of scope
// or no longer exist at the source. Runs before rewriting so stale tags are
// not republished.
func (pruner *Pruner) CleanConvertedTags(executionContext context.Context, tagMatcher *refmatch.Matcher, sourceTags map[string]bool) error {
	convertedListings, listError := pruner.workerRepository.ListRefs(executionContext, rewrite.ConvertedTagRefPrefix())
	if listError != nil {
		return fmt.Errorf(convertedTagListErrorTemplate, listError)
	}

	for _, convertedListing := range convertedListings {
		sourceTagName := rewrite.SourceTagFromConvertedRef(convertedListing.Name)
		if tagMatcher.Passes(sourceTagName) && sourceTags[sourceTagName] {
			continue
		}

		pruner.logger.Debug(staleConvertedTagMessageConstant, zap.String(logFieldTagConstant, sourceTagName))
		if deleteError := pruner.workerRepository.DeleteRef(executionContext, convertedListing.Name); deleteError != nil {
			return deleteError
		}
	}

	return nil
}
