package rewrite

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/temirov/filtersync/internal/filterspec"
	"github.com/temirov/filtersync/internal/gitrepo"
	"github.com/temirov/filtersync/internal/refmatch"
)

const (
	sourceRemoteNameConstant             = "source"
	branchUpToDateMessageConstant        = "Branch already rewritten up to source tip"
	branchRewriteStartedMessageConstant  = "Rewriting branch delta"
	branchMarkerAdvancedMessageConstant  = "Filtered marker advanced"
	branchFetchErrorTemplateConstant     = "unable to fetch branch %s from source: %w"
	branchStageErrorTemplateConstant     = "unable to stage branch %s: %w"
	branchPrepareErrorTemplateConstant   = "unable to prepare result branch for %s: %w"
	branchTagListErrorTemplateConstant   = "unable to enumerate tags merged into %s: %w"
	branchMarkerErrorTemplateConstant    = "unable to advance filtered marker for %s: %w"
	convertedTagListErrorTemplate        = "unable to enumerate converted tags: %w"
	logFieldBranchNameConstant           = "branch"
	logFieldFetchHeadConstant            = "fetch_head"
	logFieldLastFilteredConstant         = "last_filtered"
)

// BranchRewriterDependencies carries the collaborators of a BranchRewriter.
type BranchRewriterDependencies struct {
	WorkerRepository *gitrepo.Repository
	Engine           *Engine
	TagMapper        *TagMapper
	TagMatcher       *refmatch.Matcher
	Logger           *zap.Logger
}

// BranchRewriteOptions configures the per-branch rewrite behavior.
type BranchRewriteOptions struct {
	FilterSpec       filterspec.Spec
	TagPolicy        TagPolicy
	ScratchDirectory string
}

// BranchResult captures the observable outcome of one branch rewrite.
type BranchResult struct {
	BranchName       string
	Skipped          bool
	NothingToRewrite bool
	TagsConverted    []string
	TagsUnmappable   []string
}

// BranchRewriter performs the incremental rewrite of a single branch.
type BranchRewriter struct {
	dependencies BranchRewriterDependencies
	options      BranchRewriteOptions
}

var (
	errWorkerRepositoryMissing = errors.New("worker repository not configured")
	errEngineMissing           = errors.New("rewrite engine not configured")
	errTagMatcherMissing       = errors.New("tag matcher not configured")
)

// NewBranchRewriter validates dependencies and constructs a BranchRewriter.
func NewBranchRewriter(dependencies BranchRewriterDependencies, options BranchRewriteOptions) (*BranchRewriter, error) {
	if dependencies.WorkerRepository == nil {
		return nil, errWorkerRepositoryMissing
	}
	if dependencies.Engine == nil {
		return nil, errEngineMissing
	}
	if dependencies.TagMatcher == nil {
		return nil, errTagMatcherMissing
	}
	if dependencies.Logger == nil {
		dependencies.Logger = zap.NewNop()
	}
	return &BranchRewriter{dependencies: dependencies, options: options}, nil
}

// RewriteBranch runs the full per-branch procedure: fetch the delta, stage
// the branch, drive the rewrite engine over the unrewritten range, map
// unvisited tags under the "all" policy, and advance the filtered marker.
func (rewriter *BranchRewriter) RewriteBranch(executionContext context.Context, branchName string) (BranchResult, error) {
	workerRepository := rewriter.dependencies.WorkerRepository
	branchResult := BranchResult{BranchName: branchName}

	fetchError := workerRepository.Fetch(executionContext, gitrepo.FetchOptions{
		Remote:        sourceRemoteNameConstant,
		RefSpecs:      []string{branchName},
		Tags:          true,
		Force:         true,
		UpdateShallow: true,
	})
	if fetchError != nil {
		return branchResult, fmt.Errorf(branchFetchErrorTemplateConstant, branchName, fetchError)
	}

	fetchHead, fetchHeadError := workerRepository.FetchHead(executionContext)
	if fetchHeadError != nil {
		return branchResult, fmt.Errorf(branchFetchErrorTemplateConstant, branchName, fetchHeadError)
	}

	if stageError := workerRepository.UpdateRef(executionContext, SourceBranchRef(branchName), RemoteSourceBranchRef(branchName)); stageError != nil {
		return branchResult, fmt.Errorf(branchStageErrorTemplateConstant, branchName, stageError)
	}
	if detachError := workerRepository.DetachHead(executionContext, fetchHead); detachError != nil {
		return branchResult, fmt.Errorf(branchStageErrorTemplateConstant, branchName, detachError)
	}

	lastFilteredCommit, markerExists, markerError := workerRepository.ResolveRef(executionContext, FilteredMarkerRef(branchName))
	if markerError != nil {
		return branchResult, markerError
	}

	if markerExists && lastFilteredCommit == fetchHead {
		rewriter.dependencies.Logger.Info(
			branchUpToDateMessageConstant,
			zap.String(logFieldBranchNameConstant, branchName),
			zap.String(logFieldFetchHeadConstant, fetchHead),
		)
		branchResult.Skipped = true
		return branchResult, nil
	}

	if prepareError := rewriter.prepareResultBranch(executionContext, branchName, fetchHead); prepareError != nil {
		return branchResult, fmt.Errorf(branchPrepareErrorTemplateConstant, branchName, prepareError)
	}

	inScopeTags, tagListError := rewriter.enumerateInScopeTags(executionContext, fetchHead)
	if tagListError != nil {
		return branchResult, fmt.Errorf(branchTagListErrorTemplateConstant, branchName, tagListError)
	}

	rewriter.dependencies.Logger.Info(
		branchRewriteStartedMessageConstant,
		zap.String(logFieldBranchNameConstant, branchName),
		zap.String(logFieldFetchHeadConstant, fetchHead),
		zap.String(logFieldLastFilteredConstant, lastFilteredCommit),
	)

	engineOutcome, engineError := rewriter.dependencies.Engine.Run(executionContext, EngineInvocation{
		BranchName:           branchName,
		WorkerPath:           workerRepository.Path(),
		ScratchDirectory:     rewriter.options.ScratchDirectory,
		FilterSpec:           rewriter.options.FilterSpec,
		LastFilteredCommit:   lastFilteredCommit,
		InstallTagNameFilter: len(inScopeTags) > 0,
	})
	if engineError != nil {
		return branchResult, engineError
	}
	branchResult.NothingToRewrite = engineOutcome == EngineOutcomeNothingToRewrite

	if rewriter.options.TagPolicy == TagPolicyAll && len(inScopeTags) > 0 {
		mapError := rewriter.mapUnvisitedTags(executionContext, inScopeTags, &branchResult)
		if mapError != nil {
			return branchResult, mapError
		}
	}

	if markerAdvanceError := workerRepository.UpdateRef(executionContext, FilteredMarkerRef(branchName), fetchHead); markerAdvanceError != nil {
		return branchResult, fmt.Errorf(branchMarkerErrorTemplateConstant, branchName, markerAdvanceError)
	}

	rewriter.dependencies.Logger.Debug(
		branchMarkerAdvancedMessageConstant,
		zap.String(logFieldBranchNameConstant, branchName),
		zap.String(logFieldFetchHeadConstant, fetchHead),
	)

	return branchResult, nil
}

func (rewriter *BranchRewriter) prepareResultBranch(executionContext context.Context, branchName string, fetchHead string) error {
	workerRepository := rewriter.dependencies.WorkerRepository

	staleOriginals, listError := workerRepository.ListRefs(executionContext, OriginalsNamespace(branchName))
	if listError != nil {
		return listError
	}
	for _, staleOriginal := range staleOriginals {
		if deleteError := workerRepository.DeleteRef(executionContext, staleOriginal.Name); deleteError != nil {
			return deleteError
		}
	}

	if updateError := workerRepository.UpdateRef(executionContext, ResultBranchRef(branchName), fetchHead); updateError != nil {
		return updateError
	}

	return os.RemoveAll(rewriter.options.ScratchDirectory)
}

func (rewriter *BranchRewriter) enumerateInScopeTags(executionContext context.Context, fetchHead string) ([]string, error) {
	if rewriter.options.TagPolicy == TagPolicyNone {
		return nil, nil
	}

	mergedTags, listError := rewriter.dependencies.WorkerRepository.ListTagsMergedInto(executionContext, fetchHead)
	if listError != nil {
		return nil, listError
	}

	inScopeTags := make([]string, 0, len(mergedTags))
	for _, mergedTag := range mergedTags {
		if IsConvertedTagName(mergedTag) {
			continue
		}
		if !rewriter.dependencies.TagMatcher.Passes(mergedTag) {
			continue
		}
		inScopeTags = append(inScopeTags, mergedTag)
	}

	return inScopeTags, nil
}

func (rewriter *BranchRewriter) mapUnvisitedTags(executionContext context.Context, inScopeTags []string, branchResult *BranchResult) error {
	workerRepository := rewriter.dependencies.WorkerRepository

	convertedListings, listError := workerRepository.ListRefs(executionContext, ConvertedTagRefPrefix())
	if listError != nil {
		return fmt.Errorf(convertedTagListErrorTemplate, listError)
	}

	alreadyConverted := map[string]bool{}
	for _, convertedListing := range convertedListings {
		alreadyConverted[SourceTagFromConvertedRef(convertedListing.Name)] = true
	}

	for _, inScopeTag := range inScopeTags {
		if alreadyConverted[inScopeTag] {
			continue
		}

		tagMapped, mapError := rewriter.dependencies.TagMapper.MapTag(executionContext, inScopeTag)
		if mapError != nil {
			return mapError
		}
		if tagMapped {
			branchResult.TagsConverted = append(branchResult.TagsConverted, inScopeTag)
		} else {
			branchResult.TagsUnmappable = append(branchResult.TagsUnmappable, inScopeTag)
		}
	}

	return nil
}
