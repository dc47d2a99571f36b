package sync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/temirov/filtersync/internal/gitrepo"
	"github.com/temirov/filtersync/internal/publish"
	"github.com/temirov/filtersync/internal/refmatch"
	"github.com/temirov/filtersync/internal/rewrite"
	"github.com/temirov/filtersync/internal/runlock"
	"github.com/temirov/filtersync/internal/workarea"
)

const (
	gitExecutorMissingMessageConstant    = "git executor not configured"
	workingAreaCreateErrorTemplate       = "unable to create working area %s: %w"
	tagsRefPrefixForListingConstant      = "refs/tags"
	runCompletedMessageConstant          = "Synchronization completed"
	branchInScopeMessageConstant         = "Branch selected for rewriting"
	branchOutOfScopeMessageConstant      = "Branch excluded by matcher"
	logFieldBranchConstant               = "branch"
	logFieldBranchesRewrittenConstant    = "branches_rewritten"
	logFieldBranchesSkippedConstant      = "branches_skipped"
	logFieldTagsConvertedConstant        = "tags_converted"
	logFieldTagsUnmappableConstant       = "tags_unmappable"
	logFieldPrunedRefsConstant           = "pruned_refs"
	workingAreaDirectoryPermissionsValue = 0o755
)

// ServiceDependencies describes the collaborators of the pipeline service.
type ServiceDependencies struct {
	Logger *zap.Logger
	// GitExecutor runs every git invocation of the pipeline.
	GitExecutor gitrepo.CommandExecutor
	// EngineStandardError receives the rewrite engine's stderr live; may be nil.
	EngineStandardError io.Writer
}

// RunSummary captures the observable outcome of one pipeline run.
type RunSummary struct {
	BranchesRewritten []string
	BranchesSkipped   []string
	TagsConverted     int
	TagsUnmappable    int
	PrunedRefs        []string
}

// Service executes the top-level synchronization pipeline.
type Service struct {
	logger              *zap.Logger
	gitExecutor         gitrepo.CommandExecutor
	engineStandardError io.Writer
}

// NewService validates dependencies and constructs a Service.
func NewService(dependencies ServiceDependencies) (*Service, error) {
	if dependencies.GitExecutor == nil {
		return nil, NewClassifiedError(KindEnvironment, errors.New(gitExecutorMissingMessageConstant))
	}
	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		logger:              logger,
		gitExecutor:         dependencies.GitExecutor,
		engineStandardError: dependencies.EngineStandardError,
	}, nil
}

// Run executes one synchronization: guard, mirror refresh, branch selection,
// worker preparation, per-branch rewrites, publish, and prune.
func (service *Service) Run(executionContext context.Context, configuration RunConfiguration) (RunSummary, error) {
	runSummary := RunSummary{}

	if validationError := configuration.Validate(); validationError != nil {
		return runSummary, validationError
	}

	branchMatcher, branchMatcherError := refmatch.NewMatcher(configuration.BranchWhitelist, configuration.BranchBlacklist)
	if branchMatcherError != nil {
		return runSummary, NewClassifiedError(KindUsage, branchMatcherError)
	}
	tagMatcher, tagMatcherError := refmatch.NewMatcher(configuration.TagWhitelist, configuration.TagBlacklist)
	if tagMatcherError != nil {
		return runSummary, NewClassifiedError(KindUsage, tagMatcherError)
	}

	layout := workarea.NewLayout(configuration.WorkingDirectory, configuration.SourceURL, configuration.DestinationURL)
	if createError := os.MkdirAll(layout.Root(), workingAreaDirectoryPermissionsValue); createError != nil {
		return runSummary, NewClassifiedError(KindEnvironment, fmt.Errorf(workingAreaCreateErrorTemplate, layout.Root(), createError))
	}

	runGuard := runlock.NewGuard(layout.LockPath(), configuration.LockingEnabled, service.logger)
	releaseGuard, acquireError := runGuard.Acquire(executionContext)
	if acquireError != nil {
		return runSummary, NewClassifiedError(KindEnvironment, acquireError)
	}
	defer releaseGuard()

	mirrorManager, mirrorManagerError := workarea.NewMirrorManager(service.gitExecutor, service.logger, layout)
	if mirrorManagerError != nil {
		return runSummary, NewClassifiedError(KindEnvironment, mirrorManagerError)
	}
	mirrorRepository, mirrorError := mirrorManager.EnsureFresh(executionContext, workarea.MirrorOptions{
		SourceURL:        configuration.SourceURL,
		DisableHardlinks: configuration.DisableHardlinks,
	})
	if mirrorError != nil {
		return runSummary, NewClassifiedError(KindSourceUnavailable, mirrorError)
	}

	sourceBranches, branchListError := mirrorManager.ListBranches(executionContext, mirrorRepository)
	if branchListError != nil {
		return runSummary, NewClassifiedError(KindSourceUnavailable, branchListError)
	}

	inScopeBranches := make([]string, 0, len(sourceBranches))
	for _, sourceBranch := range sourceBranches {
		if branchMatcher.Passes(sourceBranch) {
			service.logger.Debug(branchInScopeMessageConstant, zap.String(logFieldBranchConstant, sourceBranch))
			inScopeBranches = append(inScopeBranches, sourceBranch)
			continue
		}
		service.logger.Debug(branchOutOfScopeMessageConstant, zap.String(logFieldBranchConstant, sourceBranch))
	}

	workerManager, workerManagerError := workarea.NewWorkerManager(service.gitExecutor, service.logger, layout)
	if workerManagerError != nil {
		return runSummary, NewClassifiedError(KindEnvironment, workerManagerError)
	}
	workerRepository, workerError := workerManager.Ensure(executionContext, workarea.WorkerOptions{DestinationURL: configuration.DestinationURL})
	if workerError != nil {
		return runSummary, NewClassifiedError(KindWorkerCorrupt, workerError)
	}

	sourceTags, sourceTagError := service.collectSourceTags(executionContext, mirrorRepository)
	if sourceTagError != nil {
		return runSummary, NewClassifiedError(KindSourceUnavailable, sourceTagError)
	}

	destinationPruner, prunerError := publish.NewPruner(workerRepository, service.logger)
	if prunerError != nil {
		return runSummary, NewClassifiedError(KindEnvironment, prunerError)
	}

	if configuration.PruneTags {
		if cleanError := destinationPruner.CleanConvertedTags(executionContext, tagMatcher, sourceTags); cleanError != nil {
			return runSummary, NewClassifiedError(KindWorkerCorrupt, cleanError)
		}
	}

	rewriteError := service.rewriteBranches(executionContext, configuration, layout, workerRepository, tagMatcher, inScopeBranches, &runSummary)
	if rewriteError != nil {
		return runSummary, rewriteError
	}

	destinationPublisher, publisherError := publish.NewPublisher(workerRepository, service.logger)
	if publisherError != nil {
		return runSummary, NewClassifiedError(KindEnvironment, publisherError)
	}

	publishPlan := publish.PublishPlan{Branches: inScopeBranches}
	if configuration.TagPolicy != rewrite.TagPolicyNone {
		convertedTagNames, convertedTagError := destinationPublisher.ConvertedTagsInScope(executionContext, tagMatcher)
		if convertedTagError != nil {
			return runSummary, NewClassifiedError(KindWorkerCorrupt, convertedTagError)
		}
		publishPlan.ConvertedTagNames = convertedTagNames
	}

	if publishError := destinationPublisher.Publish(executionContext, publishPlan, configuration.AtomicPush); publishError != nil {
		return runSummary, NewClassifiedError(KindPushFailure, publishError)
	}

	if configuration.PruneBranches || configuration.PruneTags {
		inScopeBranchSet := map[string]bool{}
		for _, inScopeBranch := range inScopeBranches {
			inScopeBranchSet[inScopeBranch] = true
		}

		prunedRefs, pruneError := destinationPruner.PruneDestination(executionContext, publish.PruneOptions{
			PruneBranches:   configuration.PruneBranches,
			PruneTags:       configuration.PruneTags,
			InScopeBranches: inScopeBranchSet,
			SourceTags:      sourceTags,
			TagMatcher:      tagMatcher,
		})
		if pruneError != nil {
			return runSummary, NewClassifiedError(KindPushFailure, pruneError)
		}
		runSummary.PrunedRefs = prunedRefs
	}

	service.logger.Info(
		runCompletedMessageConstant,
		zap.Strings(logFieldBranchesRewrittenConstant, runSummary.BranchesRewritten),
		zap.Strings(logFieldBranchesSkippedConstant, runSummary.BranchesSkipped),
		zap.Int(logFieldTagsConvertedConstant, runSummary.TagsConverted),
		zap.Int(logFieldTagsUnmappableConstant, runSummary.TagsUnmappable),
		zap.Strings(logFieldPrunedRefsConstant, runSummary.PrunedRefs),
	)

	return runSummary, nil
}

func (service *Service) collectSourceTags(executionContext context.Context, mirrorRepository *gitrepo.Repository) (map[string]bool, error) {
	tagListings, listError := mirrorRepository.ListRefs(executionContext, tagsRefPrefixForListingConstant)
	if listError != nil {
		return nil, listError
	}

	sourceTags := map[string]bool{}
	for _, tagListing := range tagListings {
		sourceTags[gitrepo.TagNameFromRef(tagListing.Name)] = true
	}
	return sourceTags, nil
}

func (service *Service) rewriteBranches(
	executionContext context.Context,
	configuration RunConfiguration,
	layout workarea.Layout,
	workerRepository *gitrepo.Repository,
	tagMatcher *refmatch.Matcher,
	inScopeBranches []string,
	runSummary *RunSummary,
) error {
	rewriteEngine, engineError := rewrite.NewEngine(service.gitExecutor, service.logger, service.engineStandardError)
	if engineError != nil {
		return NewClassifiedError(KindEnvironment, engineError)
	}

	tagMapper, tagMapperError := rewrite.NewTagMapper(workerRepository, service.logger, configuration.TagHistoryLookupDepth, layout.MapFilePath())
	if tagMapperError != nil {
		return NewClassifiedError(KindEnvironment, tagMapperError)
	}
	defer tagMapper.RemoveSnapshot()

	branchRewriter, rewriterError := rewrite.NewBranchRewriter(
		rewrite.BranchRewriterDependencies{
			WorkerRepository: workerRepository,
			Engine:           rewriteEngine,
			TagMapper:        tagMapper,
			TagMatcher:       tagMatcher,
			Logger:           service.logger,
		},
		rewrite.BranchRewriteOptions{
			FilterSpec:       configuration.FilterSpec,
			TagPolicy:        configuration.TagPolicy,
			ScratchDirectory: layout.ScratchPath(),
		},
	)
	if rewriterError != nil {
		return NewClassifiedError(KindEnvironment, rewriterError)
	}

	for _, inScopeBranch := range inScopeBranches {
		branchResult, branchError := branchRewriter.RewriteBranch(executionContext, inScopeBranch)
		if branchError != nil {
			return NewClassifiedError(KindRewriteFailure, branchError)
		}

		if branchResult.Skipped {
			runSummary.BranchesSkipped = append(runSummary.BranchesSkipped, inScopeBranch)
		} else {
			runSummary.BranchesRewritten = append(runSummary.BranchesRewritten, inScopeBranch)
		}
		runSummary.TagsConverted += len(branchResult.TagsConverted)
		runSummary.TagsUnmappable += len(branchResult.TagsUnmappable)
	}

	return nil
}
