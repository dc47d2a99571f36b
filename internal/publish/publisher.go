package publish

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/temirov/filtersync/internal/gitrepo"
	"github.com/temirov/filtersync/internal/refmatch"
	"github.com/temirov/filtersync/internal/rewrite"
)

const (
	destinationRemoteNameConstant      = "destination"
	branchRefspecTemplateConstant      = "%s:refs/heads/%s"
	tagRefspecTemplateConstant         = "%s:refs/tags/%s"
	nothingToPublishMessageConstant    = "No refs to publish"
	publishingMessageConstant          = "Publishing to destination"
	convertedTagListErrorTemplate      = "unable to enumerate converted tags: %w"
	logFieldRefspecCountConstant       = "refspec_count"
	logFieldAtomicConstant             = "atomic"
	workerRepositoryMissingMessageText = "worker repository not configured"
)

var errWorkerRepositoryMissing = errors.New(workerRepositoryMissingMessageText)

// PublishPlan names the branches and converted tags to land on the destination.
type PublishPlan struct {
	Branches          []string
	ConvertedTagNames []string
}

// Publisher pushes rewritten refs to the destination remote.
type Publisher struct {
	workerRepository *gitrepo.Repository
	logger           *zap.Logger
}

// NewPublisher constructs a Publisher over the worker repository.
func NewPublisher(workerRepository *gitrepo.Repository, logger *zap.Logger) (*Publisher, error) {
	if workerRepository == nil {
		return nil, errWorkerRepositoryMissing
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{workerRepository: workerRepository, logger: logger}, nil
}

// ConvertedTagsInScope enumerates worker-local converted tags passing the tag matcher.
func (publisher *Publisher) ConvertedTagsInScope(executionContext context.Context, tagMatcher *refmatch.Matcher) ([]string, error) {
	convertedListings, listError := publisher.workerRepository.ListRefs(executionContext, rewrite.ConvertedTagRefPrefix())
	if listError != nil {
		return nil, fmt.Errorf(convertedTagListErrorTemplate, listError)
	}

	inScopeTagNames := make([]string, 0, len(convertedListings))
	for _, convertedListing := range convertedListings {
		sourceTagName := rewrite.SourceTagFromConvertedRef(convertedListing.Name)
		if tagMatcher.Passes(sourceTagName) {
			inScopeTagNames = append(inScopeTagNames, sourceTagName)
		}
	}

	return inScopeTagNames, nil
}

// BuildRefspecs composes the publish refspec list for branches and tags.
func BuildRefspecs(plan PublishPlan) []string {
	composedRefspecs := make([]string, 0, len(plan.Branches)+len(plan.ConvertedTagNames))
	for _, branchName := range plan.Branches {
		composedRefspecs = append(composedRefspecs, fmt.Sprintf(branchRefspecTemplateConstant, rewrite.ResultBranchRef(branchName), branchName))
	}
	for _, convertedTagName := range plan.ConvertedTagNames {
		composedRefspecs = append(composedRefspecs, fmt.Sprintf(tagRefspecTemplateConstant, rewrite.ConvertedTagRef(convertedTagName), convertedTagName))
	}
	return composedRefspecs
}

// Publish force-pushes the plan to the destination in one operation.
//
// An empty plan skips the push entirely.
func (publisher *Publisher) Publish(executionContext context.Context, plan PublishPlan, atomicPush bool) error {
	composedRefspecs := BuildRefspecs(plan)
	if len(composedRefspecs) == 0 {
		publisher.logger.Info(nothingToPublishMessageConstant)
		return nil
	}

	publisher.logger.Info(
		publishingMessageConstant,
		zap.Int(logFieldRefspecCountConstant, len(composedRefspecs)),
		zap.Bool(logFieldAtomicConstant, atomicPush),
	)

	return publisher.workerRepository.Push(executionContext, gitrepo.PushOptions{
		Remote:   destinationRemoteNameConstant,
		RefSpecs: composedRefspecs,
		Force:    true,
		Atomic:   atomicPush,
	})
}
