package rewrite

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/temirov/filtersync/internal/execshell"
	"github.com/temirov/filtersync/internal/gitrepo"
)

const (
	tagCommitUnresolvedMessageConstant = "Tag does not resolve to a commit, skipping"
	tagUnmappableMessageConstant       = "No rewritten ancestor found within lookup depth, tag will not reach the destination"
	tagMappedMessageConstant           = "Tag mapped onto rewritten ancestor"
	mappingSnapshotErrorTemplate       = "unable to snapshot commit mapping: %w"
	ancestorWalkErrorTemplateConstant  = "unable to walk ancestors of tag %s: %w"
	convertedTagWriteErrorTemplate     = "unable to write converted tag for %s: %w"
	logFieldTagConstant                = "tag"
	logFieldCommitConstant             = "commit"
	logFieldMappedCommitConstant       = "mapped_commit"
	logFieldLookupDepthConstant        = "lookup_depth"
	mappingSnapshotFilePermissions     = 0o644
)

// TagMapper translates tags the rewrite engine did not convert itself.
//
// The commit mapping is materialized once per run from the state branch to
// both the snapshot file and an in-memory table for random lookups.
type TagMapper struct {
	repository       *gitrepo.Repository
	logger           *zap.Logger
	lookupDepth      int
	snapshotFilePath string
	commitMap        CommitMap
	commitMapLoaded  bool
}

var errTagMapperRepositoryMissing = errors.New("tag mapper repository not configured")

// NewTagMapper constructs a TagMapper against the worker repository.
func NewTagMapper(workerRepository *gitrepo.Repository, logger *zap.Logger, lookupDepth int, snapshotFilePath string) (*TagMapper, error) {
	if workerRepository == nil {
		return nil, errTagMapperRepositoryMissing
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TagMapper{
		repository:       workerRepository,
		logger:           logger,
		lookupDepth:      lookupDepth,
		snapshotFilePath: snapshotFilePath,
	}, nil
}

// MapTag translates one source tag onto the nearest rewritten ancestor.
//
// It reports true when a converted tag was written. An exhausted ancestor
// budget is a warning, not an error: the tag simply stays out of the
// destination.
func (mapper *TagMapper) MapTag(executionContext context.Context, tagName string) (bool, error) {
	taggedCommit, commitFound, resolveError := mapper.repository.ResolveCommit(executionContext, tagName)
	if resolveError != nil {
		return false, resolveError
	}
	if !commitFound {
		mapper.logger.Warn(tagCommitUnresolvedMessageConstant, zap.String(logFieldTagConstant, tagName))
		return false, nil
	}

	if loadError := mapper.ensureCommitMapLoaded(executionContext); loadError != nil {
		return false, loadError
	}

	ancestorCommits, walkError := mapper.repository.ListAncestors(executionContext, taggedCommit, mapper.lookupDepth)
	if walkError != nil {
		return false, fmt.Errorf(ancestorWalkErrorTemplateConstant, tagName, walkError)
	}

	for _, ancestorCommit := range ancestorCommits {
		rewrittenCommit, entryExists := mapper.commitMap.Lookup(ancestorCommit)
		if !entryExists {
			continue
		}

		if writeError := mapper.repository.UpdateRef(executionContext, ConvertedTagRef(tagName), rewrittenCommit); writeError != nil {
			return false, fmt.Errorf(convertedTagWriteErrorTemplate, tagName, writeError)
		}

		mapper.logger.Debug(
			tagMappedMessageConstant,
			zap.String(logFieldTagConstant, tagName),
			zap.String(logFieldCommitConstant, ancestorCommit),
			zap.String(logFieldMappedCommitConstant, rewrittenCommit),
		)
		return true, nil
	}

	mapper.logger.Warn(
		tagUnmappableMessageConstant,
		zap.String(logFieldTagConstant, tagName),
		zap.String(logFieldCommitConstant, taggedCommit),
		zap.Int(logFieldLookupDepthConstant, mapper.lookupDepth),
	)
	return false, nil
}

// RemoveSnapshot deletes the per-run mapping snapshot file.
func (mapper *TagMapper) RemoveSnapshot() {
	if len(mapper.snapshotFilePath) > 0 {
		_ = os.Remove(mapper.snapshotFilePath)
	}
}

func (mapper *TagMapper) ensureCommitMapLoaded(executionContext context.Context) error {
	if mapper.commitMapLoaded {
		return nil
	}

	mappingContent, readError := mapper.repository.ReadBlob(executionContext, MappingBlobSpec())
	if readError != nil {
		// A missing state branch means no commit has been rewritten yet.
		failedCommand := execshell.CommandFailedError{}
		if errors.As(readError, &failedCommand) {
			mapper.commitMap = EmptyCommitMap()
			mapper.commitMapLoaded = true
			return nil
		}
		return fmt.Errorf(mappingSnapshotErrorTemplate, readError)
	}

	if len(mapper.snapshotFilePath) > 0 {
		if writeError := os.WriteFile(mapper.snapshotFilePath, []byte(mappingContent), mappingSnapshotFilePermissions); writeError != nil {
			return fmt.Errorf(mappingSnapshotErrorTemplate, writeError)
		}
	}

	parsedMap, parseError := ParseCommitMap(mappingContent)
	if parseError != nil {
		return fmt.Errorf(mappingSnapshotErrorTemplate, parseError)
	}

	mapper.commitMap = parsedMap
	mapper.commitMapLoaded = true
	return nil
}
