package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/temirov/filtersync/internal/execshell"
)

const (
	revParseSubcommandConstant         = "rev-parse"
	verifyFlagConstant                 = "--verify"
	quietFlagConstant                  = "--quiet"
	gitDirectoryFlagConstant           = "--git-dir"
	commitSuffixConstant               = "^{commit}"
	updateRefSubcommandConstant        = "update-ref"
	noDereferenceFlagConstant          = "--no-deref"
	deleteRefFlagConstant              = "-d"
	symbolicRefSubcommandConstant      = "symbolic-ref"
	headReferenceConstant              = "HEAD"
	fetchHeadReferenceConstant         = "FETCH_HEAD"
	forEachRefSubcommandConstant       = "for-each-ref"
	forEachRefFormatFlagConstant       = "--format=%(refname)%00%(objectname)"
	forEachRefFieldSeparatorConstant   = "\x00"
	tagSubcommandConstant              = "tag"
	tagListFlagConstant                = "--list"
	tagMergedFlagConstant              = "--merged"
	fetchSubcommandConstant            = "fetch"
	pruneFlagConstant                  = "--prune"
	tagsFlagConstant                   = "--tags"
	forceFlagConstant                  = "--force"
	updateShallowFlagConstant          = "--update-shallow"
	pushSubcommandConstant             = "push"
	atomicFlagConstant                 = "--atomic"
	lsRemoteSubcommandConstant         = "ls-remote"
	symrefFlagConstant                 = "--symref"
	headsFlagConstant                  = "--heads"
	lsRemoteTagsFlagConstant           = "--tags"
	catFileSubcommandConstant          = "cat-file"
	blobObjectTypeConstant             = "blob"
	revListSubcommandConstant          = "rev-list"
	dateOrderFlagConstant              = "--date-order"
	maxCountFlagTemplateConstant       = "--max-count=%d"
	remoteSubcommandConstant           = "remote"
	remoteAddSubcommandConstant        = "add"
	initSubcommandConstant             = "init"
	bareFlagConstant                   = "--bare"
	cloneSubcommandConstant            = "clone"
	mirrorFlagConstant                 = "--mirror"
	noHardlinksFlagConstant            = "--no-hardlinks"
	symrefLinePrefixConstant           = "ref: "
	remoteRefLineSeparatorConstant     = "\t"
	peeledRefSuffixConstant            = "^{}"
	headsRefPrefixConstant             = "refs/heads/"
	tagsRefPrefixConstant              = "refs/tags/"
	executorMissingMessageConstant     = "git executor not configured"
	repositoryPathMissingMessage       = "repository path not configured"
	refLookupErrorTemplateConstant     = "unable to resolve %s: %w"
	symrefHeadParseErrorTemplate       = "unable to determine HEAD branch of remote %s"
	missingRefExitCodeConstant         = 1
	expectedRemoteRefFieldCountNumber  = 2
	expectedSymrefHeadFieldCountNumber = 2
)

// Exported construction errors.
var (
	ErrExecutorMissing       = errors.New(executorMissingMessageConstant)
	ErrRepositoryPathMissing = errors.New(repositoryPathMissingMessage)
)

// CommandExecutor abstracts the execshell executor used for git invocations.
type CommandExecutor interface {
	ExecuteGit(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// Repository provides typed git operations against one bare repository.
type Repository struct {
	executor CommandExecutor
	path     string
}

// NewRepository validates inputs and constructs a Repository handle.
func NewRepository(executor CommandExecutor, repositoryPath string) (*Repository, error) {
	if executor == nil {
		return nil, ErrExecutorMissing
	}
	if len(strings.TrimSpace(repositoryPath)) == 0 {
		return nil, ErrRepositoryPathMissing
	}
	return &Repository{executor: executor, path: repositoryPath}, nil
}

// Path returns the repository directory the handle operates on.
func (repository *Repository) Path() string {
	return repository.path
}

// RefListing pairs a fully qualified ref name with the object it points at.
type RefListing struct {
	Name       string
	ObjectName string
}

// RemoteRef describes one entry reported by ls-remote.
type RemoteRef struct {
	Name       string
	ObjectName string
}

// FetchOptions configures a fetch operation.
type FetchOptions struct {
	Remote        string
	RefSpecs      []string
	Prune         bool
	Tags          bool
	Force         bool
	UpdateShallow bool
}

// PushOptions configures a push operation.
type PushOptions struct {
	Remote   string
	RefSpecs []string
	Force    bool
	Atomic   bool
}

func (repository *Repository) run(executionContext context.Context, arguments ...string) (execshell.ExecutionResult, error) {
	return repository.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        arguments,
		WorkingDirectory: repository.path,
	})
}

// ResolveRef resolves a revision to a full object name, reporting absence without error.
func (repository *Repository) ResolveRef(executionContext context.Context, revision string) (string, bool, error) {
	executionResult, executionError := repository.run(executionContext, revParseSubcommandConstant, verifyFlagConstant, quietFlagConstant, revision)
	if executionError != nil {
		failedCommand := execshell.CommandFailedError{}
		if errors.As(executionError, &failedCommand) && failedCommand.Result.ExitCode == missingRefExitCodeConstant {
			return "", false, nil
		}
		return "", false, fmt.Errorf(refLookupErrorTemplateConstant, revision, executionError)
	}
	return strings.TrimSpace(executionResult.StandardOutput), true, nil
}

// ResolveCommit resolves a revision to the commit object it names.
func (repository *Repository) ResolveCommit(executionContext context.Context, revision string) (string, bool, error) {
	return repository.ResolveRef(executionContext, revision+commitSuffixConstant)
}

// IsUsableRepository reports whether the directory holds a readable git repository.
func (repository *Repository) IsUsableRepository(executionContext context.Context) bool {
	_, executionError := repository.run(executionContext, revParseSubcommandConstant, gitDirectoryFlagConstant)
	return executionError == nil
}

// UpdateRef force-sets a ref to the provided object name.
func (repository *Repository) UpdateRef(executionContext context.Context, refName string, objectName string) error {
	_, executionError := repository.run(executionContext, updateRefSubcommandConstant, refName, objectName)
	return executionError
}

// DeleteRef removes a ref if present.
func (repository *Repository) DeleteRef(executionContext context.Context, refName string) error {
	_, executionError := repository.run(executionContext, updateRefSubcommandConstant, deleteRefFlagConstant, refName)
	return executionError
}

// DetachHead points HEAD directly at the provided object name.
func (repository *Repository) DetachHead(executionContext context.Context, objectName string) error {
	_, executionError := repository.run(executionContext, updateRefSubcommandConstant, noDereferenceFlagConstant, headReferenceConstant, objectName)
	return executionError
}

// SetHeadSentinel parks HEAD on a symbolic ref that never resolves.
func (repository *Repository) SetHeadSentinel(executionContext context.Context, sentinelRef string) error {
	_, executionError := repository.run(executionContext, symbolicRefSubcommandConstant, headReferenceConstant, sentinelRef)
	return executionError
}

// ListRefs enumerates refs beneath the provided prefixes.
func (repository *Repository) ListRefs(executionContext context.Context, refPrefixes ...string) ([]RefListing, error) {
	listArguments := append([]string{forEachRefSubcommandConstant, forEachRefFormatFlagConstant}, refPrefixes...)
	executionResult, executionError := repository.run(executionContext, listArguments...)
	if executionError != nil {
		return nil, executionError
	}

	refListings := []RefListing{}
	for _, outputLine := range splitNonEmptyLines(executionResult.StandardOutput) {
		lineFields := strings.SplitN(outputLine, forEachRefFieldSeparatorConstant, expectedRemoteRefFieldCountNumber)
		if len(lineFields) != expectedRemoteRefFieldCountNumber {
			continue
		}
		refListings = append(refListings, RefListing{Name: lineFields[0], ObjectName: lineFields[1]})
	}
	return refListings, nil
}

// ListTagsMergedInto enumerates tag names whose tagged commits are reachable from the provided commit.
func (repository *Repository) ListTagsMergedInto(executionContext context.Context, commitName string) ([]string, error) {
	executionResult, executionError := repository.run(executionContext, tagSubcommandConstant, tagListFlagConstant, tagMergedFlagConstant, commitName)
	if executionError != nil {
		return nil, executionError
	}
	return splitNonEmptyLines(executionResult.StandardOutput), nil
}

// Fetch retrieves refs from a remote according to the provided options.
func (repository *Repository) Fetch(executionContext context.Context, options FetchOptions) error {
	fetchArguments := []string{fetchSubcommandConstant}
	if options.Prune {
		fetchArguments = append(fetchArguments, pruneFlagConstant)
	}
	if options.Tags {
		fetchArguments = append(fetchArguments, tagsFlagConstant)
	}
	if options.Force {
		fetchArguments = append(fetchArguments, forceFlagConstant)
	}
	if options.UpdateShallow {
		fetchArguments = append(fetchArguments, updateShallowFlagConstant)
	}
	fetchArguments = append(fetchArguments, options.Remote)
	fetchArguments = append(fetchArguments, options.RefSpecs...)

	_, executionError := repository.run(executionContext, fetchArguments...)
	return executionError
}

// FetchHead resolves the commit recorded by the most recent fetch.
func (repository *Repository) FetchHead(executionContext context.Context) (string, error) {
	executionResult, executionError := repository.run(executionContext, revParseSubcommandConstant, fetchHeadReferenceConstant)
	if executionError != nil {
		return "", executionError
	}
	return strings.TrimSpace(executionResult.StandardOutput), nil
}

// Push publishes refspecs to a remote in a single operation.
func (repository *Repository) Push(executionContext context.Context, options PushOptions) error {
	pushArguments := []string{pushSubcommandConstant}
	if options.Force {
		pushArguments = append(pushArguments, forceFlagConstant)
	}
	if options.Atomic {
		pushArguments = append(pushArguments, atomicFlagConstant)
	}
	pushArguments = append(pushArguments, options.Remote)
	pushArguments = append(pushArguments, options.RefSpecs...)

	_, executionError := repository.run(executionContext, pushArguments...)
	return executionError
}

// ListRemoteHeads enumerates branch refs on a remote.
func (repository *Repository) ListRemoteHeads(executionContext context.Context, remoteName string) ([]RemoteRef, error) {
	executionResult, executionError := repository.run(executionContext, lsRemoteSubcommandConstant, headsFlagConstant, remoteName)
	if executionError != nil {
		return nil, executionError
	}
	return parseRemoteRefs(executionResult.StandardOutput), nil
}

// ListRemoteTags enumerates tag refs on a remote. Peeled "^{}" entries are
// included as reported; IsPeeledRemoteRef identifies them.
func (repository *Repository) ListRemoteTags(executionContext context.Context, remoteName string) ([]RemoteRef, error) {
	executionResult, executionError := repository.run(executionContext, lsRemoteSubcommandConstant, lsRemoteTagsFlagConstant, remoteName)
	if executionError != nil {
		return nil, executionError
	}
	return parseRemoteRefs(executionResult.StandardOutput), nil
}

// RemoteHeadBranch determines the branch the remote's HEAD points at.
func (repository *Repository) RemoteHeadBranch(executionContext context.Context, remoteName string) (string, error) {
	executionResult, executionError := repository.run(executionContext, lsRemoteSubcommandConstant, symrefFlagConstant, remoteName, headReferenceConstant)
	if executionError != nil {
		return "", executionError
	}

	for _, outputLine := range splitNonEmptyLines(executionResult.StandardOutput) {
		if !strings.HasPrefix(outputLine, symrefLinePrefixConstant) {
			continue
		}
		symrefFields := strings.Fields(strings.TrimPrefix(outputLine, symrefLinePrefixConstant))
		if len(symrefFields) != expectedSymrefHeadFieldCountNumber {
			continue
		}
		return strings.TrimPrefix(symrefFields[0], headsRefPrefixConstant), nil
	}

	return "", fmt.Errorf(symrefHeadParseErrorTemplate, remoteName)
}

// ReadBlob returns the content of a blob addressed as <rev>:<path>.
func (repository *Repository) ReadBlob(executionContext context.Context, blobSpec string) (string, error) {
	executionResult, executionError := repository.run(executionContext, catFileSubcommandConstant, blobObjectTypeConstant, blobSpec)
	if executionError != nil {
		return "", executionError
	}
	return executionResult.StandardOutput, nil
}

// ListAncestors enumerates up to maximumCount ancestors of the commit in date order.
func (repository *Repository) ListAncestors(executionContext context.Context, commitName string, maximumCount int) ([]string, error) {
	executionResult, executionError := repository.run(
		executionContext,
		revListSubcommandConstant,
		dateOrderFlagConstant,
		fmt.Sprintf(maxCountFlagTemplateConstant, maximumCount),
		commitName,
	)
	if executionError != nil {
		return nil, executionError
	}
	return splitNonEmptyLines(executionResult.StandardOutput), nil
}

// AddRemote registers a named remote pointing at the provided URL.
func (repository *Repository) AddRemote(executionContext context.Context, remoteName string, remoteURL string) error {
	_, executionError := repository.run(executionContext, remoteSubcommandConstant, remoteAddSubcommandConstant, remoteName, remoteURL)
	return executionError
}

// InitBare creates a bare repository at the provided path.
func InitBare(executionContext context.Context, executor CommandExecutor, repositoryPath string) error {
	_, executionError := executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments: []string{initSubcommandConstant, bareFlagConstant, repositoryPath},
	})
	return executionError
}

// CloneMirror creates a bare mirror clone of the source URL at the provided path.
func CloneMirror(executionContext context.Context, executor CommandExecutor, sourceURL string, mirrorPath string, disableHardlinks bool) error {
	cloneArguments := []string{cloneSubcommandConstant, mirrorFlagConstant}
	if disableHardlinks {
		cloneArguments = append(cloneArguments, noHardlinksFlagConstant)
	}
	cloneArguments = append(cloneArguments, sourceURL, mirrorPath)

	_, executionError := executor.ExecuteGit(executionContext, execshell.CommandDetails{Arguments: cloneArguments})
	return executionError
}

// BranchNameFromRef strips the refs/heads/ prefix from a fully qualified branch ref.
func BranchNameFromRef(refName string) string {
	return strings.TrimPrefix(refName, headsRefPrefixConstant)
}

// TagNameFromRef strips the refs/tags/ prefix from a fully qualified tag ref.
func TagNameFromRef(refName string) string {
	return strings.TrimPrefix(refName, tagsRefPrefixConstant)
}

// IsPeeledRemoteRef reports whether an ls-remote entry is a peeled tag pointer.
func IsPeeledRemoteRef(refName string) bool {
	return strings.HasSuffix(refName, peeledRefSuffixConstant)
}

func parseRemoteRefs(lsRemoteOutput string) []RemoteRef {
	remoteRefs := []RemoteRef{}
	for _, outputLine := range splitNonEmptyLines(lsRemoteOutput) {
		lineFields := strings.SplitN(outputLine, remoteRefLineSeparatorConstant, expectedRemoteRefFieldCountNumber)
		if len(lineFields) != expectedRemoteRefFieldCountNumber {
			continue
		}
		remoteRefs = append(remoteRefs, RemoteRef{ObjectName: lineFields[0], Name: lineFields[1]})
	}
	return remoteRefs
}

func splitNonEmptyLines(rawOutput string) []string {
	outputLines := []string{}
	for _, candidateLine := range strings.Split(rawOutput, "\n") {
		trimmedLine := strings.TrimRight(candidateLine, "\r")
		if len(trimmedLine) > 0 {
			outputLines = append(outputLines, trimmedLine)
		}
	}
	return outputLines
}
