package workarea

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
)

const (
	mirrorDirectoryTemplateConstant  = "source-%s"
	workerDirectoryTemplateConstant  = "worker-%s"
	lockFileTemplateConstant         = "worker-%s.lock"
	scratchDirectoryTemplateConstant = "worker-%s.filter-branch"
	mapFileTemplateConstant          = "worker-%s.map"
	urlPairSeparatorConstant         = "\x00"
	digestHexLengthNumber            = 32
)

// DigestForSource derives the stable directory digest for a source URL.
func DigestForSource(sourceURL string) string {
	return contentDigest(sourceURL)
}

// DigestForWorker derives the stable directory digest for a source/destination pair.
func DigestForWorker(sourceURL string, destinationURL string) string {
	return contentDigest(sourceURL + urlPairSeparatorConstant + destinationURL)
}

// contentDigest hashes input into a short stable hex name. Naming only, not security.
func contentDigest(input string) string {
	fullDigest := sha256.Sum256([]byte(input))
	return hex.EncodeToString(fullDigest[:])[:digestHexLengthNumber]
}

// Layout resolves every path inside the working area for one source/destination pair.
type Layout struct {
	rootDirectory string
	sourceDigest  string
	workerDigest  string
}

// NewLayout computes a Layout rooted at the provided working directory.
func NewLayout(rootDirectory string, sourceURL string, destinationURL string) Layout {
	return Layout{
		rootDirectory: rootDirectory,
		sourceDigest:  DigestForSource(sourceURL),
		workerDigest:  DigestForWorker(sourceURL, destinationURL),
	}
}

// Root returns the working-area root directory.
func (layout Layout) Root() string {
	return layout.rootDirectory
}

// MirrorPath returns the bare source mirror directory.
func (layout Layout) MirrorPath() string {
	return filepath.Join(layout.rootDirectory, fmt.Sprintf(mirrorDirectoryTemplateConstant, layout.sourceDigest))
}

// WorkerPath returns the bare worker repository directory.
func (layout Layout) WorkerPath() string {
	return filepath.Join(layout.rootDirectory, fmt.Sprintf(workerDirectoryTemplateConstant, layout.workerDigest))
}

// LockPath returns the exclusive-run sentinel file.
func (layout Layout) LockPath() string {
	return filepath.Join(layout.rootDirectory, fmt.Sprintf(lockFileTemplateConstant, layout.workerDigest))
}

// ScratchPath returns the transient rewrite-engine scratch directory.
func (layout Layout) ScratchPath() string {
	return filepath.Join(layout.rootDirectory, fmt.Sprintf(scratchDirectoryTemplateConstant, layout.workerDigest))
}

// MapFilePath returns the transient commit-mapping snapshot file.
func (layout Layout) MapFilePath() string {
	return filepath.Join(layout.rootDirectory, fmt.Sprintf(mapFileTemplateConstant, layout.workerDigest))
}
