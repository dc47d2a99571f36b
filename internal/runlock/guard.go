package runlock

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/zap"
)

const (
	defaultRetryIntervalDuration       = 2 * time.Second
	waitingForLockMessageConstant      = "Waiting for concurrent run to finish"
	lockAcquiredMessageConstant        = "Exclusive run lock acquired"
	lockDisabledMessageConstant        = "Run locking disabled, concurrency safety is the operator's responsibility"
	lockAcquireErrorTemplateConstant   = "unable to acquire run lock %s: %w"
	lockCancelledErrorTemplateConstant = "run lock wait cancelled for %s: %w"
	logFieldLockPathConstant           = "lock_path"
)

// ReleaseFunc releases a held guard. Safe to call exactly once on every exit path.
type ReleaseFunc func()

// Guard serializes runs through an advisory file lock on the worker sentinel.
type Guard struct {
	lockPath      string
	enabled       bool
	retryInterval time.Duration
	logger        *zap.Logger
}

// NewGuard constructs a Guard for the provided sentinel path.
func NewGuard(lockPath string, enabled bool, logger *zap.Logger) *Guard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Guard{
		lockPath:      lockPath,
		enabled:       enabled,
		retryInterval: defaultRetryIntervalDuration,
		logger:        logger,
	}
}

// WithRetryInterval overrides the contention retry interval.
func (guard *Guard) WithRetryInterval(retryInterval time.Duration) *Guard {
	guard.retryInterval = retryInterval
	return guard
}

// Acquire blocks until the exclusive lock is held, retrying while contended
// and emitting a liveness message per attempt. The returned ReleaseFunc must
// run on every exit path; when locking is disabled both the acquisition and
// the release are no-ops.
func (guard *Guard) Acquire(executionContext context.Context) (ReleaseFunc, error) {
	if !guard.enabled {
		guard.logger.Warn(lockDisabledMessageConstant)
		return func() {}, nil
	}

	fileLock := flock.New(guard.lockPath)

	for {
		lockObtained, lockError := fileLock.TryLock()
		if lockError != nil {
			return nil, fmt.Errorf(lockAcquireErrorTemplateConstant, guard.lockPath, lockError)
		}
		if lockObtained {
			break
		}

		guard.logger.Info(waitingForLockMessageConstant, zap.String(logFieldLockPathConstant, guard.lockPath))

		waitTimer := time.NewTimer(guard.retryInterval)
		select {
		case <-executionContext.Done():
			waitTimer.Stop()
			return nil, fmt.Errorf(lockCancelledErrorTemplateConstant, guard.lockPath, executionContext.Err())
		case <-waitTimer.C:
		}
	}

	guard.logger.Debug(lockAcquiredMessageConstant, zap.String(logFieldLockPathConstant, guard.lockPath))

	return func() {
		_ = fileLock.Unlock()
	}, nil
}
