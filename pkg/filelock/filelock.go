// Package filelock serializes access to a file path across processes by
// creating a sibling "<path>.lock" directory. Directory creation is atomic on
// every local filesystem, so whoever created the directory owns the path.
package filelock

import (
	"fmt"
	"os"
	"time"

	"github.com/core-tools/hsu-platform/pkg/errors"
	"github.com/core-tools/hsu-platform/pkg/logging"
)

// Suffix is appended to the protected path to name the lock directory
const Suffix = ".lock"

// DefaultWaitIntervals is the backoff between acquisition attempts
var DefaultWaitIntervals = []time.Duration{
	100 * time.Millisecond,
	200 * time.Millisecond,
	300 * time.Millisecond,
	500 * time.Millisecond,
	700 * time.Millisecond,
	1000 * time.Millisecond,
}

type Options struct {
	// Noop disables locking; used by read-only queries that accept a stale view
	Noop bool

	// WaitIntervals overrides DefaultWaitIntervals
	WaitIntervals []time.Duration

	// Sleep overrides time.Sleep
	Sleep func(time.Duration)
}

// ProtectedPath guards one resource path
type ProtectedPath struct {
	path      string
	lockPath  string
	noop      bool
	intervals []time.Duration
	sleep     func(time.Duration)
	logger    logging.Logger
}

func New(path string, options Options, logger logging.Logger) *ProtectedPath {
	intervals := options.WaitIntervals
	if intervals == nil {
		intervals = DefaultWaitIntervals
	}
	sleep := options.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	return &ProtectedPath{
		path:      path,
		lockPath:  path + Suffix,
		noop:      options.Noop,
		intervals: intervals,
		sleep:     sleep,
		logger:    logger,
	}
}

// LockPath returns the lock directory path
func (p *ProtectedPath) LockPath() string {
	return p.lockPath
}

// Acquire creates the lock directory, retrying on the backoff schedule while
// another holder owns it.
func (p *ProtectedPath) Acquire() error {
	if p.noop {
		return nil
	}

	err := p.tryCreate()
	for attempt := 0; err != nil && attempt < len(p.intervals); attempt++ {
		if !os.IsExist(err) {
			return errors.NewIOError("cannot create lock directory", err).WithContext("lock_path", p.lockPath)
		}
		p.logger.Debugf("Lock busy, path: %s, retry in %v", p.lockPath, p.intervals[attempt])
		p.sleep(p.intervals[attempt])
		err = p.tryCreate()
	}
	if err != nil {
		if !os.IsExist(err) {
			return errors.NewIOError("cannot create lock directory", err).WithContext("lock_path", p.lockPath)
		}
		p.logger.Warnf("Lock acquisition timed out, path: %s", p.lockPath)
		return errors.NewLockTimeoutError(fmt.Sprintf("cannot create lock directory at %s", p.lockPath), err).
			WithContext("lock_path", p.lockPath).
			WithContext("attempts", len(p.intervals)+1)
	}

	p.logger.Debugf("Lock acquired, path: %s", p.lockPath)
	return nil
}

func (p *ProtectedPath) tryCreate() error {
	return os.Mkdir(p.lockPath, 0o755)
}

// Release removes the lock directory. A directory that is already gone counts
// as released.
func (p *ProtectedPath) Release() error {
	if p.noop {
		return nil
	}
	if err := os.Remove(p.lockPath); err != nil && !os.IsNotExist(err) {
		p.logger.Errorf("Failed to remove lock directory, path: %s, error: %v", p.lockPath, err)
		return errors.NewLockReleaseError(fmt.Sprintf("cannot remove lock directory at %s", p.lockPath), err).
			WithContext("lock_path", p.lockPath)
	}
	p.logger.Debugf("Lock released, path: %s", p.lockPath)
	return nil
}

// Do runs fn while holding the lock. The lock is released on every exit path,
// including a panic inside fn. Errors from fn and from the release are both
// reported.
func (p *ProtectedPath) Do(fn func() error) (err error) {
	if err := p.Acquire(); err != nil {
		return err
	}

	defer func() {
		releaseErr := p.Release()
		if releaseErr == nil {
			return
		}
		collection := errors.NewErrorCollection()
		collection.Add(err)
		collection.Add(releaseErr)
		err = collection.ToError()
	}()

	return fn()
}
