package camera

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"vision-inspector/internal/errcode"

	"github.com/gofrs/flock"
)

// DefaultLockTimeout bounds the wait for the host-wide grab lock.
const DefaultLockTimeout = 8 * time.Second

// DefaultLockFile is the host-wide grab lock file.
func DefaultLockFile() string {
	return filepath.Join(os.TempDir(), "vision_grab.lock")
}

// Lock is an advisory lock file shared by every process on the host.
type Lock struct {
	Path    string
	Timeout time.Duration
}

// Acquire blocks until the lock is held, the timeout elapses or ctx is
// done. The returned release function must be called exactly once.
func (l Lock) Acquire(ctx context.Context) (func(), error) {
	path := l.Path
	if path == "" {
		path = DefaultLockFile()
	}
	timeout := l.Timeout
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	fl := flock.New(path)
	locked, err := fl.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil || !locked {
		if err == nil {
			err = fmt.Errorf("lock %s not acquired within %s", path, timeout)
		}
		return nil, &errcode.Error{Code: errcode.GrabMutexTimeout, Detail: path, Err: err}
	}

	return func() { _ = fl.Unlock() }, nil
}
