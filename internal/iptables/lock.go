package iptables

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sys/unix"
	"k8s.io/apimachinery/pkg/util/wait"
)

// DefaultLockPath is the serialization file shared by tools that drive
// binaries predating the -w flag. It is distinct from the kernel's own
// /run/xtables.lock, which those binaries do not take.
const DefaultLockPath = "/run/xtables_old.lock"

// defaultLockBackoff retries for roughly three seconds before giving up.
var defaultLockBackoff = wait.Backoff{
	Duration: 50 * time.Millisecond,
	Factor:   2,
	Jitter:   0.1,
	Steps:    7,
	Cap:      time.Second,
}

// lockGuard serializes rule mutations across processes with flock on a
// well-known path. The lock file is created lazily and never deleted; its
// content is irrelevant.
type lockGuard struct {
	path    string
	backoff wait.Backoff
	logger  *slog.Logger
}

func newLockGuard(path string, logger *slog.Logger) *lockGuard {
	return &lockGuard{
		path:    path,
		backoff: defaultLockBackoff,
		logger:  logger,
	}
}

// withLock runs fn while holding the exclusive lock, releasing it on every
// exit path including fn failure.
func (g *lockGuard) withLock(ctx context.Context, fn func() error) error {
	file, err := os.OpenFile(g.path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("%w: open lock file %s: %v", ErrIO, g.path, err)
	}
	defer file.Close()

	fd := int(file.Fd())
	if err := g.acquire(ctx, fd); err != nil {
		return err
	}
	defer unix.Flock(fd, unix.LOCK_UN)

	return fn()
}

// acquire polls for the lock under bounded exponential backoff. Exhausting
// the schedule or losing the context surfaces as ErrLockTimeout.
func (g *lockGuard) acquire(ctx context.Context, fd int) error {
	attempts := 0
	err := wait.ExponentialBackoffWithContext(ctx, g.backoff, func(context.Context) (bool, error) {
		flockErr := unix.Flock(fd, unix.LOCK_EX|unix.LOCK_NB)
		if flockErr == nil {
			return true, nil
		}
		if errors.Is(flockErr, unix.EWOULDBLOCK) || errors.Is(flockErr, unix.EINTR) {
			attempts++
			g.logger.Debug("rule store lock busy, backing off",
				slog.String("path", g.path),
				slog.Int("attempt", attempts))
			return false, nil
		}
		return false, fmt.Errorf("%w: flock %s: %v", ErrIO, g.path, flockErr)
	})
	if err == nil {
		return nil
	}
	if wait.Interrupted(err) {
		return fmt.Errorf("%w: %s still held after %d attempts", ErrLockTimeout, g.path, attempts)
	}
	return err
}
