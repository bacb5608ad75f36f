package iptables

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/sys/unix"
	"k8s.io/apimachinery/pkg/util/wait"
)

func shortBackoffGuard(path string) *lockGuard {
	return &lockGuard{
		path: path,
		backoff: wait.Backoff{
			Duration: time.Millisecond,
			Factor:   2,
			Steps:    3,
		},
		logger: discardLogger(),
	}
}

// holdLock takes the exclusive lock from a second file description, the way
// another process would.
func holdLock(t *testing.T, path string) func() {
	t.Helper()
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644) // #nosec G304 -- test-owned path
	if err != nil {
		t.Fatalf("open lock file: %v", err)
	}
	if err := unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		file.Close()
		t.Fatalf("take lock: %v", err)
	}
	return func() {
		unix.Flock(int(file.Fd()), unix.LOCK_UN)
		file.Close()
	}
}

func TestWithLockCreatesFileAndRunsFn(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "xtables.lock")
	guard := newLockGuard(path, discardLogger())

	var ran bool
	err := guard.withLock(context.Background(), func() error {
		ran = true
		return nil
	})
	if err != nil {
		t.Fatalf("withLock returned error: %v", err)
	}
	if !ran {
		t.Fatal("expected fn to run while holding the lock")
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected lock file to exist: %v", err)
	}
}

func TestWithLockReleasesOnFnError(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "xtables.lock")
	guard := shortBackoffGuard(path)

	boom := errors.New("boom")
	if err := guard.withLock(context.Background(), func() error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("expected fn error to surface, got %v", err)
	}

	// A failed fn must not leave the lock held.
	err := guard.withLock(context.Background(), func() error { return nil })
	if err != nil {
		t.Fatalf("expected lock to be reacquirable, got %v", err)
	}
}

func TestWithLockTimesOutWhileHeld(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "xtables.lock")
	release := holdLock(t, path)
	defer release()

	guard := shortBackoffGuard(path)
	err := guard.withLock(context.Background(), func() error {
		t.Error("fn must not run without the lock")
		return nil
	})
	if !errors.Is(err, ErrLockTimeout) {
		t.Fatalf("expected ErrLockTimeout, got %v", err)
	}
}

func TestWithLockAcquiresAfterRelease(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "xtables.lock")
	release := holdLock(t, path)

	guard := &lockGuard{
		path: path,
		backoff: wait.Backoff{
			Duration: 5 * time.Millisecond,
			Factor:   2,
			Steps:    10,
			Cap:      50 * time.Millisecond,
		},
		logger: discardLogger(),
	}

	go func() {
		time.Sleep(15 * time.Millisecond)
		release()
	}()

	err := guard.withLock(context.Background(), func() error { return nil })
	if err != nil {
		t.Fatalf("expected lock to be acquired after release, got %v", err)
	}
}

func TestWithLockHonorsContextCancellation(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "xtables.lock")
	release := holdLock(t, path)
	defer release()

	guard := &lockGuard{
		path: path,
		backoff: wait.Backoff{
			Duration: 10 * time.Millisecond,
			Factor:   2,
			Steps:    20,
			Cap:      100 * time.Millisecond,
		},
		logger: discardLogger(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := guard.withLock(ctx, func() error { return nil })
	if !errors.Is(err, ErrLockTimeout) {
		t.Fatalf("expected ErrLockTimeout on context cancellation, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("expected cancellation to cut the backoff short, took %s", elapsed)
	}
}

func TestWithLockOpenFailure(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "missing", "xtables.lock")
	guard := shortBackoffGuard(path)

	err := guard.withLock(context.Background(), func() error { return nil })
	if !errors.Is(err, ErrIO) {
		t.Fatalf("expected ErrIO for unopenable lock file, got %v", err)
	}
}
