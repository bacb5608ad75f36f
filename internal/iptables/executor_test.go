package iptables

import (
	"context"
	"errors"
	"testing"
)

func TestRealExecutorCapturesStreams(t *testing.T) {
	t.Parallel()

	exec := NewExecutor()
	out, err := exec.Run(context.Background(), "sh", "-c", "printf out; printf err >&2")
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if string(out.Stdout) != "out" {
		t.Fatalf("expected stdout %q, got %q", "out", string(out.Stdout))
	}
	if string(out.Stderr) != "err" {
		t.Fatalf("expected stderr %q, got %q", "err", string(out.Stderr))
	}
	if out.Code != 0 {
		t.Fatalf("expected exit code 0, got %d", out.Code)
	}
}

func TestRealExecutorNonZeroExit(t *testing.T) {
	t.Parallel()

	exec := NewExecutor()
	out, err := exec.Run(context.Background(), "sh", "-c", "echo boom >&2; exit 3")

	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		t.Fatalf("expected *CommandError, got %v", err)
	}
	if cmdErr.Code != 3 || out.Code != 3 {
		t.Fatalf("expected exit code 3, got error code %d, output code %d", cmdErr.Code, out.Code)
	}
	if cmdErr.Stderr != "boom\n" {
		t.Fatalf("expected captured stderr %q, got %q", "boom\n", cmdErr.Stderr)
	}
	if cmdErr.Command != "sh" {
		t.Fatalf("expected command sh, got %q", cmdErr.Command)
	}
}

func TestRealExecutorBinaryNotFound(t *testing.T) {
	t.Parallel()

	exec := NewExecutor()
	_, err := exec.Run(context.Background(), "definitely-not-a-real-binary-xyzzy")
	if !errors.Is(err, ErrBinaryNotFound) {
		t.Fatalf("expected ErrBinaryNotFound, got %v", err)
	}
}

func TestRealExecutorRunInput(t *testing.T) {
	t.Parallel()

	exec := NewExecutor()
	payload := []byte("*filter\nCOMMIT\n")
	out, err := exec.RunInput(context.Background(), payload, "sh", "-c", "cat")
	if err != nil {
		t.Fatalf("RunInput returned error: %v", err)
	}
	if string(out.Stdout) != string(payload) {
		t.Fatalf("expected stdin to round-trip, got %q", string(out.Stdout))
	}
}

func TestRealExecutorContextCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	exec := NewExecutor()
	_, err := exec.Run(ctx, "sh", "-c", "sleep 10")
	if err == nil {
		t.Fatal("expected an error for a canceled context")
	}
}
