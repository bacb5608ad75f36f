package iptables

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
)

const (
	ipv4Binary = "iptables"
	ipv6Binary = "ip6tables"

	ipv4SaveBinary    = "iptables-save"
	ipv6SaveBinary    = "ip6tables-save"
	ipv4RestoreBinary = "iptables-restore"
	ipv6RestoreBinary = "ip6tables-restore"

	defaultWaitSeconds = 5
)

// IPTables drives one IP family's rule-management binaries. The handle is
// immutable after construction, safe for concurrent use, and serializes its
// own invocations; cross-process exclusion comes from the binary's -w flag
// or, for binaries that predate it, from the legacy file lock.
type IPTables struct {
	proto      Protocol
	cmd        string
	saveCmd    string
	restoreCmd string

	exec    Executor
	lock    *lockGuard
	logger  *slog.Logger
	version VersionInfo
	waitArg string

	mu sync.Mutex
}

// New builds an IPv4 handle with default options.
func New(ctx context.Context) (*IPTables, error) {
	return NewWithOptions(ctx, Options{})
}

// NewWithProtocol builds a handle for the given IP family with default
// options.
func NewWithProtocol(ctx context.Context, proto Protocol) (*IPTables, error) {
	return NewWithOptions(ctx, Options{Protocol: proto})
}

// NewWithOptions builds a handle, querying the management binary once for
// its version banner to decide flag support.
func NewWithOptions(ctx context.Context, opts Options) (*IPTables, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ipt := &IPTables{
		proto:      opts.Protocol,
		cmd:        ipv4Binary,
		saveCmd:    ipv4SaveBinary,
		restoreCmd: ipv4RestoreBinary,
		exec:       opts.Executor,
		logger:     logger,
	}
	if opts.Protocol == ProtocolIPv6 {
		ipt.cmd = ipv6Binary
		ipt.saveCmd = ipv6SaveBinary
		ipt.restoreCmd = ipv6RestoreBinary
	}
	if opts.Path != "" {
		ipt.cmd = opts.Path
	}
	if opts.SavePath != "" {
		ipt.saveCmd = opts.SavePath
	}
	if opts.RestorePath != "" {
		ipt.restoreCmd = opts.RestorePath
	}
	if ipt.exec == nil {
		ipt.exec = NewExecutor()
	}

	lockPath := opts.LockPath
	if lockPath == "" {
		lockPath = DefaultLockPath
	}
	ipt.lock = newLockGuard(lockPath, logger)

	waitSeconds := opts.WaitSeconds
	if waitSeconds <= 0 {
		waitSeconds = defaultWaitSeconds
	}
	ipt.waitArg = strconv.Itoa(waitSeconds)

	version, err := detectVersion(ctx, ipt.exec, ipt.cmd, logger)
	if err != nil {
		return nil, err
	}
	ipt.version = version

	logger.Debug("management binary detected",
		slog.String("binary", ipt.cmd),
		slog.String("variant", version.Variant.String()),
		slog.String("version", fmt.Sprintf("%d.%d.%d", version.Major, version.Minor, version.Patch)))

	return ipt, nil
}

// Version reports the detected binary version and variant.
func (ipt *IPTables) Version() VersionInfo {
	return ipt.version
}

// Protocol reports which IP family the handle drives.
func (ipt *IPTables) Protocol() Protocol {
	return ipt.proto
}

// run executes one management-binary invocation. Binaries that support -w
// wait on the kernel lock themselves; older ones are serialized through the
// legacy file lock so concurrent callers on the host cannot interleave.
func (ipt *IPTables) run(ctx context.Context, args ...string) (Output, error) {
	ipt.mu.Lock()
	defer ipt.mu.Unlock()

	if ipt.version.HasWait() {
		argv := append([]string{"-w", ipt.waitArg}, args...)
		return ipt.exec.Run(ctx, ipt.cmd, argv...)
	}

	var out Output
	err := ipt.lock.withLock(ctx, func() error {
		var runErr error
		out, runErr = ipt.exec.Run(ctx, ipt.cmd, args...)
		return runErr
	})
	return out, err
}
