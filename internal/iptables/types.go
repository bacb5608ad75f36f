package iptables

import "log/slog"

// Protocol selects which IP family a handle drives.
type Protocol int

const (
	// ProtocolIPv4 drives iptables and its save/restore companions.
	ProtocolIPv4 Protocol = iota
	// ProtocolIPv6 drives ip6tables and its save/restore companions.
	ProtocolIPv6
)

// String returns the conventional short name for the protocol.
func (p Protocol) String() string {
	if p == ProtocolIPv6 {
		return "ipv6"
	}
	return "ipv4"
}

// Variant identifies the backend behind the management binary.
type Variant int

const (
	// VariantUnknown marks a version banner the detector could not classify.
	// Capability gates treat it as the oldest supported binary.
	VariantUnknown Variant = iota
	// VariantLegacy is the classic setsockopt-based backend.
	VariantLegacy
	// VariantNFTables is the nf_tables compatibility backend.
	VariantNFTables
)

// String returns the backend name as the binaries themselves spell it.
func (v Variant) String() string {
	switch v {
	case VariantLegacy:
		return "legacy"
	case VariantNFTables:
		return "nf_tables"
	default:
		return "unknown"
	}
}

// VersionInfo describes the detected management binary. Banner keeps the raw
// first line of --version output so unknown variants stay diagnosable.
type VersionInfo struct {
	Variant Variant
	Major   int
	Minor   int
	Patch   int
	Banner  string
}

// AtLeast reports whether the detected version is at or above the given
// triple.
func (v VersionInfo) AtLeast(major, minor, patch int) bool {
	if v.Major != major {
		return v.Major > major
	}
	if v.Minor != minor {
		return v.Minor > minor
	}
	return v.Patch >= patch
}

// HasWait reports whether the binary accepts -w to wait on the kernel lock
// itself.
func (v VersionInfo) HasWait() bool {
	return v.AtLeast(1, 4, 20)
}

// HasCheck reports whether the binary accepts -C. Presence checks list and
// compare instead of probing with -C, so this is informational.
func (v VersionInfo) HasCheck() bool {
	return v.AtLeast(1, 4, 11)
}

// HasRestoreWait reports whether the restore companion accepts -w.
func (v VersionInfo) HasRestoreWait() bool {
	return v.AtLeast(1, 6, 2)
}

// Options configures handle construction. The zero value produces an IPv4
// handle with host binaries, the default lock path, and a five second wait
// budget.
type Options struct {
	// Protocol selects iptables or ip6tables.
	Protocol Protocol

	// Path overrides the management binary, for hosts that ship
	// iptables-nft or iptables-legacy shims under their own names.
	Path string

	// SavePath and RestorePath override the save/restore companions.
	SavePath    string
	RestorePath string

	// LockPath is the legacy serialization file used when the binary cannot
	// wait on the kernel lock itself. Created lazily, never deleted.
	LockPath string

	// WaitSeconds bounds how long the binary may wait on the kernel lock
	// when -w is supported.
	WaitSeconds int

	// Executor substitutes command execution, for tests.
	Executor Executor

	// Logger receives detection caveats and lock retry diagnostics.
	// Defaults to slog.Default().
	Logger *slog.Logger
}
