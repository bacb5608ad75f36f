package iptables

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
)

func TestParseBanner(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		banner  string
		variant Variant
		major   int
		minor   int
		patch   int
	}{
		{
			name:    "nf_tables frontend",
			banner:  "iptables v1.8.7 (nf_tables)",
			variant: VariantNFTables,
			major:   1, minor: 8, patch: 7,
		},
		{
			name:    "legacy frontend",
			banner:  "iptables v1.8.4 (legacy)",
			variant: VariantLegacy,
			major:   1, minor: 8, patch: 4,
		},
		{
			name:    "pre split binary has no suffix",
			banner:  "iptables v1.4.21",
			variant: VariantLegacy,
			major:   1, minor: 4, patch: 21,
		},
		{
			name:    "ipv6 binary",
			banner:  "ip6tables v1.8.7 (nf_tables)",
			variant: VariantNFTables,
			major:   1, minor: 8, patch: 7,
		},
		{
			name:    "unrecognized banner",
			banner:  "something unexpected",
			variant: VariantUnknown,
		},
		{
			name:    "empty banner",
			banner:  "",
			variant: VariantUnknown,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			info := parseBanner(tc.banner)
			if info.Variant != tc.variant {
				t.Fatalf("expected variant %s, got %s", tc.variant, info.Variant)
			}
			if info.Major != tc.major || info.Minor != tc.minor || info.Patch != tc.patch {
				t.Fatalf("expected version %d.%d.%d, got %d.%d.%d",
					tc.major, tc.minor, tc.patch, info.Major, info.Minor, info.Patch)
			}
			if info.Banner != tc.banner {
				t.Fatalf("expected banner %q to be preserved, got %q", tc.banner, info.Banner)
			}
		})
	}
}

func TestVersionCapabilityGates(t *testing.T) {
	t.Parallel()

	tests := []struct {
		banner         string
		hasWait        bool
		hasCheck       bool
		hasRestoreWait bool
	}{
		{banner: "iptables v1.4.10", hasWait: false, hasCheck: false, hasRestoreWait: false},
		{banner: "iptables v1.4.11", hasWait: false, hasCheck: true, hasRestoreWait: false},
		{banner: "iptables v1.4.19", hasWait: false, hasCheck: true, hasRestoreWait: false},
		{banner: "iptables v1.4.20", hasWait: true, hasCheck: true, hasRestoreWait: false},
		{banner: "iptables v1.6.1", hasWait: true, hasCheck: true, hasRestoreWait: false},
		{banner: "iptables v1.6.2", hasWait: true, hasCheck: true, hasRestoreWait: true},
		{banner: "iptables v1.8.7 (nf_tables)", hasWait: true, hasCheck: true, hasRestoreWait: true},
		{banner: "iptables v2.0.0", hasWait: true, hasCheck: true, hasRestoreWait: true},
		{banner: "garbage", hasWait: false, hasCheck: false, hasRestoreWait: false},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.banner, func(t *testing.T) {
			t.Parallel()
			info := parseBanner(tc.banner)
			if got := info.HasWait(); got != tc.hasWait {
				t.Fatalf("HasWait() = %t, want %t", got, tc.hasWait)
			}
			if got := info.HasCheck(); got != tc.hasCheck {
				t.Fatalf("HasCheck() = %t, want %t", got, tc.hasCheck)
			}
			if got := info.HasRestoreWait(); got != tc.hasRestoreWait {
				t.Fatalf("HasRestoreWait() = %t, want %t", got, tc.hasRestoreWait)
			}
		})
	}
}

func TestAtLeast(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		version VersionInfo
		major   int
		minor   int
		patch   int
		want    bool
	}{
		{name: "equal", version: VersionInfo{Major: 1, Minor: 8, Patch: 7}, major: 1, minor: 8, patch: 7, want: true},
		{name: "newer patch", version: VersionInfo{Major: 1, Minor: 8, Patch: 8}, major: 1, minor: 8, patch: 7, want: true},
		{name: "older patch", version: VersionInfo{Major: 1, Minor: 8, Patch: 6}, major: 1, minor: 8, patch: 7, want: false},
		{name: "newer minor trumps patch", version: VersionInfo{Major: 1, Minor: 9, Patch: 0}, major: 1, minor: 8, patch: 7, want: true},
		{name: "older minor trumps patch", version: VersionInfo{Major: 1, Minor: 7, Patch: 99}, major: 1, minor: 8, patch: 0, want: false},
		{name: "newer major trumps minor", version: VersionInfo{Major: 2, Minor: 0, Patch: 0}, major: 1, minor: 99, patch: 99, want: true},
		{name: "zero value", version: VersionInfo{}, major: 1, minor: 4, patch: 20, want: false},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := tc.version.AtLeast(tc.major, tc.minor, tc.patch); got != tc.want {
				t.Fatalf("AtLeast(%d, %d, %d) = %t, want %t", tc.major, tc.minor, tc.patch, got, tc.want)
			}
		})
	}
}

func TestDetectVersionWarnsOnUnknownBanner(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	exec := &recordingExecutor{banner: "totally unexpected output"}

	info, err := detectVersion(context.Background(), exec, "iptables", logger)
	if err != nil {
		t.Fatalf("detectVersion returned error: %v", err)
	}
	if info.Variant != VariantUnknown {
		t.Fatalf("expected VariantUnknown, got %s", info.Variant)
	}
	if info.HasWait() {
		t.Fatal("expected unknown version to fail the wait gate")
	}
	if !bytes.Contains(buf.Bytes(), []byte("unrecognized version banner")) {
		t.Fatalf("expected a warning about the banner, got log output %q", buf.String())
	}
}

func TestDetectVersionPropagatesRunFailure(t *testing.T) {
	t.Parallel()

	exec := &recordingExecutor{
		runErrors: map[string]error{
			"iptables --version": fmt.Errorf("%w: iptables", ErrBinaryNotFound),
		},
	}

	_, err := detectVersion(context.Background(), exec, "iptables", discardLogger())
	if !errors.Is(err, ErrBinaryNotFound) {
		t.Fatalf("expected ErrBinaryNotFound, got %v", err)
	}
}

func TestDetectVersionReadsFirstLineOnly(t *testing.T) {
	t.Parallel()

	exec := &recordingExecutor{
		stdout: map[string]string{
			"iptables --version": "iptables v1.8.4 (legacy)\nsome trailing diagnostics\n",
		},
	}

	info, err := detectVersion(context.Background(), exec, "iptables", discardLogger())
	if err != nil {
		t.Fatalf("detectVersion returned error: %v", err)
	}
	if info.Variant != VariantLegacy || info.Major != 1 || info.Minor != 8 || info.Patch != 4 {
		t.Fatalf("unexpected version info: %+v", info)
	}
	if info.Banner != "iptables v1.8.4 (legacy)" {
		t.Fatalf("expected banner trimmed to first line, got %q", info.Banner)
	}
}
