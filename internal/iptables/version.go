package iptables

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
)

var versionPattern = regexp.MustCompile(`v(\d+)\.(\d+)\.(\d+)`)

// detectVersion queries the binary once and classifies its banner. An
// unrecognized banner degrades to conservative defaults (no -w, file lock
// engaged) instead of failing construction; a binary that cannot run at all
// is still fatal.
func detectVersion(ctx context.Context, exec Executor, binary string, logger *slog.Logger) (VersionInfo, error) {
	out, err := exec.Run(ctx, binary, "--version")
	if err != nil {
		return VersionInfo{}, fmt.Errorf("query %s version: %w", binary, err)
	}

	info := parseBanner(firstLine(out.Stdout))
	if info.Variant == VariantUnknown {
		logger.Warn("unrecognized version banner, assuming oldest supported binary",
			slog.String("binary", binary),
			slog.String("banner", info.Banner))
	}
	return info, nil
}

// parseBanner reads lines like "iptables v1.8.7 (nf_tables)". Binaries that
// predate the nf_tables backend print no suffix and are legacy by
// definition.
func parseBanner(banner string) VersionInfo {
	info := VersionInfo{Banner: banner}

	m := versionPattern.FindStringSubmatch(banner)
	if m == nil {
		return info
	}
	info.Major, _ = strconv.Atoi(m[1])
	info.Minor, _ = strconv.Atoi(m[2])
	info.Patch, _ = strconv.Atoi(m[3])

	if strings.Contains(banner, "nf_tables") {
		info.Variant = VariantNFTables
	} else {
		info.Variant = VariantLegacy
	}
	return info
}

func firstLine(b []byte) string {
	text := strings.TrimSpace(string(b))
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	return strings.TrimSpace(text)
}
