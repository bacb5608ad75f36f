package iptables

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// tableSegment is one *table … COMMIT block of save-format text.
type tableSegment struct {
	table string
	text  string
}

// SaveAll writes the full rule set of every table to path. The file is
// written atomically so a failed save never leaves a truncated snapshot
// behind.
func (ipt *IPTables) SaveAll(ctx context.Context, path string) error {
	return ipt.save(ctx, path, nil)
}

// SaveTable writes one table's rule set to path, atomically.
func (ipt *IPTables) SaveTable(ctx context.Context, table, path string) error {
	if err := validateTable(table); err != nil {
		return err
	}
	return ipt.save(ctx, path, []string{"-t", table})
}

func (ipt *IPTables) save(ctx context.Context, path string, args []string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("%w: save path is empty", ErrInvalidArgument)
	}

	ipt.mu.Lock()
	out, err := ipt.exec.Run(ctx, ipt.saveCmd, args...)
	ipt.mu.Unlock()
	if err != nil {
		return err
	}
	return writeAtomic(path, out.Stdout)
}

// RestoreAll applies every table segment in the file, in file order, one
// bulk-restore invocation per segment. A rejected segment stops the restore:
// earlier segments stay applied, later ones are never attempted, and the
// error names the failing table. Callers needing all-or-nothing must
// snapshot first.
func (ipt *IPTables) RestoreAll(ctx context.Context, path string) error {
	segments, err := readSegments(path)
	if err != nil {
		return err
	}
	for _, seg := range segments {
		if err := ipt.restoreSegment(ctx, seg); err != nil {
			return fmt.Errorf("restore table %s: %w", seg.table, err)
		}
	}
	return nil
}

// RestoreTable applies only the named table's segment from the file.
func (ipt *IPTables) RestoreTable(ctx context.Context, table, path string) error {
	if err := validateTable(table); err != nil {
		return err
	}
	segments, err := readSegments(path)
	if err != nil {
		return err
	}
	for _, seg := range segments {
		if seg.table != table {
			continue
		}
		if err := ipt.restoreSegment(ctx, seg); err != nil {
			return fmt.Errorf("restore table %s: %w", seg.table, err)
		}
		return nil
	}
	return fmt.Errorf("%w: no *%s section in %s", ErrParse, table, path)
}

// restoreSegment feeds one table block to the restore binary. Restore
// companions new enough to wait on the kernel lock get -w; older ones are
// serialized through the legacy file lock like every other mutation.
func (ipt *IPTables) restoreSegment(ctx context.Context, seg tableSegment) error {
	ipt.mu.Lock()
	defer ipt.mu.Unlock()

	payload := []byte(seg.text)
	if ipt.version.HasRestoreWait() {
		_, err := ipt.exec.RunInput(ctx, payload, ipt.restoreCmd, "-w", ipt.waitArg)
		return err
	}

	return ipt.lock.withLock(ctx, func() error {
		_, err := ipt.exec.RunInput(ctx, payload, ipt.restoreCmd)
		return err
	})
}

// readSegments splits save-format text into per-table blocks. Structural
// problems (content before the first *table marker, a table without its
// COMMIT, an empty file) are parse errors, and nothing gets applied from a
// file that fails to parse. Comments and blank lines are tolerated anywhere.
func readSegments(path string) ([]tableSegment, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrIO, path, err)
	}
	defer file.Close()

	var (
		segments []tableSegment
		current  *tableSegment
		lineNo   int
	)

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)

		switch {
		case trimmed == "" || strings.HasPrefix(trimmed, "#"):
			continue
		case strings.HasPrefix(trimmed, "*"):
			if current != nil {
				return nil, fmt.Errorf("%w: %s:%d: table %s has no COMMIT", ErrParse, path, lineNo, current.table)
			}
			name := strings.TrimSpace(strings.TrimPrefix(trimmed, "*"))
			if name == "" {
				return nil, fmt.Errorf("%w: %s:%d: empty table marker", ErrParse, path, lineNo)
			}
			current = &tableSegment{table: name, text: trimmed + "\n"}
		case trimmed == "COMMIT":
			if current == nil {
				return nil, fmt.Errorf("%w: %s:%d: COMMIT outside a table section", ErrParse, path, lineNo)
			}
			current.text += "COMMIT\n"
			segments = append(segments, *current)
			current = nil
		default:
			if current == nil {
				return nil, fmt.Errorf("%w: %s:%d: %q outside a table section", ErrParse, path, lineNo, trimmed)
			}
			current.text += line + "\n"
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrIO, path, err)
	}
	if current != nil {
		return nil, fmt.Errorf("%w: %s: table %s has no COMMIT", ErrParse, path, current.table)
	}
	if len(segments) == 0 {
		return nil, fmt.Errorf("%w: %s: no table sections", ErrParse, path)
	}
	return segments, nil
}

// writeAtomic writes data via a temp file in the destination directory plus
// rename.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: create temp file in %s: %v", ErrIO, dir, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: write %s: %v", ErrIO, tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: close %s: %v", ErrIO, tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: rename %s to %s: %v", ErrIO, tmpName, path, err)
	}
	return nil
}
