package iptables

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel failure kinds, matchable with errors.Is through any wrapping.
var (
	// ErrBinaryNotFound means the requested binary is not on PATH.
	ErrBinaryNotFound = errors.New("iptables: binary not found")

	// ErrLockTimeout means exclusive access to the rule store was not
	// obtained within the backoff budget.
	ErrLockTimeout = errors.New("iptables: lock acquisition timed out")

	// ErrInvalidArgument means a structurally invalid identifier was
	// rejected before any command ran.
	ErrInvalidArgument = errors.New("iptables: invalid argument")

	// ErrChainNotFound means the external command reported the chain absent.
	ErrChainNotFound = errors.New("iptables: chain not found")

	// ErrTableNotFound means the external command reported the table absent.
	ErrTableNotFound = errors.New("iptables: table not found")

	// ErrRuleNotFound means the external command reported no rule matching
	// the given specification.
	ErrRuleNotFound = errors.New("iptables: rule not found")

	// ErrParse means listing, version, or snapshot text did not have the
	// expected shape.
	ErrParse = errors.New("iptables: parse error")

	// ErrIO means child process communication or file I/O failed before the
	// external command could render a verdict.
	ErrIO = errors.New("iptables: i/o failure")
)

// CommandError captures detailed failure information from command execution.
type CommandError struct {
	Command string
	Args    []string
	Code    int
	Stderr  string
	Err     error
}

// Error implements the error interface.
func (e *CommandError) Error() string {
	joined := strings.Join(e.Args, " ")
	if e.Stderr != "" {
		return fmt.Sprintf("command %s %s failed with exit code %d: %s", e.Command, joined, e.Code, strings.TrimSpace(e.Stderr))
	}
	return fmt.Sprintf("command %s %s failed: %v", e.Command, joined, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As checks.
func (e *CommandError) Unwrap() error {
	return e.Err
}

// Is classifies well-known diagnostics so callers can distinguish a missing
// chain, table, or rule from other failures without matching stderr
// themselves. Wording covers the legacy and nf_tables frontends of iptables
// 1.8; neither localizes its messages.
func (e *CommandError) Is(target error) bool {
	diag := strings.ToLower(e.Stderr)
	switch target {
	case ErrChainNotFound:
		return strings.Contains(diag, "no chain/target/match by that name") ||
			(strings.Contains(diag, "chain") && strings.Contains(diag, "does not exist"))
	case ErrTableNotFound:
		return strings.Contains(diag, "table") && strings.Contains(diag, "does not exist")
	case ErrRuleNotFound:
		return strings.Contains(diag, "bad rule (does a matching rule exist")
	case ErrLockTimeout:
		return strings.Contains(diag, "xtables lock")
	}
	return false
}
