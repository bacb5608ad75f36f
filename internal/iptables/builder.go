package iptables

import (
	"fmt"
	"strconv"
	"strings"
)

// The builders below produce the argument vector for one operation, without
// the wait flag or lock handling the run layer adds. Validation here is
// structural only; semantic rejection (unknown targets, malformed matches,
// missing jump chains) is the external command's job and surfaces as a
// *CommandError.

func validateTable(table string) error {
	if strings.TrimSpace(table) == "" {
		return fmt.Errorf("%w: table name is empty", ErrInvalidArgument)
	}
	return nil
}

func validateNames(table, chain string) error {
	if err := validateTable(table); err != nil {
		return err
	}
	if strings.TrimSpace(chain) == "" {
		return fmt.Errorf("%w: chain name is empty", ErrInvalidArgument)
	}
	return nil
}

func validatePosition(position int) error {
	if position < 1 {
		return fmt.Errorf("%w: position %d is not 1-based", ErrInvalidArgument, position)
	}
	return nil
}

func newChainArgs(table, chain string) []string {
	return []string{"-t", table, "-N", chain}
}

func deleteChainArgs(table, chain string) []string {
	return []string{"-t", table, "-X", chain}
}

func flushChainArgs(table, chain string) []string {
	return []string{"-t", table, "-F", chain}
}

func renameChainArgs(table, oldChain, newChain string) []string {
	return []string{"-t", table, "-E", oldChain, newChain}
}

func appendRuleArgs(table, chain string, spec []string) []string {
	return append([]string{"-t", table, "-A", chain}, spec...)
}

func insertRuleArgs(table, chain string, position int, spec []string) []string {
	return append([]string{"-t", table, "-I", chain, strconv.Itoa(position)}, spec...)
}

func deleteRuleArgs(table, chain string, spec []string) []string {
	return append([]string{"-t", table, "-D", chain}, spec...)
}

func deleteAtArgs(table, chain string, position int) []string {
	return []string{"-t", table, "-D", chain, strconv.Itoa(position)}
}

func listRulesArgs(table, chain string, counters bool) []string {
	args := []string{"-t", table, "-S", chain}
	if counters {
		args = append(args, "-v")
	}
	return args
}

func listTableArgs(table string) []string {
	return []string{"-t", table, "-S"}
}

func policyArgs(table, chain, policy string) []string {
	return []string{"-t", table, "-P", chain, policy}
}

func flushTableArgs(table string) []string {
	return []string{"-t", table, "-F"}
}

func deleteAllChainsArgs(table string) []string {
	return []string{"-t", table, "-X"}
}
