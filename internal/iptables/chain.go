package iptables

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// NewChain creates a user-defined chain in the table. Creating a chain that
// already exists is rejected by the external command, never silently
// ignored.
func (ipt *IPTables) NewChain(ctx context.Context, table, chain string) error {
	if err := validateNames(table, chain); err != nil {
		return err
	}
	_, err := ipt.run(ctx, newChainArgs(table, chain)...)
	return err
}

// DeleteChain removes an empty user-defined chain.
func (ipt *IPTables) DeleteChain(ctx context.Context, table, chain string) error {
	if err := validateNames(table, chain); err != nil {
		return err
	}
	_, err := ipt.run(ctx, deleteChainArgs(table, chain)...)
	return err
}

// FlushChain removes every rule from the chain.
func (ipt *IPTables) FlushChain(ctx context.Context, table, chain string) error {
	if err := validateNames(table, chain); err != nil {
		return err
	}
	_, err := ipt.run(ctx, flushChainArgs(table, chain)...)
	return err
}

// RenameChain renames a user-defined chain. Rules jumping to the old name
// follow the rename.
func (ipt *IPTables) RenameChain(ctx context.Context, table, oldChain, newChain string) error {
	if err := validateNames(table, oldChain); err != nil {
		return err
	}
	if strings.TrimSpace(newChain) == "" {
		return fmt.Errorf("%w: new chain name is empty", ErrInvalidArgument)
	}
	_, err := ipt.run(ctx, renameChainArgs(table, oldChain, newChain)...)
	return err
}

// ChainExists reports whether the chain is present in the table using a
// single listing invocation. Exit status 1 means absent rather than failure;
// a missing table still surfaces as an error.
func (ipt *IPTables) ChainExists(ctx context.Context, table, chain string) (bool, error) {
	if err := validateNames(table, chain); err != nil {
		return false, err
	}

	_, err := ipt.run(ctx, listRulesArgs(table, chain, false)...)
	if err == nil {
		return true, nil
	}

	var cmdErr *CommandError
	if errors.As(err, &cmdErr) && cmdErr.Code == 1 && !errors.Is(err, ErrTableNotFound) {
		return false, nil
	}
	return false, err
}

// FlushAndDeleteChain flushes then deletes the chain when present; a chain
// that does not exist is success.
func (ipt *IPTables) FlushAndDeleteChain(ctx context.Context, table, chain string) error {
	exists, err := ipt.ChainExists(ctx, table, chain)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}
	if err := ipt.FlushChain(ctx, table, chain); err != nil {
		return err
	}
	return ipt.DeleteChain(ctx, table, chain)
}

// ListChains returns the names of every chain declared in the table,
// built-in and user-defined.
func (ipt *IPTables) ListChains(ctx context.Context, table string) ([]string, error) {
	if err := validateTable(table); err != nil {
		return nil, err
	}

	out, err := ipt.run(ctx, listTableArgs(table)...)
	if err != nil {
		return nil, err
	}

	var chains []string
	for _, line := range splitLines(out.Stdout) {
		fields := strings.Fields(line)
		if len(fields) >= 2 && (fields[0] == "-P" || fields[0] == "-N") {
			chains = append(chains, fields[1])
		}
	}
	return chains, nil
}

// ChangePolicy sets the default policy of a built-in chain. The external
// command rejects user-defined chains and unknown policy targets; those
// rejections surface as command failures.
func (ipt *IPTables) ChangePolicy(ctx context.Context, table, chain, policy string) error {
	if err := validateNames(table, chain); err != nil {
		return err
	}
	if strings.TrimSpace(policy) == "" {
		return fmt.Errorf("%w: policy is empty", ErrInvalidArgument)
	}
	_, err := ipt.run(ctx, policyArgs(table, chain, policy)...)
	return err
}

// FlushTable removes every rule from every chain in the table.
func (ipt *IPTables) FlushTable(ctx context.Context, table string) error {
	if err := validateTable(table); err != nil {
		return err
	}
	_, err := ipt.run(ctx, flushTableArgs(table)...)
	return err
}

// DeleteAllChains deletes every user-defined chain in the table. Chains that
// are non-empty or still referenced are rejected by the external command.
func (ipt *IPTables) DeleteAllChains(ctx context.Context, table string) error {
	if err := validateTable(table); err != nil {
		return err
	}
	_, err := ipt.run(ctx, deleteAllChainsArgs(table)...)
	return err
}
