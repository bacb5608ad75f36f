package iptables

import (
	"context"
	"slices"
)

// Append adds a rule at the end of the chain.
func (ipt *IPTables) Append(ctx context.Context, table, chain, spec string) error {
	if err := validateNames(table, chain); err != nil {
		return err
	}
	_, err := ipt.run(ctx, appendRuleArgs(table, chain, splitQuoted(spec))...)
	return err
}

// AppendUnique appends the rule only when no equivalent rule is already
// active; a rule that is already present is success.
func (ipt *IPTables) AppendUnique(ctx context.Context, table, chain, spec string) error {
	exists, err := ipt.Exists(ctx, table, chain, spec)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return ipt.Append(ctx, table, chain, spec)
}

// Insert adds a rule at a 1-based position in the chain.
func (ipt *IPTables) Insert(ctx context.Context, table, chain string, position int, spec string) error {
	if err := validateNames(table, chain); err != nil {
		return err
	}
	if err := validatePosition(position); err != nil {
		return err
	}
	_, err := ipt.run(ctx, insertRuleArgs(table, chain, position, splitQuoted(spec))...)
	return err
}

// Delete removes the first rule matching the specification. A rule that is
// not present is rejected by the external command.
func (ipt *IPTables) Delete(ctx context.Context, table, chain, spec string) error {
	if err := validateNames(table, chain); err != nil {
		return err
	}
	_, err := ipt.run(ctx, deleteRuleArgs(table, chain, splitQuoted(spec))...)
	return err
}

// DeleteIfExists removes equivalent rules until none remain; a rule that was
// never present is success.
func (ipt *IPTables) DeleteIfExists(ctx context.Context, table, chain, spec string) error {
	for {
		exists, err := ipt.Exists(ctx, table, chain, spec)
		if err != nil {
			return err
		}
		if !exists {
			return nil
		}
		if err := ipt.Delete(ctx, table, chain, spec); err != nil {
			return err
		}
	}
}

// DeleteAt removes the rule at a 1-based position in the chain.
func (ipt *IPTables) DeleteAt(ctx context.Context, table, chain string, position int) error {
	if err := validateNames(table, chain); err != nil {
		return err
	}
	if err := validatePosition(position); err != nil {
		return err
	}
	_, err := ipt.run(ctx, deleteAtArgs(table, chain, position)...)
	return err
}

// List returns the chain's listing: its declaration line followed by one -A
// line per rule, in the variant's native grammar.
func (ipt *IPTables) List(ctx context.Context, table, chain string) ([]string, error) {
	if err := validateNames(table, chain); err != nil {
		return nil, err
	}

	out, err := ipt.run(ctx, listRulesArgs(table, chain, false)...)
	if err != nil {
		return nil, err
	}
	return splitLines(out.Stdout), nil
}

// ListWithCounters is List with packet and byte counters attached, in the
// variant's native form.
func (ipt *IPTables) ListWithCounters(ctx context.Context, table, chain string) ([]string, error) {
	if err := validateNames(table, chain); err != nil {
		return nil, err
	}

	out, err := ipt.run(ctx, listRulesArgs(table, chain, true)...)
	if err != nil {
		return nil, err
	}
	return splitLines(out.Stdout), nil
}

// Exists reports whether a rule equivalent to the specification is active in
// the chain. The chain is listed once and both sides are canonicalized, so
// textually different but equivalent forms (long flag spellings, implicit
// default masks, numeric protocols) compare equal. A missing chain or table
// is an error distinguishable with errors.Is from a merely absent rule,
// which is (false, nil). Equivalences outside the canonicalization tables
// are not detected.
func (ipt *IPTables) Exists(ctx context.Context, table, chain, spec string) (bool, error) {
	if err := validateNames(table, chain); err != nil {
		return false, err
	}

	lines, err := ipt.List(ctx, table, chain)
	if err != nil {
		return false, err
	}

	want := canonicalSpec(spec)
	for _, line := range lines {
		got, ok := appendedRule(line, chain)
		if !ok {
			continue
		}
		if slices.Equal(want, got) {
			return true, nil
		}
	}
	return false, nil
}
