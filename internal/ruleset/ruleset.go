package ruleset

import (
	"fmt"
	"strings"

	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/denniswebb/gatewire/internal/iptables"
)

// Family selects which IP families a rule or policy applies to.
type Family string

const (
	FamilyIPv4 Family = "ipv4"
	FamilyIPv6 Family = "ipv6"
	FamilyBoth Family = "both"
)

// Includes reports whether the family covers the given handle protocol.
func (f Family) Includes(proto iptables.Protocol) bool {
	switch f {
	case FamilyIPv4:
		return proto == iptables.ProtocolIPv4
	case FamilyIPv6:
		return proto == iptables.ProtocolIPv6
	default:
		return true
	}
}

func (f Family) known() bool {
	return f == FamilyIPv4 || f == FamilyIPv6 || f == FamilyBoth
}

// Chain is a user-defined chain the reconciler keeps present.
type Chain struct {
	Table string `mapstructure:"table" yaml:"table"`
	Name  string `mapstructure:"name" yaml:"name"`
}

func (c Chain) String() string {
	return c.Table + "/" + c.Name
}

// Rule is one desired rule. Position zero appends; a positive position
// inserts 1-based. Spec may contain template directives expanded by Render.
type Rule struct {
	Table    string `mapstructure:"table" yaml:"table"`
	Chain    string `mapstructure:"chain" yaml:"chain"`
	Spec     string `mapstructure:"spec" yaml:"spec"`
	Family   Family `mapstructure:"family" yaml:"family"`
	Position int    `mapstructure:"position" yaml:"position,omitempty"`
}

func (r Rule) String() string {
	return fmt.Sprintf("%s/%s[%s] %s", r.Table, r.Chain, r.Family, r.Spec)
}

// Policy pins a built-in chain's default policy.
type Policy struct {
	Table  string `mapstructure:"table" yaml:"table"`
	Chain  string `mapstructure:"chain" yaml:"chain"`
	Target string `mapstructure:"target" yaml:"target"`
	Family Family `mapstructure:"family" yaml:"family"`
}

func (p Policy) String() string {
	return fmt.Sprintf("%s/%s[%s] -> %s", p.Table, p.Chain, p.Family, p.Target)
}

// Ruleset is the host's declared firewall state: managed chains, the rules
// they carry, and built-in chain policies, in declaration order.
type Ruleset struct {
	Chains   []Chain  `mapstructure:"chains" yaml:"chains,omitempty"`
	Rules    []Rule   `mapstructure:"rules" yaml:"rules,omitempty"`
	Policies []Policy `mapstructure:"policies" yaml:"policies,omitempty"`
}

var knownTables = sets.New("filter", "nat", "mangle", "raw", "security")

// Normalize fills the defaults the declaration syntax allows to be omitted:
// the filter table and the both-families selector.
func (rs *Ruleset) Normalize() {
	for i := range rs.Chains {
		if rs.Chains[i].Table == "" {
			rs.Chains[i].Table = "filter"
		}
	}
	for i := range rs.Rules {
		if rs.Rules[i].Table == "" {
			rs.Rules[i].Table = "filter"
		}
		if rs.Rules[i].Family == "" {
			rs.Rules[i].Family = FamilyBoth
		}
	}
	for i := range rs.Policies {
		if rs.Policies[i].Table == "" {
			rs.Policies[i].Table = "filter"
		}
		if rs.Policies[i].Family == "" {
			rs.Policies[i].Family = FamilyBoth
		}
	}
}

// Validate rejects structurally bad declarations before anything touches the
// live rule store: unknown tables, blank identifiers, negative positions,
// unknown family selectors, and duplicate declarations.
func (rs Ruleset) Validate() error {
	chains := sets.New[string]()
	for _, c := range rs.Chains {
		if err := checkTable(c.Table); err != nil {
			return fmt.Errorf("chain %s: %w", c, err)
		}
		if strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("chain in table %s: name is empty", c.Table)
		}
		if chains.Has(c.String()) {
			return fmt.Errorf("chain %s: declared twice", c)
		}
		chains.Insert(c.String())
	}

	rules := sets.New[string]()
	for _, r := range rs.Rules {
		if err := checkTable(r.Table); err != nil {
			return fmt.Errorf("rule %s: %w", r, err)
		}
		if strings.TrimSpace(r.Chain) == "" {
			return fmt.Errorf("rule in table %s: chain is empty", r.Table)
		}
		if strings.TrimSpace(r.Spec) == "" {
			return fmt.Errorf("rule %s/%s: spec is empty", r.Table, r.Chain)
		}
		if r.Position < 0 {
			return fmt.Errorf("rule %s: position %d is negative", r, r.Position)
		}
		if !r.Family.known() {
			return fmt.Errorf("rule %s/%s: unknown family %q", r.Table, r.Chain, r.Family)
		}
		if rules.Has(r.String()) {
			return fmt.Errorf("rule %s: declared twice", r)
		}
		rules.Insert(r.String())
	}

	policies := sets.New[string]()
	for _, p := range rs.Policies {
		if err := checkTable(p.Table); err != nil {
			return fmt.Errorf("policy %s: %w", p, err)
		}
		if strings.TrimSpace(p.Chain) == "" {
			return fmt.Errorf("policy in table %s: chain is empty", p.Table)
		}
		if strings.TrimSpace(p.Target) == "" {
			return fmt.Errorf("policy %s/%s: target is empty", p.Table, p.Chain)
		}
		if !p.Family.known() {
			return fmt.Errorf("policy %s/%s: unknown family %q", p.Table, p.Chain, p.Family)
		}
		key := fmt.Sprintf("%s/%s[%s]", p.Table, p.Chain, p.Family)
		if policies.Has(key) {
			return fmt.Errorf("policy %s: declared twice", p)
		}
		policies.Insert(key)
	}

	return nil
}

func checkTable(table string) error {
	if !knownTables.Has(table) {
		return fmt.Errorf("unknown table %q", table)
	}
	return nil
}

// RulesFor returns the rules that apply to the given protocol, in
// declaration order.
func (rs Ruleset) RulesFor(proto iptables.Protocol) []Rule {
	var out []Rule
	for _, r := range rs.Rules {
		if r.Family.Includes(proto) {
			out = append(out, r)
		}
	}
	return out
}

// PoliciesFor returns the policies that apply to the given protocol, in
// declaration order.
func (rs Ruleset) PoliciesFor(proto iptables.Protocol) []Policy {
	var out []Policy
	for _, p := range rs.Policies {
		if p.Family.Includes(proto) {
			out = append(out, p)
		}
	}
	return out
}
