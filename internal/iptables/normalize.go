package iptables

import (
	"net"
	"net/netip"
	"regexp"
	"strconv"
	"strings"
)

// ruleTokenPattern splits a rule specification on spaces while keeping
// quoted multi-word arguments together, e.g. -m comment --comment "a b".
var ruleTokenPattern = regexp.MustCompile(`["'].+?["']|[^ ]+`)

// flagAliases maps long option spellings onto the short canonical form
// listings print. The set is deliberately finite and follows iptables(8) as
// of 1.8; unknown options pass through untouched so canonicalization never
// invents tokens.
var flagAliases = map[string]string{
	"--protocol":      "-p",
	"--source":        "-s",
	"--src":           "-s",
	"--destination":   "-d",
	"--dst":           "-d",
	"--jump":          "-j",
	"--goto":          "-g",
	"--in-interface":  "-i",
	"--out-interface": "-o",
	"--match":         "-m",
	"--fragment":      "-f",
}

// protocolNames maps the numeric protocol values the kernel resolves to
// their symbolic listing names. Values outside this table compare as given.
var protocolNames = map[string]string{
	"1":   "icmp",
	"6":   "tcp",
	"17":  "udp",
	"50":  "esp",
	"51":  "ah",
	"58":  "ipv6-icmp",
	"132": "sctp",
}

// protocolAliases folds alternate spellings onto the listing form.
var protocolAliases = map[string]string{
	"icmpv6": "ipv6-icmp",
}

// splitQuoted tokenizes a rule specification, stripping the quotes that held
// multi-word arguments together.
func splitQuoted(spec string) []string {
	matches := ruleTokenPattern.FindAllString(spec, -1)
	tokens := make([]string, 0, len(matches))
	for _, m := range matches {
		tokens = append(tokens, strings.Trim(m, `"'`))
	}
	return tokens
}

// canonicalSpec is the comparable form of a rule specification.
func canonicalSpec(spec string) []string {
	return canonicalTokens(splitQuoted(spec))
}

// canonicalTokens rewrites a token stream into the form used for equality:
// short flag spellings, symbolic protocol names, masked CIDR addresses with
// explicit prefix lengths, and no match-everything source or destination
// clauses (listings omit those entirely). Token order is preserved;
// independent clauses are never reordered.
func canonicalTokens(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		if short, ok := flagAliases[tok]; ok {
			tok = short
		}

		switch tok {
		case "-s", "-d":
			if i+1 < len(tokens) {
				i++
				addr := canonicalAddress(tokens[i])
				if isMatchEverything(addr) && !negated(out) {
					continue
				}
				out = append(out, tok, addr)
				continue
			}
		case "-p":
			if i+1 < len(tokens) {
				i++
				out = append(out, tok, canonicalProtocol(tokens[i]))
				continue
			}
		}

		out = append(out, tok)
	}
	return out
}

// negated reports whether the clause being built sits behind a ! marker, in
// which case dropping it would flip the rule's meaning.
func negated(out []string) bool {
	return len(out) > 0 && out[len(out)-1] == "!"
}

func isMatchEverything(addr string) bool {
	return addr == "0.0.0.0/0" || addr == "::/0"
}

// canonicalAddress rewrites an address or network to the masked CIDR form
// listings print: explicit prefix length (/32 and /128 for bare hosts), the
// network address masked down, compressed lowercase IPv6. Dotted-quad
// netmasks fold into prefix lengths. Values that do not parse as addresses
// pass through untouched.
func canonicalAddress(value string) string {
	host, mask, hasMask := strings.Cut(value, "/")

	addr, err := netip.ParseAddr(host)
	if err != nil {
		return value
	}

	prefixLen := addr.BitLen()
	if hasMask {
		if n, err := strconv.Atoi(mask); err == nil {
			prefixLen = n
		} else if maskAddr, maskErr := netip.ParseAddr(mask); maskErr == nil && maskAddr.Is4() {
			ones, bits := net.IPMask(maskAddr.AsSlice()).Size()
			if bits == 0 {
				return value
			}
			prefixLen = ones
		} else {
			return value
		}
	}

	prefix, err := addr.Prefix(prefixLen)
	if err != nil {
		return value
	}
	return prefix.String()
}

func canonicalProtocol(value string) string {
	proto := strings.ToLower(value)
	if name, ok := protocolNames[proto]; ok {
		return name
	}
	if name, ok := protocolAliases[proto]; ok {
		return name
	}
	return proto
}

// appendedRule extracts the canonical specification tokens from one listing
// line when it is an append line for the given chain. ok is false for
// declaration lines (-N, -P) and for lines belonging to other chains.
func appendedRule(line, chain string) ([]string, bool) {
	tokens := splitQuoted(strings.TrimSpace(line))
	if len(tokens) < 2 || tokens[0] != "-A" || tokens[1] != chain {
		return nil, false
	}
	return canonicalTokens(tokens[2:]), true
}

func splitLines(b []byte) []string {
	text := strings.TrimSpace(string(b))
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}
