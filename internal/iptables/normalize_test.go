package iptables

import (
	"slices"
	"testing"
)

func TestSplitQuoted(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "plain tokens",
			input: "-p tcp --dport 22 -j ACCEPT",
			want:  []string{"-p", "tcp", "--dport", "22", "-j", "ACCEPT"},
		},
		{
			name:  "double quoted comment stays one token",
			input: `-m comment --comment "local traffic only" -j RETURN`,
			want:  []string{"-m", "comment", "--comment", "local traffic only", "-j", "RETURN"},
		},
		{
			name:  "single quoted argument",
			input: `-m comment --comment 'allow dns' -j ACCEPT`,
			want:  []string{"-m", "comment", "--comment", "allow dns", "-j", "ACCEPT"},
		},
		{
			name:  "repeated spaces collapse",
			input: "-j   ACCEPT",
			want:  []string{"-j", "ACCEPT"},
		},
		{
			name:  "empty specification",
			input: "",
			want:  []string{},
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := splitQuoted(tc.input)
			if !slices.Equal(got, tc.want) {
				t.Fatalf("splitQuoted(%q) = %v, want %v", tc.input, got, tc.want)
			}
		})
	}
}

func TestCanonicalSpec(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "long flags fold to short",
			input: "--protocol tcp --jump ACCEPT",
			want:  []string{"-p", "tcp", "-j", "ACCEPT"},
		},
		{
			name:  "source and destination aliases",
			input: "--source 10.1.1.1 --dst 10.2.0.0/16 -j DROP",
			want:  []string{"-s", "10.1.1.1/32", "-d", "10.2.0.0/16", "-j", "DROP"},
		},
		{
			name:  "bare host gains default mask",
			input: "-s 192.168.0.5 -j RETURN",
			want:  []string{"-s", "192.168.0.5/32", "-j", "RETURN"},
		},
		{
			name:  "network address is masked down",
			input: "-s 10.1.2.3/24 -j DROP",
			want:  []string{"-s", "10.1.0.0/24", "-j", "DROP"},
		},
		{
			name:  "dotted netmask folds to prefix length",
			input: "-s 10.1.0.0/255.255.0.0 -j DROP",
			want:  []string{"-s", "10.1.0.0/16", "-j", "DROP"},
		},
		{
			name:  "ipv6 compresses and lowercases",
			input: "-s 2001:DB8:0:0:0:0:0:1 -j ACCEPT",
			want:  []string{"-s", "2001:db8::1/128", "-j", "ACCEPT"},
		},
		{
			name:  "numeric protocol becomes symbolic",
			input: "-p 6 --dport 443 -j ACCEPT",
			want:  []string{"-p", "tcp", "--dport", "443", "-j", "ACCEPT"},
		},
		{
			name:  "protocol case folds",
			input: "-p TCP -j ACCEPT",
			want:  []string{"-p", "tcp", "-j", "ACCEPT"},
		},
		{
			name:  "icmpv6 folds to listing spelling",
			input: "-p icmpv6 -j ACCEPT",
			want:  []string{"-p", "ipv6-icmp", "-j", "ACCEPT"},
		},
		{
			name:  "match everything source is dropped",
			input: "-s 0.0.0.0/0 -j ACCEPT",
			want:  []string{"-j", "ACCEPT"},
		},
		{
			name:  "negated match everything survives",
			input: "! -s 0.0.0.0/0 -j DROP",
			want:  []string{"!", "-s", "0.0.0.0/0", "-j", "DROP"},
		},
		{
			name:  "ipv6 match everything destination is dropped",
			input: "-d ::/0 -j ACCEPT",
			want:  []string{"-j", "ACCEPT"},
		},
		{
			name:  "interface names pass through",
			input: "--in-interface eth0 --out-interface eth1 -j ACCEPT",
			want:  []string{"-i", "eth0", "-o", "eth1", "-j", "ACCEPT"},
		},
		{
			name:  "unknown long options untouched",
			input: "-p tcp --dport 22 --syn -j ACCEPT",
			want:  []string{"-p", "tcp", "--dport", "22", "--syn", "-j", "ACCEPT"},
		},
		{
			name:  "unparseable address untouched",
			input: "-s not-an-address -j DROP",
			want:  []string{"-s", "not-an-address", "-j", "DROP"},
		},
		{
			name:  "trailing source flag without value",
			input: "-j ACCEPT -s",
			want:  []string{"-j", "ACCEPT", "-s"},
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := canonicalSpec(tc.input)
			if !slices.Equal(got, tc.want) {
				t.Fatalf("canonicalSpec(%q) = %v, want %v", tc.input, got, tc.want)
			}
		})
	}
}

func TestCanonicalSpecEquivalence(t *testing.T) {
	t.Parallel()

	pairs := []struct {
		name string
		a    string
		b    string
	}{
		{name: "implicit vs explicit host mask", a: "-s 10.1.1.1 -j ACCEPT", b: "-s 10.1.1.1/32 -j ACCEPT"},
		{name: "long vs short protocol flag", a: "--protocol udp -j DROP", b: "-p udp -j DROP"},
		{name: "numeric vs symbolic protocol", a: "-p 17 -j DROP", b: "-p udp -j DROP"},
		{name: "unmasked vs masked network", a: "-d 172.16.5.9/12 -j RETURN", b: "-d 172.16.0.0/12 -j RETURN"},
	}

	for _, tc := range pairs {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			a := canonicalSpec(tc.a)
			b := canonicalSpec(tc.b)
			if !slices.Equal(a, b) {
				t.Fatalf("canonical forms differ: %v vs %v", a, b)
			}
		})
	}
}

func TestAppendedRule(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		line   string
		chain  string
		want   []string
		wantOK bool
	}{
		{
			name:   "append line for the chain",
			line:   "-A TESTCHAIN -p tcp --dport 22 -j ACCEPT",
			chain:  "TESTCHAIN",
			want:   []string{"-p", "tcp", "--dport", "22", "-j", "ACCEPT"},
			wantOK: true,
		},
		{
			name:   "declaration line is skipped",
			line:   "-N TESTCHAIN",
			chain:  "TESTCHAIN",
			wantOK: false,
		},
		{
			name:   "policy line is skipped",
			line:   "-P INPUT ACCEPT",
			chain:  "INPUT",
			wantOK: false,
		},
		{
			name:   "other chain is skipped",
			line:   "-A OTHER -j DROP",
			chain:  "TESTCHAIN",
			wantOK: false,
		},
		{
			name:   "listing tokens are canonicalized",
			line:   "-A TESTCHAIN -s 10.0.0.1/32 -j DROP",
			chain:  "TESTCHAIN",
			want:   []string{"-s", "10.0.0.1/32", "-j", "DROP"},
			wantOK: true,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, ok := appendedRule(tc.line, tc.chain)
			if ok != tc.wantOK {
				t.Fatalf("appendedRule(%q, %q) ok = %t, want %t", tc.line, tc.chain, ok, tc.wantOK)
			}
			if ok && !slices.Equal(got, tc.want) {
				t.Fatalf("appendedRule(%q, %q) = %v, want %v", tc.line, tc.chain, got, tc.want)
			}
		})
	}
}
