// Package iptables manages netfilter rules by driving the iptables and
// ip6tables binaries with explicit argument vectors. A handle detects the
// binary variant and version once, serializes access to the shared kernel
// store (delegating to -w where the binary supports it, flocking a legacy
// lock file where it does not), and decides rule presence by listing a chain
// and comparing canonical token forms instead of trusting textual equality.
// Whole tables move through the iptables-save/iptables-restore text format
// for snapshot and restore.
package iptables
