package egress

import (
	"fmt"
	"net/netip"
	"strings"
)

// defaultBlockedNetworks are the ranges the gateway never dials: loopback,
// RFC1918 private space, link-local (including the cloud metadata range),
// CGNAT, benchmarking, multicast, reserved, and their IPv6 equivalents.
var defaultBlockedNetworks = []string{
	"127.0.0.0/8",
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"169.254.0.0/16",
	"0.0.0.0/8",
	"192.0.0.0/24",
	"100.64.0.0/10",
	"198.18.0.0/15",
	"224.0.0.0/4",
	"240.0.0.0/4",
	"::1/128",
	"::/128",
	"fe80::/10",
	"fc00::/7",
	"::ffff:0:0/96",
	"ff00::/8",
}

// defaultBlockedHostnames are literal hostnames that always resolve to
// internal targets regardless of network configuration.
var defaultBlockedHostnames = []string{
	"localhost",
	"metadata.google.internal",
	"metadata",
}

// defaultRebindingDomains are wildcard DNS services that resolve any
// embedded IP, commonly used to smuggle internal addresses past
// hostname-based checks (a.b.127.0.0.1.nip.io and friends).
var defaultRebindingDomains = []string{
	"nip.io",
	"sslip.io",
	"xip.io",
	"localtest.me",
	"lvh.me",
}

// Config holds the egress guard configuration.
type Config struct {
	// BlockedNetworks are CIDR ranges the gateway refuses to dial.
	// Empty means the built-in denylist.
	BlockedNetworks []string

	// ExtraBlockedNetworks are tenant-specific CIDR ranges appended to
	// BlockedNetworks.
	ExtraBlockedNetworks []string

	// BlockedHostnames are literal hostnames to refuse, matched
	// case-insensitively. Empty means the built-in list.
	BlockedHostnames []string

	// RebindingDomains are wildcard DNS suffixes to refuse. A hostname is
	// rejected when it equals a listed domain or ends in "." plus one.
	// Empty means the built-in list.
	RebindingDomains []string
}

// DefaultConfig returns the built-in guard configuration.
func DefaultConfig() *Config {
	return &Config{}
}

// compile parses the configured CIDR strings, applying defaults for any
// empty list.
func (c *Config) compile() ([]netip.Prefix, map[string]struct{}, []string, error) {
	networks := c.BlockedNetworks
	if len(networks) == 0 {
		networks = defaultBlockedNetworks
	}
	networks = append(append([]string{}, networks...), c.ExtraBlockedNetworks...)

	prefixes := make([]netip.Prefix, 0, len(networks))
	for _, cidr := range networks {
		prefix, err := netip.ParsePrefix(cidr)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("invalid blocked network %q: %w", cidr, err)
		}
		prefixes = append(prefixes, prefix)
	}

	hostnames := c.BlockedHostnames
	if len(hostnames) == 0 {
		hostnames = defaultBlockedHostnames
	}
	// Validate compares against a lowercased host, so configured
	// entries are folded here.
	hostSet := make(map[string]struct{}, len(hostnames))
	for _, h := range hostnames {
		hostSet[strings.ToLower(h)] = struct{}{}
	}

	domains := c.RebindingDomains
	if len(domains) == 0 {
		domains = defaultRebindingDomains
	}
	lowered := make([]string, 0, len(domains))
	for _, d := range domains {
		lowered = append(lowered, strings.ToLower(d))
	}

	return prefixes, hostSet, lowered, nil
}
