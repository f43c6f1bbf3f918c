package egress

import (
	"errors"
	"fmt"
	"net/netip"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/apiconduit/conduit/internal/observability"
)

// ErrEgressBlocked is the sentinel for all guard rejections. Callers
// check it with errors.Is; the concrete *BlockedError carries the reason.
var ErrEgressBlocked = errors.New("egress blocked")

// Rejection reasons, used in errors and metrics labels.
const (
	ReasonInvalidURL      = "invalid_url"
	ReasonScheme          = "scheme_not_allowed"
	ReasonCredentials     = "credentials_in_url"
	ReasonControlChar     = "control_character"
	ReasonEncodedControl  = "encoded_control_character"
	ReasonDoubleEncoding  = "double_encoded_traversal"
	ReasonEmptyHost       = "empty_host"
	ReasonHostnameBlocked = "hostname_blocked"
	ReasonRebindingDomain = "rebinding_domain"
	ReasonBlockedNetwork  = "blocked_network"
)

// BlockedError is returned when a URL fails egress validation.
type BlockedError struct {
	URL    string
	Reason string
	Detail string
}

// Error implements the error interface.
func (e *BlockedError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("egress blocked (%s): %s", e.Reason, e.Detail)
	}
	return fmt.Sprintf("egress blocked (%s)", e.Reason)
}

// Is reports whether the target is ErrEgressBlocked.
func (e *BlockedError) Is(target error) bool {
	return target == ErrEgressBlocked
}

// blocked records the rejection metric and builds the error.
func blocked(rawURL, reason, detail string) error {
	recordBlocked(reason)
	return &BlockedError{URL: rawURL, Reason: reason, Detail: detail}
}

// Guard validates candidate upstream URLs against the configured
// denylists. Safe for concurrent use; UpdateConfig may be called while
// validations are in flight (hot reload).
type Guard struct {
	mu        sync.RWMutex
	prefixes  []netip.Prefix
	hostnames map[string]struct{}
	domains   []string
	logger    observability.Logger
}

// NewGuard creates a guard from the given configuration.
func NewGuard(cfg *Config, logger observability.Logger) (*Guard, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = observability.NopLogger()
	}

	prefixes, hostnames, domains, err := cfg.compile()
	if err != nil {
		return nil, err
	}

	return &Guard{
		prefixes:  prefixes,
		hostnames: hostnames,
		domains:   domains,
		logger:    logger,
	}, nil
}

// UpdateConfig swaps in a new denylist configuration.
func (g *Guard) UpdateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("egress config is nil")
	}
	prefixes, hostnames, domains, err := cfg.compile()
	if err != nil {
		return err
	}

	g.mu.Lock()
	g.prefixes = prefixes
	g.hostnames = hostnames
	g.domains = domains
	g.mu.Unlock()

	g.logger.Info("egress denylist updated",
		observability.Int("networks", len(prefixes)),
		observability.Int("hostnames", len(hostnames)),
	)
	return nil
}

// Validate checks a candidate upstream URL. It returns nil when the URL
// may be dialed, or an error matching ErrEgressBlocked otherwise. The
// check inspects only the URL text; it never resolves the hostname.
func (g *Guard) Validate(rawURL string) error {
	recordValidation()

	for _, r := range rawURL {
		if r < 0x20 || r == 0x7f {
			return blocked(rawURL, ReasonControlChar, "URL contains a control character")
		}
	}

	lower := strings.ToLower(rawURL)
	for _, seq := range []string{"%00", "%0d", "%0a", "%09"} {
		if strings.Contains(lower, seq) {
			return blocked(rawURL, ReasonEncodedControl, "URL contains an encoded control character")
		}
	}
	for _, seq := range []string{"%252e", "%252f", "%255c"} {
		if strings.Contains(lower, seq) {
			return blocked(rawURL, ReasonDoubleEncoding, "URL contains a double-encoded traversal sequence")
		}
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return blocked(rawURL, ReasonInvalidURL, err.Error())
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return blocked(rawURL, ReasonScheme, fmt.Sprintf("scheme %q is not allowed", u.Scheme))
	}

	if u.User != nil {
		return blocked(rawURL, ReasonCredentials, "URL embeds credentials")
	}

	host := strings.ToLower(strings.TrimSuffix(u.Hostname(), "."))
	if host == "" {
		return blocked(rawURL, ReasonEmptyHost, "URL has no host")
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	if _, found := g.hostnames[host]; found {
		return blocked(rawURL, ReasonHostnameBlocked, fmt.Sprintf("hostname %q is blocklisted", host))
	}

	for _, domain := range g.domains {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return blocked(rawURL, ReasonRebindingDomain, fmt.Sprintf("hostname %q matches rebinding domain %q", host, domain))
		}
	}

	if addr, ok := parseAddrLiteral(host); ok {
		addr = addr.Unmap()
		for _, prefix := range g.prefixes {
			// Prefix.Contains masks the address with the range's prefix
			// bits and compares against the network value: exact CIDR
			// membership, never a substring match.
			if prefix.Contains(addr) {
				return blocked(rawURL, ReasonBlockedNetwork,
					fmt.Sprintf("address %s is inside blocked range %s", addr, prefix))
			}
		}
	}

	return nil
}

// parseAddrLiteral decodes a hostname that is an IP literal in any of
// its spellings: dotted quad, IPv6, and the whole-address decimal, hex
// (0x) and octal (leading 0) integer forms browsers and libcs accept.
func parseAddrLiteral(host string) (netip.Addr, bool) {
	if addr, err := netip.ParseAddr(host); err == nil {
		return addr, true
	}

	// strconv's base-0 mode would accept digit-separating underscores,
	// which no address parser does.
	if strings.ContainsAny(host, "_") {
		return netip.Addr{}, false
	}

	value, err := strconv.ParseUint(host, 0, 64)
	if err != nil || value > 0xffffffff {
		return netip.Addr{}, false
	}

	v := uint32(value)
	return netip.AddrFrom4([4]byte{
		byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v),
	}), true
}
