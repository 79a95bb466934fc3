package analyzer

import (
	"strings"

	mdns "github.com/miekg/dns"
	"github.com/pkg/errors"
	"golang.org/x/net/publicsuffix"
)

// DefaultSelector is the DKIM selector used when none is given.
const DefaultSelector = "default"

var (
	// ErrMissingInput is returned when the domain or selector is empty.
	ErrMissingInput = errors.New("domain and DKIM selector are required")
	// ErrInvalidDomain is returned for input that is not a usable domain name.
	ErrInvalidDomain = errors.New("invalid domain")
)

// NormalizeDomain validates user input and returns the lower-cased domain
// without trailing dot. URL-shaped input and bare public suffixes are
// rejected.
func NormalizeDomain(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrMissingInput
	}
	if strings.Contains(s, "://") || strings.ContainsAny(s, "/?#@: \t") {
		return "", errors.Wrapf(ErrInvalidDomain, "%q looks like a URL or address, enter a bare domain name such as example.com", s)
	}

	s = strings.ToLower(strings.TrimSuffix(s, "."))
	if labels, ok := mdns.IsDomainName(s); !ok || labels < 2 {
		return "", errors.Wrapf(ErrInvalidDomain, "%q is not a valid domain name", s)
	}
	if suffix, _ := publicsuffix.PublicSuffix(s); suffix == s {
		return "", errors.Wrapf(ErrInvalidDomain, "%q is a public suffix", s)
	}
	return s, nil
}

// NormalizeSelector validates a DKIM selector, returning DefaultSelector for
// empty input.
func NormalizeSelector(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultSelector, nil
	}
	s = strings.TrimSuffix(s, ".")
	if _, ok := mdns.IsDomainName(s); !ok || strings.ContainsAny(s, "/?#@: \t") {
		return "", errors.Errorf("invalid DKIM selector %q", s)
	}
	return s, nil
}
