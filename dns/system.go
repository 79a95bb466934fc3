package dns

import (
	"context"
	"time"

	mdns "github.com/miekg/dns"
	"github.com/mjl-/adns"
	"github.com/pkg/errors"
)

// SystemResolver resolves through the stub resolver configuration of the
// host. The AD bit is only meaningful when /etc/resolv.conf points to a
// DNSSEC-validating resolver.
//
// The stub resolver concatenates the character-strings of a TXT record
// without a separator, so every returned record has exactly one segment. A
// DKIM key published as "p=ABC" "DEF" therefore reads "p=ABCDEF" here, while
// ExtResolver keeps the segments and the DKIM record is joined as
// "p=ABC DEF". The stub resolver also reports a name without TXT records
// (NODATA) as not found, which maps to ErrNxDomain.
type SystemResolver struct {
	// Resolver used for lookups. If nil, adns.DefaultResolver is used.
	Resolver *adns.Resolver
}

var _ Resolver = SystemResolver{}

func (r SystemResolver) resolver() *adns.Resolver {
	if r.Resolver == nil {
		return adns.DefaultResolver
	}
	return r.Resolver
}

func (r SystemResolver) AuthLookupTXT(ctx context.Context, name string) (ad bool, txts [][]string, err error) {
	start := time.Now()
	defer func() { observe("system", name, ad, txts, err, start) }()

	resp, result, err := r.resolver().LookupTXT(ctx, mdns.Fqdn(name))
	if err != nil {
		var dnsErr *adns.DNSError
		if errors.As(err, &dnsErr) {
			switch {
			case dnsErr.IsNotFound:
				return result.Authentic, nil, ErrNxDomain
			case dnsErr.IsTemporary:
				return false, nil, errors.Wrapf(ErrServFail, "lookup txt %s: %s", name, dnsErr.Err)
			}
		}
		return false, nil, errors.Wrapf(err, "lookup txt %s", name)
	}
	if len(resp) == 0 {
		return result.Authentic, nil, ErrNoData
	}

	txts = make([][]string, 0, len(resp))
	for _, txt := range resp {
		txts = append(txts, []string{txt})
	}
	return result.Authentic, txts, nil
}
