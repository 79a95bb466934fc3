package dns

import (
	"context"
	"slices"
)

// MockResolver is a Resolver used for testing.
// TXT maps FQDNs (with trailing dot) to records, each record being the list
// of its character-strings.
type MockResolver struct {
	TXT map[string][][]string

	// Fail lists FQDNs for which lookups return ErrServFail.
	Fail []string

	// Refused lists FQDNs for which lookups return ErrRefused.
	Refused []string

	// Nx lists FQDNs which do not exist at all. Names that are neither in TXT
	// nor in Nx return ErrNoData.
	Nx []string

	// Authentic lists FQDNs whose answers carry the AD bit.
	Authentic []string
}

var _ Resolver = MockResolver{}

func (r MockResolver) AuthLookupTXT(ctx context.Context, name string) (bool, [][]string, error) {
	if err := ctx.Err(); err != nil {
		return false, nil, err
	}

	fqdn := name
	if fqdn == "" || fqdn[len(fqdn)-1] != '.' {
		fqdn += "."
	}

	if slices.Contains(r.Fail, fqdn) {
		return false, nil, ErrServFail
	}
	if slices.Contains(r.Refused, fqdn) {
		return false, nil, ErrRefused
	}
	ad := slices.Contains(r.Authentic, fqdn)
	if slices.Contains(r.Nx, fqdn) {
		return ad, nil, ErrNxDomain
	}

	records, ok := r.TXT[fqdn]
	if !ok || len(records) == 0 {
		return ad, nil, ErrNoData
	}
	return ad, records, nil
}
