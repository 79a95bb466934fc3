package analyzer

import (
	"context"

	"github.com/pkg/errors"

	"github.com/foxcpp/mailsec-grade/dns"
)

// RecordType selects which authentication record to fetch.
type RecordType int

const (
	SPF RecordType = iota
	DKIM
	DMARC
)

func (t RecordType) String() string {
	switch t {
	case SPF:
		return "SPF"
	case DKIM:
		return "DKIM"
	case DMARC:
		return "DMARC"
	}
	return "unknown"
}

// ErrNoRecords is returned by Fetch when the name does not exist, has no
// TXT records or the server answered SERVFAIL.
var ErrNoRecords = errors.New("no TXT records found")

// LookupError is returned by Fetch for any DNS failure other than a missing
// name or record or a SERVFAIL answer.
type LookupError struct {
	Name string
	Err  error
}

func (e *LookupError) Error() string { return e.Err.Error() }
func (e *LookupError) Unwrap() error { return e.Err }

// TXTResult holds the TXT records found at Name.
type TXTResult struct {
	Name      string
	Records   [][]string
	Authentic bool
}

// Flatten returns all character-strings of all records as one list.
func (r TXTResult) Flatten() []string {
	var out []string
	for _, rec := range r.Records {
		out = append(out, rec...)
	}
	return out
}

// QueryName returns the DNS name the record type is published at.
func QueryName(t RecordType, domain, selector string) string {
	switch t {
	case DKIM:
		return selector + "._domainkey." + domain
	case DMARC:
		return "_dmarc." + domain
	}
	return domain
}

// Fetcher retrieves authentication records through a dns.Resolver.
type Fetcher struct {
	Resolver dns.Resolver
}

// Fetch looks up the TXT records for the record type. The selector is only
// used for DKIM. The returned error is either ErrNoRecords or a
// *LookupError; Name is always set in the result.
func (f Fetcher) Fetch(ctx context.Context, t RecordType, domain, selector string) (TXTResult, error) {
	res := TXTResult{Name: QueryName(t, domain, selector)}

	ad, txts, err := f.Resolver.AuthLookupTXT(ctx, res.Name)
	res.Authentic = ad
	if err != nil {
		// A SERVFAIL is graded as absence, like a missing name.
		if dns.IsNotFound(err) || errors.Is(err, dns.ErrServFail) {
			return res, ErrNoRecords
		}
		return res, &LookupError{Name: res.Name, Err: err}
	}
	res.Records = txts
	return res, nil
}
