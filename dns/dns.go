// Package dns provides the TXT lookup primitive used by the record analyzers.
//
// Two implementations are available: ExtResolver talks to the configured
// recursive nameservers directly using github.com/miekg/dns and reports the
// AD bit of the answer, SystemResolver goes through the system stub resolver
// (github.com/mjl-/adns). MockResolver serves canned answers for tests.
package dns

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"
)

var (
	// ErrNxDomain is returned when the queried name does not exist.
	ErrNxDomain = errors.New("dns: domain does not exist")
	// ErrNoData is returned when the name exists but has no TXT records.
	ErrNoData = errors.New("dns: no records of requested type")
	// ErrServFail is returned when the upstream server answered SERVFAIL.
	ErrServFail = errors.New("dns: server failure")
	// ErrRefused is returned when the upstream server refused the query.
	ErrRefused = errors.New("dns: query refused")
)

// Resolver is the lookup primitive consumed by the analyzers.
//
// AuthLookupTXT returns every TXT record at name. Each record is the list of
// its character-strings in wire order. ad reports whether the answer was
// DNSSEC-authenticated by the upstream resolver.
type Resolver interface {
	AuthLookupTXT(ctx context.Context, name string) (ad bool, txts [][]string, err error)
}

// IsNotFound reports whether err means that there are no records to
// analyze: either the name does not exist or it has no TXT records.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNxDomain) || errors.Is(err, ErrNoData)
}

// IsTemporary reports whether err is a server-side failure that might go
// away on its own.
func IsTemporary(err error) bool {
	return errors.Is(err, ErrServFail) || errors.Is(err, context.DeadlineExceeded)
}

var metricLookup = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "mailsec_dns_lookup_duration_seconds",
		Help:    "DNS TXT lookup duration and result, per resolver kind. Results: ok, notfound, temporary, canceled, error.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.100, 0.5, 1, 5, 10, 20},
	},
	[]string{
		"resolver",
		"result",
	},
)

func lookupResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case IsNotFound(err):
		return "notfound"
	case IsTemporary(err):
		return "temporary"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}

// observe records metrics and a debug log entry for a finished lookup.
func observe(kind, name string, ad bool, txts [][]string, err error, start time.Time) {
	elapsed := time.Since(start)
	metricLookup.WithLabelValues(kind, lookupResult(err)).Observe(elapsed.Seconds())

	entry := log.WithFields(log.Fields{
		"resolver":  kind,
		"type":      "txt",
		"name":      name,
		"records":   len(txts),
		"authentic": ad,
		"duration":  elapsed,
	})
	if err != nil {
		entry.WithError(err).Debug("dns lookup failed")
		return
	}
	entry.Debug("dns lookup result")
}
