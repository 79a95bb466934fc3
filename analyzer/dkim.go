package analyzer

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

const dkimPrefix = "v=DKIM1"

// EvaluateDKIM grades the DKIM key record published for selector.
//
// Keys are commonly split over several character-strings. Every segment of
// every qualifying record is joined with a space, so several qualifying
// strings are not an error here, unlike for SPF and DMARC.
func EvaluateDKIM(txt TXTResult, lookupErr error, selector string) RecordAnalysis {
	if lookupErr != nil {
		var f Finding
		if errors.Is(lookupErr, ErrNoRecords) {
			f = Finding{KindError, fmt.Sprintf("No DKIM record found for selector %q at %s.", selector, txt.Name)}
		} else {
			f = Finding{KindError, "DNS query for DKIM failed: " + lookupErr.Error()}
		}
		return newRecordAnalysis(nil, []Finding{f}, txt.Authentic)
	}

	var segments []string
	for _, rec := range txt.Records {
		if strings.HasPrefix(strings.Join(rec, ""), dkimPrefix) {
			segments = append(segments, rec...)
		}
	}
	if len(segments) == 0 {
		return newRecordAnalysis(nil, []Finding{
			{KindError, fmt.Sprintf("No DKIM record found for selector %q.", selector)},
		}, txt.Authentic)
	}

	record := strings.Join(segments, " ")
	findings := []Finding{{KindInfo, fmt.Sprintf("DKIM record found for selector %q.", selector)}}
	if !strings.Contains(record, "p=") {
		findings = append(findings, Finding{KindError, "DKIM record is missing the public key (p= tag)."})
	} else {
		findings = append(findings, Finding{KindValid, "DKIM record seems to have a public key."})
	}
	return newRecordAnalysis(&record, findings, txt.Authentic)
}
