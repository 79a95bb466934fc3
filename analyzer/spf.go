package analyzer

import (
	"strings"

	"github.com/pkg/errors"
)

// The trailing space keeps "v=spf10" and similar from matching.
const spfPrefix = "v=spf1 "

// EvaluateSPF grades the SPF record of a domain from the result of fetching
// its TXT records.
func EvaluateSPF(txt TXTResult, lookupErr error) RecordAnalysis {
	if lookupErr != nil {
		var f Finding
		if errors.Is(lookupErr, ErrNoRecords) {
			f = Finding{KindError, "No TXT records found for the domain."}
		} else {
			f = Finding{KindError, "DNS query failed: " + lookupErr.Error()}
		}
		return newRecordAnalysis(nil, []Finding{f}, txt.Authentic)
	}

	var spfs []string
	for _, s := range txt.Flatten() {
		if strings.HasPrefix(s, spfPrefix) {
			spfs = append(spfs, s)
		}
	}

	switch len(spfs) {
	case 0:
		return newRecordAnalysis(nil, []Finding{{KindError, "No SPF record found."}}, txt.Authentic)
	case 1:
	default:
		record := strings.Join(spfs, "\n")
		return newRecordAnalysis(&record, []Finding{
			{KindError, "Multiple SPF records found. Only one is allowed."},
		}, txt.Authentic)
	}

	record := spfs[0]
	findings := []Finding{{KindInfo, "SPF record found."}}
	findings = append(findings, evalSPFAll(record)...)
	return newRecordAnalysis(&record, findings, txt.Authentic)
}

// evalSPFAll inspects the "all" mechanism. Qualifiers are matched as
// substrings in a fixed order, the first one present wins.
func evalSPFAll(record string) []Finding {
	if !strings.Contains(record, "all") {
		return []Finding{{KindWarning, `SPF record does not have an "all" mechanism. It is recommended to end with one (e.g., "~all" or "-all").`}}
	}

	switch {
	case strings.Contains(record, "-all"):
		return []Finding{{KindValid, `SPF record has a "-all" (fail) mechanism, which is good practice.`}}
	case strings.Contains(record, "~all"):
		return []Finding{{KindWarning, `SPF record uses "~all" (softfail). Consider using "-all" for a stricter policy.`}}
	case strings.Contains(record, "?all"):
		return []Finding{{KindWarning, `SPF record uses "?all" (neutral). Consider using "-all" for a stricter policy.`}}
	case strings.Contains(record, "+all"):
		return []Finding{{KindError, `SPF record uses "+all", which allows any server to send email from your domain. This is a major security risk.`}}
	}

	// A bare "all" has the implicit "+" qualifier.
	for _, term := range strings.Fields(record) {
		if term == "all" {
			return []Finding{{KindError, `SPF record ends with "all", which is the same as "+all" and allows any server to send email from your domain. This is a major security risk.`}}
		}
	}
	return nil
}
