package analyzer

import (
	"fmt"
	"strings"

	msgdmarc "github.com/emersion/go-msgauth/dmarc"
	"github.com/pkg/errors"
)

const dmarcPrefix = "v=DMARC1"

const noDMARCMessage = "No DMARC record found. It is highly recommended to have a DMARC policy."

// EvaluateDMARC grades the DMARC policy record found at _dmarc.<domain>.
// A missing record is only a warning.
func EvaluateDMARC(txt TXTResult, lookupErr error) RecordAnalysis {
	if lookupErr != nil {
		var f Finding
		if errors.Is(lookupErr, ErrNoRecords) {
			f = Finding{KindWarning, noDMARCMessage}
		} else {
			f = Finding{KindError, "DNS query failed: " + lookupErr.Error()}
		}
		return newRecordAnalysis(nil, []Finding{f}, txt.Authentic)
	}

	var dmarcs []string
	for _, s := range txt.Flatten() {
		if strings.HasPrefix(s, dmarcPrefix) {
			dmarcs = append(dmarcs, s)
		}
	}

	switch len(dmarcs) {
	case 0:
		return newRecordAnalysis(nil, []Finding{{KindWarning, noDMARCMessage}}, txt.Authentic)
	case 1:
	default:
		record := strings.Join(dmarcs, "\n")
		return newRecordAnalysis(&record, []Finding{
			{KindError, "Multiple DMARC records found. Only one is allowed."},
		}, txt.Authentic)
	}

	record := dmarcs[0]
	findings := []Finding{{KindInfo, "DMARC record found."}}

	policy, ok := dmarcTag(record, "p")
	if !ok || policy == "" {
		findings = append(findings, Finding{KindError, "DMARC record is missing a policy (p= tag)."})
	} else {
		switch policy {
		case "none":
			findings = append(findings, Finding{KindWarning, `DMARC policy is "none". This only monitors, it does not protect against spoofing. Consider "quarantine" or "reject".`})
		case "quarantine":
			findings = append(findings, Finding{KindValid, `DMARC policy is "quarantine".`})
		case "reject":
			findings = append(findings, Finding{KindValid, `DMARC policy is "reject", which provides the strongest protection.`})
		}
	}

	if !strings.Contains(record, "rua=") {
		findings = append(findings, Finding{KindWarning, "DMARC record is missing an aggregate reporting address (rua= tag). Reporting is highly recommended."})
	}

	findings = append(findings, dmarcNotes(record)...)
	return newRecordAnalysis(&record, findings, txt.Authentic)
}

// dmarcTag returns the trimmed value of the first tag named key.
func dmarcTag(record, key string) (string, bool) {
	for _, part := range strings.Split(record, ";") {
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		if strings.TrimSpace(k) == key {
			return strings.TrimSpace(v), true
		}
	}
	return "", false
}

// dmarcNotes returns informational findings for records that parse strictly.
// They never change the status.
func dmarcNotes(record string) []Finding {
	rec, err := msgdmarc.Parse(record)
	if err != nil {
		return nil
	}

	var notes []Finding
	if rec.Percent != nil && *rec.Percent < 100 {
		notes = append(notes, Finding{KindInfo, fmt.Sprintf("DMARC policy applies to only %d%% of failing messages (pct=%d).", *rec.Percent, *rec.Percent)})
	}
	if rec.SubdomainPolicy == msgdmarc.PolicyNone && (rec.Policy == msgdmarc.PolicyQuarantine || rec.Policy == msgdmarc.PolicyReject) {
		notes = append(notes, Finding{KindInfo, `DMARC subdomain policy is "none" (sp=none), subdomains are only monitored.`})
	}
	return notes
}
