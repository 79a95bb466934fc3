package analyzer

import (
	"strings"
)

// AssembleReport formats the findings of all three records and the
// additional vulnerabilities into the plain-text report consumed by the
// remediation generator. The layout is stable: labels and joiners must not
// change between releases.
func AssembleReport(domain, selector string, spf, dkim, dmarc RecordAnalysis, vulnerabilities []string) string {
	var b strings.Builder

	b.WriteString("Domain: " + domain + "\n")
	b.WriteString("\n")
	b.WriteString("SPF Record: " + recordOrNotFound(spf) + "\n")
	b.WriteString("DKIM Record (" + selector + "): " + recordOrNotFound(dkim) + "\n")
	b.WriteString("DMARC Record: " + recordOrNotFound(dmarc) + "\n")
	b.WriteString("\n")
	b.WriteString("Summary of findings:\n")
	for _, r := range []struct {
		label string
		ra    RecordAnalysis
	}{{"SPF", spf}, {"DKIM", dkim}, {"DMARC", dmarc}} {
		for _, f := range r.ra.Findings {
			b.WriteString(r.label + ": " + f.Message + "\n")
		}
	}
	b.WriteString("\n")

	vulns := "None"
	if len(vulnerabilities) > 0 {
		vulns = strings.Join(vulnerabilities, ", ")
	}
	b.WriteString("Additional vulnerabilities detected by AI: " + vulns + "\n")

	return b.String()
}

func recordOrNotFound(ra RecordAnalysis) string {
	if rec, ok := ra.RawRecord(); ok && rec != "" {
		return rec
	}
	return "Not found"
}
