package main

import (
	"bytes"
	"testing"

	"github.com/mitchellh/colorstring"
	"github.com/stretchr/testify/assert"

	"github.com/foxcpp/mailsec-grade/analyzer"
)

func testResult() *analyzer.AnalysisResult {
	spf := "v=spf1 +all"
	return &analyzer.AnalysisResult{
		Domain:       "example.com",
		DKIMSelector: "s1",
		SPF: analyzer.RecordAnalysis{
			Record: &spf,
			Status: analyzer.StatusInvalid,
			Findings: []analyzer.Finding{
				{Kind: analyzer.KindInfo, Message: "SPF record found."},
				{Kind: analyzer.KindError, Message: `SPF record uses "+all".`},
			},
		},
		DKIM: analyzer.RecordAnalysis{
			Status:   analyzer.StatusInvalid,
			Findings: []analyzer.Finding{{Kind: analyzer.KindError, Message: "No DKIM record found."}},
		},
		DMARC: analyzer.RecordAnalysis{
			Status:    analyzer.StatusWarning,
			Findings:  []analyzer.Finding{{Kind: analyzer.KindWarning, Message: "No DMARC record found."}},
			Authentic: true,
		},
		Vulnerabilities:     []string{"Open SPF policy"},
		RemediationGuidance: []analyzer.RemediationStep{{Title: "Tighten SPF", Description: "Use -all."}},
	}
}

func TestPrintResult(t *testing.T) {
	var buf bytes.Buffer
	p := reportPrinter{
		w:        &buf,
		color:    colorstring.Colorize{Colors: colorstring.DefaultColors, Disable: true},
		protocol: true,
	}
	p.printResult(testResult())

	want := `-- Source forgery protection for example.com
[!] SPF: 	 invalid
    i SPF record found.
    ! SPF record uses "+all".
    Record:
	v=spf1 +all
[!] DKIM (s1): 	 invalid
    ! No DKIM record found.
[ ] DMARC: 	 warning (DNSSEC)
    ~ No DMARC record found.

-- Additional vulnerabilities
  ! Open SPF policy

-- Remediation
  1. Tighten SPF
     Use -all.

`
	assert.Equal(t, want, buf.String())
}

func TestPrintResultNoProtocol(t *testing.T) {
	var buf bytes.Buffer
	p := reportPrinter{
		w:     &buf,
		color: colorstring.Colorize{Colors: colorstring.DefaultColors, Disable: true},
	}
	res := testResult()
	res.Vulnerabilities = nil
	res.RemediationGuidance = nil
	p.printResult(res)

	assert.NotContains(t, buf.String(), "Record:")
	assert.NotContains(t, buf.String(), "Remediation")
	assert.NotContains(t, buf.String(), "vulnerabilities")
}
