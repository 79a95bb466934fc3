// Package analyzer grades the SPF, DKIM and DMARC records of a domain.
//
// The Evaluate* functions are pure: they turn the result of a TXT lookup
// into a RecordAnalysis. Analyzer fetches the three records concurrently,
// then asks the external collaborators for additional vulnerabilities and
// remediation guidance.
package analyzer

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/foxcpp/mailsec-grade/dns"
)

var (
	metricAnalysis = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailsec_analysis_total",
			Help: "Domain analyses by result: ok, badinput, detectorerror, generatorerror.",
		},
		[]string{
			"result",
		},
	)
	metricRecordStatus = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailsec_record_status_total",
			Help: "Graded records by record type and status.",
		},
		[]string{
			"record",
			"status",
		},
	)
)

// VulnerabilityDetector finds additional problems in the raw records.
type VulnerabilityDetector interface {
	DetectVulnerabilities(ctx context.Context, records Records) ([]string, error)
}

// RemediationGenerator turns a plain-text report into remediation steps.
type RemediationGenerator interface {
	GenerateRemediation(ctx context.Context, report string) ([]RemediationStep, error)
}

// Analyzer runs complete analyses.
type Analyzer struct {
	fetcher   Fetcher
	detector  VulnerabilityDetector
	generator RemediationGenerator
}

// New returns an Analyzer looking up records through resolver.
func New(resolver dns.Resolver, detector VulnerabilityDetector, generator RemediationGenerator) *Analyzer {
	return &Analyzer{
		fetcher:   Fetcher{Resolver: resolver},
		detector:  detector,
		generator: generator,
	}
}

// AnalyzeSPF fetches and grades the SPF record of domain. DNS failures are
// reported as findings.
func (a *Analyzer) AnalyzeSPF(ctx context.Context, domain string) RecordAnalysis {
	txt, err := a.fetcher.Fetch(ctx, SPF, domain, "")
	return EvaluateSPF(txt, err)
}

// AnalyzeDKIM fetches and grades the DKIM key record at selector.
func (a *Analyzer) AnalyzeDKIM(ctx context.Context, domain, selector string) RecordAnalysis {
	txt, err := a.fetcher.Fetch(ctx, DKIM, domain, selector)
	return EvaluateDKIM(txt, err, selector)
}

// AnalyzeDMARC fetches and grades the DMARC record of domain.
func (a *Analyzer) AnalyzeDMARC(ctx context.Context, domain string) RecordAnalysis {
	txt, err := a.fetcher.Fetch(ctx, DMARC, domain, "")
	return EvaluateDMARC(txt, err)
}

// Analyze grades all three records and collects vulnerabilities and
// remediation guidance. It returns either a complete result or an error,
// never both. DNS failures do not fail the analysis, collaborator failures
// do.
func (a *Analyzer) Analyze(ctx context.Context, domain, selector string) (*AnalysisResult, error) {
	if domain == "" || selector == "" {
		metricAnalysis.WithLabelValues("badinput").Inc()
		return nil, ErrMissingInput
	}

	start := time.Now()
	res := &AnalysisResult{
		Domain:       domain,
		DKIMSelector: selector,
	}

	var g errgroup.Group
	g.Go(func() error { res.SPF = a.AnalyzeSPF(ctx, domain); return nil })
	g.Go(func() error { res.DKIM = a.AnalyzeDKIM(ctx, domain, selector); return nil })
	g.Go(func() error { res.DMARC = a.AnalyzeDMARC(ctx, domain); return nil })
	_ = g.Wait()

	for _, r := range []struct {
		t  RecordType
		ra RecordAnalysis
	}{{SPF, res.SPF}, {DKIM, res.DKIM}, {DMARC, res.DMARC}} {
		metricRecordStatus.WithLabelValues(r.t.String(), string(r.ra.Status)).Inc()
	}

	vulns, err := a.detector.DetectVulnerabilities(ctx, Records{
		SPF:   res.SPF.Record,
		DKIM:  res.DKIM.Record,
		DMARC: res.DMARC.Record,
	})
	if err != nil {
		metricAnalysis.WithLabelValues("detectorerror").Inc()
		return nil, errors.Wrap(err, "detect vulnerabilities")
	}
	if vulns == nil {
		vulns = []string{}
	}
	res.Vulnerabilities = vulns

	report := AssembleReport(domain, selector, res.SPF, res.DKIM, res.DMARC, vulns)
	steps, err := a.generator.GenerateRemediation(ctx, report)
	if err != nil {
		metricAnalysis.WithLabelValues("generatorerror").Inc()
		return nil, errors.Wrap(err, "generate remediation guidance")
	}
	if steps == nil {
		steps = []RemediationStep{}
	}
	res.RemediationGuidance = steps

	metricAnalysis.WithLabelValues("ok").Inc()
	log.WithFields(log.Fields{
		"domain":          domain,
		"selector":        selector,
		"spf":             res.SPF.Status,
		"dkim":            res.DKIM.Status,
		"dmarc":           res.DMARC.Status,
		"vulnerabilities": len(vulns),
		"duration":        time.Since(start),
	}).Info("domain analyzed")

	return res, nil
}
