package analyzer

// Kind is the severity of a single finding.
type Kind string

const (
	KindValid   Kind = "valid"
	KindWarning Kind = "warning"
	KindError   Kind = "error"
	KindInvalid Kind = "invalid"
	KindInfo    Kind = "info"
)

// Status is the overall grade of a record, derived from its findings.
type Status string

const (
	StatusValid   Status = "valid"
	StatusInvalid Status = "invalid"
	StatusWarning Status = "warning"
	StatusInfo    Status = "info"
)

// Finding is one observation made while analyzing a record.
type Finding struct {
	Kind    Kind   `json:"type" groups:"normal,long"`
	Message string `json:"message" groups:"normal,long"`
}

// RecordAnalysis is the outcome of analyzing one record type.
//
// Status is always DetermineStatus(Findings); use newRecordAnalysis to build
// one.
type RecordAnalysis struct {
	// Record is nil when no qualifying record was found. When several
	// qualify they are joined, see the per-type analyzers.
	Record   *string   `json:"record" groups:"normal,long"`
	Status   Status    `json:"status" groups:"short,normal,long"`
	Findings []Finding `json:"findings" groups:"normal,long"`

	// Authentic is set if the DNS answer was DNSSEC-authenticated.
	Authentic bool `json:"dnssec" groups:"long" since:"1.1.0"`
}

func newRecordAnalysis(record *string, findings []Finding, authentic bool) RecordAnalysis {
	return RecordAnalysis{
		Record:    record,
		Status:    DetermineStatus(findings),
		Findings:  findings,
		Authentic: authentic,
	}
}

// RawRecord returns the record text and whether one was found.
func (ra RecordAnalysis) RawRecord() (string, bool) {
	if ra.Record == nil {
		return "", false
	}
	return *ra.Record, true
}

// RemediationStep is one step of remediation guidance.
type RemediationStep struct {
	Title       string `json:"title" groups:"long"`
	Description string `json:"description" groups:"long"`
}

// AnalysisResult is the complete grading of one domain and DKIM selector.
type AnalysisResult struct {
	Domain              string            `json:"domain" groups:"short,normal,long"`
	DKIMSelector        string            `json:"dkimSelector" groups:"short,normal,long"`
	SPF                 RecordAnalysis    `json:"spf" groups:"short,normal,long"`
	DKIM                RecordAnalysis    `json:"dkim" groups:"short,normal,long"`
	DMARC               RecordAnalysis    `json:"dmarc" groups:"short,normal,long"`
	Vulnerabilities     []string          `json:"vulnerabilities" groups:"long"`
	RemediationGuidance []RemediationStep `json:"remediationGuidance" groups:"long"`
}

// Records holds the raw records handed to the vulnerability detector. A nil
// field means the record was not found.
type Records struct {
	SPF   *string `json:"spfRecord"`
	DKIM  *string `json:"dkimRecord"`
	DMARC *string `json:"dmarcRecord"`
}
