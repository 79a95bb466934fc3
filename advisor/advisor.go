// Package advisor implements the clients of the external vulnerability
// detection and remediation guidance services.
package advisor

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/foxcpp/mailsec-grade/analyzer"
)

// RemediationVersion is the version of the remediation response contract
// this client understands: an ordered list of titled steps.
const RemediationVersion = "2"

// ErrUnsupportedVersion is returned when the remediation service answers
// with a contract version other than RemediationVersion.
var ErrUnsupportedVersion = errors.New("advisor: unsupported remediation contract version")

type vulnerabilityRequest struct {
	SPFRecord   *string `json:"spfRecord"`
	DKIMRecord  *string `json:"dkimRecord"`
	DMARCRecord *string `json:"dmarcRecord"`
}

type vulnerabilityResponse struct {
	Vulnerabilities []string `json:"vulnerabilities"`
}

type remediationRequest struct {
	VulnerabilityReport string `json:"vulnerabilityReport"`
}

type remediationResponse struct {
	Version string                     `json:"version"`
	Steps   []analyzer.RemediationStep `json:"steps"`
}

// Client talks to an advisor service over HTTP with JSON bodies.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

var (
	_ analyzer.VulnerabilityDetector = (*Client)(nil)
	_ analyzer.RemediationGenerator  = (*Client)(nil)
)

// NewClient returns a client for the service at baseURL. If token is not
// empty it is sent as a bearer token.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = time.Minute
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		http: &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return errors.New("advisor: HTTP redirects are forbidden")
			},
			Timeout: timeout,
		},
	}
}

// DetectVulnerabilities asks the service for problems in the raw records.
func (c *Client) DetectVulnerabilities(ctx context.Context, records analyzer.Records) ([]string, error) {
	var resp vulnerabilityResponse
	err := c.post(ctx, "/v1/vulnerabilities", vulnerabilityRequest{
		SPFRecord:   records.SPF,
		DKIMRecord:  records.DKIM,
		DMARCRecord: records.DMARC,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Vulnerabilities, nil
}

// GenerateRemediation asks the service for remediation steps for report.
func (c *Client) GenerateRemediation(ctx context.Context, report string) ([]analyzer.RemediationStep, error) {
	var resp remediationResponse
	if err := c.post(ctx, "/v"+RemediationVersion+"/remediation", remediationRequest{VulnerabilityReport: report}, &resp); err != nil {
		return nil, err
	}
	if resp.Version != RemediationVersion {
		return nil, errors.Wrapf(ErrUnsupportedVersion, "got %q, want %q", resp.Version, RemediationVersion)
	}
	return resp.Steps, nil
}

func (c *Client) post(ctx context.Context, path string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return errors.Wrap(err, "advisor: encode request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "advisor: new request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "advisor: POST %s", path)
	}
	defer resp.Body.Close()

	log.WithFields(log.Fields{
		"path":     path,
		"status":   resp.StatusCode,
		"duration": time.Since(start),
	}).Debug("advisor call")

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.Errorf("advisor: POST %s: HTTP %s: %s", path, resp.Status, strings.TrimSpace(string(msg)))
	}

	contentType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil {
		return errors.Wrap(err, "advisor: response content type")
	}
	if contentType != "application/json" {
		return errors.Errorf("advisor: unexpected content type %q", contentType)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "advisor: decode %s response", path)
	}
	return nil
}

// None is used when no advisor service is configured: it detects nothing
// and offers no guidance.
type None struct{}

var (
	_ analyzer.VulnerabilityDetector = None{}
	_ analyzer.RemediationGenerator  = None{}
)

func (None) DetectVulnerabilities(ctx context.Context, records analyzer.Records) ([]string, error) {
	return nil, nil
}

func (None) GenerateRemediation(ctx context.Context, report string) ([]analyzer.RemediationStep, error) {
	return nil, nil
}
