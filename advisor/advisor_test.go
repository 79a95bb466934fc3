package advisor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foxcpp/mailsec-grade/analyzer"
)

func newServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", "secret", 5*time.Second)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(v)
}

func TestDetectVulnerabilities(t *testing.T) {
	var got map[string]interface{}
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/vulnerabilities", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, map[string]interface{}{"vulnerabilities": []string{"SPF allows too many senders"}})
	})

	spf := "v=spf1 +all"
	vulns, err := c.DetectVulnerabilities(context.Background(), analyzer.Records{SPF: &spf})
	require.NoError(t, err)
	assert.Equal(t, []string{"SPF allows too many senders"}, vulns)

	assert.Equal(t, "v=spf1 +all", got["spfRecord"])
	assert.Contains(t, got, "dkimRecord")
	assert.Nil(t, got["dkimRecord"])
	assert.Nil(t, got["dmarcRecord"])
}

func TestGenerateRemediation(t *testing.T) {
	var report string
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/remediation", r.URL.Path)
		var req struct {
			VulnerabilityReport string `json:"vulnerabilityReport"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		report = req.VulnerabilityReport
		writeJSON(w, map[string]interface{}{
			"version": "2",
			"steps": []map[string]string{
				{"title": "Tighten SPF", "description": "Replace +all with -all."},
				{"title": "Add DMARC", "description": "Publish p=quarantine."},
			},
		})
	})

	steps, err := c.GenerateRemediation(context.Background(), "Domain: example.com\n")
	require.NoError(t, err)
	assert.Equal(t, "Domain: example.com\n", report)
	assert.Equal(t, []analyzer.RemediationStep{
		{Title: "Tighten SPF", Description: "Replace +all with -all."},
		{Title: "Add DMARC", Description: "Publish p=quarantine."},
	}, steps)
}

func TestGenerateRemediationVersionMismatch(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{"remediationGuidance": "Just fix it."})
	})

	_, err := c.GenerateRemediation(context.Background(), "report")
	assert.ErrorIs(t, err, ErrUnsupportedVersion)
}

func TestClientErrors(t *testing.T) {
	t.Run("status", func(t *testing.T) {
		c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "quota exceeded", http.StatusTooManyRequests)
		})
		_, err := c.DetectVulnerabilities(context.Background(), analyzer.Records{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "429")
		assert.Contains(t, err.Error(), "quota exceeded")
	})

	t.Run("content type", func(t *testing.T) {
		c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/plain")
			_, _ = w.Write([]byte("{}"))
		})
		_, err := c.DetectVulnerabilities(context.Background(), analyzer.Records{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "content type")
	})

	t.Run("redirect", func(t *testing.T) {
		c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/elsewhere", http.StatusFound)
		})
		_, err := c.DetectVulnerabilities(context.Background(), analyzer.Records{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "redirects are forbidden")
	})

	t.Run("bad json", func(t *testing.T) {
		c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte("{"))
		})
		_, err := c.GenerateRemediation(context.Background(), "report")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "decode")
	})
}

func TestNone(t *testing.T) {
	vulns, err := None{}.DetectVulnerabilities(context.Background(), analyzer.Records{})
	assert.NoError(t, err)
	assert.Empty(t, vulns)

	steps, err := None{}.GenerateRemediation(context.Background(), "report")
	assert.NoError(t, err)
	assert.Empty(t, steps)
}
