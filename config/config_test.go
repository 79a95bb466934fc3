package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mailsec.conf")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaults(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), c)
	assert.Equal(t, ":8080", c.Listen)
	assert.Equal(t, "default", c.DefaultSelector)
	assert.Equal(t, ResolverExt, c.DNS.Resolver)
	assert.Equal(t, 5*time.Second, c.DNS.Timeout)
	assert.Equal(t, time.Minute, c.Advisor.Timeout)
	assert.Equal(t, 4, c.Batch.Workers)
	assert.Equal(t, log.InfoLevel, c.Level())
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `LogLevel: debug
Listen: 127.0.0.1:9000
DNS:
	Resolver: system
	Nameservers:
		- 1.1.1.1
		- 9.9.9.9:53
	Timeout: 2s
	DNSSEC: true
Advisor:
	URL: https://advisor.example
Batch:
	Workers: 16
`)

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, log.DebugLevel, c.Level())
	assert.Equal(t, "127.0.0.1:9000", c.Listen)
	assert.Equal(t, ResolverSystem, c.DNS.Resolver)
	assert.Equal(t, []string{"1.1.1.1", "9.9.9.9:53"}, c.DNS.Nameservers)
	assert.Equal(t, 2*time.Second, c.DNS.Timeout)
	assert.True(t, c.DNS.DNSSEC)
	assert.Equal(t, "https://advisor.example", c.Advisor.URL)
	assert.Equal(t, time.Minute, c.Advisor.Timeout)
	assert.Equal(t, 16, c.Batch.Workers)
}

func TestEnvOverrides(t *testing.T) {
	path := writeConfig(t, "Listen: :9000\n")
	t.Setenv("MAILSEC_LISTEN", ":9100")
	t.Setenv("MAILSEC_LOG_LEVEL", "warn")
	t.Setenv("MAILSEC_NAMESERVERS", "1.1.1.1, 8.8.8.8,")
	t.Setenv("MAILSEC_ADVISOR_URL", "http://localhost:5000")
	t.Setenv("MAILSEC_ADVISOR_TOKEN", "tok")
	t.Setenv("MAILSEC_WORKERS", "8")

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9100", c.Listen)
	assert.Equal(t, log.WarnLevel, c.Level())
	assert.Equal(t, []string{"1.1.1.1", "8.8.8.8"}, c.DNS.Nameservers)
	assert.Equal(t, "http://localhost:5000", c.Advisor.URL)
	assert.Equal(t, "tok", c.Advisor.Token)
	assert.Equal(t, 8, c.Batch.Workers)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.conf"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "NoSuchField: 1\n"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "DNS:\n\tResolver: doh\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown DNS resolver")

	_, err = Load(writeConfig(t, "Batch:\n\tWorkers: -1\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "workers must be positive")

	_, err = Load(writeConfig(t, "LogLevel: loud\n"))
	assert.Error(t, err)
}
