// Package config holds the runtime configuration of mailsec-grade.
//
// Settings are read from an optional file in sconf format, then overridden
// from the environment. Anything left unset gets a default.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mjl-/sconf"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	ResolverExt    = "ext"
	ResolverSystem = "system"
)

type Config struct {
	LogLevel        string `sconf:"optional" sconf-doc:"Log level: error, warn, info, debug or trace. Default: info."`
	Listen          string `sconf:"optional" sconf-doc:"Address the HTTP API listens on in serve mode. Default: :8080."`
	DefaultSelector string `sconf:"optional" sconf-doc:"DKIM selector used when a request does not name one. Default: default."`

	DNS struct {
		Resolver    string        `sconf:"optional" sconf-doc:"Resolver implementation: ext queries Nameservers directly, system uses the system stub resolver. Default: ext."`
		Nameservers []string      `sconf:"optional" sconf-doc:"Nameservers for the ext resolver, host or host:port. Default: from /etc/resolv.conf."`
		Timeout     time.Duration `sconf:"optional" sconf-doc:"Timeout for a single DNS exchange. Default: 5s."`
		DNSSEC      bool          `sconf:"optional" sconf-doc:"Set the DO bit on queries so validating resolvers return DNSSEC status."`
	} `sconf:"optional" sconf-doc:"DNS resolution settings."`

	Advisor struct {
		URL     string        `sconf:"optional" sconf-doc:"Base URL of the vulnerability detection and remediation service. If empty, no vulnerabilities are detected and no guidance is generated."`
		Token   string        `sconf:"optional" sconf-doc:"Bearer token sent to the advisor service."`
		Timeout time.Duration `sconf:"optional" sconf-doc:"Timeout for a single advisor request. Default: 60s."`
	} `sconf:"optional" sconf-doc:"External advisor service."`

	Batch struct {
		Workers int `sconf:"optional" sconf-doc:"Number of domains analyzed concurrently in batch mode. Default: 4."`
	} `sconf:"optional" sconf-doc:"Batch mode settings."`
}

// Default returns a configuration with every default applied.
func Default() Config {
	var c Config
	c.applyDefaults()
	return c
}

// Load reads the file at path if it is not empty, applies environment
// overrides and defaults and validates the result.
func Load(path string) (Config, error) {
	var c Config
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return c, errors.Wrap(err, "open config")
		}
		defer f.Close()
		if err := sconf.Parse(f, &c); err != nil {
			return c, errors.Wrapf(err, "parse config %s", path)
		}
	}
	c.applyEnv()
	c.applyDefaults()
	return c, c.Validate()
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		var out int
		if _, err := fmt.Sscanf(v, "%d", &out); err == nil {
			return out
		}
	}
	return def
}

func (c *Config) applyEnv() {
	c.Listen = getenv("MAILSEC_LISTEN", c.Listen)
	c.LogLevel = getenv("MAILSEC_LOG_LEVEL", c.LogLevel)
	c.Advisor.URL = getenv("MAILSEC_ADVISOR_URL", c.Advisor.URL)
	c.Advisor.Token = getenv("MAILSEC_ADVISOR_TOKEN", c.Advisor.Token)
	c.Batch.Workers = getenvInt("MAILSEC_WORKERS", c.Batch.Workers)
	if v := os.Getenv("MAILSEC_NAMESERVERS"); v != "" {
		c.DNS.Nameservers = nil
		for _, ns := range strings.Split(v, ",") {
			if ns = strings.TrimSpace(ns); ns != "" {
				c.DNS.Nameservers = append(c.DNS.Nameservers, ns)
			}
		}
	}
}

func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Listen == "" {
		c.Listen = ":8080"
	}
	if c.DefaultSelector == "" {
		c.DefaultSelector = "default"
	}
	if c.DNS.Resolver == "" {
		c.DNS.Resolver = ResolverExt
	}
	if c.DNS.Timeout == 0 {
		c.DNS.Timeout = 5 * time.Second
	}
	if c.Advisor.Timeout == 0 {
		c.Advisor.Timeout = time.Minute
	}
	if c.Batch.Workers == 0 {
		c.Batch.Workers = 4
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrap(err, "config: LogLevel")
	}
	switch c.DNS.Resolver {
	case ResolverExt, ResolverSystem:
	default:
		return errors.Errorf("config: unknown DNS resolver %q, must be %q or %q", c.DNS.Resolver, ResolverExt, ResolverSystem)
	}
	if c.DNS.Timeout < 0 {
		return errors.New("config: DNS timeout must not be negative")
	}
	if c.Advisor.Timeout < 0 {
		return errors.New("config: advisor timeout must not be negative")
	}
	if c.Batch.Workers <= 0 {
		return errors.Errorf("config: batch workers must be positive, got %d", c.Batch.Workers)
	}
	return nil
}

// Level returns the parsed log level. Validate must have succeeded.
func (c Config) Level() log.Level {
	lvl, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}
