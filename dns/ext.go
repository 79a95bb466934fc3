package dns

import (
	"context"
	"net"
	"strings"
	"time"

	mdns "github.com/miekg/dns"
	"github.com/pkg/errors"
)

// ExtConfig configures an ExtResolver.
type ExtConfig struct {
	// Nameservers to query, as host or host:port. Empty means the servers
	// listed in /etc/resolv.conf.
	Nameservers []string

	// Timeout for a single exchange. Default is 5 seconds.
	Timeout time.Duration

	// DNSSEC sets the DO bit so that validating upstreams return signatures.
	// The AD bit is requested regardless.
	DNSSEC bool
}

// ExtResolver queries recursive nameservers directly and exposes the AD bit
// of their answers.
//
// Each lookup is a single exchange. Nameservers are tried in order only when
// the previous one could not be reached; an answer from any of them, including
// an error rcode, is final.
type ExtResolver struct {
	cl      *mdns.Client
	tcp     *mdns.Client
	servers []string
	dnssec  bool
}

var _ Resolver = (*ExtResolver)(nil)

// NewExtResolver creates an ExtResolver, reading /etc/resolv.conf if cfg does
// not list any nameservers.
func NewExtResolver(cfg ExtConfig) (*ExtResolver, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}

	servers := cfg.Nameservers
	if len(servers) == 0 {
		conf, err := mdns.ClientConfigFromFile("/etc/resolv.conf")
		if err != nil {
			return nil, errors.Wrap(err, "dns: read resolv.conf")
		}
		for _, s := range conf.Servers {
			servers = append(servers, net.JoinHostPort(s, conf.Port))
		}
	}
	if len(servers) == 0 {
		return nil, errors.New("dns: no nameservers configured")
	}

	normalized := make([]string, 0, len(servers))
	for _, s := range servers {
		if _, _, err := net.SplitHostPort(s); err != nil {
			s = net.JoinHostPort(strings.Trim(s, "[]"), "53")
		}
		normalized = append(normalized, s)
	}

	return &ExtResolver{
		cl:      &mdns.Client{Net: "udp", Timeout: cfg.Timeout},
		tcp:     &mdns.Client{Net: "tcp", Timeout: cfg.Timeout},
		servers: normalized,
		dnssec:  cfg.DNSSEC,
	}, nil
}

// Servers returns the nameservers in the order they are tried.
func (r *ExtResolver) Servers() []string {
	return append([]string(nil), r.servers...)
}

func (r *ExtResolver) exchange(ctx context.Context, m *mdns.Msg, server string) (*mdns.Msg, error) {
	resp, _, err := r.cl.ExchangeContext(ctx, m, server)
	if err != nil {
		return nil, err
	}
	// Long DKIM keys routinely overflow a UDP answer.
	if resp.Truncated {
		resp, _, err = r.tcp.ExchangeContext(ctx, m, server)
		if err != nil {
			return nil, err
		}
	}
	return resp, nil
}

func (r *ExtResolver) AuthLookupTXT(ctx context.Context, name string) (ad bool, txts [][]string, err error) {
	start := time.Now()
	defer func() { observe("ext", name, ad, txts, err, start) }()

	m := new(mdns.Msg)
	m.SetQuestion(mdns.Fqdn(name), mdns.TypeTXT)
	m.RecursionDesired = true
	m.AuthenticatedData = true
	m.SetEdns0(4096, r.dnssec)

	var resp *mdns.Msg
	var lastErr error
	for _, server := range r.servers {
		if cerr := ctx.Err(); cerr != nil {
			return false, nil, cerr
		}
		resp, lastErr = r.exchange(ctx, m, server)
		if lastErr == nil {
			break
		}
	}
	if resp == nil {
		return false, nil, errors.Wrapf(lastErr, "lookup txt %s", name)
	}

	switch resp.Rcode {
	case mdns.RcodeSuccess:
	case mdns.RcodeNameError:
		return resp.AuthenticatedData, nil, ErrNxDomain
	case mdns.RcodeServerFailure:
		return false, nil, errors.Wrapf(ErrServFail, "lookup txt %s", name)
	case mdns.RcodeRefused:
		return false, nil, errors.Wrapf(ErrRefused, "lookup txt %s", name)
	default:
		return false, nil, errors.Errorf("lookup txt %s: unexpected rcode %s", name, mdns.RcodeToString[resp.Rcode])
	}

	for _, rr := range resp.Answer {
		if txt, ok := rr.(*mdns.TXT); ok {
			txts = append(txts, txt.Txt)
		}
	}
	if len(txts) == 0 {
		return resp.AuthenticatedData, nil, ErrNoData
	}
	return resp.AuthenticatedData, txts, nil
}
