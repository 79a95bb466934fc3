package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mitchellh/colorstring"
	log "github.com/sirupsen/logrus"

	"github.com/foxcpp/mailsec-grade/advisor"
	"github.com/foxcpp/mailsec-grade/analyzer"
	"github.com/foxcpp/mailsec-grade/batch"
	"github.com/foxcpp/mailsec-grade/config"
	"github.com/foxcpp/mailsec-grade/dns"
	"github.com/foxcpp/mailsec-grade/server"
)

var (
	selector   = flag.String("selector", "", "DKIM selector to check (default from config, or \"default\")")
	protocol   = flag.Bool("protocol", false, "Display protocol records")
	jsonOut    = flag.Bool("json", false, "Print the result as JSON")
	groups     = flag.String("groups", "", "Comma-separated JSON output groups: short, normal, long (default all)")
	serve      = flag.Bool("serve", false, "Serve the HTTP API instead of analyzing a single domain")
	batchFile  = flag.String("batch", "", "Analyze every domain listed in `FILE` (- for stdin), one JSON object per line")
	workers    = flag.Int("workers", 0, "Concurrent analyses in batch mode (default from config)")
	configPath = flag.String("config", "", "Read configuration from `FILE`")
	noColor    = flag.Bool("no-color", false, "Disable colored output")
	verbose    = flag.Bool("v", false, "Enable debug logging")
)

func usage() {
	fmt.Fprintln(os.Stderr, "Usage:", os.Args[0], "[flags] <domain>")
	fmt.Fprintln(os.Stderr, "      ", os.Args[0], "[flags] -serve")
	fmt.Fprintln(os.Stderr, "      ", os.Args[0], "[flags] -batch FILE")
	flag.PrintDefaults()
}

func newResolver(cfg config.Config) (dns.Resolver, error) {
	if cfg.DNS.Resolver == config.ResolverSystem {
		return dns.SystemResolver{}, nil
	}
	return dns.NewExtResolver(dns.ExtConfig{
		Nameservers: cfg.DNS.Nameservers,
		Timeout:     cfg.DNS.Timeout,
		DNSSEC:      cfg.DNS.DNSSEC,
	})
}

func newAnalyzer(cfg config.Config) (*analyzer.Analyzer, error) {
	resolver, err := newResolver(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.Advisor.URL == "" {
		log.Debug("no advisor configured, skipping vulnerability detection and remediation")
		return analyzer.New(resolver, advisor.None{}, advisor.None{}), nil
	}
	cl := advisor.NewClient(cfg.Advisor.URL, cfg.Advisor.Token, cfg.Advisor.Timeout)
	return analyzer.New(resolver, cl, cl), nil
}

func main() {
	log.SetOutput(os.Stderr)
	flag.Usage = usage
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	log.SetLevel(cfg.Level())
	if *verbose {
		log.SetLevel(log.DebugLevel)
	}

	outGroups, err := analyzer.ParseGroups(*groups)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	modes := 0
	for _, set := range []bool{*serve, *batchFile != "", len(flag.Args()) != 0} {
		if set {
			modes++
		}
	}
	if modes != 1 || len(flag.Args()) > 1 {
		usage()
		os.Exit(2)
	}

	a, err := newAnalyzer(cfg)
	if err != nil {
		log.Errorln(err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch {
	case *serve:
		err = server.New(a, cfg.DefaultSelector).ListenAndServe(ctx, cfg.Listen)
	case *batchFile != "":
		err = runBatch(ctx, a, cfg, outGroups)
	default:
		err = runSingle(ctx, a, cfg, flag.Arg(0), outGroups)
	}
	if err != nil {
		log.Errorln(err)
		stop()
		os.Exit(1)
	}
}

func runSingle(ctx context.Context, a *analyzer.Analyzer, cfg config.Config, domainArg string, outGroups []string) error {
	domain, err := analyzer.NormalizeDomain(domainArg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	sel := *selector
	if sel == "" {
		sel = cfg.DefaultSelector
	}
	sel, err = analyzer.NormalizeSelector(sel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	res, err := a.Analyze(ctx, domain, sel)
	if err != nil {
		return err
	}

	if *jsonOut {
		b, err := analyzer.MarshalGroups(res, outGroups)
		if err != nil {
			return err
		}
		fmt.Println(string(b))
		return nil
	}

	p := reportPrinter{
		w:        os.Stdout,
		color:    colorstring.Colorize{Colors: colorstring.DefaultColors, Disable: *noColor, Reset: true},
		protocol: *protocol,
	}
	p.printResult(res)
	return nil
}

func runBatch(ctx context.Context, a *analyzer.Analyzer, cfg config.Config, outGroups []string) error {
	in := os.Stdin
	if *batchFile != "-" {
		f, err := os.Open(*batchFile)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	targets, err := batch.ReadTargets(in, cfg.DefaultSelector)
	if err != nil {
		return err
	}

	n := cfg.Batch.Workers
	if *workers > 0 {
		n = *workers
	}
	stats, err := batch.Run(ctx, a, targets, os.Stdout, batch.Options{
		Workers:  n,
		Groups:   outGroups,
		Progress: os.Stderr,
	})
	log.WithFields(log.Fields{
		"total":  stats.Total,
		"ok":     stats.OK,
		"failed": stats.Failed,
	}).Info("batch finished")
	return err
}
