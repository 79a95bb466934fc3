// Package batch analyzes many domains concurrently and writes one JSON
// object per line.
package batch

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	log "github.com/sirupsen/logrus"

	"github.com/foxcpp/mailsec-grade/analyzer"
)

const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Analyzer runs one complete analysis.
type Analyzer interface {
	Analyze(ctx context.Context, domain, selector string) (*analyzer.AnalysisResult, error)
}

// Target is one input line: a domain and the DKIM selector to check.
type Target struct {
	Domain   string
	Selector string
}

// Line is a single line of output.
type Line struct {
	Domain       string                   `json:"domain" groups:"short,normal,long"`
	DKIMSelector string                   `json:"dkimSelector" groups:"short,normal,long"`
	Status       string                   `json:"status" groups:"short,normal,long"`
	Error        string                   `json:"error" groups:"short,normal,long"`
	Duration     float64                  `json:"duration" groups:"long"`
	Result       *analyzer.AnalysisResult `json:"result" groups:"short,normal,long"`
}

// Options controls a batch run.
type Options struct {
	Workers int
	Groups  []string

	// Progress receives the progress bar. Nil disables it.
	Progress io.Writer
}

// Stats summarizes a finished run.
type Stats struct {
	Total  int
	OK     int
	Failed int
}

// ReadTargets reads "domain[,selector]" lines. Blank lines and lines
// starting with # are skipped. Lines without a selector use
// defaultSelector.
func ReadTargets(r io.Reader, defaultSelector string) ([]Target, error) {
	var targets []Target
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		domain, selector := parseLine(line)
		if selector == "" {
			selector = defaultSelector
		}
		targets = append(targets, Target{Domain: domain, Selector: selector})
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "read domains")
	}
	return targets, nil
}

func parseLine(line string) (string, string) {
	r := csv.NewReader(strings.NewReader(line))
	s, err := r.Read()
	if err != nil || len(s) == 0 {
		return line, ""
	}
	if len(s) == 1 {
		return strings.TrimSpace(s[0]), ""
	}
	return strings.TrimSpace(s[0]), strings.TrimSpace(s[1])
}

// Run analyzes all targets with opts.Workers goroutines and writes results
// to out as they complete. Per-domain failures are written as error lines
// and do not stop the run.
func Run(ctx context.Context, a Analyzer, targets []Target, out io.Writer, opts Options) (Stats, error) {
	if opts.Workers < 1 {
		return Stats{}, errors.Errorf("batch: workers must be positive, got %d", opts.Workers)
	}
	if len(targets) == 0 {
		return Stats{}, nil
	}

	progress := opts.Progress
	if progress == nil {
		progress = io.Discard
	}
	bar := progressbar.NewOptions(len(targets),
		progressbar.OptionSetWriter(progress),
		progressbar.OptionSetDescription("Analyzing domains"),
		progressbar.OptionShowCount(),
	)

	inChan := make(chan Target)
	outChan := make(chan Line, opts.Workers)

	go func() {
		defer close(inChan)
		for _, t := range targets {
			select {
			case inChan <- t:
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	wg.Add(opts.Workers)
	for i := 0; i < opts.Workers; i++ {
		go func() {
			defer wg.Done()
			for t := range inChan {
				outChan <- analyzeOne(ctx, a, t)
			}
		}()
	}
	go func() {
		wg.Wait()
		close(outChan)
	}()

	var (
		stats    Stats
		writeErr error
	)
	w := bufio.NewWriter(out)
	for line := range outChan {
		stats.Total++
		if line.Status == StatusOK {
			stats.OK++
		} else {
			stats.Failed++
		}
		if err := bar.Add(1); err != nil {
			log.WithError(err).Debug("progress bar")
		}
		if writeErr != nil {
			continue
		}
		writeErr = writeLine(w, line, opts.Groups)
	}
	_ = bar.Finish()

	if writeErr != nil {
		return stats, writeErr
	}
	if err := w.Flush(); err != nil {
		return stats, errors.Wrap(err, "batch: write output")
	}
	return stats, ctx.Err()
}

func analyzeOne(ctx context.Context, a Analyzer, t Target) Line {
	line := Line{Domain: t.Domain, DKIMSelector: t.Selector}
	start := time.Now()

	domain, err := analyzer.NormalizeDomain(t.Domain)
	if err == nil {
		line.Domain = domain
		line.DKIMSelector, err = analyzer.NormalizeSelector(t.Selector)
	}
	if err == nil {
		line.Result, err = a.Analyze(ctx, line.Domain, line.DKIMSelector)
	}
	if err != nil {
		log.WithField("domain", t.Domain).WithError(err).Warn("batch analysis failed")
		line.Status = StatusError
		line.Error = err.Error()
		line.Duration = time.Since(start).Seconds()
		return line
	}
	line.Status = StatusOK
	line.Duration = time.Since(start).Seconds()
	return line
}

func writeLine(w io.Writer, line Line, groups []string) error {
	data, err := analyzer.Filter(line, groups, "")
	if err != nil {
		return errors.Wrap(err, "batch: filter output")
	}
	b, err := json.Marshal(data)
	if err != nil {
		return errors.Wrap(err, "batch: encode output")
	}
	b = append(b, '\n')
	if _, err := w.Write(b); err != nil {
		return errors.Wrap(err, "batch: write output")
	}
	return nil
}
