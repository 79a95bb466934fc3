package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/mitchellh/colorstring"

	"github.com/foxcpp/mailsec-grade/analyzer"
)

type reportPrinter struct {
	w        io.Writer
	color    colorstring.Colorize
	protocol bool
}

func (p reportPrinter) println(s string) {
	fmt.Fprintln(p.w, p.color.Color(s))
}

func statusStyle(s analyzer.Status) (color, mark string) {
	switch s {
	case analyzer.StatusValid:
		return "[green]", "+"
	case analyzer.StatusWarning:
		return "[yellow]", " "
	case analyzer.StatusInvalid:
		return "[red]", "!"
	default:
		return "[dark_gray]", " "
	}
}

func findingStyle(k analyzer.Kind) (color, mark string) {
	switch k {
	case analyzer.KindValid:
		return "[green]", "+"
	case analyzer.KindWarning:
		return "[yellow]", "~"
	case analyzer.KindError, analyzer.KindInvalid:
		return "[red]", "!"
	default:
		return "[dark_gray]", "i"
	}
}

func (p reportPrinter) printStatus(name string, ra analyzer.RecordAnalysis) {
	color, mark := statusStyle(ra.Status)
	desc := string(ra.Status)
	if ra.Authentic {
		desc += " (DNSSEC)"
	}
	p.println(fmt.Sprintf("[%s%s[reset]] %s[bold]%s:[reset] \t %s", color, mark, color, name, desc))

	for _, f := range ra.Findings {
		fcolor, fmark := findingStyle(f.Kind)
		p.println(fmt.Sprintf("    %s%s[reset] %s", fcolor, fmark, f.Message))
	}

	record, ok := ra.RawRecord()
	if p.protocol && ok && record != "" {
		p.println("    [blue]Record:[reset]")
		scanner := bufio.NewScanner(strings.NewReader(record))
		for scanner.Scan() {
			fmt.Fprintf(p.w, "\t%s\n", scanner.Text())
		}
	}
}

func (p reportPrinter) printResult(res *analyzer.AnalysisResult) {
	p.println(fmt.Sprintf("[bold]-- Source forgery protection for %s[reset]", res.Domain))
	p.printStatus("SPF", res.SPF)
	p.printStatus(fmt.Sprintf("DKIM (%s)", res.DKIMSelector), res.DKIM)
	p.printStatus("DMARC", res.DMARC)
	fmt.Fprintln(p.w)

	if len(res.Vulnerabilities) != 0 {
		p.println("[bold]-- Additional vulnerabilities[reset]")
		for _, v := range res.Vulnerabilities {
			p.println("  [red]![reset] " + v)
		}
		fmt.Fprintln(p.w)
	}

	if len(res.RemediationGuidance) != 0 {
		p.println("[bold]-- Remediation[reset]")
		for i, step := range res.RemediationGuidance {
			p.println(fmt.Sprintf("  [bold]%d. %s[reset]", i+1, step.Title))
			for _, l := range strings.Split(step.Description, "\n") {
				fmt.Fprintf(p.w, "     %s\n", l)
			}
		}
		fmt.Fprintln(p.w)
	}
}
