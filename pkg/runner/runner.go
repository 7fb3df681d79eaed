package runner

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/sync/errgroup"

	"github.com/lcalzada-xor/domtaint/pkg/config"
	"github.com/lcalzada-xor/domtaint/pkg/logger"
	"github.com/lcalzada-xor/domtaint/pkg/models"
	"github.com/lcalzada-xor/domtaint/pkg/output"
)

// Scanner analyzes one document or script location.
type Scanner interface {
	Scan(ctx context.Context, target string) models.Report
}

// Stats summarizes one run.
type Stats struct {
	Targets    int
	Vulnerable int
	Findings   int
	Failed     int
}

// Runner handles the execution of the analysis over many targets
type Runner struct {
	options *Options
	scanner Scanner
	log     *logger.Logger
}

// NewRunner creates a new Runner instance
func NewRunner(options *Options, scanner Scanner, log *logger.Logger) *Runner {
	if log == nil {
		log = logger.NewNop()
	}
	if options.Concurrency <= 0 {
		options.Concurrency = config.DefaultConcurrency
	}
	return &Runner{options: options, scanner: scanner, log: log}
}

// Run analyzes every target with at most Concurrency documents in flight.
// Reports come back in input order. Targets not started before ctx is
// cancelled carry the context error, which is also returned.
func (r *Runner) Run(ctx context.Context, targets []string) ([]models.Report, error) {
	reports := make([]models.Report, len(targets))

	g := new(errgroup.Group)
	g.SetLimit(r.options.Concurrency)
	for i, target := range targets {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				reports[i] = models.Report{Target: target, Error: err.Error()}
				return err
			}
			r.log.V("[%d] Analyzing: %s", i+1, target)
			reports[i] = r.scanner.Scan(ctx, target)
			if reports[i].Error != "" {
				r.log.Error("Error analyzing %s: %s", target, reports[i].Error)
			}
			return nil
		})
	}
	return reports, g.Wait()
}

// Execute runs the analysis, writes the formatted reports to stdout and a
// summary to stderr.
func (r *Runner) Execute(ctx context.Context, targets []string) (Stats, error) {
	if !r.options.Silent {
		r.banner()
	}

	reports, runErr := r.Run(ctx, targets)
	stats := Summarize(reports)

	if out := output.FormatAll(reports, r.options.Output); out != "" {
		if !strings.HasSuffix(out, "\n") {
			out += "\n"
		}
		if _, err := io.WriteString(r.options.Stdout, out); err != nil {
			return stats, fmt.Errorf("write report: %w", err)
		}
	}

	if !r.options.Silent {
		fmt.Fprintln(r.options.Stderr, "")
		fmt.Fprintf(r.options.Stderr, "[*] Analysis complete: %d targets processed, %d vulnerable, %d findings, %d failed\n",
			stats.Targets, stats.Vulnerable, stats.Findings, stats.Failed)
	}
	return stats, runErr
}

// Summarize counts outcomes over a set of reports.
func Summarize(reports []models.Report) Stats {
	stats := Stats{Targets: len(reports)}
	for _, rep := range reports {
		if rep.Error != "" {
			stats.Failed++
		}
		if rep.Vulnerable() {
			stats.Vulnerable++
		}
		stats.Findings += len(rep.Findings)
	}
	return stats
}

// ReadTargets reads one target per line, skipping blank lines and lines
// starting with '#'.
func ReadTargets(in io.Reader) ([]string, error) {
	var targets []string
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		targets = append(targets, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read targets: %w", err)
	}
	return targets, nil
}

func (r *Runner) banner() {
	name := lipgloss.NewStyle().Bold(true)
	meta := lipgloss.NewStyle()
	if r.options.Output.Color {
		name = name.Foreground(lipgloss.AdaptiveColor{Light: "#5b2a86", Dark: "#af87ff"})
		meta = meta.Foreground(lipgloss.AdaptiveColor{Light: "#6d5fa6", Dark: "#b7a9ff"})
	}

	w := r.options.Stderr
	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "   %s  %s | %s\n", name.Render("domtaint"), meta.Render(config.Version), meta.Render(config.Author))
	fmt.Fprintln(w, "")
	if r.options.Verbosity >= 1 {
		fmt.Fprintf(w, "[*] Concurrency: %d workers\n", r.options.Concurrency)
		fmt.Fprintf(w, "[*] Output: %s\n", r.options.Output.Format)
		if r.options.Verbosity >= 2 {
			fmt.Fprintf(w, "[*] Verbose level: %d (very verbose)\n", r.options.Verbosity)
		}
		fmt.Fprintln(w, "")
	}
}
