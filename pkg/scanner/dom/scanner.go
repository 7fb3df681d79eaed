package dom

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/lcalzada-xor/domtaint/pkg/config"
	"github.com/lcalzada-xor/domtaint/pkg/logger"
	"github.com/lcalzada-xor/domtaint/pkg/models"
	"github.com/lcalzada-xor/domtaint/pkg/scanner/dom/document"
	"github.com/lcalzada-xor/domtaint/pkg/scanner/dom/taint"
)

// ErrNoScripts is reported when a document carries no script to analyze.
var ErrNoScripts = errors.New("no scripts to analyze")

// ErrNoFetcher is returned for remote locations when no client was given.
var ErrNoFetcher = errors.New("remote location requires a network client")

// Fetcher retrieves remote pages and scripts.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, error)
}

// DOMScanner loads HTML documents or script files, joins their scripts in
// document order and runs one taint pass per target.
type DOMScanner struct {
	options     taint.Options
	analysis    config.AnalysisConfig
	fetcher     Fetcher
	fetchLimit  int
	scriptCache sync.Map // map[string]string (location -> content)
	logger      *logger.Logger
}

// NewDOMScanner creates a scanner. fetcher may be nil when only local files
// are analyzed.
func NewDOMScanner(cfg *config.Config, fetcher Fetcher, log *logger.Logger) *DOMScanner {
	if log == nil {
		log = logger.NewNop()
	}
	limit := cfg.Runner.Concurrency
	if limit <= 0 {
		limit = config.DefaultConcurrency
	}
	return &DOMScanner{
		options:    taint.OptionsFromConfig(cfg),
		analysis:   cfg.Analysis,
		fetcher:    fetcher,
		fetchLimit: limit,
		logger:     log,
	}
}

// Scan analyzes target, a local path or an http(s) URL. Script files are
// analyzed on their own; everything else is treated as HTML. Failures are
// carried in Report.Error.
func (ds *DOMScanner) Scan(ctx context.Context, target string) models.Report {
	ds.logger.Section("Scan " + target)

	body, err := ds.read(ctx, target)
	if err != nil {
		return models.Report{Target: target, Error: err.Error()}
	}
	if IsScriptLocation(target) {
		return ds.ScanScript(target, string(body))
	}
	return ds.ScanDocument(ctx, target, string(body))
}

// ScanScript runs a pass over a standalone script. There are no event
// bindings to follow.
func (ds *DOMScanner) ScanScript(name, code string) models.Report {
	report := models.Report{Target: name, Scripts: []string{name}}
	rec := taint.NewRecorder()

	res, err := taint.Analyze(code, nil, ds.options, ds.reporter(rec), ds.logger)
	report.Diagnostics = rec.Diagnostics()
	if err != nil {
		report.Error = fmt.Errorf("%s: %w", name, err).Error()
		return report
	}
	report.Findings = locate(res.Findings, []segment{{name: name, start: 1}})
	return report
}

// ScanDocument parses body as HTML, loads its scripts relative to base and
// analyzes them together with the document's event bindings.
func (ds *DOMScanner) ScanDocument(ctx context.Context, base, body string) models.Report {
	report := models.Report{Target: base}

	doc, err := document.ParseString(body)
	if err != nil {
		report.Error = err.Error()
		return report
	}

	rec := taint.NewRecorder()
	sources, err := ds.loadScripts(ctx, base, doc.Scripts(), rec)
	if err != nil {
		if !errors.Is(err, ErrNoScripts) {
			report.Error = err.Error()
			return report
		}
		ds.logger.V("%s: %v", base, err)
	}

	code, segments := join(sources)
	for _, s := range segments {
		report.Scripts = append(report.Scripts, s.name)
	}

	res, err := taint.Analyze(code, doc, ds.options, ds.reporter(rec), ds.logger)
	report.Diagnostics = rec.Diagnostics()
	if err != nil {
		report.Error = fmt.Errorf("%s: %w", base, err).Error()
		return report
	}
	report.Bindings = res.Bindings
	report.Findings = locate(res.Findings, segments)
	return report
}

func (ds *DOMScanner) reporter(rec *taint.Recorder) taint.Reporter {
	return taint.MultiReporter(rec, taint.NewLogReporter(ds.logger))
}

type loadedScript struct {
	name string
	code string
}

// loadScripts returns the scripts to analyze in document order. External
// scripts are fetched concurrently; one that cannot be loaded is traced
// and left out.
func (ds *DOMScanner) loadScripts(ctx context.Context, base string, scripts []document.Script, rec taint.Reporter) ([]loadedScript, error) {
	loaded := make([]loadedScript, len(scripts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ds.fetchLimit)

	inline := 0
	for i, s := range scripts {
		if !s.External() {
			inline++
			if ds.analysis.LoadInlineScripts {
				loaded[i] = loadedScript{name: fmt.Sprintf("%s#inline-%d", base, inline), code: s.Inline}
			}
			continue
		}
		if !ds.analysis.LoadExternalScripts {
			continue
		}

		location := ResolveLocation(base, s.Src)
		g.Go(func() error {
			code, err := ds.cachedRead(gctx, location)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				ds.logger.Error("Could not load script %s: %v", location, err)
				rec.Trace(fmt.Sprintf("Script %s could not be loaded: %v", location, err))
				return nil
			}
			loaded[i] = loadedScript{name: location, code: code}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []loadedScript
	for _, s := range loaded {
		if s.name != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil, ErrNoScripts
	}
	return out, nil
}

func (ds *DOMScanner) cachedRead(ctx context.Context, location string) (string, error) {
	if cached, ok := ds.scriptCache.Load(location); ok {
		return cached.(string), nil
	}
	body, err := ds.read(ctx, location)
	if err != nil {
		return "", err
	}
	ds.scriptCache.Store(location, string(body))
	return string(body), nil
}

func (ds *DOMScanner) read(ctx context.Context, location string) ([]byte, error) {
	if IsRemote(location) {
		if ds.fetcher == nil {
			return nil, fmt.Errorf("%s: %w", location, ErrNoFetcher)
		}
		return ds.fetcher.Fetch(ctx, location)
	}
	body, err := os.ReadFile(location)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", location, err)
	}
	return body, nil
}

// segment is where one script starts in the joined program.
type segment struct {
	name  string
	start int
}

// join concatenates scripts with a newline, remembering each start line.
func join(scripts []loadedScript) (string, []segment) {
	var b strings.Builder
	segments := make([]segment, 0, len(scripts))
	line := 1
	for i, s := range scripts {
		if i > 0 {
			b.WriteString("\n")
		}
		segments = append(segments, segment{name: s.name, start: line})
		b.WriteString(s.code)
		line += strings.Count(s.code, "\n") + 1
	}
	return b.String(), segments
}

func locate(findings []models.Finding, segments []segment) []models.Finding {
	for i := range findings {
		for j := len(segments) - 1; j >= 0; j-- {
			if findings[i].Line >= segments[j].start {
				findings[i].Script = segments[j].name
				findings[i].ScriptLine = findings[i].Line - segments[j].start + 1
				break
			}
		}
	}
	return findings
}

// IsRemote reports whether location is an http(s) URL.
func IsRemote(location string) bool {
	lower := strings.ToLower(location)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// IsScriptLocation reports whether location names a JavaScript file.
func IsScriptLocation(location string) bool {
	path := location
	if IsRemote(location) {
		if u, err := url.Parse(location); err == nil {
			path = u.Path
		}
	}
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".js" || ext == ".mjs"
}

// ResolveLocation resolves a script src against the page it appears in.
// Pages on disk resolve to paths relative to their directory; remote pages
// resolve as URLs.
func ResolveLocation(base, src string) string {
	if strings.HasPrefix(src, "//") {
		scheme := "https:"
		if u, err := url.Parse(base); err == nil && IsRemote(base) {
			scheme = u.Scheme + ":"
		}
		return scheme + src
	}
	if IsRemote(src) {
		return src
	}

	if IsRemote(base) {
		b, err := url.Parse(base)
		if err != nil {
			return src
		}
		ref, err := url.Parse(src)
		if err != nil {
			return src
		}
		return b.ResolveReference(ref).String()
	}

	if i := strings.IndexAny(src, "?#"); i >= 0 {
		src = src[:i]
	}
	return filepath.Join(filepath.Dir(base), filepath.FromSlash(strings.TrimPrefix(src, "/")))
}
