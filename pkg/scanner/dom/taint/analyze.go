package taint

import (
	"fmt"

	"github.com/dop251/goja/ast"
	"github.com/lcalzada-xor/domtaint/pkg/config"
	"github.com/lcalzada-xor/domtaint/pkg/logger"
	"github.com/lcalzada-xor/domtaint/pkg/models"
	domast "github.com/lcalzada-xor/domtaint/pkg/scanner/dom/ast"
	"github.com/lcalzada-xor/domtaint/pkg/scanner/dom/document"
)

// Options configure a taint pass.
type Options struct {
	DocumentNames       []string
	SourcePatterns      []string
	DOMElementAccessors []string
	Sanitizers          SanitizerPatterns
	// Events enables walking the handlers of inline on* attributes.
	Events bool
}

// DefaultOptions returns the options of the default configuration.
func DefaultOptions() Options {
	return OptionsFromConfig(config.NewDefaultConfig())
}

// OptionsFromConfig extracts the pass options from cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		DocumentNames:       cfg.Sources.Document,
		SourcePatterns:      cfg.Sources.Tainted,
		DOMElementAccessors: cfg.Sources.DOMElement,
		Sanitizers: SanitizerPatterns{
			HTML:       cfg.Sanitizers.HTML,
			URL:        cfg.Sanitizers.URL,
			JavaScript: cfg.Sanitizers.JavaScript,
		},
		Events: cfg.Analysis.Events,
	}
}

// Result summarizes one pass.
type Result struct {
	Findings []models.Finding
	Bindings int
}

// Analyze parses code and runs one fresh pass over it. When doc is set and
// events are enabled, its event handlers are walked after the program.
func Analyze(code string, doc document.Document, opts Options, reporter Reporter, log *logger.Logger) (*Result, error) {
	program, err := domast.Parse(code)
	if err != nil {
		return nil, fmt.Errorf("parse script: %w", err)
	}
	return AnalyzeProgram(program, doc, opts, reporter, log), nil
}

// AnalyzeProgram runs one fresh pass over an already parsed program.
func AnalyzeProgram(program *ast.Program, doc document.Document, opts Options, reporter Reporter, log *logger.Logger) *Result {
	p := NewPropagator(program, opts, reporter, log)
	p.trace("Starting taint analysis.")
	p.Run()

	result := &Result{}
	if doc != nil && opts.Events {
		result.Bindings = p.RunEvents(doc)
	}
	p.trace("Taint analysis done.")
	result.Findings = p.Findings
	return result
}
