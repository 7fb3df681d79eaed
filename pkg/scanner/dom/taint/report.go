package taint

import (
	"fmt"
	"sync"

	"github.com/lcalzada-xor/domtaint/pkg/logger"
	"github.com/lcalzada-xor/domtaint/pkg/models"
)

// Reporter receives the diagnostics of a pass in emission order.
type Reporter interface {
	Trace(message string)
	TaintedOutput(finding models.Finding)
}

// TaintedOutputMessage is the text attached to every tainted-output alert.
func TaintedOutputMessage(variable string, line int) string {
	return fmt.Sprintf("Passing tainted variable to sink: %s on line %d", variable, line)
}

// Recorder keeps every diagnostic and finding it is handed.
type Recorder struct {
	mu          sync.Mutex
	diagnostics []models.Diagnostic
	findings    []models.Finding
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Trace(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.diagnostics = append(r.diagnostics, models.Diagnostic{
		Kind:    models.DiagnosticTrace,
		Message: message,
	})
}

func (r *Recorder) TaintedOutput(finding models.Finding) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.diagnostics = append(r.diagnostics, models.Diagnostic{
		Kind:     models.DiagnosticTaintedOutput,
		Message:  TaintedOutputMessage(finding.Variable, finding.Line),
		Variable: finding.Variable,
		Line:     finding.Line,
	})
	r.findings = append(r.findings, finding)
}

// Diagnostics returns a copy of everything recorded so far.
func (r *Recorder) Diagnostics() []models.Diagnostic {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Diagnostic(nil), r.diagnostics...)
}

// Findings returns a copy of the recorded tainted flows.
func (r *Recorder) Findings() []models.Finding {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Finding(nil), r.findings...)
}

// Tainted returns only the tainted-output diagnostics.
func (r *Recorder) Tainted() []models.Diagnostic {
	var out []models.Diagnostic
	for _, d := range r.Diagnostics() {
		if d.Kind == models.DiagnosticTaintedOutput {
			out = append(out, d)
		}
	}
	return out
}

// LogReporter forwards diagnostics to the logger: traces at -v, alerts always.
type LogReporter struct {
	log *logger.Logger
}

// NewLogReporter wraps l.
func NewLogReporter(l *logger.Logger) *LogReporter {
	return &LogReporter{log: l}
}

func (r *LogReporter) Trace(message string) {
	r.log.V("%s", message)
}

func (r *LogReporter) TaintedOutput(finding models.Finding) {
	r.log.Info("%s (%s)", TaintedOutputMessage(finding.Variable, finding.Line), finding.Sink)
}

type multiReporter []Reporter

func (m multiReporter) Trace(message string) {
	for _, r := range m {
		r.Trace(message)
	}
}

func (m multiReporter) TaintedOutput(finding models.Finding) {
	for _, r := range m {
		r.TaintedOutput(finding)
	}
}

// MultiReporter duplicates every diagnostic to each of reporters, in order.
func MultiReporter(reporters ...Reporter) Reporter {
	var live multiReporter
	for _, r := range reporters {
		if r != nil {
			live = append(live, r)
		}
	}
	return live
}
