package models

// TaintStatus is the taint state of a tracked variable.
type TaintStatus string

const (
	StatusClean   TaintStatus = "clean"
	StatusTainted TaintStatus = "tainted"
)

// SanitizerKind tags a value as cleaned for one rendering context.
type SanitizerKind string

const (
	SanitizerHTML SanitizerKind = "HTMLSanitized"
	SanitizerURL  SanitizerKind = "URLSanitized"
	SanitizerJS   SanitizerKind = "JSSanitized"
	// SanitizerUncleanable is only ever required, never applied.
	SanitizerUncleanable SanitizerKind = "Uncleanable"
)

// RenderingContext is the kind of sink a value is written into.
type RenderingContext string

const (
	ContextNone         RenderingContext = "None"
	ContextHTMLElement  RenderingContext = "HTMLElement"
	ContextAttribute    RenderingContext = "Attribute"
	ContextURL          RenderingContext = "URL"
	ContextEventHandler RenderingContext = "EventHandler"
	ContextJS           RenderingContext = "JS"
)

// DiagnosticKind separates trace messages from tainted-output alerts.
type DiagnosticKind string

const (
	DiagnosticTrace         DiagnosticKind = "trace"
	DiagnosticTaintedOutput DiagnosticKind = "tainted_output"
)

// Diagnostic is one message pushed to the reporting side, in emission order.
type Diagnostic struct {
	Kind     DiagnosticKind `json:"kind"`
	Message  string         `json:"message"`
	Variable string         `json:"variable,omitempty"`
	Line     int            `json:"line,omitempty"`
}

// Finding is an unsanitized tainted value reaching a sink. Line counts in
// the analyzed program; Script and ScriptLine locate it in the file it came
// from when several scripts were joined.
type Finding struct {
	Variable   string           `json:"variable"`
	Line       int              `json:"line"`
	Sink       string           `json:"sink"`
	Context    RenderingContext `json:"context"`
	Source     string           `json:"source,omitempty"`
	Missing    []SanitizerKind  `json:"missing_sanitizers,omitempty"`
	Script     string           `json:"script,omitempty"`
	ScriptLine int              `json:"script_line,omitempty"`
}

// Report is the outcome of analyzing one document or script file.
type Report struct {
	Target      string       `json:"target"`
	Scripts     []string     `json:"scripts,omitempty"`
	Bindings    int          `json:"event_bindings"`
	Findings    []Finding    `json:"findings"`
	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
	Error       string       `json:"error,omitempty"`
}

// Vulnerable reports whether at least one tainted flow was found.
func (r Report) Vulnerable() bool {
	return len(r.Findings) > 0
}
