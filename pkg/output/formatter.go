package output

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/lcalzada-xor/domtaint/pkg/models"
)

// Options selects how a report is rendered.
type Options struct {
	// Format is one of text, human or json.
	Format string
	// Trace includes every diagnostic, not only the findings.
	Trace bool
	// Color enables styling in human mode.
	Color bool
}

type styles struct {
	header  lipgloss.Style
	label   lipgloss.Style
	value   lipgloss.Style
	faint   lipgloss.Style
	warning lipgloss.Style
	err     lipgloss.Style
	success lipgloss.Style
	number  lipgloss.Style
}

func newStyles(color bool) styles {
	if !color {
		plain := lipgloss.NewStyle()
		return styles{plain, plain, plain, plain, plain, plain, plain, plain}
	}

	lavender := lipgloss.AdaptiveColor{Light: "#6d5fa6", Dark: "#b7a9ff"}
	purple := lipgloss.AdaptiveColor{Light: "#5b2a86", Dark: "#af87ff"}
	gray := lipgloss.AdaptiveColor{Light: "#6b6f76", Dark: "#9aa0aa"}
	rose := lipgloss.AdaptiveColor{Light: "#ad5d7d", Dark: "#ffb3c9"}
	gold := lipgloss.AdaptiveColor{Light: "#b58b00", Dark: "#ffd666"}
	green := lipgloss.AdaptiveColor{Light: "#2f7d32", Dark: "#9ada9f"}

	return styles{
		header:  lipgloss.NewStyle().Foreground(purple).Bold(true),
		label:   lipgloss.NewStyle().Foreground(purple),
		value:   lipgloss.NewStyle().Foreground(lavender),
		faint:   lipgloss.NewStyle().Foreground(gray),
		warning: lipgloss.NewStyle().Foreground(gold).Bold(true),
		err:     lipgloss.NewStyle().Foreground(rose).Bold(true),
		success: lipgloss.NewStyle().Foreground(green),
		number:  lipgloss.NewStyle().Foreground(gold),
	}
}

// ColorEnabled reports whether human output written to f should be styled.
// NO_COLOR and non-terminal outputs turn styling off.
func ColorEnabled(f *os.File) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return f != nil && term.IsTerminal(int(f.Fd()))
}

// Format returns the formatted report string based on the selected format.
func Format(r models.Report, opts Options) string {
	switch opts.Format {
	case "human":
		return formatHuman(r, opts)

	case "json":
		if !opts.Trace {
			r.Diagnostics = nil
		}
		if r.Findings == nil {
			r.Findings = []models.Finding{}
		}
		data, err := json.Marshal(r)
		if err != nil {
			return fmt.Sprintf(`{"target":%q,"error":%q}`, r.Target, err.Error())
		}
		return string(data)

	default:
		return formatText(r, opts)
	}
}

// FormatAll renders several reports. JSON output becomes a single array;
// the line formats are concatenated.
func FormatAll(reports []models.Report, opts Options) string {
	if opts.Format == "json" {
		parts := make([]string, 0, len(reports))
		for _, r := range reports {
			parts = append(parts, Format(r, opts))
		}
		return "[" + strings.Join(parts, ",") + "]"
	}

	var sb strings.Builder
	for _, r := range reports {
		sb.WriteString(Format(r, opts))
	}
	return sb.String()
}

// formatText writes one line per finding, or one line for a failed target.
func formatText(r models.Report, opts Options) string {
	var sb strings.Builder
	if r.Error != "" {
		fmt.Fprintf(&sb, "%s: error: %s\n", r.Target, r.Error)
	}
	if opts.Trace {
		for _, d := range r.Diagnostics {
			if d.Kind == models.DiagnosticTrace {
				fmt.Fprintf(&sb, "%s: trace: %s\n", r.Target, d.Message)
			}
		}
	}
	for _, f := range r.Findings {
		fmt.Fprintf(&sb, "%s: %s sink %s (%s)%s\n",
			r.Target,
			fmt.Sprintf("Passing tainted variable to sink: %s on line %d", f.Variable, f.Line),
			f.Sink, f.Context, location(f))
	}
	return sb.String()
}

func formatHuman(r models.Report, opts Options) string {
	st := newStyles(opts.Color)

	var sb strings.Builder
	switch {
	case r.Error != "":
		fmt.Fprintf(&sb, "\n%s\n", st.err.Render("[!] Analysis failed"))
	case r.Vulnerable():
		fmt.Fprintf(&sb, "\n%s\n", st.header.Render("[+] Tainted flow found"))
	default:
		fmt.Fprintf(&sb, "\n%s\n", st.success.Render("[-] No tainted flow"))
	}

	field := func(name, value string) {
		fmt.Fprintf(&sb, "    %s %s\n", st.label.Render(fmt.Sprintf("%-15s", name+":")), value)
	}
	field("Target", st.value.Render(r.Target))
	if r.Error != "" {
		field("Error", st.err.Render(r.Error))
	}
	if len(r.Scripts) > 0 {
		field("Scripts", st.number.Render(fmt.Sprint(len(r.Scripts))))
	}
	field("Event bindings", st.number.Render(fmt.Sprint(r.Bindings)))

	if len(r.Findings) > 0 {
		fmt.Fprintf(&sb, "\n    %s\n", st.label.Render("Findings:"))
		for _, f := range r.Findings {
			fmt.Fprintf(&sb, "      %s %s\n",
				st.warning.Render("["+string(f.Context)+"]"),
				fmt.Sprintf("%s reaches %s on line %d", st.value.Render(f.Variable), st.value.Render(f.Sink), f.Line))
			if f.Source != "" {
				fmt.Fprintf(&sb, "             %s %s\n", st.label.Render("Source:"), f.Source)
			}
			if len(f.Missing) > 0 {
				missing := make([]string, len(f.Missing))
				for i, m := range f.Missing {
					missing[i] = string(m)
				}
				fmt.Fprintf(&sb, "             %s %s\n", st.label.Render("Missing:"), strings.Join(missing, ", "))
			}
			if f.Script != "" {
				fmt.Fprintf(&sb, "             %s %s\n", st.label.Render("Script:"), st.faint.Render(fmt.Sprintf("%s:%d", f.Script, f.ScriptLine)))
			}
		}
	}

	if opts.Trace && len(r.Diagnostics) > 0 {
		fmt.Fprintf(&sb, "\n    %s\n", st.label.Render("Trace:"))
		for _, d := range r.Diagnostics {
			if d.Kind == models.DiagnosticTaintedOutput {
				fmt.Fprintf(&sb, "      %s\n", st.warning.Render(d.Message))
				continue
			}
			fmt.Fprintf(&sb, "      %s\n", st.faint.Render(d.Message))
		}
	}
	return sb.String()
}

func location(f models.Finding) string {
	if f.Script == "" {
		return ""
	}
	return fmt.Sprintf(" [%s:%d]", f.Script, f.ScriptLine)
}
