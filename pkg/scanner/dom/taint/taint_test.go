package taint

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcalzada-xor/domtaint/pkg/models"
	domast "github.com/lcalzada-xor/domtaint/pkg/scanner/dom/ast"
	"github.com/lcalzada-xor/domtaint/pkg/scanner/dom/document"
)

// run analyzes code with the default options and returns the recorder.
func run(t *testing.T, code string, doc document.Document) (*Result, *Recorder) {
	t.Helper()
	rec := NewRecorder()
	res, err := Analyze(code, doc, DefaultOptions(), rec, nil)
	require.NoError(t, err)
	return res, rec
}

func traces(rec *Recorder) []string {
	var out []string
	for _, d := range rec.Diagnostics() {
		if d.Kind == models.DiagnosticTrace {
			out = append(out, d.Message)
		}
	}
	return out
}

func messages(diags []models.Diagnostic) []string {
	out := make([]string, 0, len(diags))
	for _, d := range diags {
		out = append(out, d.Message)
	}
	return out
}

func hasTrace(rec *Recorder, fragment string) bool {
	for _, m := range traces(rec) {
		if strings.Contains(m, fragment) {
			return true
		}
	}
	return false
}

const scenarioA = `const divElem = document.getElementById('theDiv');
const urlHash = document.location.hash;
textOutput = ` + "`<b>${urlHash}</b>`" + `;
textOutput = sanitizeForHtmlOutput(textOutput);
divElem.innerHTML = textOutput;`

const scenarioB = `const divElem = document.getElementById('theDiv');
const urlHash = document.location.hash;
textOutput = ` + "`<b>${urlHash}</b>`" + `;
divElem.innerHTML = textOutput;`

func TestScenarioSanitizedMarkupSink(t *testing.T) {
	res, rec := run(t, scenarioA, nil)

	assert.Empty(t, res.Findings)
	assert.Empty(t, rec.Tainted())
	assert.True(t, hasTrace(rec, "Variable textOutput was sanitized for HTML."))
	assert.True(t, hasTrace(rec, "OK - sanitized output. Variable textOutput is written to sink divElem.innerHTML."))
}

func TestScenarioUnsanitizedMarkupSink(t *testing.T) {
	res, rec := run(t, scenarioB, nil)

	require.Len(t, res.Findings, 1)
	f := res.Findings[0]
	assert.Equal(t, "textOutput", f.Variable)
	assert.Equal(t, 4, f.Line)
	assert.Equal(t, "divElem.innerHTML", f.Sink)
	assert.Equal(t, models.ContextHTMLElement, f.Context)
	assert.Equal(t, "document.location.hash", f.Source)
	assert.Equal(t, []models.SanitizerKind{models.SanitizerHTML}, f.Missing)

	tainted := rec.Tainted()
	require.Len(t, tainted, 1)
	assert.Equal(t, "textOutput", tainted[0].Variable)
	assert.Equal(t, 4, tainted[0].Line)
	assert.Equal(t, "Passing tainted variable to sink: textOutput on line 4", tainted[0].Message)
}

func TestScenarioEventListenerIsUncleanable(t *testing.T) {
	code := `var button = document.createElement('button');
var alertCode = document.location.hash;
alertCode = sanitizeForHtmlOutput(alertCode);
button.addEventListener('click', alertCode);`

	res, _ := run(t, code, nil)

	require.Len(t, res.Findings, 1)
	f := res.Findings[0]
	assert.Equal(t, "alertCode", f.Variable)
	assert.Equal(t, 4, f.Line)
	assert.Equal(t, "button.addEventListener", f.Sink)
	assert.Equal(t, models.ContextEventHandler, f.Context)
	assert.Equal(t, []models.SanitizerKind{models.SanitizerUncleanable}, f.Missing)
}

func TestScenarioHandlerOrderIndependence(t *testing.T) {
	body := `  out.innerHTML = hash;`
	before := "function show() {\n" + body + "\n}\nvar hash = document.location.hash;\nvar out = document.getElementById('out');"
	after := "var hash = document.location.hash;\nvar out = document.getElementById('out');\nfunction show() {\n" + body + "\n}"

	doc := fakeDocument{elements: []fakeElement{
		{tag: "body", attrs: []document.Attribute{{Name: "onload", Value: "show()"}}},
	}}

	for name, code := range map[string]string{"declared first": before, "declared last": after} {
		t.Run(name, func(t *testing.T) {
			res, _ := run(t, code, doc)
			require.Len(t, res.Findings, 1)
			assert.Equal(t, "hash", res.Findings[0].Variable)
			assert.Equal(t, "out.innerHTML", res.Findings[0].Sink)
			assert.Equal(t, 1, res.Bindings)
		})
	}
}

func TestDeterminism(t *testing.T) {
	code := scenarioB + `
var button = document.createElement('button');
button.addEventListener('click', urlHash);
if (urlHash) { divElem.outerHTML = urlHash; } else { divElem.innerHTML = 'none'; }
while (false) { divElem.innerHTML = urlHash; }`

	doc, err := document.ParseString(`<body onload="init()"><a onclick="go()"></a></body>`)
	require.NoError(t, err)

	_, first := run(t, code, doc)
	_, second := run(t, code, doc)

	if diff := cmp.Diff(first.Diagnostics(), second.Diagnostics()); diff != "" {
		t.Errorf("diagnostic sequences differ (-first +second):\n%s", diff)
	}
	assert.Len(t, first.Tainted(), 4)
}

func TestPassTraces(t *testing.T) {
	_, rec := run(t, `var a = 'x';`, nil)
	got := traces(rec)
	require.NotEmpty(t, got)
	assert.Equal(t, "Starting taint analysis.", got[0])
	assert.Equal(t, "Taint analysis done.", got[len(got)-1])
}

func TestEmptyProgram(t *testing.T) {
	res, rec := run(t, "", nil)
	assert.Empty(t, res.Findings)
	assert.True(t, hasTrace(rec, "No program code found to analyze."))
}

func TestParseError(t *testing.T) {
	rec := NewRecorder()
	_, err := Analyze("var = ;", nil, DefaultOptions(), rec, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse script")
	assert.Empty(t, rec.Diagnostics())
}

func TestDeclarations(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		target  string
		tainted bool
		dom     bool
	}{
		{"string literal", `var s = 'hello';`, "s", false, false},
		{"location hash", `var h = document.location.hash;`, "h", true, false},
		{"window document", `var h = window.document.location.href;`, "h", true, false},
		{"bracket member", `var h = document['location'];`, "h", true, false},
		{"bare location is not document rooted", `var h = location.hash;`, "h", false, false},
		{"element lookup", `var el = document.getElementById('a');`, "el", false, true},
		{"created element", `let el = document.createElement('div');`, "el", false, true},
		{"input value through element", "var el = document.getElementById('q');\nvar v = el.value;", "v", true, false},
		{"input value through call", `var v = document.getElementById('q').value;`, "v", true, false},
		{"concatenation", "var h = document.location.hash;\nvar s = 'a' + ('b' + h);", "s", true, false},
		{"clean concatenation", "var a = 'x';\nvar s = a + 'y';", "s", false, false},
		{"template literal", "var h = document.location.hash;\nconst s = `x${h}`;", "s", true, false},
		{"identifier copy", "var h = document.location.hash;\nvar c = h;", "c", true, false},
		{"identifier copies element flag", "var el = document.getElementById('a');\nvar c = el;", "c", false, true},
		{"plain call", `var r = compute(document.location.hash);`, "r", false, false},
		{"number literal", `var n = 42;`, "n", false, false},
		{"no initializer", `let x;`, "x", false, false},
		{"redeclaration without initializer keeps taint", "var h = document.location.hash;\nvar h;", "h", true, false},
		{"redeclaration reads the previous value", "var h = document.location.hash;\nvar h = h + '!';", "h", true, false},
		{"redeclaration without initializer keeps element flag", "var el = document.getElementById('a');\nvar el;", "el", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			program, err := domast.Parse(tt.code)
			require.NoError(t, err)
			p := NewPropagator(program, DefaultOptions(), NewRecorder(), nil)
			p.Run()

			v := p.Tracker.Lookup(tt.target)
			require.NotNil(t, v)
			assert.Equal(t, tt.tainted, v.Tainted(), "tainted")
			assert.Equal(t, tt.dom, v.IsDomElement, "dom element")
			if !tt.tainted {
				assert.Empty(t, v.SanitizersApplied)
			}
		})
	}
}

func TestSanitizerIntersection(t *testing.T) {
	code := `var el = document.getElementById('out');
var a = document.location.hash;
a = sanitizeForHtmlOutput(a);
var b = document.location.href;
b = encodeURIComponent(b);
var mixed = a + b;
var same = a + '!';
el.innerHTML = mixed;
el.innerHTML = same;`

	program, err := domast.Parse(code)
	require.NoError(t, err)
	p := NewPropagator(program, DefaultOptions(), NewRecorder(), nil)
	findings := p.Run()

	assert.Empty(t, p.Tracker.Lookup("mixed").SanitizersApplied)
	assert.Equal(t, []models.SanitizerKind{models.SanitizerHTML}, p.Tracker.Lookup("same").SanitizersApplied)

	require.Len(t, findings, 1)
	assert.Equal(t, "mixed", findings[0].Variable)
	assert.Equal(t, 8, findings[0].Line)
}

func TestRetaintNarrowsSanitizers(t *testing.T) {
	code := `var el = document.getElementById('out');
var a = document.location.hash;
a = sanitizeForHtmlOutput(a);
var b = document.location.hash;
a = b;
el.innerHTML = a;`

	res, _ := run(t, code, nil)
	require.Len(t, res.Findings, 1)
	assert.Equal(t, "a", res.Findings[0].Variable)
}

func TestAssignments(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		findings int
	}{
		{
			name:     "direct source into sink",
			code:     "var el = document.getElementById('o');\nel.innerHTML = document.location.hash;",
			findings: 1,
		},
		{
			name:     "sanitizer call into sink is not followed",
			code:     "var el = document.getElementById('o');\nel.innerHTML = DOMPurify.sanitize(document.location.hash);",
			findings: 0,
		},
		{
			name:     "member-call sanitizer",
			code:     "var el = document.getElementById('o');\nvar h = document.location.hash;\nh = DOMPurify.sanitize(h);\nel.innerHTML = h;",
			findings: 0,
		},
		{
			name:     "url sink needs both sanitizers",
			code:     "var a = document.createElement('a');\nvar h = document.location.hash;\nh = encodeURIComponent(h);\na.href = h;",
			findings: 1,
		},
		{
			name:     "url sink with both sanitizers",
			code:     "var a = document.createElement('a');\nvar h = document.location.hash;\nh = encodeURIComponent(h);\nh = escapeHTML(h);\na.href = h;",
			findings: 0,
		},
		{
			name:     "non element object",
			code:     "var obj = {};\nvar h = document.location.hash;\nobj.innerHTML = h;",
			findings: 0,
		},
		{
			name:     "non sink property",
			code:     "var el = document.getElementById('o');\nvar h = document.location.hash;\nel.title = h;",
			findings: 0,
		},
		{
			name:     "unresolved object",
			code:     "var h = document.location.hash;\nghost.innerHTML = h;",
			findings: 0,
		},
		{
			name:     "chained element object",
			code:     "var h = document.location.hash;\ndocument.body.innerHTML = h;",
			findings: 1,
		},
		{
			name:     "compound assignment keeps taint",
			code:     "var el = document.getElementById('o');\nvar s = 'x';\nvar h = document.location.hash;\ns += h;\nel.innerHTML = s;",
			findings: 1,
		},
		{
			name:     "clean reassignment does not untaint",
			code:     "var el = document.getElementById('o');\nvar h = document.location.hash;\nh = 'safe';\nel.innerHTML = h;",
			findings: 1,
		},
		{
			name:     "implicit global",
			code:     "var el = document.getElementById('o');\nleak = document.location.hash;\nel.innerHTML = leak;",
			findings: 1,
		},
		{
			name:     "handler property",
			code:     "var el = document.getElementById('o');\nvar h = document.location.hash;\nh = sanitizeForHtmlOutput(h);\nel.onclick = h;",
			findings: 1,
		},
		{
			name:     "setAttribute with url name",
			code:     "var el = document.getElementById('o');\nvar h = document.location.hash;\nh = escapeHTML(h);\nel.setAttribute('href', h);",
			findings: 1,
		},
		{
			name:     "setAttribute plain attribute sanitized",
			code:     "var el = document.getElementById('o');\nvar h = document.location.hash;\nh = escapeHTML(h);\nel.setAttribute('title', h);",
			findings: 0,
		},
		{
			name:     "call argument is a direct source",
			code:     "var el = document.getElementById('o');\nel.insertAdjacentHTML('beforeend', document.location.hash);",
			findings: 1,
		},
		{
			name:     "redeclared variable into sink",
			code:     "var el = document.getElementById('o');\nvar h = document.location.hash;\nvar h;\nel.innerHTML = h;",
			findings: 1,
		},
		{
			name:     "self-referencing redeclaration into sink",
			code:     "var el = document.getElementById('o');\nvar h = document.location.hash;\nvar h = h + '!';\nel.innerHTML = h;",
			findings: 1,
		},
		{
			name:     "element alias by assignment",
			code:     "var el = document.getElementById('o');\nvar e2;\ne2 = el;\nvar h = document.location.hash;\ne2.innerHTML = h;",
			findings: 1,
		},
		{
			name:     "call on non element",
			code:     "var h = document.location.hash;\nconsole.log(h);",
			findings: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, _ := run(t, tt.code, nil)
			assert.Len(t, res.Findings, tt.findings)
		})
	}
}

func TestDirectSourceFindingNamesPath(t *testing.T) {
	tests := []struct {
		name string
		code string
		sink string
	}{
		{"assignment", "var el = document.getElementById('o');\nel.innerHTML = document.location.hash;", "el.innerHTML"},
		{"call argument", "var el = document.getElementById('o');\nel.addEventListener('click', document.location.hash);", "el.addEventListener"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, rec := run(t, tt.code, nil)
			require.Len(t, res.Findings, 1)
			assert.Equal(t, "document.location.hash", res.Findings[0].Variable)
			assert.Equal(t, tt.sink, res.Findings[0].Sink)
			assert.Equal(t, 2, res.Findings[0].Line)
			assert.Equal(t, []string{TaintedOutputMessage("document.location.hash", 2)}, messages(rec.Tainted()))
		})
	}
}

func TestCleanValueReachingSink(t *testing.T) {
	_, rec := run(t, "var el = document.getElementById('o');\nvar s = 'hi';\nel.innerHTML = s;", nil)
	assert.Empty(t, rec.Tainted())
	assert.True(t, hasTrace(rec, "Clean variable s sent to sink el.innerHTML."))
}

func TestControlFlow(t *testing.T) {
	t.Run("both branches accumulate", func(t *testing.T) {
		code := `var el = document.getElementById('o');
var h = document.location.hash;
var x = 'a';
if (cond) { x = h; } else { x = 'b'; }
el.innerHTML = x;`
		res, _ := run(t, code, nil)
		require.Len(t, res.Findings, 1)
		assert.Equal(t, 5, res.Findings[0].Line)
	})

	t.Run("else if and single statement branches", func(t *testing.T) {
		code := `var el = document.getElementById('o');
var h = document.location.hash;
if (a) el.title = 'x';
else if (b) el.innerHTML = h;`
		res, _ := run(t, code, nil)
		require.Len(t, res.Findings, 1)
		assert.Equal(t, 4, res.Findings[0].Line)
	})

	t.Run("loop body once", func(t *testing.T) {
		code := `var el = document.getElementById('o');
var h = document.location.hash;
var y = 'a';
var x = 'b';
while (more) {
  el.innerHTML = x;
  x = y;
  y = h;
}`
		res, _ := run(t, code, nil)
		assert.Empty(t, res.Findings)
	})
}

func TestMalformedTargetIsRecovered(t *testing.T) {
	code := `var el = document.getElementById('o');
var h = document.location.hash;
el[key] = h;
el.innerHTML = h;`

	res, rec := run(t, code, nil)
	assert.True(t, hasTrace(rec, "Statement on line 3 skipped: malformed assignment target"))
	require.Len(t, res.Findings, 1)
	assert.Equal(t, 4, res.Findings[0].Line)
}

func TestUnsupportedSyntaxIsSkipped(t *testing.T) {
	code := `var el = document.getElementById('o');
for (var i = 0; i < 3; i++) { el.innerHTML = document.location.hash; }
var [a, b] = [1, 2];
i++;`

	res, rec := run(t, code, nil)
	assert.Empty(t, res.Findings)
	assert.True(t, hasTrace(rec, "Unsupported statement ForStatement on line 2 skipped."))
	assert.True(t, hasTrace(rec, "Unsupported declaration target"))
	assert.True(t, hasTrace(rec, "on line 4 skipped."))
}
