package taint

import (
	"testing"

	jsast "github.com/dop251/goja/ast"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcalzada-xor/domtaint/pkg/models"
	domast "github.com/lcalzada-xor/domtaint/pkg/scanner/dom/ast"
)

func variable(name string, tainted, dom bool, tags ...models.SanitizerKind) *domast.Variable {
	v := &domast.Variable{Name: name, Status: models.StatusClean, IsDomElement: dom, SanitizersApplied: tags}
	if tainted {
		v.Status = models.StatusTainted
	}
	return v
}

func TestRequiredSanitizers(t *testing.T) {
	assert.Equal(t, []models.SanitizerKind{models.SanitizerHTML}, RequiredSanitizers(models.ContextHTMLElement))
	assert.Equal(t, []models.SanitizerKind{models.SanitizerHTML}, RequiredSanitizers(models.ContextAttribute))
	assert.Equal(t, []models.SanitizerKind{models.SanitizerURL, models.SanitizerHTML}, RequiredSanitizers(models.ContextURL))
	assert.Equal(t, []models.SanitizerKind{models.SanitizerUncleanable}, RequiredSanitizers(models.ContextEventHandler))
	assert.Equal(t, []models.SanitizerKind{models.SanitizerUncleanable}, RequiredSanitizers(models.ContextJS))
	assert.Empty(t, RequiredSanitizers(models.ContextNone))
}

func TestEvaluateAssignment(t *testing.T) {
	el := variable("el", false, true)
	obj := variable("obj", false, false)
	all := []models.SanitizerKind{models.SanitizerHTML, models.SanitizerURL, models.SanitizerJS}

	tests := []struct {
		name     string
		object   *domast.Variable
		property string
		value    *domast.Variable
		safe     bool
		ctx      models.RenderingContext
	}{
		{"clean into markup", el, "innerHTML", variable("v", false, false), true, models.ContextHTMLElement},
		{"tainted into markup", el, "innerHTML", variable("v", true, false), false, models.ContextHTMLElement},
		{"sanitized into markup", el, "outerHTML", variable("v", true, false, models.SanitizerHTML), true, models.ContextHTMLElement},
		{"url sanitized only for url", el, "src", variable("v", true, false, models.SanitizerURL), false, models.ContextURL},
		{"url fully sanitized", el, "href", variable("v", true, false, models.SanitizerHTML, models.SanitizerURL), true, models.ContextURL},
		{"every tag cannot clear a handler", el, "onclick", variable("v", true, false, all...), false, models.ContextEventHandler},
		{"not a sink property", el, "className", variable("v", true, false), true, models.ContextNone},
		{"not an element", obj, "innerHTML", variable("v", true, false), true, models.ContextNone},
		{"no object", nil, "innerHTML", variable("v", true, false), true, models.ContextNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			safe, ctx := NewSinkEvaluator(nil).EvaluateAssignment(tt.object, tt.property, tt.value)
			assert.Equal(t, tt.safe, safe)
			assert.Equal(t, tt.ctx, ctx)
		})
	}
}

func TestEvaluateAssignmentTraces(t *testing.T) {
	rec := NewRecorder()
	e := NewSinkEvaluator(rec)
	el := variable("el", false, true)

	e.EvaluateAssignment(el, "innerHTML", variable("a", false, false))
	e.EvaluateAssignment(el, "innerHTML", variable("b", true, false, models.SanitizerHTML))
	e.EvaluateAssignment(el, "innerHTML", variable("c", true, false))
	e.EvaluateAssignment(el, "title", variable("d", true, false))

	var messages []string
	for _, d := range rec.Diagnostics() {
		messages = append(messages, d.Message)
	}
	assert.Equal(t, []string{
		"Clean variable a sent to sink el.innerHTML.",
		"OK - sanitized output. Variable b is written to sink el.innerHTML.",
		"Warning: unsanitized output! Variable c is written to sink el.innerHTML.",
	}, messages)
}

func callOf(t *testing.T, src string) *jsast.CallExpression {
	t.Helper()
	call, ok := initializer(t, src).(*jsast.CallExpression)
	require.True(t, ok)
	return call
}

func TestEvaluateCall(t *testing.T) {
	button := variable("button", false, true)
	tainted := variable("t", true, false)
	sanitized := variable("s", true, false, models.SanitizerHTML)
	clean := variable("c", false, false)
	all := variable("all", true, false, models.SanitizerHTML, models.SanitizerURL, models.SanitizerJS)

	tests := []struct {
		name     string
		receiver *domast.Variable
		src      string
		args     []*domast.Variable
		unsafe   []string
		ctx      models.RenderingContext
	}{
		{"listener with tainted handler", button, "button.addEventListener('click', t)", []*domast.Variable{tainted}, []string{"t"}, models.ContextEventHandler},
		{"listener ignores sanitizers", button, "button.addEventListener('click', all)", []*domast.Variable{all}, []string{"all"}, models.ContextEventHandler},
		{"listener with clean handler", button, "button.addEventListener('click', c)", []*domast.Variable{clean}, nil, models.ContextEventHandler},
		{"attribute sanitized", button, "button.setAttribute('title', s)", []*domast.Variable{sanitized}, nil, models.ContextAttribute},
		{"attribute plural form", button, "button.setAttributes(t)", []*domast.Variable{tainted}, []string{"t"}, models.ContextAttribute},
		{"event attribute", button, "button.setAttribute('ONCLICK', s)", []*domast.Variable{sanitized}, []string{"s"}, models.ContextEventHandler},
		{"url attribute", button, "button.setAttribute('formaction', s)", []*domast.Variable{sanitized}, []string{"s"}, models.ContextURL},
		{"every returned", button, "button.setAttributes(t, c, s, all)", []*domast.Variable{tainted, clean, sanitized, all}, []string{"t"}, models.ContextAttribute},
		{"not a sink method", button, "button.focus(t)", []*domast.Variable{tainted}, nil, models.ContextNone},
		{"receiver not an element", clean, "c.addEventListener('x', t)", []*domast.Variable{tainted}, nil, models.ContextNone},
		{"no receiver", nil, "x.addEventListener('x', t)", []*domast.Variable{tainted}, nil, models.ContextNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			unsafe, ctx := NewSinkEvaluator(nil).EvaluateCall(tt.receiver, callOf(t, tt.src), tt.args)
			var names []string
			for _, v := range unsafe {
				names = append(names, v.Name)
			}
			assert.Equal(t, tt.unsafe, names)
			assert.Equal(t, tt.ctx, ctx)
		})
	}
}

func TestPropertyContext(t *testing.T) {
	assert.Equal(t, models.ContextHTMLElement, PropertyContext("innerHTML"))
	assert.Equal(t, models.ContextURL, PropertyContext("action"))
	assert.Equal(t, models.ContextEventHandler, PropertyContext("onmouseover"))
	assert.Equal(t, models.ContextNone, PropertyContext("on"))
	assert.Equal(t, models.ContextNone, PropertyContext("textContent"))
}
