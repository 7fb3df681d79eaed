package taint

import (
	"fmt"
	"strings"

	"github.com/dop251/goja/ast"
	"github.com/lcalzada-xor/domtaint/pkg/models"
	domast "github.com/lcalzada-xor/domtaint/pkg/scanner/dom/ast"
)

// requiredSanitizers maps a rendering context to the tags a tainted value
// must carry before it may be written there.
var requiredSanitizers = map[models.RenderingContext][]models.SanitizerKind{
	models.ContextHTMLElement:  {models.SanitizerHTML},
	models.ContextAttribute:    {models.SanitizerHTML},
	models.ContextURL:          {models.SanitizerURL, models.SanitizerHTML},
	models.ContextEventHandler: {models.SanitizerUncleanable},
	models.ContextJS:           {models.SanitizerUncleanable},
}

// Element methods whose arguments end up rendered.
var sinkMethods = map[string]models.RenderingContext{
	"addEventListener":   models.ContextEventHandler,
	"setAttribute":       models.ContextAttribute,
	"setAttributes":      models.ContextAttribute,
	"insertAdjacentHTML": models.ContextHTMLElement,
}

// Element properties that render what is assigned to them.
var sinkProperties = map[string]models.RenderingContext{
	"innerHTML": models.ContextHTMLElement,
	"outerHTML": models.ContextHTMLElement,
	"src":       models.ContextURL,
	"href":      models.ContextURL,
	"action":    models.ContextURL,
}

var urlAttributes = map[string]bool{
	"src":        true,
	"href":       true,
	"action":     true,
	"formaction": true,
}

// RequiredSanitizers returns the tags ctx demands. None demands nothing.
func RequiredSanitizers(ctx models.RenderingContext) []models.SanitizerKind {
	return requiredSanitizers[ctx]
}

// SinkEvaluator decides whether values written into DOM elements are safe.
type SinkEvaluator struct {
	reporter Reporter
}

// NewSinkEvaluator returns an evaluator reporting its decisions to reporter.
func NewSinkEvaluator(reporter Reporter) *SinkEvaluator {
	return &SinkEvaluator{reporter: reporter}
}

// MethodContext resolves the rendering context of receiver.method(args).
// setAttribute is refined by a literal attribute name.
func MethodContext(method string, args []ast.Expression) models.RenderingContext {
	ctx, ok := sinkMethods[method]
	if !ok {
		return models.ContextNone
	}
	if ctx == models.ContextAttribute && len(args) > 0 {
		if lit, ok := args[0].(*ast.StringLiteral); ok {
			name := strings.ToLower(lit.Value.String())
			switch {
			case isEventAttribute(name):
				return models.ContextEventHandler
			case urlAttributes[name]:
				return models.ContextURL
			}
		}
	}
	return ctx
}

// PropertyContext resolves the rendering context of element.property = v.
func PropertyContext(property string) models.RenderingContext {
	if ctx, ok := sinkProperties[property]; ok {
		return ctx
	}
	if isEventAttribute(strings.ToLower(property)) {
		return models.ContextEventHandler
	}
	return models.ContextNone
}

// EvaluateCall checks a call on receiver. It returns the tainted arguments
// whose tags do not cover the sink's requirement, and the resolved context.
// A receiver that is not a DOM element is never a sink.
func (e *SinkEvaluator) EvaluateCall(receiver *domast.Variable, call *ast.CallExpression, args []*domast.Variable) ([]*domast.Variable, models.RenderingContext) {
	if receiver == nil || !receiver.IsDomElement || call == nil {
		return nil, models.ContextNone
	}
	_, method, ok := splitMember(call.Callee)
	if !ok {
		return nil, models.ContextNone
	}
	ctx := MethodContext(method, call.ArgumentList)
	if ctx == models.ContextNone {
		return nil, ctx
	}

	required := RequiredSanitizers(ctx)
	var unsafe []*domast.Variable
	for _, arg := range args {
		if arg == nil || !arg.Tainted() {
			continue
		}
		if !arg.Covers(required) {
			unsafe = append(unsafe, arg)
		}
	}
	return unsafe, ctx
}

// EvaluateAssignment checks object.property = value. A clean value is
// safe; a tainted one is safe only when its tags cover the context.
func (e *SinkEvaluator) EvaluateAssignment(object *domast.Variable, property string, value *domast.Variable) (bool, models.RenderingContext) {
	if object == nil || !object.IsDomElement || value == nil {
		return true, models.ContextNone
	}
	ctx := PropertyContext(property)
	if ctx == models.ContextNone {
		return true, ctx
	}

	sink := object.Name + "." + property
	if !value.Tainted() {
		e.trace("Clean variable %s sent to sink %s.", value.Name, sink)
		return true, ctx
	}
	if value.Covers(RequiredSanitizers(ctx)) {
		e.trace("OK - sanitized output. Variable %s is written to sink %s.", value.Name, sink)
		return true, ctx
	}
	e.trace("Warning: unsanitized output! Variable %s is written to sink %s.", value.Name, sink)
	return false, ctx
}

func (e *SinkEvaluator) trace(format string, args ...interface{}) {
	if e.reporter != nil {
		e.reporter.Trace(fmt.Sprintf(format, args...))
	}
}

func isEventAttribute(name string) bool {
	return len(name) > 2 && strings.HasPrefix(name, "on")
}
