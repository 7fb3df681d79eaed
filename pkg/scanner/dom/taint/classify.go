package taint

import (
	"strings"

	"github.com/dop251/goja/ast"
	domast "github.com/lcalzada-xor/domtaint/pkg/scanner/dom/ast"
)

// Classification describes what a member access or call evaluates to.
type Classification struct {
	IsBasedOnDocument    bool
	IsDomElementReturned bool
	IsTainted            bool
	// Source is the matched source path, or the name the taint came from.
	Source string
}

// Classifier decides whether member accesses and calls yield tainted data
// or DOM elements.
type Classifier struct {
	documentNames    []string
	sourcePatterns   []string
	elementAccessors []string
	vars             VariableTable
}

// NewClassifier builds a classifier resolving identifiers through vars.
func NewClassifier(opts Options, vars VariableTable) *Classifier {
	return &Classifier{
		documentNames:    opts.DocumentNames,
		sourcePatterns:   nonEmpty(opts.SourcePatterns),
		elementAccessors: opts.DOMElementAccessors,
		vars:             vars,
	}
}

// ClassifyMember classifies object.property. parentPath, when set, is
// prepended to the dotted path before source patterns are matched.
func (c *Classifier) ClassifyMember(expr ast.Expression, parentPath string) Classification {
	object, property, ok := splitMember(expr)
	if !ok {
		return Classification{}
	}

	var result Classification
	switch obj := object.(type) {
	case *ast.Identifier:
		name := obj.Name.String()
		if c.isDocument(name) {
			result.IsBasedOnDocument = true
			break
		}
		if c.vars == nil {
			break
		}
		if v := c.vars.Lookup(name); v != nil {
			result.IsBasedOnDocument = v.IsDomElement
			if v.Tainted() {
				result.IsTainted = true
				result.Source = originOf(v)
			}
		}
	case *ast.DotExpression, *ast.BracketExpression:
		if c.isDocument(MemberPath(obj)) {
			result.IsBasedOnDocument = true
			break
		}
		inner := c.ClassifyMember(obj, parentPath)
		result.IsBasedOnDocument = inner.IsBasedOnDocument
		result.IsTainted = inner.IsTainted
		result.Source = inner.Source
	case *ast.CallExpression:
		inner := c.ClassifyCall(obj)
		result.IsBasedOnDocument = inner.IsBasedOnDocument || inner.IsDomElementReturned
		result.IsTainted = inner.IsTainted
		result.Source = inner.Source
	default:
		return result
	}

	if !result.IsBasedOnDocument {
		return result
	}
	result.IsDomElementReturned = contains(c.elementAccessors, property)

	path := MemberPath(expr)
	if parentPath != "" {
		path = parentPath + "." + path
	}
	if c.matchesSource(path) {
		result.IsTainted = true
		result.Source = path
	}
	return result
}

// ClassifyCall classifies a call through its callee; only member callees
// such as document.getElementById(...) can yield anything.
func (c *Classifier) ClassifyCall(call *ast.CallExpression) Classification {
	if call == nil {
		return Classification{}
	}
	switch call.Callee.(type) {
	case *ast.DotExpression, *ast.BracketExpression:
		return c.ClassifyMember(call.Callee, "")
	}
	return Classification{}
}

func (c *Classifier) isDocument(name string) bool {
	return name != "" && contains(c.documentNames, name)
}

func (c *Classifier) matchesSource(path string) bool {
	for _, p := range c.sourcePatterns {
		if strings.Contains(path, p) {
			return true
		}
	}
	return false
}

// splitMember returns the object and property name of obj.prop or
// obj['prop']. Computed members are not supported.
func splitMember(expr ast.Expression) (ast.Expression, string, bool) {
	switch e := expr.(type) {
	case *ast.DotExpression:
		return e.Left, e.Identifier.Name.String(), true
	case *ast.BracketExpression:
		if str, ok := e.Member.(*ast.StringLiteral); ok {
			return e.Left, str.Value.String(), true
		}
	}
	return nil, "", false
}

// MemberPath renders expr as a dotted path: a.b['c'] is "a.b.c" and a call
// in the chain renders as "f()".
func MemberPath(expr ast.Expression) string {
	switch e := expr.(type) {
	case *ast.Identifier:
		return e.Name.String()
	case *ast.ThisExpression:
		return "this"
	case *ast.DotExpression:
		return joinPath(MemberPath(e.Left), e.Identifier.Name.String())
	case *ast.BracketExpression:
		obj := MemberPath(e.Left)
		if str, ok := e.Member.(*ast.StringLiteral); ok {
			return joinPath(obj, str.Value.String())
		}
		return obj + "[]"
	case *ast.CallExpression:
		return MemberPath(e.Callee) + "()"
	}
	return ""
}

// CalleeSignature is the text sanitizer patterns are matched against,
// e.g. "DOMPurify.sanitize(".
func CalleeSignature(call *ast.CallExpression) string {
	return MemberPath(call.Callee) + "("
}

// originOf is the source a tainted variable traces back to.
func originOf(v *domast.Variable) string {
	if v.Source != "" {
		return v.Source
	}
	return v.Name
}

func joinPath(obj, prop string) string {
	if obj == "" {
		return "." + prop
	}
	return obj + "." + prop
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func nonEmpty(list []string) []string {
	var out []string
	for _, s := range list {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
