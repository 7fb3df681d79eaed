package taint

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dop251/goja/ast"
	"github.com/dop251/goja/file"
	"github.com/dop251/goja/token"
	"github.com/lcalzada-xor/domtaint/pkg/logger"
	"github.com/lcalzada-xor/domtaint/pkg/models"
	domast "github.com/lcalzada-xor/domtaint/pkg/scanner/dom/ast"
)

// ErrMalformedTarget is returned for assignments to anything other than an
// identifier or an object.property member.
var ErrMalformedTarget = errors.New("malformed assignment target")

// Propagator walks the statements of one program once, in order, and
// propagates taint through the variable table.
type Propagator struct {
	Tracker    *Tracker
	Classifier *Classifier
	Sanitizers *SanitizerMatcher
	Sinks      *SinkEvaluator
	Reporter   Reporter
	Findings   []models.Finding

	program   *ast.Program
	enclosing int
	log       *logger.Logger
}

// NewPropagator prepares a fresh pass over program. The function catalog is
// built before anything is walked.
func NewPropagator(program *ast.Program, opts Options, reporter Reporter, log *logger.Logger) *Propagator {
	if reporter == nil {
		reporter = MultiReporter()
	}
	if log == nil {
		log = logger.NewNop()
	}
	tracker := NewTracker(BuildCatalog(program))
	return &Propagator{
		Tracker:    tracker,
		Classifier: NewClassifier(opts, tracker),
		Sanitizers: NewSanitizerMatcher(opts.Sanitizers, reporter),
		Sinks:      NewSinkEvaluator(reporter),
		Reporter:   reporter,
		program:    program,
		enclosing:  -1,
		log:        log.Named("walker"),
	}
}

// Run walks the top-level statements and returns the findings so far.
func (p *Propagator) Run() []models.Finding {
	if p.program == nil || len(p.program.Body) == 0 {
		p.trace("No program code found to analyze.")
		return p.Findings
	}
	p.log.VV("cataloged %d function declarations", p.Tracker.Functions.Len())
	p.walkStatements(p.program.Body)
	return p.Findings
}

// WalkFunction walks the body of a cataloged declaration against the
// shared variable table.
func (p *Propagator) WalkFunction(rec FunctionRecord) {
	if rec.Declaration == nil || rec.Declaration.Function == nil || rec.Declaration.Function.Body == nil {
		return
	}
	outer := p.enclosing
	idx, _ := p.indexOf(rec)
	p.enclosing = idx
	defer func() { p.enclosing = outer }()

	p.log.Section("function " + rec.Name)
	p.walkStatements(rec.Declaration.Function.Body.List)
}

func (p *Propagator) indexOf(rec FunctionRecord) (int, bool) {
	for i, f := range p.Tracker.Functions.Functions {
		if f.Declaration == rec.Declaration {
			return i, true
		}
	}
	return -1, false
}

func (p *Propagator) walkStatements(list []ast.Statement) {
	for _, stmt := range list {
		p.walkStatement(stmt)
	}
}

func (p *Propagator) walkStatement(stmt ast.Statement) {
	if stmt == nil {
		return
	}
	line := p.line(stmt.Idx0())

	var err error
	switch s := stmt.(type) {
	case *ast.VariableStatement:
		for _, b := range s.List {
			p.declare(b)
		}
	case *ast.LexicalDeclaration:
		for _, b := range s.List {
			p.declare(b)
		}
	case *ast.IfStatement:
		// Both branches write to the same table, one after the other.
		p.walkStatement(s.Consequent)
		if s.Alternate != nil {
			p.walkStatement(s.Alternate)
		}
	case *ast.WhileStatement:
		// One iteration only.
		p.walkStatement(s.Body)
	case *ast.BlockStatement:
		p.walkStatements(s.List)
	case *ast.ExpressionStatement:
		err = p.expression(s.Expression, line)
	case *ast.FunctionDeclaration:
		p.Tracker.Functions.Register(s, p.enclosing)
	case *ast.EmptyStatement:
	default:
		p.trace("Unsupported statement %s on line %d skipped.", nodeKind(s), line)
	}

	if err != nil {
		p.trace("Statement on line %d skipped: %v", line, err)
	}
}

func (p *Propagator) declare(b *ast.Binding) {
	line := p.line(b.Idx0())
	id, ok := b.Target.(*ast.Identifier)
	if !ok {
		p.trace("Unsupported declaration target %s on line %d skipped.", nodeKind(b.Target), line)
		return
	}
	name := id.Name.String()

	// A redeclaration reuses the existing variable; without an initializer
	// it changes nothing.
	v := p.Tracker.Lookup(name)
	if b.Initializer == nil {
		if v == nil {
			p.Tracker.Declare(name)
		}
		return
	}

	// The initializer sees the variable as it was before this declaration.
	var (
		dom     bool
		setDOM  bool
		tainted bool
		source  string
		tags    []models.SanitizerKind
	)
	switch init := b.Initializer.(type) {
	case *ast.CallExpression:
		c := p.Classifier.ClassifyCall(init)
		dom, setDOM = c.IsDomElementReturned, true
		tainted, source = c.IsTainted, c.Source
	case *ast.DotExpression, *ast.BracketExpression:
		c := p.Classifier.ClassifyMember(init, "")
		dom, setDOM = c.IsDomElementReturned, true
		tainted, source = c.IsTainted, c.Source
	case *ast.StringLiteral:
	case *ast.BinaryExpression, *ast.TemplateLiteral, *ast.Identifier:
		val := p.evaluate(init)
		if src, ok := init.(*ast.Identifier); ok {
			if from := p.Tracker.Lookup(src.Name.String()); from != nil {
				dom, setDOM = from.IsDomElement, true
			}
		}
		tainted, source, tags = val.tainted, val.source, val.sanitizers()
	default:
		p.log.VV("initializer %s of %s on line %d treated as clean", nodeKind(init), name, line)
	}

	if v == nil {
		v = p.Tracker.Declare(name)
	}
	if setDOM {
		v.IsDomElement = dom
	}
	if tainted {
		v.Taint(source)
		v.SanitizersApplied = tags
		p.trace("Variable %s was tainted on line %d.", name, line)
	}
}

func (p *Propagator) expression(expr ast.Expression, line int) error {
	switch e := expr.(type) {
	case *ast.AssignExpression:
		return p.assign(e, line)
	case *ast.CallExpression:
		p.call(e, line)
	default:
		p.trace("Unsupported expression %s on line %d skipped.", nodeKind(e), line)
	}
	return nil
}

func (p *Propagator) assign(e *ast.AssignExpression, line int) error {
	call, isCall := e.Right.(*ast.CallExpression)
	var val value
	if !isCall {
		switch e.Right.(type) {
		case *ast.BinaryExpression, *ast.TemplateLiteral, *ast.Identifier, *ast.DotExpression, *ast.BracketExpression:
			val = p.evaluate(e.Right)
		}
	}

	switch left := e.Left.(type) {
	case *ast.Identifier:
		name := left.Name.String()
		target := p.Tracker.Lookup(name)
		if target == nil {
			target = p.Tracker.Declare(name)
			p.log.VV("implicit global %s on line %d", name, line)
		}
		if isCall {
			p.Sanitizers.Apply(target, CalleeSignature(call))
			if p.Classifier.ClassifyCall(call).IsDomElementReturned {
				target.IsDomElement = true
			}
			return nil
		}
		if src, ok := e.Right.(*ast.Identifier); ok && e.Operator == token.ASSIGN {
			if from := p.Tracker.Lookup(src.Name.String()); from != nil {
				target.IsDomElement = from.IsDomElement
			}
		}
		if e.Operator != token.ASSIGN && target.Tainted() {
			val.add(target)
		}
		if !val.tainted {
			return nil
		}
		target.Taint(val.source)
		target.SanitizersApplied = val.sanitizers()
		p.trace("Variable %s is tainted by %s on line %d.", name, val.name, line)
		return nil

	case *ast.DotExpression, *ast.BracketExpression:
		object, property, ok := splitMember(left)
		if !ok {
			return fmt.Errorf("%w: computed member %s", ErrMalformedTarget, MemberPath(left))
		}
		target := p.resolveObject(object)
		if isCall {
			p.Sanitizers.Apply(target, CalleeSignature(call))
			return nil
		}
		if target == nil {
			return nil
		}
		if !val.tainted {
			if id, ok := e.Right.(*ast.Identifier); ok {
				p.Sinks.EvaluateAssignment(target, property, p.Tracker.Lookup(id.Name.String()))
			}
			return nil
		}

		carrier := val.carrier()
		safe, ctx := p.Sinks.EvaluateAssignment(target, property, carrier)
		if !safe {
			p.report(models.Finding{
				Variable: carrier.Name,
				Line:     line,
				Sink:     target.Name + "." + property,
				Context:  ctx,
				Source:   val.source,
				Missing:  carrier.Missing(RequiredSanitizers(ctx)),
			})
		}
		return nil
	}

	return fmt.Errorf("%w: %s", ErrMalformedTarget, nodeKind(e.Left))
}

func (p *Propagator) call(e *ast.CallExpression, line int) {
	object, method, ok := splitMember(e.Callee)
	if !ok {
		p.log.VV("call %s on line %d not followed", CalleeSignature(e), line)
		return
	}
	receiver := p.resolveObject(object)
	if receiver == nil {
		return
	}

	var args []*domast.Variable
	for _, arg := range e.ArgumentList {
		if id, ok := arg.(*ast.Identifier); ok {
			if v := p.Tracker.Lookup(id.Name.String()); v != nil {
				args = append(args, v)
			}
			continue
		}
		if val := p.evaluate(arg); val.tainted {
			args = append(args, val.carrier())
		}
	}

	unsafe, ctx := p.Sinks.EvaluateCall(receiver, e, args)
	for _, v := range unsafe {
		p.report(models.Finding{
			Variable: v.Name,
			Line:     line,
			Sink:     receiver.Name + "." + method,
			Context:  ctx,
			Source:   originOf(v),
			Missing:  v.Missing(RequiredSanitizers(ctx)),
		})
	}
}

// resolveObject finds the variable an element access goes through. Member
// and call chains such as document.body yield a transient variable carrying
// only the DOM-element flag.
func (p *Propagator) resolveObject(object ast.Expression) *domast.Variable {
	switch o := object.(type) {
	case *ast.Identifier:
		return p.Tracker.Lookup(o.Name.String())
	case *ast.DotExpression, *ast.BracketExpression:
		c := p.Classifier.ClassifyMember(o, "")
		return &domast.Variable{Name: MemberPath(o), Status: models.StatusClean, IsDomElement: c.IsDomElementReturned}
	case *ast.CallExpression:
		c := p.Classifier.ClassifyCall(o)
		return &domast.Variable{Name: MemberPath(o), Status: models.StatusClean, IsDomElement: c.IsDomElementReturned}
	}
	return nil
}

func (p *Propagator) report(f models.Finding) {
	p.Findings = append(p.Findings, f)
	p.Reporter.TaintedOutput(f)
}

func (p *Propagator) trace(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	p.log.VV("%s", msg)
	p.Reporter.Trace(msg)
}

func (p *Propagator) line(idx file.Idx) int {
	return domast.Line(p.program, idx)
}

func nodeKind(n interface{}) string {
	return strings.TrimPrefix(fmt.Sprintf("%T", n), "*ast.")
}

// value is the taint carried by a right-hand side.
type value struct {
	tainted      bool
	name         string
	source       string
	contributors []*domast.Variable
	direct       bool
}

func (val *value) add(v *domast.Variable) {
	for _, c := range val.contributors {
		if c == v {
			return
		}
	}
	if !val.tainted {
		val.name = v.Name
		val.source = originOf(v)
	}
	val.tainted = true
	val.contributors = append(val.contributors, v)
}

func (val *value) addDirect(source string) {
	if !val.tainted {
		val.name = source
		val.source = source
	}
	val.tainted = true
	val.direct = true
}

// sanitizers is what survives on the result: the tags every tainted
// contributor holds. A source read directly holds none.
func (val *value) sanitizers() []models.SanitizerKind {
	if val.direct {
		return nil
	}
	return domast.IntersectSanitizers(val.contributors...)
}

func (val *value) carrier() *domast.Variable {
	return &domast.Variable{
		Name:              val.name,
		Status:            models.StatusTainted,
		SanitizersApplied: val.sanitizers(),
		Source:            val.source,
	}
}

func (p *Propagator) evaluate(expr ast.Expression) value {
	var val value
	p.collect(expr, &val)
	return val
}

func (p *Propagator) collect(expr ast.Expression, val *value) {
	switch e := expr.(type) {
	case *ast.Identifier:
		if v := p.Tracker.Lookup(e.Name.String()); v != nil && v.Tainted() {
			val.add(v)
		}
	case *ast.BinaryExpression:
		p.collect(e.Left, val)
		p.collect(e.Right, val)
	case *ast.TemplateLiteral:
		for _, x := range e.Expressions {
			p.collect(x, val)
		}
	case *ast.DotExpression, *ast.BracketExpression:
		if root := rootIdentifier(e); root != nil {
			if v := p.Tracker.Lookup(root.Name.String()); v != nil && v.Tainted() {
				val.add(v)
				return
			}
		}
		if c := p.Classifier.ClassifyMember(e, ""); c.IsTainted {
			val.addDirect(c.Source)
		}
	}
}

func rootIdentifier(expr ast.Expression) *ast.Identifier {
	for {
		switch e := expr.(type) {
		case *ast.Identifier:
			return e
		case *ast.DotExpression:
			expr = e.Left
		case *ast.BracketExpression:
			expr = e.Left
		default:
			return nil
		}
	}
}
