package taint

import (
	domast "github.com/lcalzada-xor/domtaint/pkg/scanner/dom/ast"
)

// VariableTable resolves identifiers to the variables of the current pass.
type VariableTable interface {
	Lookup(name string) *domast.Variable
}

// Tracker holds the state of one taint pass: the variable table and the
// function catalog. Nothing in it is shared between passes.
type Tracker struct {
	GlobalScope *domast.Scope
	Functions   *Catalog
}

// NewTracker creates a Tracker over functions with an empty global scope.
func NewTracker(functions *Catalog) *Tracker {
	if functions == nil {
		functions = NewCatalog()
	}
	return &Tracker{
		GlobalScope: domast.NewScope(nil, domast.ScopeGlobal),
		Functions:   functions,
	}
}

// Lookup finds a declared variable, or nil.
func (t *Tracker) Lookup(name string) *domast.Variable {
	return t.GlobalScope.Lookup(name)
}

// Declare creates a clean variable, replacing an earlier one of the same name.
func (t *Tracker) Declare(name string) *domast.Variable {
	return t.GlobalScope.Define(name)
}

// Variables returns the table in declaration order.
func (t *Tracker) Variables() []*domast.Variable {
	return t.GlobalScope.All()
}
