package taint

import (
	"github.com/dop251/goja/ast"
)

// FunctionRecord is one named function declaration. Parent indexes the
// enclosing declaration in the same catalog, or is -1 at top level.
type FunctionRecord struct {
	Name        string
	Declaration *ast.FunctionDeclaration
	Parent      int
}

// Catalog lists every function declaration of a program in source order.
type Catalog struct {
	Functions []FunctionRecord
	byName    map[string]int
	known     map[*ast.FunctionDeclaration]bool
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		byName: make(map[string]int),
		known:  make(map[*ast.FunctionDeclaration]bool),
	}
}

// BuildCatalog walks program and records every function declaration,
// nested ones included, before any statement is analyzed. Calls may
// therefore precede the declarations they reach.
func BuildCatalog(program *ast.Program) *Catalog {
	c := NewCatalog()
	if program == nil {
		return c
	}
	for _, stmt := range program.Body {
		c.collect(stmt, -1)
	}
	return c
}

func (c *Catalog) collect(stmt ast.Statement, parent int) {
	switch s := stmt.(type) {
	case *ast.FunctionDeclaration:
		idx := c.Register(s, parent)
		if s.Function != nil && s.Function.Body != nil {
			for _, inner := range s.Function.Body.List {
				c.collect(inner, idx)
			}
		}
	case *ast.BlockStatement:
		for _, inner := range s.List {
			c.collect(inner, parent)
		}
	case *ast.IfStatement:
		c.collect(s.Consequent, parent)
		if s.Alternate != nil {
			c.collect(s.Alternate, parent)
		}
	case *ast.WhileStatement:
		c.collect(s.Body, parent)
	}
}

// Register appends decl and returns its index. A declaration that is
// already cataloged keeps its original record; an anonymous one is not
// recorded and parent is returned.
func (c *Catalog) Register(decl *ast.FunctionDeclaration, parent int) int {
	if decl == nil || decl.Function == nil || decl.Function.Name == nil {
		return parent
	}
	name := decl.Function.Name.Name.String()
	if c.known[decl] {
		for i, f := range c.Functions {
			if f.Declaration == decl {
				return i
			}
		}
	}
	c.known[decl] = true
	c.Functions = append(c.Functions, FunctionRecord{Name: name, Declaration: decl, Parent: parent})
	idx := len(c.Functions) - 1
	if _, exists := c.byName[name]; !exists {
		c.byName[name] = idx
	}
	return idx
}

// Lookup returns the first declaration recorded under name.
func (c *Catalog) Lookup(name string) (FunctionRecord, bool) {
	idx, ok := c.byName[name]
	if !ok {
		return FunctionRecord{}, false
	}
	return c.Functions[idx], true
}

// Len is the number of recorded declarations.
func (c *Catalog) Len() int {
	return len(c.Functions)
}
