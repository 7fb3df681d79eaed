package ast

import (
	"github.com/dop251/goja/ast"
	"github.com/dop251/goja/file"
	"github.com/dop251/goja/parser"
)

// Parse parses the given JavaScript code and returns the AST program.
func Parse(code string) (*ast.Program, error) {
	// ParseFile(filename, src, mode)
	// We pass empty filename and 0 mode (default)
	return parser.ParseFile(nil, "", code, 0)
}

// HandlerCallee reports the function name when an inline event handler
// value is exactly one direct call such as "init()" or "show(1, 'a')".
func HandlerCallee(value string) (string, bool) {
	program, err := Parse(value)
	if err != nil || len(program.Body) != 1 {
		return "", false
	}
	stmt, ok := program.Body[0].(*ast.ExpressionStatement)
	if !ok {
		return "", false
	}
	call, ok := stmt.Expression.(*ast.CallExpression)
	if !ok {
		return "", false
	}
	callee, ok := call.Callee.(*ast.Identifier)
	if !ok {
		return "", false
	}
	return callee.Name.String(), true
}

// Line returns the 1-based line of idx inside program.
func Line(program *ast.Program, idx file.Idx) int {
	if program == nil || program.File == nil {
		return 0
	}
	offset := int(idx) - program.File.Base()
	if offset < 0 {
		offset = 0
	}
	return program.File.Position(offset).Line
}
