package ast

import "github.com/lcalzada-xor/domtaint/pkg/models"

// ScopeType defines the type of the scope
type ScopeType int

const (
	ScopeGlobal ScopeType = iota
	ScopeFunction
	ScopeBlock
)

// Scope is the variable table of one analysis pass. Handler bodies share the
// global scope, so in practice a pass owns exactly one.
type Scope struct {
	Type      ScopeType
	Parent    *Scope
	Variables map[string]*Variable
	order     []string
}

// Variable represents a variable defined in a scope
type Variable struct {
	Name              string
	Status            models.TaintStatus
	IsDomElement      bool
	SanitizersApplied []models.SanitizerKind
	Source            string // Description of the source if tainted
}

// NewScope creates a new scope
func NewScope(parent *Scope, scopeType ScopeType) *Scope {
	return &Scope{
		Type:      scopeType,
		Parent:    parent,
		Variables: make(map[string]*Variable),
	}
}

// Define creates a new clean variable in the current scope, replacing any
// earlier declaration with the same name.
func (s *Scope) Define(name string) *Variable {
	v := &Variable{Name: name, Status: models.StatusClean}
	if _, exists := s.Variables[name]; !exists {
		s.order = append(s.order, name)
	}
	s.Variables[name] = v
	return v
}

// Lookup finds a variable in the current or parent scopes
func (s *Scope) Lookup(name string) *Variable {
	if v, ok := s.Variables[name]; ok {
		return v
	}
	if s.Parent != nil {
		return s.Parent.Lookup(name)
	}
	return nil
}

// All returns the variables of this scope in declaration order.
func (s *Scope) All() []*Variable {
	vars := make([]*Variable, 0, len(s.order))
	for _, name := range s.order {
		vars = append(vars, s.Variables[name])
	}
	return vars
}

// Tainted reports whether the variable currently holds tainted data.
func (v *Variable) Tainted() bool {
	return v.Status == models.StatusTainted
}

// Taint marks a variable as tainted
func (v *Variable) Taint(source string) {
	v.Status = models.StatusTainted
	v.Source = source
}

// HasSanitizer reports whether kind was applied to the variable.
func (v *Variable) HasSanitizer(kind models.SanitizerKind) bool {
	for _, s := range v.SanitizersApplied {
		if s == kind {
			return true
		}
	}
	return false
}

// AddSanitizer tags the variable with kind. It returns false when the tag
// was already present.
func (v *Variable) AddSanitizer(kind models.SanitizerKind) bool {
	if v.HasSanitizer(kind) {
		return false
	}
	v.SanitizersApplied = append(v.SanitizersApplied, kind)
	return true
}

// IntersectSanitizers returns the tags held by every contributor, in the
// order of the first one. No contributors means no tags.
func IntersectSanitizers(contributors ...*Variable) []models.SanitizerKind {
	if len(contributors) == 0 {
		return nil
	}
	var common []models.SanitizerKind
	for _, s := range contributors[0].SanitizersApplied {
		held := true
		for _, c := range contributors[1:] {
			if !c.HasSanitizer(s) {
				held = false
				break
			}
		}
		if held {
			common = append(common, s)
		}
	}
	return common
}

// Covers reports whether every required tag has been applied.
func (v *Variable) Covers(required []models.SanitizerKind) bool {
	for _, r := range required {
		if !v.HasSanitizer(r) {
			return false
		}
	}
	return true
}

// Missing lists the required tags that have not been applied.
func (v *Variable) Missing(required []models.SanitizerKind) []models.SanitizerKind {
	var missing []models.SanitizerKind
	for _, r := range required {
		if !v.HasSanitizer(r) {
			missing = append(missing, r)
		}
	}
	return missing
}
