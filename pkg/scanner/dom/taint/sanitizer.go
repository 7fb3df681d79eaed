package taint

import (
	"fmt"
	"strings"

	"github.com/lcalzada-xor/domtaint/pkg/config"
	"github.com/lcalzada-xor/domtaint/pkg/models"
	domast "github.com/lcalzada-xor/domtaint/pkg/scanner/dom/ast"
)

// SanitizerPatterns are the three newline-delimited prefix lists.
type SanitizerPatterns struct {
	HTML       string
	URL        string
	JavaScript string
}

type sanitizerCategory struct {
	kind     models.SanitizerKind
	label    string
	patterns []string
}

// SanitizerMatcher recognizes sanitizer calls by the prefix of their
// callee signature.
type SanitizerMatcher struct {
	categories []sanitizerCategory
	reporter   Reporter
}

// NewSanitizerMatcher splits patterns once. Blank lines are dropped.
func NewSanitizerMatcher(patterns SanitizerPatterns, reporter Reporter) *SanitizerMatcher {
	return &SanitizerMatcher{
		categories: []sanitizerCategory{
			{kind: models.SanitizerHTML, label: "HTML", patterns: config.SplitPatterns(patterns.HTML)},
			{kind: models.SanitizerURL, label: "URL", patterns: config.SplitPatterns(patterns.URL)},
			{kind: models.SanitizerJS, label: "JS", patterns: config.SplitPatterns(patterns.JavaScript)},
		},
		reporter: reporter,
	}
}

// Match lists the sanitizer kinds whose patterns prefix signature.
func (m *SanitizerMatcher) Match(signature string) []models.SanitizerKind {
	var kinds []models.SanitizerKind
	for _, cat := range m.categories {
		if hasAnyPrefix(signature, cat.patterns) {
			kinds = append(kinds, cat.kind)
		}
	}
	return kinds
}

// Apply tags v with every kind signature matches and reports each match.
// Tags are never duplicated.
func (m *SanitizerMatcher) Apply(v *domast.Variable, signature string) []models.SanitizerKind {
	if v == nil {
		return nil
	}
	var applied []models.SanitizerKind
	for _, cat := range m.categories {
		if !hasAnyPrefix(signature, cat.patterns) {
			continue
		}
		v.AddSanitizer(cat.kind)
		applied = append(applied, cat.kind)
		if m.reporter != nil {
			m.reporter.Trace(fmt.Sprintf("Variable %s was sanitized for %s.", v.Name, cat.label))
		}
	}
	return applied
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
