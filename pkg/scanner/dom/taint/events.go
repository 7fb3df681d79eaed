package taint

import (
	"strings"

	domast "github.com/lcalzada-xor/domtaint/pkg/scanner/dom/ast"
	"github.com/lcalzada-xor/domtaint/pkg/scanner/dom/document"
)

// EventBinding is an inline on* attribute and the element carrying it.
type EventBinding struct {
	AttributeName string
	Value         string
	Host          document.Element
}

// IsDocumentOnload reports whether b is the onload of <body>.
func (b EventBinding) IsDocumentOnload() bool {
	return b.AttributeName == "onload" && b.Host != nil && strings.EqualFold(b.Host.TagName(), "body")
}

// EventBindings collects the on* attributes of every element and of the
// document root. The body onload, if any, comes first; the rest keep
// document order.
func EventBindings(doc document.Document) []EventBinding {
	if doc == nil {
		return nil
	}
	elements := doc.Elements()
	if root := doc.Root(); root != nil {
		elements = append(elements, root)
	}

	var all []EventBinding
	for _, el := range elements {
		for _, attr := range el.Attributes() {
			name := strings.ToLower(attr.Name)
			if !strings.HasPrefix(name, "on") {
				continue
			}
			all = append(all, EventBinding{AttributeName: name, Value: attr.Value, Host: el})
		}
	}

	onload := -1
	for i, b := range all {
		if b.IsDocumentOnload() {
			onload = i
			break
		}
	}
	if onload <= 0 {
		return all
	}

	ordered := make([]EventBinding, 0, len(all))
	ordered = append(ordered, all[onload])
	ordered = append(ordered, all[:onload]...)
	return append(ordered, all[onload+1:]...)
}

// RunEvents walks the handler of every event binding of doc against the
// variable table left by Run, and returns how many bindings were found.
func (p *Propagator) RunEvents(doc document.Document) int {
	bindings := EventBindings(doc)
	p.trace("Number of event bindings in document: %d", len(bindings))

	for _, b := range bindings {
		if b.IsDocumentOnload() {
			p.trace("Analyzing document onload event handler.")
		}
		p.handler(b)
	}
	return len(bindings)
}

func (p *Propagator) handler(b EventBinding) {
	name, ok := domast.HandlerCallee(b.Value)
	if !ok {
		p.trace("Event handler %s=%q is not a direct function call, skipped.", b.AttributeName, b.Value)
		return
	}
	rec, ok := p.Tracker.Functions.Lookup(name)
	if !ok {
		p.trace("Event handler %s calls unknown function %s, skipped.", b.AttributeName, name)
		return
	}
	p.log.VV("%s on <%s> -> %s", b.AttributeName, b.Host.TagName(), name)
	p.WalkFunction(rec)
}
