// Package document exposes the parts of an HTML page the taint pass needs:
// every element with its attributes, and the page's scripts.
package document

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Attribute is one name="value" pair of an element.
type Attribute struct {
	Name  string
	Value string
}

// Element is a node that carries attributes.
type Element interface {
	TagName() string
	Attributes() []Attribute
}

// Document enumerates elements in document order. Root is the document
// node itself.
type Document interface {
	Elements() []Element
	Root() Element
}

// Script is one <script> element: either an external src or an inline body.
type Script struct {
	Src    string
	Inline string
}

// External reports whether the script is loaded from Src.
func (s Script) External() bool {
	return s.Src != ""
}

// HTMLDocument is a Document backed by goquery.
type HTMLDocument struct {
	doc *goquery.Document
}

// Parse reads an HTML document from r.
func Parse(r io.Reader) (*HTMLDocument, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return &HTMLDocument{doc: doc}, nil
}

// ParseString parses an in-memory HTML document.
func ParseString(content string) (*HTMLDocument, error) {
	return Parse(strings.NewReader(content))
}

// Elements returns every element below the document node in document order.
func (d *HTMLDocument) Elements() []Element {
	var elements []Element
	d.doc.Find("*").Each(func(_ int, s *goquery.Selection) {
		for _, n := range s.Nodes {
			elements = append(elements, nodeElement{n: n})
		}
	})
	return elements
}

// Root returns the document node.
func (d *HTMLDocument) Root() Element {
	if len(d.doc.Nodes) == 0 {
		return nodeElement{n: &html.Node{Type: html.DocumentNode}}
	}
	return nodeElement{n: d.doc.Nodes[0]}
}

// Scripts lists the JavaScript <script> elements in document order.
// Scripts with a non-JavaScript type, such as templates or JSON, are left out.
func (d *HTMLDocument) Scripts() []Script {
	var scripts []Script
	d.doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		if kind, ok := s.Attr("type"); ok && !isJavaScriptType(kind) {
			return
		}
		if src, ok := s.Attr("src"); ok && strings.TrimSpace(src) != "" {
			scripts = append(scripts, Script{Src: strings.TrimSpace(src)})
			return
		}
		if body := s.Text(); strings.TrimSpace(body) != "" {
			scripts = append(scripts, Script{Inline: body})
		}
	})
	return scripts
}

func isJavaScriptType(kind string) bool {
	kind = strings.ToLower(strings.TrimSpace(kind))
	if i := strings.IndexByte(kind, ';'); i >= 0 {
		kind = strings.TrimSpace(kind[:i])
	}
	switch kind {
	case "", "module", "text/javascript", "application/javascript",
		"text/ecmascript", "application/ecmascript", "application/x-javascript":
		return true
	}
	return false
}

type nodeElement struct {
	n *html.Node
}

func (e nodeElement) TagName() string {
	if e.n.Type == html.DocumentNode {
		return "#document"
	}
	return e.n.Data
}

func (e nodeElement) Attributes() []Attribute {
	attrs := make([]Attribute, 0, len(e.n.Attr))
	for _, a := range e.n.Attr {
		attrs = append(attrs, Attribute{Name: a.Key, Value: a.Val})
	}
	return attrs
}
