package config

import "time"

// Version is the current version of domtaint
const Version = "v0.3.0"

// Author is the author of the tool
const Author = "@lcalzada-xor"

// Default Values
const (
	DefaultConcurrency = 4
	DefaultTimeout     = 10 * time.Second
	DefaultUserAgent   = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/80.0.3987.100 Safari/537.36"
	DefaultLogLevel    = "info"
	DefaultFormat      = "text"
)

// DocumentPatterns are the identifiers treated as the document object.
var DocumentPatterns = []string{
	"document",
	"window.document",
}

// TaintedSourcePatterns are matched as substrings of a document-rooted
// member path. "value" covers input.value reads on looked-up elements.
var TaintedSourcePatterns = []string{
	"document.location",
	"location.href",
	"location.hash",
	"value",
}

// DOMElementPatterns are the document accessors that return an element.
var DOMElementPatterns = []string{
	"getElementById",
	"createElement",
	"querySelector",
	"body",
}

// Sanitizer patterns are newline-delimited call prefixes, one per line.
const (
	DefaultHTMLSanitizers = "sanitizeForHtmlOutput(\nDOMPurify.sanitize(\nescapeHTML(\n_.escape("
	DefaultURLSanitizers  = "encodeURIComponent(\nencodeURI(\nsanitizeUrl("
	DefaultJSSanitizers   = ""
)
