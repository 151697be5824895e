// Package parser extracts plain text from brand document files ahead
// of insight extraction. Markdown and plain text are handled natively;
// PDF and XLSX go through format-specific parsers.
package parser

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrUnsupportedFormat is returned when no registered parser handles a
// file's extension.
var ErrUnsupportedFormat = errors.New("parser: unsupported format")

// Section represents a logical section of a parsed document.
type Section struct {
	Heading    string
	Content    string
	PageNumber int
	Metadata   map[string]string
}

// ParseResult is what a parser produces from a document file.
type ParseResult struct {
	Sections []Section
}

// Text flattens the result into one plain-text body, headings inline,
// sections separated by blank lines. This is the form handed to the
// insight extractor.
func (r *ParseResult) Text() string {
	var b strings.Builder
	for _, s := range r.Sections {
		if s.Heading != "" {
			b.WriteString(s.Heading)
			b.WriteString("\n")
		}
		if s.Content != "" {
			b.WriteString(s.Content)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}

// Parser can parse a specific document format.
type Parser interface {
	Parse(ctx context.Context, path string) (*ParseResult, error)
	SupportedFormats() []string
}

// Registry maps file extensions to parsers.
type Registry struct {
	parsers map[string]Parser
}

func NewRegistry() *Registry {
	r := &Registry{parsers: make(map[string]Parser)}
	for _, p := range []Parser{&TextParser{}, &PDFParser{}, &XLSXParser{}} {
		for _, f := range p.SupportedFormats() {
			r.parsers[f] = p
		}
	}
	return r
}

// Get returns the parser for a format ("pdf", "md", ...).
func (r *Registry) Get(format string) (Parser, error) {
	p, ok := r.parsers[format]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	return p, nil
}

func (r *Registry) Register(format string, p Parser) {
	r.parsers[format] = p
}

// ParseFile picks a parser from the file extension and runs it.
func (r *Registry) ParseFile(ctx context.Context, path string) (*ParseResult, error) {
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	p, err := r.Get(format)
	if err != nil {
		return nil, err
	}
	return p.Parse(ctx, path)
}
