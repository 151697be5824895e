package parser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// TextParser handles plain text (.txt) and Markdown (.md) files.
// Markdown is split into sections on heading lines so downstream
// extraction sees brand messaging grouped the way the author wrote it.
type TextParser struct{}

func (p *TextParser) SupportedFormats() []string { return []string{"txt", "md", "markdown"} }

func (p *TextParser) Parse(ctx context.Context, path string) (*ParseResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading text file: %w", err)
	}

	content := strings.TrimSpace(string(data))
	if content == "" {
		return &ParseResult{}, nil
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".md" || ext == ".markdown" {
		if sections := splitMarkdown(content); len(sections) > 0 {
			return &ParseResult{Sections: sections}, nil
		}
	}

	return &ParseResult{
		Sections: []Section{{
			Heading: filepath.Base(path),
			Content: content,
		}},
	}, nil
}

// splitMarkdown breaks markdown into sections on # heading lines.
func splitMarkdown(content string) []Section {
	var sections []Section
	var heading string
	var body strings.Builder

	flush := func() {
		text := strings.TrimSpace(body.String())
		if heading == "" && text == "" {
			return
		}
		sections = append(sections, Section{Heading: heading, Content: text})
		body.Reset()
	}

	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			flush()
			heading = strings.TrimSpace(strings.TrimLeft(trimmed, "#"))
			continue
		}
		body.WriteString(line)
		body.WriteString("\n")
	}
	flush()

	return sections
}
