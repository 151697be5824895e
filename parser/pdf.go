package parser

import (
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDFParser extracts text page by page. Brand decks and clinical
// one-pagers are mostly flowed text, so each page becomes one section;
// short all-caps lines at the top of a page are promoted to headings.
type PDFParser struct{}

func (p *PDFParser) SupportedFormats() []string { return []string{"pdf"} }

func (p *PDFParser) Parse(ctx context.Context, path string) (*ParseResult, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer f.Close()

	var sections []Section
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			// Skip pages that fail to extract
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}

		heading, body := splitPageHeading(text)
		sections = append(sections, Section{
			Heading:    heading,
			Content:    body,
			PageNumber: i,
		})
	}

	if len(sections) == 0 {
		return nil, fmt.Errorf("no extractable text in PDF")
	}
	return &ParseResult{Sections: sections}, nil
}

// splitPageHeading peels a leading heading-like line off page text.
func splitPageHeading(text string) (heading, body string) {
	lines := strings.SplitN(text, "\n", 2)
	first := strings.TrimSpace(lines[0])
	if len(lines) == 2 && isLikelyHeading(first) {
		return first, strings.TrimSpace(lines[1])
	}
	return "", text
}

func isLikelyHeading(line string) bool {
	if len(line) < 3 || len(line) > 100 {
		return false
	}
	return line == strings.ToUpper(line) && strings.IndexFunc(line, isLetter) >= 0
}

func isLetter(r rune) bool {
	return (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z')
}
