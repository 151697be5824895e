package parser

import (
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// XLSXParser handles spreadsheet exports such as survey results and
// message matrices. Each sheet becomes one section with rows rendered
// as pipe-delimited lines so the extractor sees column relationships.
type XLSXParser struct{}

func (p *XLSXParser) SupportedFormats() []string { return []string{"xlsx", "xls"} }

func (p *XLSXParser) Parse(ctx context.Context, path string) (*ParseResult, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening XLSX: %w", err)
	}
	defer f.Close()

	var sections []Section
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil || len(rows) == 0 {
			continue
		}

		var content strings.Builder
		for _, row := range rows {
			if len(row) == 0 {
				continue
			}
			content.WriteString("| " + strings.Join(row, " | ") + " |\n")
		}
		if content.Len() == 0 {
			continue
		}

		sections = append(sections, Section{
			Heading: sheet,
			Content: strings.TrimSpace(content.String()),
			Metadata: map[string]string{
				"sheet_name": sheet,
				"row_count":  fmt.Sprintf("%d", len(rows)),
			},
		})
	}

	if len(sections) == 0 {
		return nil, fmt.Errorf("no data found in XLSX")
	}
	return &ParseResult{Sections: sections}, nil
}
