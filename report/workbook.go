// Package report renders spreadsheet exports.
package report

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// ContentTypeXLSX is the MIME type of generated workbooks.
const ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Sheet is one tab of a workbook.
type Sheet struct {
	Name    string
	Headers []string
	Rows    [][]any
	// Footer rows are written after a blank line, e.g. totals.
	Footer [][]any
}

// Workbook renders sheets into an XLSX document.
func Workbook(sheets ...Sheet) ([]byte, error) {
	if len(sheets) == 0 {
		return nil, fmt.Errorf("report: no sheets")
	}
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("report: header style: %w", err)
	}

	for i, sheet := range sheets {
		name := sheet.Name
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), name); err != nil {
				return nil, fmt.Errorf("report: rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("report: new sheet %s: %w", name, err)
		}

		header := make([]any, len(sheet.Headers))
		for j, h := range sheet.Headers {
			header[j] = h
		}
		if err := f.SetSheetRow(name, "A1", &header); err != nil {
			return nil, fmt.Errorf("report: header row: %w", err)
		}
		if len(header) > 0 {
			last, _ := excelize.CoordinatesToCellName(len(header), 1)
			if err := f.SetCellStyle(name, "A1", last, bold); err != nil {
				return nil, fmt.Errorf("report: header style: %w", err)
			}
		}

		row := 2
		for _, values := range sheet.Rows {
			if err := writeRow(f, name, row, values); err != nil {
				return nil, err
			}
			row++
		}
		if len(sheet.Footer) > 0 {
			row++
			for _, values := range sheet.Footer {
				if err := writeRow(f, name, row, values); err != nil {
					return nil, err
				}
				row++
			}
		}
	}

	buf := &bytes.Buffer{}
	if err := f.Write(buf); err != nil {
		return nil, fmt.Errorf("report: write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("report: cell name: %w", err)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("report: row %d: %w", row, err)
	}
	return nil
}

// FormatAmount renders an amount with thousands separators, e.g. "INR 1,234.50".
func FormatAmount(currency string, amount float64) string {
	p := message.NewPrinter(language.English)
	if currency == "" {
		return p.Sprintf("%.2f", amount)
	}
	return p.Sprintf("%s %.2f", currency, amount)
}

// Filename builds a timestamped export name such as items_20260102_150405.xlsx.
func Filename(prefix string, now time.Time) string {
	return fmt.Sprintf("%s_%s.xlsx", prefix, now.Format("20060102_150405"))
}

// WriteXLSX sends a workbook as an attachment.
func WriteXLSX(w http.ResponseWriter, filename string, data []byte) {
	w.Header().Set("Content-Type", ContentTypeXLSX)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
