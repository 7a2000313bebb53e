package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/your-org/mediascribe/internal/domain"
)

var tableHeader = []string{"Audio File Name", "Transcript/Translation", "Format Chosen", "Sentiment"}

// truncatedMarker ends a transcript cut to fit one spreadsheet cell.
const truncatedMarker = " [truncated, full text in the text export]"

// ExportTable appends results to today's spreadsheet, creating it if
// needed. The merged table is rewritten in full.
func (e *Exporter) ExportTable(results []domain.ProcessingResult) (string, error) {
	e.tableMu.Lock()
	defer e.tableMu.Unlock()

	if err := e.ensureDir(); err != nil {
		return "", err
	}
	path := filepath.Join(e.dir, e.baseName()+".xlsx")

	rows, err := readTableRows(path)
	if err != nil {
		return "", err
	}
	for _, r := range results {
		text := r.Text
		if n := utf8.RuneCountInString(text); n > excelize.TotalCellChars {
			text = fitCell(text)
			e.logger.Warn("transcript truncated in table export",
				zap.String("source", r.SourceName),
				zap.Int("chars", n),
				zap.Int("limit", excelize.TotalCellChars),
			)
		}
		rows = append(rows, []string{r.SourceName, text, r.FormatLabel, string(r.Sentiment)})
	}

	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	if err := setRow(f, sheet, 1, tableHeader); err != nil {
		return "", err
	}
	for i, row := range rows {
		if err := setRow(f, sheet, i+2, row); err != nil {
			return "", err
		}
	}

	err = e.replaceFile(path, func(out *os.File) error {
		if err := f.Write(out); err != nil {
			return fmt.Errorf("write workbook: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return path, nil
}

// readTableRows returns the data rows of an existing table, without the
// header. A missing file yields no rows.
func readTableRows(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	all, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(all) <= 1 {
		return nil, nil
	}

	rows := make([][]string, 0, len(all)-1)
	for _, row := range all[1:] {
		padded := make([]string, len(tableHeader))
		copy(padded, row)
		rows = append(rows, padded)
	}
	return rows, nil
}

// fitCell cuts text so that, with the marker appended, it fills exactly one cell.
func fitCell(text string) string {
	keep := excelize.TotalCellChars - utf8.RuneCountInString(truncatedMarker)
	runes := []rune(text)
	return string(runes[:keep]) + truncatedMarker
}

func setRow(f *excelize.File, sheet string, n int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, n)
	if err != nil {
		return err
	}
	row := make([]interface{}, len(values))
	for i, v := range values {
		row[i] = v
	}
	if err := f.SetSheetRow(sheet, cell, &row); err != nil {
		return fmt.Errorf("set row %d: %w", n, err)
	}
	return nil
}
