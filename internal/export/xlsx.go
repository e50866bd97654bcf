package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"
)

// XLSXWriter implements SheetWriter by writing a workbook to disk.
type XLSXWriter struct {
	path string
}

// NewXLSXWriter creates a writer that replaces the workbook at path on every run.
func NewXLSXWriter(path string) *XLSXWriter {
	return &XLSXWriter{path: path}
}

// Write renders every sheet into a fresh workbook and atomically replaces the file.
func (w *XLSXWriter) Write(_ context.Context, report Report) error {
	f := excelize.NewFile()
	defer f.Close()

	sheetsData := []struct {
		name string
		rows [][]any
	}{
		{SheetReceipts, buildReceipts(report.Receipts)},
		{SheetItems, buildItems(report.Receipts)},
		{SheetTargets, buildTargets(report.Receipts)},
		{SheetSummary, [][]any{summaryHeader, summaryRow(report.Summary)}},
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"D9EAD3"}},
	})
	if err != nil {
		return fmt.Errorf("creating header style: %w", err)
	}

	for i, sd := range sheetsData {
		idx, err := f.NewSheet(sd.name)
		if err != nil {
			return fmt.Errorf("creating sheet %s: %w", sd.name, err)
		}
		if i == 0 {
			f.SetActiveSheet(idx)
		}
		if err := writeRows(f, sd.name, sd.rows); err != nil {
			return err
		}
		if len(sd.rows) > 0 {
			last, _ := excelize.CoordinatesToCellName(len(sd.rows[0]), 1)
			if err := f.SetCellStyle(sd.name, "A1", last, headerStyle); err != nil {
				return fmt.Errorf("styling sheet %s: %w", sd.name, err)
			}
		}
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("removing default sheet: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return fmt.Errorf("creating export directory: %w", err)
	}
	tmp := w.path + ".tmp.xlsx"
	if err := f.SaveAs(tmp); err != nil {
		return fmt.Errorf("saving workbook: %w", err)
	}
	if err := os.Rename(tmp, w.path); err != nil {
		return fmt.Errorf("replacing workbook: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("writing %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
