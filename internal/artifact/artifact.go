// Package artifact names, stores and reads remittance workbooks.
package artifact

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/paydesk/remitsheet/internal/model"
)

// DefaultSuffix follows the date stamp in generated file names.
const DefaultSuffix = "農會匯款單.xlsx"

// FileName returns YYYYMMDD of t's calendar date followed by suffix.
func FileName(t time.Time, suffix string) string {
	if suffix == "" {
		suffix = DefaultSuffix
	}
	return t.Format("20060102") + suffix
}

// Dir delivers artifacts into a directory.
type Dir struct {
	Path string
}

// Deliver saves data as name under the directory and returns the file path.
func (d Dir) Deliver(name string, data []byte) (string, error) {
	return Save(d.Path, name, data)
}

// Save writes data to dir/name, replacing any existing file.
func Save(dir, name string, data []byte) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating download dir: %w", err)
	}
	path := filepath.Join(dir, filepath.Base(name))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing artifact: %w", err)
	}
	return path, nil
}

// SheetSummary describes one worksheet of a workbook.
type SheetSummary struct {
	Name string `json:"name"`
	Rows int    `json:"rows"`
}

// Inspect lists the worksheets of an xlsx workbook with their row counts.
func Inspect(data []byte) ([]SheetSummary, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	var out []SheetSummary
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("reading sheet %s: %w", name, err)
		}
		out = append(out, SheetSummary{Name: name, Rows: len(rows)})
	}
	return out, nil
}

const exportSheet = "Batch"

var exportHeader = []any{
	"ID", "Name", "Bank", "Bank code", "Account number",
	"Amount payable", "Fee", "Fee reason", "Actual amount",
}

// Export writes the batch and its totals as a local preview workbook.
func Export(w io.Writer, items []model.TransferItem, totals model.Totals) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return fmt.Errorf("naming sheet: %w", err)
	}
	if err := f.SetSheetRow(exportSheet, "A1", &exportHeader); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, it := range items {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{
			it.ID, it.Name, it.Bank, it.BankCode, it.AccountNumber,
			it.AmountPayable, it.ManualFee, reasonCell(it.FeeReason), it.ActualAmount,
		}
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return fmt.Errorf("writing row %d: %w", i+1, err)
		}
	}

	totalRow := len(items) + 2
	cell, err := excelize.CoordinatesToCellName(1, totalRow)
	if err != nil {
		return err
	}
	row := []any{"Total", "", "", "", "", totals.Payable, totals.Fee, "", totals.Actual}
	if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
		return fmt.Errorf("writing totals: %w", err)
	}

	style, err := f.NewStyle(&excelize.Style{NumFmt: 3})
	if err != nil {
		return fmt.Errorf("creating number style: %w", err)
	}
	last, err := excelize.CoordinatesToCellName(9, totalRow)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(exportSheet, "F2", last, style); err != nil {
		return fmt.Errorf("styling amounts: %w", err)
	}
	if err := f.SetColWidth(exportSheet, "B", "C", 28); err != nil {
		return fmt.Errorf("sizing columns: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

func reasonCell(r model.FeeReason) string {
	if r == model.FeeReasonUnset {
		return ""
	}
	return string(r)
}
