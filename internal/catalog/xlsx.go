package catalog

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"knapga/internal/model"
)

// LoadXLSX reads items from sheet, or from the first sheet when sheet is empty.
// The first row is the header, laid out as for LoadCSV.
func LoadXLSX(path, sheet string) ([]model.Item, error) {
	file, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open excel file: %w", err)
	}
	defer file.Close()

	if sheet == "" {
		sheets := file.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("no sheets found in excel file")
		}
		sheet = sheets[0]
	} else if idx, err := file.GetSheetIndex(sheet); err != nil || idx < 0 {
		return nil, fmt.Errorf("sheet not found: %s", sheet)
	}

	rows, err := file.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	return fromRows(rows)
}

// WriteXLSX writes items to a new workbook with a single "items" sheet.
func WriteXLSX(path string, items []model.Item) error {
	file := excelize.NewFile()
	defer file.Close()

	const sheet = "items"
	if err := file.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}
	if err := file.SetSheetRow(sheet, "A1", &[]any{"id", "weight", "value"}); err != nil {
		return err
	}
	for i, item := range items {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{item.ID, item.Weight, item.Value}
		if err := file.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return file.SaveAs(path)
}
