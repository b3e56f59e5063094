// Package catalog loads item catalogs from JSON, CSV and XLSX files.
package catalog

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"knapga/internal/evo"
	"knapga/internal/map2rec"
	"knapga/internal/model"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported catalog format")
	ErrInvalidItem       = errors.New("invalid catalog item")
)

// Default returns the four-item sample catalog.
func Default() []model.Item {
	return []model.Item{
		{ID: "aa", Weight: 1, Value: 3},
		{ID: "bb", Weight: 2, Value: 2},
		{ID: "cc", Weight: 4, Value: 6},
		{ID: "dd", Weight: 6, Value: 8},
	}
}

// Load reads a catalog, choosing the decoder by file extension.
func Load(path string) ([]model.Item, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return LoadJSON(path)
	case ".csv":
		return LoadCSV(path)
	case ".xlsx":
		return LoadXLSX(path, "")
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// Validate checks every item can be scored.
func Validate(items []model.Item) error {
	for i, item := range items {
		if err := evo.ValidateItem(item); err != nil {
			return fmt.Errorf("%w: row %d: %v", ErrInvalidItem, i+1, err)
		}
	}
	return nil
}

// TotalWeight sums item weights.
func TotalWeight(items []model.Item) int {
	total := 0
	for _, item := range items {
		total += item.Weight
	}
	return total
}

// fromRows converts a header row plus data rows into items. Header names are
// matched case-insensitively; blank rows are skipped.
func fromRows(rows [][]string) ([]model.Item, error) {
	if len(rows) == 0 {
		return []model.Item{}, nil
	}
	header := make([]string, len(rows[0]))
	for i, name := range rows[0] {
		header[i] = strings.ToLower(strings.TrimSpace(name))
	}

	items := make([]model.Item, 0, len(rows)-1)
	for rowIdx, row := range rows[1:] {
		if blankRow(row) {
			continue
		}
		record := make(map[string]any, len(header))
		for i, name := range header {
			if name == "" || i >= len(row) {
				continue
			}
			record[name] = strings.TrimSpace(row[i])
		}
		item, err := map2rec.ConvertItem(record)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", ErrInvalidItem, rowIdx+2, err)
		}
		items = append(items, item)
	}
	if err := Validate(items); err != nil {
		return nil, err
	}
	return items, nil
}

func blankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
