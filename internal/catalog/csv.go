package catalog

import (
	"encoding/csv"
	"os"

	"knapga/internal/model"
)

// LoadCSV reads a header row (id or sku, weight, value) followed by one item per row.
func LoadCSV(path string) ([]model.Item, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	return fromRows(rows)
}
