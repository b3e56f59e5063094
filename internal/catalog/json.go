package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"knapga/internal/map2rec"
	"knapga/internal/model"
)

// LoadJSON accepts a bare list of item objects, an object with an "items"
// list, or a versioned "catalog" record envelope.
func LoadJSON(path string) ([]model.Item, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return DecodeJSON(data)
}

func DecodeJSON(data []byte) ([]model.Item, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrInvalidItem)
	}

	var items []model.Item
	switch trimmed[0] {
	case '[':
		var raw []any
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return nil, err
		}
		converted, err := map2rec.ConvertItems(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidItem, err)
		}
		items = converted
	case '{':
		var raw map[string]any
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return nil, err
		}
		if _, enveloped := raw["payload"]; enveloped {
			kind, record, err := map2rec.DecodeRecord(trimmed)
			if err != nil {
				return nil, err
			}
			converted, ok := record.([]model.Item)
			if !ok {
				return nil, fmt.Errorf("%w: record kind %s is not a catalog", ErrUnsupportedFormat, kind)
			}
			items = converted
			break
		}
		list, ok := raw["items"]
		if !ok {
			return nil, fmt.Errorf("%w: object without items list", ErrInvalidItem)
		}
		converted, err := map2rec.ConvertItems(list)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidItem, err)
		}
		items = converted
	default:
		return nil, fmt.Errorf("%w: expected a JSON list or object", ErrUnsupportedFormat)
	}

	if err := Validate(items); err != nil {
		return nil, err
	}
	return items, nil
}

// EncodeJSON writes items as a versioned catalog envelope.
func EncodeJSON(items []model.Item) ([]byte, error) {
	return map2rec.EncodeRecord("catalog", items)
}
