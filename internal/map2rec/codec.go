package map2rec

import (
	"encoding/json"
	"errors"
	"fmt"
)

const (
	SupportedSchemaVersion = 1
	SupportedCodecVersion  = 1
)

var ErrRecordVersionMismatch = errors.New("record version mismatch")

// RecordEnvelope wraps a record payload with its kind and versions.
type RecordEnvelope struct {
	SchemaVersion int             `json:"schema_version"`
	CodecVersion  int             `json:"codec_version"`
	Kind          string          `json:"kind"`
	Payload       json.RawMessage `json:"payload"`
}

func EncodeRecord(kind string, record any) ([]byte, error) {
	payload, err := json.Marshal(record)
	if err != nil {
		return nil, err
	}
	return json.Marshal(RecordEnvelope{
		SchemaVersion: SupportedSchemaVersion,
		CodecVersion:  SupportedCodecVersion,
		Kind:          kind,
		Payload:       payload,
	})
}

// DecodeRecord unwraps an envelope and converts its payload by kind.
// Kind "catalog" yields []model.Item.
func DecodeRecord(data []byte) (string, any, error) {
	var envelope RecordEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return "", nil, err
	}
	if envelope.SchemaVersion != SupportedSchemaVersion || envelope.CodecVersion != SupportedCodecVersion {
		return "", nil, fmt.Errorf("%w: schema=%d codec=%d", ErrRecordVersionMismatch, envelope.SchemaVersion, envelope.CodecVersion)
	}

	if envelope.Kind == "catalog" {
		var raw []any
		if err := json.Unmarshal(envelope.Payload, &raw); err != nil {
			return "", nil, err
		}
		items, err := ConvertItems(raw)
		if err != nil {
			return "", nil, err
		}
		return envelope.Kind, items, nil
	}

	var raw map[string]any
	if err := json.Unmarshal(envelope.Payload, &raw); err != nil {
		return "", nil, err
	}
	record, err := Convert(envelope.Kind, raw)
	if err != nil {
		return "", nil, err
	}
	return envelope.Kind, record, nil
}
