package storage

import (
	"encoding/json"
	"errors"

	"keyevolve/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

// Versioned stamps a record with the current schema and codec versions.
func Versioned() model.VersionedRecord {
	return model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion}
}

func EncodeRun(r model.RunRecord) ([]byte, error) {
	return json.Marshal(r)
}

func DecodeRun(data []byte) (model.RunRecord, error) {
	var run model.RunRecord
	if err := json.Unmarshal(data, &run); err != nil {
		return model.RunRecord{}, err
	}
	if err := checkVersion(run.VersionedRecord); err != nil {
		return model.RunRecord{}, err
	}
	return run, nil
}

func EncodeLayout(l model.LayoutRecord) ([]byte, error) {
	return json.Marshal(l)
}

func DecodeLayout(data []byte) (model.LayoutRecord, error) {
	var layout model.LayoutRecord
	if err := json.Unmarshal(data, &layout); err != nil {
		return model.LayoutRecord{}, err
	}
	if err := checkVersion(layout.VersionedRecord); err != nil {
		return model.LayoutRecord{}, err
	}
	return layout, nil
}

func EncodeTopLayouts(records []model.TopLayoutRecord) ([]byte, error) {
	return json.Marshal(records)
}

func DecodeTopLayouts(data []byte) ([]model.TopLayoutRecord, error) {
	var records []model.TopLayoutRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	for _, record := range records {
		if err := checkVersion(record.Layout.VersionedRecord); err != nil {
			return nil, err
		}
	}
	return records, nil
}

func EncodeFitnessHistory(history []float64) ([]byte, error) {
	return json.Marshal(history)
}

func DecodeFitnessHistory(data []byte) ([]float64, error) {
	var history []float64
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, err
	}
	return history, nil
}

func EncodeDistanceHistory(history []uint64) ([]byte, error) {
	return json.Marshal(history)
}

func DecodeDistanceHistory(data []byte) ([]uint64, error) {
	var history []uint64
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, err
	}
	return history, nil
}

func EncodeGenerationDiagnostics(diagnostics []model.GenerationDiagnostics) ([]byte, error) {
	return json.Marshal(diagnostics)
}

func DecodeGenerationDiagnostics(data []byte) ([]model.GenerationDiagnostics, error) {
	var diagnostics []model.GenerationDiagnostics
	if err := json.Unmarshal(data, &diagnostics); err != nil {
		return nil, err
	}
	return diagnostics, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}
