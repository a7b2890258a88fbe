package model

import "encoding/json"

// RawEvidence carries evidence restored from persisted JSON, where the
// original concrete struct is no longer known.
type RawEvidence struct {
	Type AnomalyType
	Data json.RawMessage
}

// AnomalyType implements Evidence.
func (e RawEvidence) AnomalyType() AnomalyType { return e.Type }

// MarshalJSON re-emits the stored document unchanged.
func (e RawEvidence) MarshalJSON() ([]byte, error) {
	if len(e.Data) == 0 {
		return []byte("null"), nil
	}
	return e.Data, nil
}
