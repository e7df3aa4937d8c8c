package storage

import (
	"encoding/json"

	"github.com/fabfab/ragcore/internal/model"
)

func marshalMetadata(m model.Metadata) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func unmarshalMetadata(raw []byte) (model.Metadata, error) {
	if len(raw) == 0 {
		return model.Metadata{}, nil
	}
	var m model.Metadata
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	if m == nil {
		m = model.Metadata{}
	}
	return m, nil
}
