package models

import (
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/kinveysync/internal/common"
)

// Document is a stored entity in its JSON object form.
type Document map[string]any

func (d Document) ID() string {
	id, _ := d[common.FieldID].(string)
	return id
}

func (d Document) SetID(id string) {
	d[common.FieldID] = id
}

// Clone returns a deep copy made through JSON, which also normalizes number
// and slice types.
func (d Document) Clone() (Document, error) {
	if d == nil {
		return nil, nil
	}
	b, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	var out Document
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	return out, nil
}

// Section returns the nested object stored under key, creating it when it
// is missing or not an object.
func (d Document) Section(key string) map[string]any {
	if m, ok := d[key].(map[string]any); ok {
		return m
	}
	m := map[string]any{}
	d[key] = m
	return m
}
