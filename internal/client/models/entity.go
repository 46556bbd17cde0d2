// Package models defines the documents and queue records the client SDK
// moves between the local cache, the pending-mutation queue and the backend.
package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/kinveysync/internal/common"
)

var ErrNotADocument = errors.New("value does not encode to a JSON object")

// Entity is an opaque JSON document. The only fields the SDK interprets are
// _id, _kmd (backend timestamps) and _acl.
type Entity map[string]any

// Metadata is the backend-maintained _kmd block.
type Metadata struct {
	Created  string `json:"ect,omitempty"`
	Modified string `json:"lmt,omitempty"`
}

func (e Entity) ID() string {
	id, _ := e[common.FieldID].(string)
	return id
}

func (e Entity) SetID(id string) {
	e[common.FieldID] = id
}

func (e Entity) Metadata() Metadata {
	var md Metadata
	raw, ok := e[common.FieldMetadata].(map[string]any)
	if !ok {
		return md
	}
	md.Created, _ = raw[common.FieldCreated].(string)
	md.Modified, _ = raw[common.FieldModified].(string)
	return md
}

// ModifiedAt parses _kmd.lmt. The zero time is returned when it is absent
// or malformed.
func (e Entity) ModifiedAt() time.Time {
	t, err := time.Parse(time.RFC3339Nano, e.Metadata().Modified)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Clone returns a deep copy obtained through a JSON round trip, which also
// normalizes numbers to float64.
func (e Entity) Clone() (Entity, error) {
	if e == nil {
		return nil, nil
	}
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to clone entity: %w", err)
	}
	return UnmarshalEntity(b)
}

func UnmarshalEntity(b []byte) (Entity, error) {
	var e Entity
	if err := json.Unmarshal(b, &e); err != nil {
		return nil, fmt.Errorf("failed to decode entity: %w", err)
	}
	if e == nil {
		return nil, ErrNotADocument
	}
	return e, nil
}

// FromValue encodes any JSON-marshalable value into an Entity.
func FromValue[T any](v T) (Entity, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %T: %w", v, err)
	}
	e, err := UnmarshalEntity(b)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %T: %w", v, err)
	}
	return e, nil
}

// Decode converts an Entity back into T.
func Decode[T any](e Entity) (T, error) {
	var out T
	b, err := json.Marshal(e)
	if err != nil {
		return out, fmt.Errorf("failed to encode entity: %w", err)
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return out, fmt.Errorf("failed to decode entity into %T: %w", out, err)
	}
	return out, nil
}
