package database

import (
	"fmt"
	"time"

	"gorm.io/datatypes"

	"github.com/thereayou/chatsync/internal/docstore"
)

// documentRecord is one row per document. Subcollections share the table;
// Collection holds the full path, e.g. "rooms/<id>/messages".
type documentRecord struct {
	Collection string            `gorm:"primaryKey;size:512"`
	ID         string            `gorm:"primaryKey;size:128"`
	Fields     datatypes.JSONMap `gorm:"type:jsonb;not null"`
	CreatedAt  time.Time         `gorm:"index"`
	UpdatedAt  time.Time
}

func (documentRecord) TableName() string {
	return "documents"
}

func (r documentRecord) document() (docstore.Document, error) {
	fields, err := decodeFields(r.Fields)
	if err != nil {
		return docstore.Document{}, fmt.Errorf("decode %s/%s: %w", r.Collection, r.ID, err)
	}
	return docstore.Document{ID: r.ID, Fields: fields}, nil
}

const timestampKey = "__timestamp__"

// encodeFields converts document values to their JSON representation.
// Timestamps become {"__timestamp__": RFC3339Nano} so they survive the
// round trip through jsonb.
func encodeFields(fields docstore.Fields) datatypes.JSONMap {
	out := make(datatypes.JSONMap, len(fields))
	for k, v := range fields {
		out[k] = encodeValue(v)
	}
	return out
}

func encodeValue(v any) any {
	switch t := v.(type) {
	case time.Time:
		return map[string]any{timestampKey: t.UTC().Format(time.RFC3339Nano)}
	case *time.Time:
		if t == nil {
			return nil
		}
		return encodeValue(*t)
	case docstore.Fields:
		return map[string]any(encodeFields(t))
	case map[string]any:
		return map[string]any(encodeFields(t))
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = encodeValue(e)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = e
		}
		return out
	}
	return v
}

func decodeFields(m map[string]any) (docstore.Fields, error) {
	out := make(docstore.Fields, len(m))
	for k, v := range m {
		dv, err := decodeValue(v)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		out[k] = dv
	}
	return out, nil
}

func decodeValue(v any) (any, error) {
	switch t := v.(type) {
	case map[string]any:
		if raw, ok := t[timestampKey]; ok && len(t) == 1 {
			s, _ := raw.(string)
			ts, err := time.Parse(time.RFC3339Nano, s)
			if err != nil {
				return nil, err
			}
			return ts, nil
		}
		m, err := decodeFields(t)
		if err != nil {
			return nil, err
		}
		return map[string]any(m), nil
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			dv, err := decodeValue(e)
			if err != nil {
				return nil, err
			}
			out[i] = dv
		}
		return out, nil
	}
	return v, nil
}
