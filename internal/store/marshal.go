package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/roach88/coedit/internal/mirror"
	"github.com/roach88/coedit/internal/value"
)

// marshalValue converts a plain value to canonical JSON TEXT for storage.
// Undefined is stored as SQL NULL.
func marshalValue(v value.Value) (sql.NullString, error) {
	if v == nil || value.KindOf(v) == value.KindUndefined {
		return sql.NullString{}, nil
	}
	data, err := value.MarshalCanonical(v)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshal value: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// unmarshalValue is the inverse of marshalValue.
func unmarshalValue(s sql.NullString) (value.Value, error) {
	if !s.Valid {
		return value.Undefined{}, nil
	}
	v, err := value.FromJSON([]byte(s.String))
	if err != nil {
		return nil, fmt.Errorf("unmarshal value: %w", err)
	}
	return v, nil
}

// marshalPath stores an op path as a JSON array of strings.
func marshalPath(path []string) (string, error) {
	if path == nil {
		path = []string{}
	}
	data, err := json.Marshal(path)
	if err != nil {
		return "", fmt.Errorf("marshal path: %w", err)
	}
	return string(data), nil
}

func unmarshalPath(s string) ([]string, error) {
	var path []string
	if err := json.Unmarshal([]byte(s), &path); err != nil {
		return nil, fmt.Errorf("unmarshal path: %w", err)
	}
	return path, nil
}

// marshalID stores a mirror id as JSON. The zero id is stored as NULL.
func marshalID(id mirror.ID) (sql.NullString, error) {
	if id.IsZero() {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(id)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshal id: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func unmarshalID(s sql.NullString) (mirror.ID, error) {
	var id mirror.ID
	if !s.Valid {
		return id, nil
	}
	if err := json.Unmarshal([]byte(s.String), &id); err != nil {
		return id, fmt.Errorf("unmarshal id: %w", err)
	}
	return id, nil
}

// marshalIDs stores the slot ids of a delete as a JSON array, NULL when
// there are none.
func marshalIDs(ids []mirror.ID) (sql.NullString, error) {
	if len(ids) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshal ids: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func unmarshalIDs(s sql.NullString) ([]mirror.ID, error) {
	if !s.Valid {
		return nil, nil
	}
	var ids []mirror.ID
	if err := json.Unmarshal([]byte(s.String), &ids); err != nil {
		return nil, fmt.Errorf("unmarshal ids: %w", err)
	}
	return ids, nil
}
