package schema

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// JSON stores an arbitrary JSON payload as opaque text. The engine never
// interprets the bytes it holds (codebooks, unit content, annotation
// payloads); it only round-trips them between the database and the API.
type JSON json.RawMessage

// Value implements driver.Valuer.
func (j JSON) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}
	return []byte(j), nil
}

// Scan implements sql.Scanner.
func (j *JSON) Scan(src interface{}) error {
	if src == nil {
		*j = nil
		return nil
	}
	switch v := src.(type) {
	case []byte:
		*j = append((*j)[:0], v...)
		return nil
	case string:
		*j = JSON(v)
		return nil
	default:
		return errors.New("schema.JSON: unsupported Scan source")
	}
}

// MarshalJSON passes the stored bytes through unchanged.
func (j JSON) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("null"), nil
	}
	return j, nil
}

// UnmarshalJSON stores the raw bytes unchanged.
func (j *JSON) UnmarshalJSON(data []byte) error {
	*j = append((*j)[:0], data...)
	return nil
}

// IsNull reports whether the payload is absent or JSON null.
func (j JSON) IsNull() bool {
	return len(j) == 0 || string(j) == "null"
}

// Unmarshal decodes the stored payload into v, a thin convenience over
// encoding/json for callers that need a typed view (e.g. JobSet.Rules).
func (j JSON) Unmarshal(v interface{}) error {
	if j.IsNull() {
		return nil
	}
	return json.Unmarshal([]byte(j), v)
}

// NewJSON wraps an already-encoded JSON value.
func NewJSON(data []byte) JSON {
	return JSON(data)
}

// MarshalToJSON encodes v into a JSON value, for constructing RulesRaw
// and similar derived fields before an insert.
func MarshalToJSON(v interface{}) (JSON, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return JSON(b), nil
}
