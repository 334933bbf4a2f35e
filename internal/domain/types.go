package domain

import (
	"database/sql/driver"
	"encoding/json"
)

// Tags maps dataset tag categories (genre, instrument, mood) to their
// values. Stored as JSONB in the catalog.
type Tags map[string]string

func (t Tags) Value() (driver.Value, error) {
	if len(t) == 0 {
		return "{}", nil
	}
	return json.Marshal(t)
}

func (t *Tags) Scan(value interface{}) error {
	if value == nil {
		*t = nil
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return nil
	}

	if len(data) == 0 || string(data) == "null" {
		*t = nil
		return nil
	}

	return json.Unmarshal(data, t)
}
