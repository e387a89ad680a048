package quote

import (
	"bytes"
	"encoding/json"
)

// FieldValue is the raw text of a row field update. It accepts a JSON string,
// number or null so clients can send `"2"` or `2` alike.
type FieldValue string

// UnmarshalJSON implements json.Unmarshaler.
func (v *FieldValue) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	switch {
	case bytes.Equal(trimmed, []byte("null")):
		*v = ""
	case len(trimmed) > 0 && trimmed[0] == '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*v = FieldValue(s)
	default:
		*v = FieldValue(trimmed)
	}
	return nil
}
