package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// BackendTimeLayout is the format the stock backend uses for every timestamp field.
const BackendTimeLayout = "2006-01-02 15:04:05"

// Timestamp wraps time.Time with the backend's wire format. A zero value
// marshals to null.
type Timestamp struct {
	time.Time
}

// NewTimestamp returns a Timestamp in UTC.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t.UTC()}
}

// MarshalJSON renders the timestamp in the backend layout.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(BackendTimeLayout))
}

// UnmarshalJSON accepts the backend layout, RFC 3339 and null.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		t.Time = time.Time{}
		return nil
	}

	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	if raw == "" {
		t.Time = time.Time{}
		return nil
	}

	for _, layout := range []string{BackendTimeLayout, time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if parsed, err := time.Parse(layout, raw); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", raw)
}
