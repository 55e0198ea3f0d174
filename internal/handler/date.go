package handler

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/aryan0dhankhar/projecthub/internal/domain"
)

const dateOnly = "2006-01-02"

// Date accepts RFC 3339 timestamps or plain YYYY-MM-DD dates. Null and "" decode to the zero time.
type Date struct {
	time.Time
}

func (d *Date) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		d.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return domain.NewError(domain.ErrValidation, "Dates must be strings")
	}
	if s == "" {
		d.Time = time.Time{}
		return nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		d.Time = t.UTC()
		return nil
	}
	if t, err := time.Parse(dateOnly, s); err == nil {
		d.Time = t
		return nil
	}
	return domain.NewError(domain.ErrValidation, "Invalid date: %s", s)
}

func (d *Date) value() time.Time {
	if d == nil {
		return time.Time{}
	}
	return d.Time
}
