package repo

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// money accepts 12.5, "12.50" or null.
type money struct {
	Value decimal.Decimal
	Set   bool
}

func (m *money) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	s := strings.Trim(string(b), `"`)
	if s == "" {
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("money %s: %w", b, err)
	}
	m.Value, m.Set = d, true
	return nil
}

func (m money) ptr() *decimal.Decimal {
	if !m.Set {
		return nil
	}
	v := m.Value
	return &v
}

// pick returns the first money that was present.
func pick(ms ...money) decimal.Decimal {
	for _, m := range ms {
		if m.Set {
			return m.Value
		}
	}
	return decimal.Zero
}

// stamp accepts RFC 3339 strings, unix milliseconds, or a {"seconds":..,"nanoseconds":..} object.
type stamp struct {
	Time time.Time
	Set  bool
}

func (t *stamp) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			return nil
		}
		v, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return err
		}
		t.Time, t.Set = v.UTC(), true
	case '{':
		var o struct {
			Seconds     int64 `json:"seconds"`
			Nanoseconds int64 `json:"nanoseconds"`
		}
		if err := json.Unmarshal(b, &o); err != nil {
			return err
		}
		t.Time, t.Set = time.Unix(o.Seconds, o.Nanoseconds).UTC(), true
	default:
		ms, err := strconv.ParseInt(string(b), 10, 64)
		if err != nil {
			return fmt.Errorf("timestamp %s: %w", b, err)
		}
		t.Time, t.Set = time.UnixMilli(ms).UTC(), true
	}
	return nil
}

func (t stamp) ptr() *time.Time {
	if !t.Set {
		return nil
	}
	v := t.Time
	return &v
}

// count accepts 2 or "2"; anything unreadable counts as 0.
type count int

func (c *count) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(b)), `"`)
	if s == "" || s == "null" {
		*c = 0
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*c = 0
		return nil
	}
	*c = count(int(f))
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func firstRef(refs ...*string) *string {
	for _, r := range refs {
		if r != nil && *r != "" {
			v := *r
			return &v
		}
	}
	return nil
}
