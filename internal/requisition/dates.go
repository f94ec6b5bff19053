package requisition

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	dateLayout,
}

// Timestamp is an instant decoded from either the array form
// [year, month, day, hour, minute, second, nanos] or an ISO-8601 string.
// A JSON null leaves a *Timestamp nil.
type Timestamp struct {
	time.Time
}

// NewTimestamp wraps t.
func NewTimestamp(t time.Time) *Timestamp {
	return &Timestamp{Time: t.UTC()}
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	parsed, err := parseTime(b, timestampLayouts)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

// Equal compares two optional timestamps; two nils are equal.
func (t *Timestamp) Equal(other *Timestamp) bool {
	if t == nil || other == nil {
		return t == nil && other == nil
	}
	return t.Time.Equal(other.Time)
}

func (t *Timestamp) clone() *Timestamp {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

// Date is a calendar date. It is sent to the server as YYYY-MM-DD.
type Date struct {
	time.Time
}

// NewDate builds a Date at midnight UTC.
func NewDate(year int, month time.Month, day int) *Date {
	return &Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func (d *Date) UnmarshalJSON(b []byte) error {
	parsed, err := parseTime(b, timestampLayouts)
	if err != nil {
		return err
	}
	y, m, day := parsed.Date()
	d.Time = time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Format(dateLayout))
}

func (d *Date) clone() *Date {
	if d == nil {
		return nil
	}
	c := *d
	return &c
}

func parseTime(b []byte, layouts []string) (time.Time, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return time.Time{}, fmt.Errorf("empty date value")
	}
	if bytes.Equal(b, []byte("null")) {
		return time.Time{}, nil
	}

	if b[0] == '[' {
		var parts []int
		if err := json.Unmarshal(b, &parts); err != nil {
			return time.Time{}, fmt.Errorf("invalid date array %s: %w", b, err)
		}
		return fromParts(parts)
	}

	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return time.Time{}, fmt.Errorf("invalid date value %s: %w", b, err)
	}
	for _, layout := range layouts {
		if parsed, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return parsed.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date format %q", s)
}

func fromParts(parts []int) (time.Time, error) {
	if len(parts) < 3 {
		return time.Time{}, fmt.Errorf("date array needs at least year, month and day, got %v", parts)
	}
	fields := make([]int, 7)
	copy(fields, parts)
	return time.Date(fields[0], time.Month(fields[1]), fields[2], fields[3], fields[4], fields[5], fields[6], time.UTC), nil
}
