package sheet

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// dateLayouts are tried in order after serial numbers; ISO first, then day first
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006/01/02",
	"02/01/2006",
	"02-01-2006",
	"2/1/2006",
	"02 Jan 2006",
	"2 January 2006",
}

// CoerceDate turns a native date, a spreadsheet serial day count or a date
// string into a UTC date. Empty input yields nil without error.
func CoerceDate(v any) (*time.Time, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case time.Time:
		if x.IsZero() {
			return nil, nil
		}
		return dateOnly(x), nil
	case *time.Time:
		if x == nil || x.IsZero() {
			return nil, nil
		}
		return dateOnly(*x), nil
	case float64:
		return fromSerial(x)
	case int:
		return fromSerial(float64(x))
	case int64:
		return fromSerial(float64(x))
	case string:
		return parseDateString(x)
	default:
		return nil, fmt.Errorf("unsupported date value %T", v)
	}
}

func parseDateString(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return fromSerial(f)
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return dateOnly(t), nil
		}
	}
	return nil, fmt.Errorf("unrecognised date %q", s)
}

// fromSerial reads a day count on the 1899-12-30 epoch
func fromSerial(f float64) (*time.Time, error) {
	if f < 1 {
		return nil, fmt.Errorf("date serial %v out of range", f)
	}
	t, err := excelize.ExcelDateToTime(f, false)
	if err != nil {
		return nil, fmt.Errorf("date serial %v: %w", f, err)
	}
	return dateOnly(t), nil
}

func dateOnly(t time.Time) *time.Time {
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return &d
}
