// Package time holds small time helpers shared by row builders
package time

import "time"

// Ptr returns a pointer to t, or nil for the zero time so it stores as NULL
func Ptr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
