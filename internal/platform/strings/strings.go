// Package strings holds the small string helpers shared by services
package strings

import std "strings"

// IfEmpty returns def when in has no elements
func IfEmpty[T any](in, def []T) []T {
	if len(in) == 0 {
		return def
	}
	return in
}

// NilIfBlank trims s and returns nil when nothing is left
func NilIfBlank(s string) *string {
	s = std.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// Exts normalizes a file extension list: lower case, one leading dot, blanks dropped
func Exts(in []string) []string {
	out := make([]string, 0, len(in))
	for _, e := range in {
		e = std.ToLower(std.TrimSpace(e))
		if e == "" || e == "." {
			continue
		}
		if !std.HasPrefix(e, ".") {
			e = "." + e
		}
		out = append(out, e)
	}
	return out
}

// Prefix turns " uploads/ " into "/uploads"; an empty input stays empty
func Prefix(s string) string {
	s = std.Trim(std.TrimSpace(s), "/")
	if s == "" {
		return ""
	}
	return "/" + s
}
