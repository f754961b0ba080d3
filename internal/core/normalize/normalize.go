// Package normalize folds free text from uploaded spreadsheets into comparable keys
// Fold order
// 1 drop control characters and invalid UTF-8
// 2 NFKD decomposition so accents split off their base letter
// 3 remove combining marks and format chars
// 4 case fold
// 5 width fold fullwidth to ASCII
// 6 NFC recomposition
// 7 collapse whitespace runs to one space and trim
package normalize

import (
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// chains are stateful, so each caller borrows its own
var chainPool = sync.Pool{
	New: func() any {
		return transform.Chain(
			norm.NFKD,
			runes.Remove(runes.In(unicode.Mn)),
			runes.Remove(runes.In(unicode.Cf)),
			cases.Fold(),
			width.Fold,
			norm.NFC,
		)
	},
}

// Fold returns the comparison form of s: "  IsiZúlu " and "isizulu" fold equal
func Fold(s string) string {
	s = Sanitize(s)
	if s == "" {
		return ""
	}
	tr := chainPool.Get().(transform.Transformer)
	out, _, err := transform.String(tr, s)
	tr.Reset()
	chainPool.Put(tr)
	if err != nil {
		out = strings.ToLower(s)
	}
	return strings.Join(strings.Fields(out), " ")
}

// Key folds s and joins words with underscores, mapping dashes, dots and slashes
// to separators too, so "Voting-District Code" and "voting_district.code" agree
func Key(s string) string {
	f := Fold(s)
	if f == "" {
		return ""
	}
	f = strings.Map(func(r rune) rune {
		switch r {
		case '-', '.', '/', '_':
			return ' '
		}
		return r
	}, f)
	return strings.Join(strings.Fields(f), "_")
}

// Cell trims a raw cell value and removes control characters but keeps case
func Cell(s string) string {
	return strings.TrimSpace(Sanitize(s))
}
