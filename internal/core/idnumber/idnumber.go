// Package idnumber validates 13 digit national identity numbers and derives
// date of birth, gender and citizenship from a valid one.
//
// Layout: YYMMDD SSSS C A Z
//   - YYMMDD date of birth, century inferred (yy < 25 is 20yy)
//   - SSSS   gender sequence, >= 5000 male
//   - C      citizenship, 0 citizen, 1 permanent resident
//   - A      historical race digit, unused
//   - Z      Luhn style check digit
package idnumber

import (
	"fmt"
	"strings"
	"time"
)

// Length is the digit count of a normalized identity number
const Length = 13

// centuryPivot splits two digit birth years between the 1900s and 2000s
const centuryPivot = 25

// Kind classifies a validation outcome
type Kind int

// Validation outcomes; every input maps to exactly one
const (
	Valid Kind = iota
	MissingIdentity
	FormatError
	ChecksumError
)

func (k Kind) String() string {
	switch k {
	case Valid:
		return "valid"
	case MissingIdentity:
		return "missing_identity"
	case FormatError:
		return "format_error"
	case ChecksumError:
		return "checksum_error"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// MarshalText writes the kind by name
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Gender derived from the sequence segment
type Gender string

// Genders encoded by the sequence segment
const (
	Male   Gender = "Male"
	Female Gender = "Female"
)

// Result is the outcome of Validate. Derived fields are only set when Kind is Valid.
type Result struct {
	Kind       Kind
	Raw        string
	Normalized string
	Reason     string

	DateOfBirth *time.Time
	DOBValid    bool
	Gender      Gender
	Citizen     bool
}

// OK reports whether the number passed format and checksum checks
func (r Result) OK() bool { return r.Kind == Valid }

// Age returns whole years between the birth date and now, or -1 when unknown
func (r Result) Age(now time.Time) int {
	if r.DateOfBirth == nil {
		return -1
	}
	dob := *r.DateOfBirth
	age := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		age--
	}
	return age
}

// Normalize strips everything but digits and left pads with zeros to Length.
// Values longer than Length are returned as stripped digits.
func Normalize(raw string) string {
	var b strings.Builder
	b.Grow(Length)
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	d := b.String()
	if d == "" {
		return ""
	}
	if len(d) < Length {
		d = strings.Repeat("0", Length-len(d)) + d
	}
	return d
}

// Validate checks raw and derives attributes. It never panics.
func Validate(raw string) (res Result) {
	defer func() {
		if p := recover(); p != nil {
			res = Result{Kind: FormatError, Raw: raw, Reason: fmt.Sprintf("unreadable identity number: %v", p)}
		}
	}()

	n := Normalize(raw)
	res = Result{Raw: raw, Normalized: n}

	switch {
	case n == "" || strings.Trim(n, "0") == "":
		res.Kind = MissingIdentity
		res.Reason = "identity number is missing"
		return res
	case len(n) != Length:
		res.Kind = FormatError
		res.Reason = fmt.Sprintf("identity number must have %d digits, got %d", Length, len(n))
		return res
	}

	if !checksumOK(n) {
		res.Kind = ChecksumError
		res.Reason = "identity number checksum does not match"
		return res
	}

	res.Kind = Valid
	res.DateOfBirth, res.DOBValid = birthDate(n)
	if atoi(n[6:10]) >= 5000 {
		res.Gender = Male
	} else {
		res.Gender = Female
	}
	res.Citizen = n[10] == '0'
	return res
}

// checksumOK sums digits at even positions as is and doubled digits at odd
// positions (minus 9 when above 9); the total must be a multiple of 10
func checksumOK(n string) bool {
	sum := 0
	for i := 0; i < len(n); i++ {
		d := int(n[i] - '0')
		if i%2 == 1 {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
	}
	return sum%10 == 0
}

// CheckDigit returns the digit that makes the 12 digit prefix a valid number
func CheckDigit(prefix12 string) (byte, error) {
	if len(prefix12) != Length-1 || strings.Trim(prefix12, "0123456789") != "" {
		return 0, fmt.Errorf("idnumber: prefix must be %d digits", Length-1)
	}
	sum := 0
	for i := 0; i < len(prefix12); i++ {
		d := int(prefix12[i] - '0')
		if i%2 == 1 {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
	}
	return byte('0' + (10-sum%10)%10), nil
}

func birthDate(n string) (*time.Time, bool) {
	yy, mm, dd := atoi(n[0:2]), atoi(n[2:4]), atoi(n[4:6])
	year := 1900 + yy
	if yy < centuryPivot {
		year = 2000 + yy
	}
	if mm < 1 || mm > 12 || dd < 1 {
		return nil, false
	}
	t := time.Date(year, time.Month(mm), dd, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes Feb 30 into March; a round trip catches that
	if t.Year() != year || int(t.Month()) != mm || t.Day() != dd {
		return nil, false
	}
	return &t, true
}

func atoi(s string) int {
	v := 0
	for i := 0; i < len(s); i++ {
		v = v*10 + int(s[i]-'0')
	}
	return v
}
