// Package sheet reads membership spreadsheets into canonical row records
package sheet

import (
	"context"
	stderrs "errors"
	"io"
	"io/fs"
	"time"

	"rollcall/internal/core/normalize"
	perr "rollcall/internal/platform/errors"
	"rollcall/internal/platform/logger"

	"github.com/xuri/excelize/v2"
)

// ExpiryTerm is added to the last payment date when no expiry was uploaded
const ExpiryTerm = 24 // months

// ErrEmptyFile is returned when the first sheet has no data rows
var ErrEmptyFile = perr.New(perr.ErrorCodeValidation, "spreadsheet contains no data rows")

// Record is one data row. RowNumber counts the header, so the first data row is 2.
type Record struct {
	RowNumber int `json:"row_number"`

	IDNumber           string `json:"id_number"`
	FirstName          string `json:"first_name,omitempty"`
	Surname            string `json:"surname,omitempty"`
	Gender             string `json:"gender,omitempty"`
	Race               string `json:"race,omitempty"`
	Language           string `json:"language,omitempty"`
	Occupation         string `json:"occupation,omitempty"`
	Qualification      string `json:"qualification,omitempty"`
	CellNumber         string `json:"cell_number,omitempty"`
	Email              string `json:"email,omitempty"`
	Address            string `json:"address,omitempty"`
	WardCode           string `json:"ward_code,omitempty"`
	VotingDistrictCode string `json:"voting_district_code,omitempty"`
	MembershipType     string `json:"membership_type,omitempty"`
	MembershipStatus   string `json:"membership_status,omitempty"`
	Amount             string `json:"amount,omitempty"`

	DateJoined      *time.Time `json:"date_joined,omitempty"`
	LastPaymentDate *time.Time `json:"last_payment_date,omitempty"`
	ExpiryDate      *time.Time `json:"expiry_date,omitempty"`
	ExpiryComputed  bool       `json:"expiry_computed,omitempty"`

	DateErrors map[string]string `json:"date_errors,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// FullName joins first name and surname
func (r Record) FullName() string {
	switch {
	case r.FirstName == "":
		return r.Surname
	case r.Surname == "":
		return r.FirstName
	}
	return r.FirstName + " " + r.Surname
}

// ReadFile opens path and reads its first sheet
func ReadFile(ctx context.Context, path string) ([]Record, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		if stderrs.Is(err, fs.ErrNotExist) {
			return nil, perr.Wrapf(err, perr.ErrorCodeNotFound, "spreadsheet %s not found", path)
		}
		return nil, perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "unreadable workbook %s", path)
	}
	defer func() { _ = f.Close() }()
	return readWorkbook(ctx, f)
}

// Read reads the first sheet of a workbook streamed from r
func Read(ctx context.Context, r io.Reader) ([]Record, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeInvalidArgument, "unreadable workbook")
	}
	defer func() { _ = f.Close() }()
	return readWorkbook(ctx, f)
}

func readWorkbook(ctx context.Context, f *excelize.File) ([]Record, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyFile
	}
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "read sheet %q", sheets[0])
	}
	recs, err := FromRows(ctx, rows)
	if err != nil {
		return nil, err
	}
	logger.C(ctx).Debug().Str("sheet", sheets[0]).Int("records", len(recs)).Msg("spreadsheet read")
	return recs, nil
}

// FromRows maps a header row plus data rows to records. Blank rows are
// skipped but still consume a row number.
func FromRows(ctx context.Context, rows [][]string) ([]Record, error) {
	if len(rows) < 2 {
		return nil, ErrEmptyFile
	}

	cols := make([]string, len(rows[0]))
	known := make([]bool, len(rows[0]))
	for i, h := range rows[0] {
		cols[i], known[i] = Canonical(h)
	}

	out := make([]Record, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if i%500 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if blank(row) {
			continue
		}
		out = append(out, buildRecord(i+2, cols, known, row))
	}
	if len(out) == 0 {
		return nil, ErrEmptyFile
	}
	return out, nil
}

func buildRecord(rowNum int, cols []string, known []bool, row []string) Record {
	rec := Record{RowNumber: rowNum}
	var joined, paid, expiry string

	for i, raw := range row {
		if i >= len(cols) {
			break
		}
		v := normalize.Cell(raw)
		if v == "" {
			continue
		}
		if !known[i] {
			if cols[i] == "" {
				continue
			}
			if rec.Extra == nil {
				rec.Extra = map[string]string{}
			}
			rec.Extra[cols[i]] = v
			continue
		}
		switch cols[i] {
		case FieldIDNumber:
			rec.IDNumber = v
		case FieldFirstName:
			rec.FirstName = v
		case FieldSurname:
			rec.Surname = v
		case FieldGender:
			rec.Gender = v
		case FieldRace:
			rec.Race = v
		case FieldLanguage:
			rec.Language = v
		case FieldOccupation:
			rec.Occupation = v
		case FieldQualification:
			rec.Qualification = v
		case FieldCellNumber:
			rec.CellNumber = v
		case FieldEmail:
			rec.Email = v
		case FieldAddress:
			rec.Address = v
		case FieldWardCode:
			rec.WardCode = v
		case FieldVotingDistrictCode:
			rec.VotingDistrictCode = v
		case FieldMembershipType:
			rec.MembershipType = v
		case FieldMembershipStatus:
			rec.MembershipStatus = v
		case FieldAmount:
			rec.Amount = v
		case FieldDateJoined:
			joined = v
		case FieldLastPaymentDate:
			paid = v
		case FieldExpiryDate:
			expiry = v
		}
	}

	rec.DateJoined = rec.coerce(FieldDateJoined, joined)
	rec.LastPaymentDate = rec.coerce(FieldLastPaymentDate, paid)
	rec.ExpiryDate = rec.coerce(FieldExpiryDate, expiry)
	ApplyExpiryDefault(&rec)
	return rec
}

func (r *Record) coerce(field, raw string) *time.Time {
	t, err := CoerceDate(raw)
	if err != nil {
		if r.DateErrors == nil {
			r.DateErrors = map[string]string{}
		}
		r.DateErrors[field] = err.Error()
		return nil
	}
	return t
}

// ApplyExpiryDefault fills a missing expiry from the last payment date and flags it
func ApplyExpiryDefault(r *Record) {
	if r.ExpiryDate != nil || r.LastPaymentDate == nil {
		return
	}
	e := r.LastPaymentDate.AddDate(0, ExpiryTerm, 0)
	r.ExpiryDate = &e
	r.ExpiryComputed = true
}

func blank(row []string) bool {
	for _, c := range row {
		if normalize.Cell(c) != "" {
			return false
		}
	}
	return true
}
