// Package report writes the per job outcome workbook
package report

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"rollcall/internal/adapters/ingest/sheet"
	perr "rollcall/internal/platform/errors"
	lookup "rollcall/internal/services/lookup/domain"
	members "rollcall/internal/services/members/domain"
	"rollcall/internal/services/pipeline/domain"
	"rollcall/internal/services/pipeline/validate"
	verify "rollcall/internal/services/verify/domain"

	"github.com/xuri/excelize/v2"
)

// Sheet names in workbook order
const (
	SheetSummary    = "Summary"
	SheetInvalid    = "Invalid"
	SheetDuplicates = "Duplicates"
	SheetUnverified = "Unverified"
	SheetFailed     = "Failed"
	SheetNew        = "New"
	SheetExisting   = "Existing"
)

// Sheets lists every sheet the report carries
var Sheets = []string{SheetSummary, SheetInvalid, SheetDuplicates, SheetUnverified, SheetFailed, SheetNew, SheetExisting}

// Input is everything a report is built from
type Input struct {
	Result  domain.Result
	Batch   validate.Batch
	Results map[string]verify.Result
}

// Build writes dir/<job_id>.xlsx and returns its path
func Build(dir string, in Input) (string, error) {
	if in.Result.JobID == "" {
		return "", perr.New(perr.ErrorCodeInvalidArgument, "report: job id is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", perr.Wrap(err, perr.ErrorCodeUnavailable, "report: create dir")
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return "", perr.Wrap(err, perr.ErrorCodeUnknown, "report: rename sheet")
	}
	for _, name := range Sheets[1:] {
		if _, err := f.NewSheet(name); err != nil {
			return "", perr.Wrapf(err, perr.ErrorCodeUnknown, "report: add sheet %s", name)
		}
	}

	w := writer{f: f}
	w.summary(in)
	w.invalid(in.Batch)
	w.duplicates(in.Batch)
	w.unverified(in)
	w.failed(in.Result.Persist.Outcomes)
	w.fresh(in)
	w.existing(in)
	if w.err != nil {
		return "", perr.Wrap(w.err, perr.ErrorCodeUnknown, "report: write cells")
	}

	path := Path(dir, in.Result.JobID)
	if err := f.SaveAs(path); err != nil {
		return "", perr.Wrap(err, perr.ErrorCodeUnavailable, "report: save")
	}
	return path, nil
}

// writer keeps the first cell error and a row cursor per sheet
type writer struct {
	f    *excelize.File
	next map[string]int
	err  error
}

func (w *writer) row(sheet string, vals ...any) {
	if w.err != nil {
		return
	}
	if w.next == nil {
		w.next = map[string]int{}
	}
	n := w.next[sheet] + 1
	w.next[sheet] = n
	cell, err := excelize.CoordinatesToCellName(1, n)
	if err != nil {
		w.err = err
		return
	}
	w.err = w.f.SetSheetRow(sheet, cell, &vals)
}

func (w *writer) summary(in Input) {
	r := in.Result
	st := r.Batch.Stats
	v := r.Verification
	c := r.Persist.Counts

	w.row(SheetSummary, "Job", r.JobID)
	w.row(SheetSummary, "File", r.FileName)
	w.row(SheetSummary, "Started", stamp(&r.StartedAt))
	w.row(SheetSummary, "Finished", stamp(&r.FinishedAt))
	w.row(SheetSummary)
	w.row(SheetSummary, "Total rows", st.Total)
	w.row(SheetSummary, "Valid", st.Valid)
	w.row(SheetSummary, "Invalid", st.Invalid)
	w.row(SheetSummary, "  missing identity", st.MissingIdentity)
	w.row(SheetSummary, "  format errors", st.FormatErrors)
	w.row(SheetSummary, "  checksum errors", st.ChecksumErrors)
	w.row(SheetSummary, "Duplicate groups", st.DuplicateGroups)
	w.row(SheetSummary, "Duplicate rows", st.DuplicateRows)
	w.row(SheetSummary, "Unique", st.Unique)
	w.row(SheetSummary, "New", st.New)
	w.row(SheetSummary, "Existing", st.Existing)
	w.row(SheetSummary)
	w.row(SheetSummary, "Verification requested", v.Requested)
	w.row(SheetSummary, "Verification attempted", v.Attempted)
	w.row(SheetSummary, "Verified", v.Verified)
	w.row(SheetSummary, "Verification errors", v.Errors)
	w.row(SheetSummary, "Rate limit hit", yesNo(v.RateLimitHit))
	w.row(SheetSummary, "Rows processed before limit", v.RowsProcessedBeforeLimit)
	w.row(SheetSummary, "Quota resets", stamp(v.ResetAt))
	w.row(SheetSummary)
	w.row(SheetSummary, "Inserted", c.Inserted)
	w.row(SheetSummary, "Updated", c.Updated)
	w.row(SheetSummary, "Failed", c.Failed)
	w.row(SheetSummary, "Saved unverified", c.Unverified)
	if r.Advisory != "" {
		w.row(SheetSummary)
		w.row(SheetSummary, "Advisory", r.Advisory)
	}
	for table, fb := range r.LookupFallbacks {
		w.row(SheetSummary, "Lookup fallback: "+string(table), fb.Count, strings.Join(fb.Samples, ", "))
	}
}

func (w *writer) invalid(b validate.Batch) {
	w.row(SheetInvalid, "Row", "ID Number", "Name", "Error", "Reason")
	for _, r := range b.Invalid {
		w.row(SheetInvalid, r.Record.RowNumber, r.Record.IDNumber, r.Record.FullName(), r.Kind.String(), r.Reason)
	}
}

func (w *writer) duplicates(b validate.Batch) {
	w.row(SheetDuplicates, "Row", "ID Number", "Name", "All Rows", "Count")
	for _, d := range b.Duplicates {
		w.row(SheetDuplicates, d.Record.RowNumber, d.IDNumber, d.Record.FullName(), joinInts(d.AllRowNumbers), d.DuplicateCount)
	}
}

func (w *writer) unverified(in Input) {
	w.row(SheetUnverified, "Row", "ID Number", "Name", "Reason")
	for _, v := range in.Batch.Unique {
		res, ok := in.Results[v.IDNumber()]
		switch {
		case !ok:
			reason := "not attempted"
			if in.Result.Verification.RateLimitHit {
				reason = "rate limit reached"
			}
			w.row(SheetUnverified, v.Record.RowNumber, v.IDNumber(), v.Record.FullName(), reason)
		case !res.Verified():
			w.row(SheetUnverified, v.Record.RowNumber, v.IDNumber(), v.Record.FullName(), res.Err)
		}
	}
}

func (w *writer) failed(outs []members.Outcome) {
	w.row(SheetFailed, "Row", "ID Number", "Operation", "Error")
	for _, o := range outs {
		if !o.OK {
			w.row(SheetFailed, o.RowNumber, o.IDNumber, string(o.Op), o.Err)
		}
	}
}

func (w *writer) fresh(in Input) {
	byRow := outcomes(in.Result.Persist.Outcomes, members.OpInsert)
	w.row(SheetNew, "Row", "ID Number", "Name", "Ward", "Voting District", "Verified", "Voter Status", "Member ID")
	for _, v := range in.Batch.New {
		o, ok := byRow[v.Record.RowNumber]
		if !ok || !o.OK {
			continue
		}
		res, found := in.Results[v.IDNumber()]
		w.row(SheetNew, v.Record.RowNumber, v.IDNumber(), v.Record.FullName(), v.Record.WardCode,
			district(v.Record, res, found), yesNo(o.Verified), res.Status, o.MemberID)
	}
}

func (w *writer) existing(in Input) {
	byRow := outcomes(in.Result.Persist.Outcomes, members.OpUpdate)
	w.row(SheetExisting, "Row", "ID Number", "Name", "Member ID", "Previous Ward", "Ward", "Ward Changed",
		"Previous Voting District", "Voting District", "Voting District Changed", "Updated")
	for _, e := range in.Batch.Existing {
		o := byRow[e.Record.RowNumber]
		w.row(SheetExisting, e.Record.RowNumber, e.IDNumber(), e.Record.FullName(), e.MemberID,
			e.PreviousWard, e.Record.WardCode, yesNo(e.WardChanged),
			e.PreviousVotingDistrict, e.Record.VotingDistrictCode, yesNo(e.VotingDistrictChanged), yesNo(o.OK))
	}
}

func outcomes(outs []members.Outcome, op members.Op) map[int]members.Outcome {
	m := make(map[int]members.Outcome, len(outs))
	for _, o := range outs {
		if o.Op == op {
			m[o.RowNumber] = o
		}
	}
	return m
}

// district mirrors what the writer stored for a new member
func district(r sheet.Record, res verify.Result, ok bool) string {
	if !ok || !res.Verified() {
		return r.VotingDistrictCode
	}
	return lookup.AssignDistrict(lookup.DistrictInput{
		Registered:       res.Registered,
		ProviderStatus:   res.Status,
		ProviderDistrict: res.VotingDistrict,
		ProviderWard:     res.Ward,
		UploadWard:       r.WardCode,
	}).Value()
}

func stamp(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func joinInts(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = strconv.Itoa(x)
	}
	return strings.Join(parts, ", ")
}

// Path returns where Build writes the report for jobID
func Path(dir, jobID string) string { return filepath.Join(dir, jobID+".xlsx") }
