package validate

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"rollcall/internal/adapters/ingest/sheet"
	"rollcall/internal/core/idnumber"
	perr "rollcall/internal/platform/errors"
	members "rollcall/internal/services/members/domain"
)

type fakeLookup struct {
	stored map[string]members.Stored
	err    error
	calls  int
	got    []string
}

func (f *fakeLookup) LookupExisting(_ context.Context, ids []string) (map[string]members.Stored, error) {
	f.calls++
	f.got = append([]string(nil), ids...)
	if f.err != nil {
		return nil, f.err
	}
	out := map[string]members.Stored{}
	for _, id := range ids {
		if s, ok := f.stored[id]; ok {
			out[id] = s
		}
	}
	return out, nil
}

// validID completes a 12 digit prefix with its check digit
func validID(t *testing.T, prefix string) string {
	t.Helper()
	d, err := idnumber.CheckDigit(prefix)
	if err != nil {
		t.Fatalf("check digit %q: %v", prefix, err)
	}
	return prefix + string(d)
}

func rec(row int, id string) sheet.Record { return sheet.Record{RowNumber: row, IDNumber: id} }

func TestRun_PartitionIsComplete(t *testing.T) {
	t.Parallel()

	a := validID(t, "800101500908")
	b := validID(t, "750505012308")
	c := validID(t, "910230400108")
	bad := a[:12] + string('0'+(a[12]-'0'+1)%10)

	recs := []sheet.Record{
		rec(2, a),
		rec(3, ""),
		rec(4, "80010150090871"),
		rec(5, bad),
		rec(6, b),
		rec(7, a),
		rec(8, c),
	}
	lk := &fakeLookup{stored: map[string]members.Stored{b: {MemberID: 41, IDNumber: b, Ward: "79800056"}}}

	got, err := Run(context.Background(), recs, lk)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if got.Stats.Total != 7 || got.Stats.Valid+got.Stats.Invalid != 7 {
		t.Fatalf("stats %+v", got.Stats)
	}
	if len(got.Invalid) != 3 || got.Stats.MissingIdentity != 1 || got.Stats.FormatErrors != 1 || got.Stats.ChecksumErrors != 1 {
		t.Fatalf("invalid %+v stats %+v", got.Invalid, got.Stats)
	}
	if len(got.Unique) != 3 {
		t.Fatalf("unique %d", len(got.Unique))
	}
	if len(got.New)+len(got.Existing) != len(got.Unique) {
		t.Fatalf("new %d existing %d unique %d", len(got.New), len(got.Existing), len(got.Unique))
	}
	if len(got.Existing) != 1 || got.Existing[0].MemberID != 41 {
		t.Fatalf("existing %+v", got.Existing)
	}
	if lk.calls != 1 || len(lk.got) != 3 {
		t.Fatalf("lookup calls %d ids %v", lk.calls, lk.got)
	}
	for _, r := range got.Invalid {
		if r.Reason == "" {
			t.Fatalf("row %d has no reason", r.Record.RowNumber)
		}
	}
}

func TestRun_FiftyRowsWithOneDuplicatePair(t *testing.T) {
	t.Parallel()

	const dupe = "8001015009087"
	recs := make([]sheet.Record, 0, 50)
	for i := 0; i < 50; i++ {
		row := i + 2
		id := validID(t, fmt.Sprintf("9001%02d5%03d08", i%28+1, i))
		switch row {
		case 10:
			id = dupe
		case 37:
			id = "800101 5009 087"
		}
		recs = append(recs, rec(row, id))
	}

	got, err := Run(context.Background(), recs, &fakeLookup{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(got.Invalid) != 0 {
		t.Fatalf("invalid %+v", got.Invalid)
	}
	if len(got.Duplicates) != 2 || got.Stats.DuplicateGroups != 1 {
		t.Fatalf("duplicates %+v", got.Duplicates)
	}
	for _, d := range got.Duplicates {
		if d.DuplicateCount != 2 || d.IDNumber != dupe {
			t.Fatalf("dup %+v", d)
		}
		if len(d.AllRowNumbers) != 2 || d.AllRowNumbers[0] != 10 || d.AllRowNumbers[1] != 37 {
			t.Fatalf("rows %v", d.AllRowNumbers)
		}
	}
	if len(got.Unique) != 49 {
		t.Fatalf("unique %d", len(got.Unique))
	}
	seen := 0
	for _, u := range got.Unique {
		if u.IDNumber() == dupe {
			seen++
			if u.Record.RowNumber != 10 {
				t.Fatalf("kept row %d", u.Record.RowNumber)
			}
		}
	}
	if seen != 1 {
		t.Fatalf("dupe kept %d times", seen)
	}
}

func TestClassify_ChangeFlags(t *testing.T) {
	t.Parallel()

	a := validID(t, "800101500908")
	b := validID(t, "750505012308")
	c := validID(t, "910230400108")
	lk := &fakeLookup{stored: map[string]members.Stored{
		a: {MemberID: 1, Ward: "79800056", VotingDistrict: "11110000"},
		b: {MemberID: 2, Ward: "79800056", VotingDistrict: "11110000"},
		c: {MemberID: 3, Ward: "79800056", VotingDistrict: ""},
	}}
	mk := func(id, ward, vd string) ValidRecord {
		return ValidRecord{
			Record:   sheet.Record{IDNumber: id, WardCode: ward, VotingDistrictCode: vd},
			Identity: idnumber.Validate(id),
		}
	}
	unique := []ValidRecord{
		mk(a, "79800099", "11110000"),
		mk(b, "", ""),
		mk(c, "79800056", "22220000"),
	}

	_, existing, err := Classify(context.Background(), unique, lk)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if len(existing) != 3 {
		t.Fatalf("existing %d", len(existing))
	}
	cases := []struct{ ward, vd bool }{{true, false}, {false, false}, {false, true}}
	for i, want := range cases {
		e := existing[i]
		if e.WardChanged != want.ward || e.VotingDistrictChanged != want.vd {
			t.Fatalf("%d: ward %v vd %v", i, e.WardChanged, e.VotingDistrictChanged)
		}
	}
	if existing[0].PreviousWard != "79800056" {
		t.Fatalf("previous ward %q", existing[0].PreviousWard)
	}
}

func TestRun_LookupFailureIsFatal(t *testing.T) {
	t.Parallel()

	lk := &fakeLookup{err: errors.New("connection reset")}
	_, err := Run(context.Background(), []sheet.Record{rec(2, "8001015009087")}, lk)
	if !perr.IsCode(err, perr.ErrorCodeDB) {
		t.Fatalf("want db error, got %v", err)
	}
	if !perr.Retryable(err) {
		t.Fatalf("db error should be retryable")
	}
}

func TestRun_NoValidRecordsSkipsLookup(t *testing.T) {
	t.Parallel()

	lk := &fakeLookup{}
	got, err := Run(context.Background(), []sheet.Record{rec(2, ""), rec(3, "abc")}, lk)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if lk.calls != 0 || len(got.Invalid) != 2 {
		t.Fatalf("calls %d invalid %d", lk.calls, len(got.Invalid))
	}
}

func TestDeduplicate_CopiesRowNumbers(t *testing.T) {
	t.Parallel()

	id := "8001015009087"
	v := ValidRecord{Record: rec(2, id), Identity: idnumber.Validate(id)}
	w := v
	w.Record.RowNumber = 5
	x := v
	x.Record.RowNumber = 9

	unique, dups, groups := Deduplicate([]ValidRecord{v, w, x})
	if len(unique) != 1 || groups != 1 || len(dups) != 3 {
		t.Fatalf("unique %d groups %d dups %d", len(unique), groups, len(dups))
	}
	dups[0].AllRowNumbers[0] = 99
	if dups[1].AllRowNumbers[0] != 2 {
		t.Fatalf("row slices are shared")
	}
}
