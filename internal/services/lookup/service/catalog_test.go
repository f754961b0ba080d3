package service

import (
	"context"
	"errors"
	"testing"

	perr "rollcall/internal/platform/errors"
	"rollcall/internal/services/lookup/domain"
)

func fixture() domain.Snapshot {
	return domain.Snapshot{
		Codes: []domain.Code{
			{Table: domain.Gender, ID: 1, Code: "M", Label: "Male"},
			{Table: domain.Gender, ID: 2, Code: "F", Label: "Female"},
			{Table: domain.Language, ID: 10, Code: "ZU", Label: "isiZulu"},
			{Table: domain.Language, ID: 11, Code: "AF", Label: "Afrikaans"},
			{Table: domain.Language, ID: 12, Code: "EN", Label: "English"},
			{Table: domain.Occupation, ID: 20, Code: "TCH", Label: "Teacher"},
			{Table: domain.Occupation, ID: 21, Code: "NRS", Label: "Nurse"},
			{Table: domain.Occupation, ID: 22, Code: "HTC", Label: "Head Teacher"},
			{Table: domain.Occupation, ID: 23, Code: "OTH", Label: "Other"},
			{Table: domain.VoterStatus, ID: 30, Code: "REG", Label: "Registered"},
			{Table: domain.VoterStatus, ID: 31, Code: "NV", Label: "Not Verified"},
		},
		Wards: []domain.Geo{
			{Ward: "79800056", Municipality: "JHB", District: "JHB", Province: "GP"},
		},
		Special: []domain.Code{{ID: 1, Code: "99999998", Label: "Mobile station"}},
	}
}

func TestCatalog_ResolveOrder(t *testing.T) {
	t.Parallel()

	c := NewCatalog(fixture())
	tests := []struct {
		name  string
		table domain.Table
		raw   string
		id    int64
		match domain.Match
	}{
		{"exact label", domain.Gender, "male", 1, domain.MatchExact},
		{"exact code", domain.Gender, " f ", 2, domain.MatchExact},
		{"exact accented", domain.Language, "Afrik\u00e1ans", 11, domain.MatchExact},
		{"variation", domain.Gender, "Boy", 1, domain.MatchVariation},
		{"variation language", domain.Language, "ZULU", 10, domain.MatchVariation},
		{"substring longest wins", domain.Occupation, "senior head teacher", 22, domain.MatchSubstring},
		{"substring contained", domain.Occupation, "nurs", 21, domain.MatchSubstring},
		{"fallback to default", domain.Occupation, "astronaut", 23, domain.MatchFallback},
		{"empty uses default", domain.VoterStatus, "", 31, domain.MatchFallback},
		{"unknown table", domain.Race, "African", 0, domain.MatchFallback},
	}
	for _, tt := range tests {
		def := "Other"
		if tt.table == domain.VoterStatus {
			def = "Not Verified"
		}
		got := c.Resolve(tt.table, tt.raw, def)
		if got.ID != tt.id || got.Match != tt.match {
			t.Fatalf("%s: Resolve(%s, %q) = %+v, want id %d match %s", tt.name, tt.table, tt.raw, got, tt.id, tt.match)
		}
	}
}

func TestCatalog_FallbacksRecorded(t *testing.T) {
	t.Parallel()

	c := NewCatalog(fixture())
	for _, v := range []string{"astronaut", "astronaut", "pilot", "x1", "x2", "x3", "x4"} {
		_ = c.Resolve(domain.Occupation, v, "Other")
	}
	_ = c.Resolve(domain.Occupation, "", "Other")
	_ = c.Resolve(domain.Gender, "male", "Male")

	fb := c.Fallbacks()
	st, ok := fb[domain.Occupation]
	if !ok || st.Count != 7 {
		t.Fatalf("occupation fallbacks = %+v", st)
	}
	if len(st.Samples) != maxSamples || st.Samples[0] != "astronaut" || st.Samples[1] != "pilot" {
		t.Fatalf("samples = %v", st.Samples)
	}
	if _, ok := fb[domain.Gender]; ok {
		t.Fatalf("exact matches must not count as fallbacks")
	}

	st.Samples[0] = "mutated"
	if c.Fallbacks()[domain.Occupation].Samples[0] != "astronaut" {
		t.Fatalf("Fallbacks must return a copy")
	}
}

func TestCatalog_GeoAndSpecial(t *testing.T) {
	t.Parallel()

	c := NewCatalog(fixture())
	g, ok := c.Hierarchy(" 79800056")
	if !ok || g.Province != "GP" || g.Municipality != "JHB" {
		t.Fatalf("hierarchy = %+v %v", g, ok)
	}
	if _, ok := c.Hierarchy("11111111"); ok {
		t.Fatalf("unknown ward resolved")
	}
	if !c.IsSpecial("99999998") || !c.IsSpecial("33333333") {
		t.Fatalf("special codes not recognised")
	}
	if c.IsSpecial("97090101") {
		t.Fatalf("ordinary code reported special")
	}
}

type fakeRepo struct {
	snap domain.Snapshot
	fail string
}

func (f fakeRepo) Codes(context.Context) ([]domain.Code, error) {
	if f.fail == "codes" {
		return nil, errors.New("boom")
	}
	return f.snap.Codes, nil
}

func (f fakeRepo) Wards(context.Context) ([]domain.Geo, error) {
	if f.fail == "wards" {
		return nil, errors.New("boom")
	}
	return f.snap.Wards, nil
}

func (f fakeRepo) Special(context.Context) ([]domain.Code, error) {
	if f.fail == "special" {
		return nil, errors.New("boom")
	}
	return f.snap.Special, nil
}

func TestSvc_Load(t *testing.T) {
	t.Parallel()

	r, err := NewWithRepo(fakeRepo{snap: fixture()}).Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := r.Resolve(domain.Gender, "Female", "Male"); got.ID != 2 {
		t.Fatalf("loaded catalog resolve = %+v", got)
	}

	for _, stage := range []string{"codes", "wards", "special"} {
		_, err := NewWithRepo(fakeRepo{snap: fixture(), fail: stage}).Load(context.Background())
		if !perr.IsCode(err, perr.ErrorCodeUnavailable) {
			t.Fatalf("%s failure code = %v", stage, perr.CodeOf(err))
		}
		if !perr.Retryable(err) {
			t.Fatalf("%s failure must be retryable", stage)
		}
	}
}
