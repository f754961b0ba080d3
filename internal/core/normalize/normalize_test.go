package normalize

import "testing"

func TestFold_Table(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		out  string
	}{
		{"empty", "", ""},
		{"identity ascii", "male", "male"},
		{"case fold", "IsiZulu", "isizulu"},
		{"strip accent", "Afrik\u00e1ans", "afrikaans"},
		{"combining mark", "cafe\u0301", "cafe"},
		{"zero width", "Xho\u200bsa", "xhosa"},
		{"fullwidth", "\uff2d\uff21\uff2c\uff25", "male"},
		{"collapse spaces", "  Self   Employed \t", "self employed"},
		{"control chars", "Grade\x00 12\x7f", "grade 12"},
		{"invalid utf8", string([]byte{'S', 'e', 0xff, 'S', 'o', 't', 'h', 'o'}), "sesotho"},
	}
	for _, tt := range tests {
		if got := Fold(tt.in); got != tt.out {
			t.Fatalf("%s: Fold(%q) = %q, want %q", tt.name, tt.in, got, tt.out)
		}
	}
}

func TestKey_HeaderSpellings(t *testing.T) {
	t.Parallel()

	tests := []struct{ in, out string }{
		{"ID Number", "id_number"},
		{"id-number", "id_number"},
		{"Voting.District Code", "voting_district_code"},
		{" Ward_No ", "ward_no"},
		{"Date/Joined", "date_joined"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Key(tt.in); got != tt.out {
			t.Fatalf("Key(%q) = %q, want %q", tt.in, got, tt.out)
		}
	}
}

func TestSanitize_CleanInputUnchanged(t *testing.T) {
	t.Parallel()

	in := "Line one\nLine two\tTabbed"
	if got := Sanitize(in); got != in {
		t.Fatalf("Sanitize changed clean input: %q", got)
	}
	if got := Sanitize("a\u0085b"); got != "ab" {
		t.Fatalf("C1 control not dropped: %q", got)
	}
}

func TestCell_KeepsCase(t *testing.T) {
	t.Parallel()

	if got := Cell("  Thabo\x01 "); got != "Thabo" {
		t.Fatalf("Cell = %q", got)
	}
}
