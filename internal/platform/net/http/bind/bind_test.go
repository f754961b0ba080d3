package bind

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	perr "rollcall/internal/platform/errors"
	"rollcall/internal/platform/testkit"
)

type submitBody struct {
	FilePath string `json:"file_path" validate:"required,abspath"`
	Role     string `json:"role" validate:"omitempty,max=8"`
	Retries  int    `json:"retries" validate:"min=0,max=3"`
	Internal string `json:"-" validate:"omitempty,min=2"`
}

func TestParseJSON_OK(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest("POST", "/", strings.NewReader(`{"file_path":"/srv/drop/a.xlsx","retries":2}`))
	got, err := ParseJSON[submitBody](r)
	if err != nil {
		t.Fatalf("ParseJSON: %v", err)
	}
	if got.FilePath != "/srv/drop/a.xlsx" || got.Retries != 2 {
		t.Fatalf("got %+v", got)
	}
}

func TestParseJSON_Rejects(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		body  string
		code  perr.ErrorCode
		field string
		msg   string
	}{
		{"empty", ``, perr.ErrorCodeJSON, "", "empty body"},
		{"malformed", `{"file_path":`, perr.ErrorCodeJSON, "", "invalid JSON"},
		{"unknown field", `{"file_path":"/a.xlsx","owner":"x"}`, perr.ErrorCodeJSON, "", "owner"},
		{"trailing", `{"file_path":"/a.xlsx"} {}`, perr.ErrorCodeJSON, "", "trailing"},
		{"missing", `{}`, perr.ErrorCodeValidation, "file_path", "file_path is a required field"},
		{"relative", `{"file_path":"drop/a.xlsx"}`, perr.ErrorCodeValidation, "file_path", "file_path must be an absolute path"},
		{"too many", `{"file_path":"/a.xlsx","retries":9}`, perr.ErrorCodeValidation, "retries", "retries must be at most 3"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			r := httptest.NewRequest("POST", "/", strings.NewReader(tc.body))
			_, err := ParseJSON[submitBody](r)
			if got := perr.CodeOf(err); got != tc.code {
				t.Fatalf("code = %v, want %v (%v)", got, tc.code, err)
			}
			e, _ := perr.As(err)
			if e.Field() != tc.field {
				t.Fatalf("field = %q, want %q", e.Field(), tc.field)
			}
			testkit.MustContain(t, err.Error(), tc.msg)
		})
	}
}

func TestParseJSON_BodyIsCapped(t *testing.T) {
	t.Parallel()

	pad := strings.Repeat(" ", MaxBody)
	r := httptest.NewRequest("POST", "/", strings.NewReader(pad+`{"file_path":"/a.xlsx"}`))
	if _, err := ParseJSON[submitBody](r); !perr.IsCode(err, perr.ErrorCodeJSON) {
		t.Fatalf("err = %v, want JSON error past the cap", err)
	}
}

func TestStruct_DashTagUsesFieldName(t *testing.T) {
	t.Parallel()

	err := Struct(submitBody{FilePath: "/a.xlsx", Internal: "x"})
	e, ok := perr.As(err)
	if !ok || e.Field() != "Internal" {
		t.Fatalf("err = %v", err)
	}
	if err := Struct(submitBody{FilePath: "/a.xlsx"}); err != nil {
		t.Fatalf("valid struct: %v", err)
	}
}

func TestFieldAndMessage_PlainError(t *testing.T) {
	t.Parallel()

	if f, m := FieldAndMessage(errors.New("boom")); f != "" || m != "boom" {
		t.Fatalf("got %q %q", f, m)
	}
	if f, m := FieldAndMessage(nil); f != "" || m != "" {
		t.Fatalf("nil got %q %q", f, m)
	}
}
