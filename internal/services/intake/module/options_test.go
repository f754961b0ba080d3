package module

import (
	"testing"
	"time"

	"rollcall/internal/platform/config"
	perr "rollcall/internal/platform/errors"
	"rollcall/internal/platform/testkit"
)

func TestFromConfig_DefaultsAreValid(t *testing.T) {
	testkit.Serial(t)
	t.Setenv("INTAKE_DIR", "/srv/drop")

	o := FromConfig(config.New())
	if o.AcceptedDir != "/srv/drop/accepted" || o.MaxBytes != 50<<20 || o.Priority != 5 {
		t.Fatalf("defaults = %+v", o)
	}
	if err := Validate(o); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestFromConfig_NormalizesExtensions(t *testing.T) {
	testkit.Serial(t)
	t.Setenv("INTAKE_ALLOWED_EXTS", "XLSX, .xls,,csv")

	o := FromConfig(config.New())
	want := []string{".xlsx", ".xls", ".csv"}
	if len(o.AllowedExts) != len(want) {
		t.Fatalf("exts = %v", o.AllowedExts)
	}
	for i := range want {
		if o.AllowedExts[i] != want[i] {
			t.Fatalf("exts = %v, want %v", o.AllowedExts, want)
		}
	}
}

func TestValidate_RejectsBadBounds(t *testing.T) {
	t.Parallel()

	base := Options{
		Dir:              "in",
		AcceptedDir:      "ok",
		QuarantineDir:    "bad",
		AllowedExts:      []string{".xlsx"},
		MinBytes:         512,
		MaxBytes:         1024,
		StabilityPoll:    time.Second,
		StabilityChecks:  3,
		StabilityMaxWait: time.Minute,
		Priority:         5,
		Submitter:        "intake",
	}
	if err := Validate(base); err != nil {
		t.Fatalf("base invalid: %v", err)
	}

	cases := map[string]func(o *Options){
		"max below min":      func(o *Options) { o.MaxBytes = 100 },
		"accepted is source": func(o *Options) { o.AcceptedDir = o.Dir },
		"no extensions":      func(o *Options) { o.AllowedExts = nil },
		"zero checks":        func(o *Options) { o.StabilityChecks = 0 },
		"wait below poll":    func(o *Options) { o.StabilityMaxWait = time.Millisecond },
	}
	for name, mut := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			o := base
			o.AllowedExts = append([]string(nil), base.AllowedExts...)
			mut(&o)
			if err := Validate(o); !perr.IsCode(err, perr.ErrorCodeValidation) {
				t.Fatalf("err = %v, want validation", err)
			}
		})
	}
}

func TestMerge_NormalizesOverrideExtensions(t *testing.T) {
	t.Parallel()

	base := Options{AllowedExts: []string{".xlsx"}, Priority: 5}
	got := merge(base, Options{AllowedExts: []string{"XLSX", " csv", "."}})
	if len(got.AllowedExts) != 2 || got.AllowedExts[0] != ".xlsx" || got.AllowedExts[1] != ".csv" {
		t.Fatalf("exts = %v", got.AllowedExts)
	}
	if got.Priority != 5 {
		t.Fatalf("priority = %d, want base kept", got.Priority)
	}

	kept := merge(base, Options{})
	if len(kept.AllowedExts) != 1 || kept.AllowedExts[0] != ".xlsx" {
		t.Fatalf("exts = %v, want base kept", kept.AllowedExts)
	}
}
