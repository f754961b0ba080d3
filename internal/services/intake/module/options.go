package module

import (
	"path/filepath"
	"time"

	"rollcall/internal/platform/config"
	perr "rollcall/internal/platform/errors"
	"rollcall/internal/platform/net/http/bind"
	pstrings "rollcall/internal/platform/strings"
	"rollcall/internal/services/intake/service"
	jobs "rollcall/internal/services/jobs/domain"
)

// Options is the watcher configuration
type Options = service.Config

// FromConfig reads INTAKE_*
func FromConfig(cfg config.Conf) Options {
	c := cfg.Prefix("INTAKE_")
	dir := c.MayString("DIR", "incoming")
	o := Options{
		Dir:              dir,
		AcceptedDir:      c.MayString("ACCEPTED_DIR", filepath.Join(dir, "accepted")),
		QuarantineDir:    c.MayString("QUARANTINE_DIR", filepath.Join(dir, "quarantine")),
		AllowedExts:      c.MayCSV("ALLOWED_EXTS", []string{".xlsx", ".xls"}),
		MinBytes:         c.MayInt64("MIN_BYTES", 512),
		MaxBytes:         c.MayInt64("MAX_BYTES", 50<<20),
		StabilityPoll:    c.MayDuration("STABILITY_POLL", time.Second),
		StabilityChecks:  c.MayInt("STABILITY_CHECKS", 3),
		StabilityMaxWait: c.MayDuration("STABILITY_MAX_WAIT", 2*time.Minute),
		Debounce:         c.MayDuration("DEBOUNCE", 500*time.Millisecond),
		DuplicateWindow:  c.MayDuration("DUPLICATE_WINDOW", 24*time.Hour),
		Priority:         c.MayInt("PRIORITY", jobs.PriorityWatcher),
		Submitter:        c.MayString("SUBMITTER", "intake-watcher"),
	}
	o.AllowedExts = pstrings.Exts(o.AllowedExts)
	return o
}

// Validate checks the options with the shared validator
func Validate(o Options) error {
	if err := bind.Struct(o); err != nil {
		return perr.Wrap(err, perr.ErrorCodeValidation, "intake config")
	}
	return nil
}
