package module

import (
	"rollcall/internal/platform/config"
	pstrings "rollcall/internal/platform/strings"
)

// Options configures the uploads API
type Options struct {
	AllowedExts []string
}

// FromConfig reads UPLOADS_ALLOWED_EXTS, falling back to the intake list
func FromConfig(cfg config.Conf) Options {
	def := cfg.Prefix("INTAKE_").MayCSV("ALLOWED_EXTS", []string{".xlsx", ".xls"})
	return Options{AllowedExts: pstrings.Exts(cfg.Prefix("UPLOADS_").MayCSV("ALLOWED_EXTS", def))}
}
