// Package domain defines pipeline stages and the processing result stored on a job
package domain

import (
	"time"

	"rollcall/internal/core/idnumber"
	lookup "rollcall/internal/services/lookup/domain"
	members "rollcall/internal/services/members/domain"
	"rollcall/internal/services/pipeline/validate"
)

// Stage is a step of the pipeline state machine
type Stage string

// Stages in order. StageError is reachable from any of them.
const (
	StageInitializing Stage = "initializing"
	StageReading      Stage = "reading"
	StageValidating   Stage = "validating"
	StageVerifying    Stage = "verifying"
	StagePersisting   Stage = "persisting"
	StageReporting    Stage = "reporting"
	StageCompleted    Stage = "completed"
	StageError        Stage = "error"
)

// Verification progress is scaled across this band
const (
	VerifyFloor   = 40
	VerifyCeiling = 70
)

// Percent is the progress reported on entering s
func (s Stage) Percent() int {
	switch s {
	case StageInitializing:
		return 0
	case StageReading:
		return 10
	case StageValidating:
		return 25
	case StageVerifying:
		return VerifyFloor
	case StagePersisting:
		return 75
	case StageReporting:
		return 90
	case StageCompleted:
		return 100
	default:
		return 0
	}
}

// VerifyPercent scales done of total into the verification band
func VerifyPercent(done, total int) int {
	if total <= 0 {
		return VerifyCeiling
	}
	if done > total {
		done = total
	}
	return VerifyFloor + (VerifyCeiling-VerifyFloor)*done/total
}

// InvalidItem is one row that failed identity validation
type InvalidItem struct {
	RowNumber int           `json:"row_number"`
	IDNumber  string        `json:"id_number"`
	Name      string        `json:"name,omitempty"`
	Kind      idnumber.Kind `json:"kind"`
	Reason    string        `json:"reason"`
}

// DuplicateItem is one occurrence of a repeated identity number
type DuplicateItem struct {
	RowNumber      int    `json:"row_number"`
	IDNumber       string `json:"id_number"`
	Name           string `json:"name,omitempty"`
	AllRowNumbers  []int  `json:"all_row_numbers"`
	DuplicateCount int    `json:"duplicate_count"`
}

// BatchSummary is the validation outcome
type BatchSummary struct {
	Stats      validate.Stats  `json:"stats"`
	Invalid    []InvalidItem   `json:"invalid,omitempty"`
	Duplicates []DuplicateItem `json:"duplicates,omitempty"`
}

// VerificationSummary is the verification outcome
type VerificationSummary struct {
	Requested                int        `json:"requested"`
	Attempted                int        `json:"attempted"`
	Verified                 int        `json:"verified"`
	Errors                   int        `json:"errors"`
	RateLimitHit             bool       `json:"rate_limit_hit"`
	RowsProcessedBeforeLimit int        `json:"rows_processed_before_limit"`
	ResetAt                  *time.Time `json:"reset_at,omitempty"`
	Unverified               []string   `json:"unverified,omitempty"`
}

// PersistSummary is the write outcome
type PersistSummary struct {
	Counts   members.Counts    `json:"counts"`
	Outcomes []members.Outcome `json:"outcomes,omitempty"`
}

// Result is the ProcessingResult stored on the job row and served by /result
type Result struct {
	JobID      string          `json:"job_id"`
	FileName   string          `json:"file_name,omitempty"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	DurationMS map[Stage]int64 `json:"duration_ms"`

	Batch        BatchSummary        `json:"batch"`
	Verification VerificationSummary `json:"verification"`
	Persist      PersistSummary      `json:"persist"`

	ReportPath      string                               `json:"report_path,omitempty"`
	Advisory        string                               `json:"advisory,omitempty"`
	LookupFallbacks map[lookup.Table]lookup.FallbackStat `json:"lookup_fallbacks,omitempty"`
}

// Summarize reduces a validated batch to what the result keeps
func Summarize(b validate.Batch) BatchSummary {
	s := BatchSummary{Stats: b.Stats}
	for _, r := range b.Invalid {
		s.Invalid = append(s.Invalid, InvalidItem{
			RowNumber: r.Record.RowNumber,
			IDNumber:  r.Record.IDNumber,
			Name:      r.Record.FullName(),
			Kind:      r.Kind,
			Reason:    r.Reason,
		})
	}
	for _, d := range b.Duplicates {
		s.Duplicates = append(s.Duplicates, DuplicateItem{
			RowNumber:      d.Record.RowNumber,
			IDNumber:       d.IDNumber,
			Name:           d.Record.FullName(),
			AllRowNumbers:  d.AllRowNumbers,
			DuplicateCount: d.DuplicateCount,
		})
	}
	return s
}
