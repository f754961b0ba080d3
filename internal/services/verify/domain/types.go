// Package domain defines verification results, the tagged provider outcome and verifier ports
package domain

import (
	"context"
	"time"
)

// Result is what is known about one identity number after a provider call.
// Err is set when the call failed; such a result counts as unverified.
type Result struct {
	IDNumber       string    `json:"id_number"`
	Registered     bool      `json:"registered"`
	Ward           string    `json:"ward,omitempty"`
	VotingDistrict string    `json:"voting_district,omitempty"`
	Status         string    `json:"status,omitempty"`
	Err            string    `json:"error,omitempty"`
	VerifiedAt     time.Time `json:"verified_at"`
}

// Verified reports whether the result came back without error
func (r Result) Verified() bool { return r.Err == "" }

// OutcomeKind tags an Outcome
type OutcomeKind int

// Outcome kinds
const (
	OutcomeOK OutcomeKind = iota + 1
	OutcomeRateLimited
)

// Outcome is either a Result (possibly carrying an error) or a rate limit
// signal with the time the quota resets
type Outcome struct {
	Kind    OutcomeKind
	Result  Result
	ResetAt time.Time
}

// Ok wraps a result
func Ok(r Result) Outcome { return Outcome{Kind: OutcomeOK, Result: r} }

// Failed wraps a per item error as a result
func Failed(id string, err error, at time.Time) Outcome {
	return Ok(Result{IDNumber: id, Err: err.Error(), VerifiedAt: at})
}

// RateLimited signals that no call was made because the quota is spent
func RateLimited(resetAt time.Time) Outcome {
	return Outcome{Kind: OutcomeRateLimited, ResetAt: resetAt}
}

// IsRateLimited reports the stop signal
func (o Outcome) IsRateLimited() bool { return o.Kind == OutcomeRateLimited }

// BatchResult is the outcome of verifying a list of identity numbers. An id
// missing from Results was never attempted.
type BatchResult struct {
	Results                  map[string]Result `json:"-"`
	RateLimitHit             bool              `json:"rate_limit_hit"`
	RowsProcessedBeforeLimit int               `json:"rows_processed_before_limit"`
	ResetAt                  *time.Time        `json:"reset_at,omitempty"`
	Requested                int               `json:"requested"`
	Attempted                int               `json:"attempted"`
	Errors                   int               `json:"errors"`
}

// Unverified lists ids from want that have no usable result, in order
func (b BatchResult) Unverified(want []string) []string {
	var out []string
	for _, id := range want {
		if r, ok := b.Results[id]; !ok || !r.Verified() {
			out = append(out, id)
		}
	}
	return out
}

// RateLimitState is the shared quota as seen right now
type RateLimitState struct {
	Count     int           `json:"count"`
	Ceiling   int           `json:"ceiling"`
	Remaining int           `json:"remaining"`
	ResetAt   time.Time     `json:"reset_at"`
	Window    time.Duration `json:"-"`
}

// Progress is called after every batch with ids attempted so far and the total
type Progress func(done, total int)

// Provider makes one verification call
type Provider interface {
	Check(ctx context.Context, idNumber string) Outcome
}

// Counter is the shared hourly call counter
type Counter interface {
	// Take counts one call and reports whether it is within the ceiling
	Take(ctx context.Context) (RateLimitState, bool, error)
	// Peek reads the state without counting
	Peek(ctx context.Context) (RateLimitState, error)
}

// Verifier is the port the pipeline and API use
type Verifier interface {
	Verify(ctx context.Context, ids []string, progress Progress) BatchResult
	Status(ctx context.Context) (RateLimitState, error)
}
