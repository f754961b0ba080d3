// Package service persists validated records in one transaction with a
// savepoint per record
package service

import (
	"context"
	"time"

	"rollcall/internal/modkit/repokit"
	perr "rollcall/internal/platform/errors"
	"rollcall/internal/platform/logger"
	"rollcall/internal/platform/metrics"
	"rollcall/internal/platform/store"
	lookup "rollcall/internal/services/lookup/domain"
	"rollcall/internal/services/members/domain"
	"rollcall/internal/services/members/repo"
	"rollcall/internal/services/pipeline/validate"
	verify "rollcall/internal/services/verify/domain"
)

// Input is one job's worth of records to write
type Input struct {
	JobID    string
	New      []validate.ValidRecord
	Existing []validate.ExistingRecord
	// Results is keyed by identity number; a missing key was never verified
	Results map[string]verify.Result
	Lookups lookup.Resolver
}

// Svc writes members
type Svc struct {
	tx   repokit.TxRunner
	repo repokit.Binder[repo.Repo]
	now  func() time.Time
}

// New constructs the writer
func New(tx repokit.TxRunner, binder repokit.Binder[repo.Repo]) *Svc {
	return &Svc{tx: tx, repo: binder, now: time.Now}
}

// LookupExisting finds stored members in one query
func (s *Svc) LookupExisting(ctx context.Context, ids []string) (map[string]domain.Stored, error) {
	return repokit.MustBind(s.repo, s.tx).LookupExisting(ctx, ids)
}

// Persist writes every record and returns one outcome per record in input
// order, new records first. A record failure rolls back only its savepoint.
// Anything that breaks the transaction itself is fatal and nothing is kept.
func (s *Svc) Persist(ctx context.Context, in Input) ([]domain.Outcome, error) {
	log := logger.C(ctx).With().Str("component", "members").Logger()
	now := s.now()
	total := len(in.New) + len(in.Existing)

	var outs []domain.Outcome
	err := s.tx.Tx(ctx, func(q store.RowQuerier) error {
		outs = make([]domain.Outcome, 0, total)

		for _, v := range in.New {
			res, verified := result(in.Results, v.IDNumber())
			row := insertRow(v, res, verified, in.Lookups, in.JobID, now)
			o := domain.Outcome{RowNumber: v.Record.RowNumber, IDNumber: row.IDNumber, Op: domain.OpInsert, Verified: verified}

			err := store.Savepoint(ctx, q, func(sq store.RowQuerier) error {
				id, err := repokit.MustBind(s.repo, sq).Insert(ctx, row)
				o.MemberID = id
				return err
			})
			if fatal(ctx, err) {
				return err
			}
			outs = append(outs, settle(o, err))
		}

		for _, e := range in.Existing {
			res, verified := result(in.Results, e.IDNumber())
			row := updateRow(e, res, verified, in.Lookups, in.JobID, now)
			o := domain.Outcome{RowNumber: e.Record.RowNumber, IDNumber: row.IDNumber, Op: domain.OpUpdate, MemberID: e.MemberID, Verified: verified}

			err := store.Savepoint(ctx, q, func(sq store.RowQuerier) error {
				return repokit.MustBind(s.repo, sq).Update(ctx, e.MemberID, row)
			})
			if fatal(ctx, err) {
				return err
			}
			outs = append(outs, settle(o, err))
		}
		return nil
	})
	if err != nil {
		log.Error().Err(err).Int("records", total).Msg("persist transaction aborted")
		if ctx.Err() != nil {
			return nil, perr.Wrap(err, perr.ErrorCodeUnavailable, "members: persist interrupted")
		}
		return nil, perr.Wrap(err, perr.ErrorCodeDB, "members: persist transaction")
	}

	c := domain.Tally(outs)
	log.Info().
		Int("inserted", c.Inserted).
		Int("updated", c.Updated).
		Int("failed", c.Failed).
		Int("unverified", c.Unverified).
		Msg("persist committed")
	return outs, nil
}

func result(m map[string]verify.Result, id string) (verify.Result, bool) {
	r, ok := m[id]
	return r, ok && r.Verified()
}

func fatal(ctx context.Context, err error) bool {
	if err == nil {
		return false
	}
	return store.IsSavepointFailure(err) || ctx.Err() != nil
}

func settle(o domain.Outcome, err error) domain.Outcome {
	label := "ok"
	if err != nil {
		o.OK = false
		if o.Op == domain.OpInsert {
			o.MemberID = 0
		}
		o.Err = describe(err)
		label = "error"
	} else {
		o.OK = true
	}
	metrics.PersistOutcomes.WithLabelValues(string(o.Op), label).Inc()
	return o
}

func describe(err error) string {
	switch {
	case perr.IsDuplicateKey(err):
		return "duplicate identity number: " + err.Error()
	case perr.IsForeignKeyViolation(err):
		return "unknown reference code: " + err.Error()
	default:
		return err.Error()
	}
}

// Writer is the persistence surface the pipeline uses
type Writer interface {
	validate.ExistingLookup
	Persist(ctx context.Context, in Input) ([]domain.Outcome, error)
}

var _ Writer = (*Svc)(nil)
