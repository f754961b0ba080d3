// Package service loads reference data into a per job Catalog
package service

import (
	"context"

	"rollcall/internal/modkit"
	"rollcall/internal/modkit/repokit"
	perr "rollcall/internal/platform/errors"
	"rollcall/internal/platform/logger"
	"rollcall/internal/services/lookup/domain"
	lrepo "rollcall/internal/services/lookup/repo"
)

// Svc loads catalogs
type Svc struct {
	repo lrepo.Repo
}

var _ domain.Loader = (*Svc)(nil)

// New constructs the service over the Postgres repo
func New(deps modkit.Deps) *Svc {
	return NewWithRepo(repokit.MustBind(lrepo.NewPG(), deps.PG))
}

// NewWithRepo constructs the service over any repo
func NewWithRepo(r lrepo.Repo) *Svc {
	return &Svc{repo: r}
}

// Load reads every reference table in one pass. Any failure is fatal to the
// job but worth retrying.
func (s *Svc) Load(ctx context.Context) (domain.Resolver, error) {
	cat, err := s.Catalog(ctx)
	if err != nil {
		return nil, err
	}
	return cat, nil
}

// Catalog is Load with the concrete type
func (s *Svc) Catalog(ctx context.Context) (*Catalog, error) {
	var snap domain.Snapshot
	var err error

	if snap.Codes, err = s.repo.Codes(ctx); err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeUnavailable, "lookup: load reference codes")
	}
	if snap.Wards, err = s.repo.Wards(ctx); err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeUnavailable, "lookup: load ward hierarchy")
	}
	if snap.Special, err = s.repo.Special(ctx); err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeUnavailable, "lookup: load special codes")
	}

	logger.C(ctx).Debug().
		Int("codes", len(snap.Codes)).
		Int("wards", len(snap.Wards)).
		Int("special", len(snap.Special)).
		Msg("reference data loaded")
	return NewCatalog(snap), nil
}
