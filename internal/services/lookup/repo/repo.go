// Package repo reads reference codes and the ward hierarchy from Postgres
package repo

import (
	"context"

	"rollcall/internal/modkit/repokit"
	"rollcall/internal/services/lookup/domain"
)

// Repo is the reference data read surface
type Repo interface {
	Codes(ctx context.Context) ([]domain.Code, error)
	Wards(ctx context.Context) ([]domain.Geo, error)
	Special(ctx context.Context) ([]domain.Code, error)
}

type (
	// PG is the Postgres implementation
	PG      struct{}
	queries struct{ q repokit.Queryer }
)

// NewPG returns a binder for the Postgres implementation
func NewPG() repokit.Binder[Repo] { return PG{} }

// Bind attaches a Queryer
func (PG) Bind(q repokit.Queryer) Repo { return &queries{q: q} }

func (r *queries) Codes(ctx context.Context) ([]domain.Code, error) {
	const sql = `
		SELECT table_name, id, code, label
		FROM reference_codes
		ORDER BY table_name, id
	`
	rows, err := r.q.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Code
	for rows.Next() {
		var c domain.Code
		var table string
		if err := rows.Scan(&table, &c.ID, &c.Code, &c.Label); err != nil {
			return nil, err
		}
		c.Table = domain.Table(table)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *queries) Wards(ctx context.Context) ([]domain.Geo, error) {
	const sql = `
		SELECT w.code, m.code, d.code, p.code
		FROM wards w
		JOIN municipalities m ON m.id = w.municipality_id
		JOIN districts d      ON d.id = m.district_id
		JOIN provinces p      ON p.id = d.province_id
	`
	rows, err := r.q.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Geo
	for rows.Next() {
		var g domain.Geo
		if err := rows.Scan(&g.Ward, &g.Municipality, &g.District, &g.Province); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (r *queries) Special(ctx context.Context) ([]domain.Code, error) {
	const sql = `SELECT id, code, label FROM special_vd_codes ORDER BY code`
	rows, err := r.q.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Code
	for rows.Next() {
		var c domain.Code
		if err := rows.Scan(&c.ID, &c.Code, &c.Label); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
