// Package repo writes member rows and finds existing members
package repo

import (
	"context"

	"rollcall/internal/modkit/repokit"
	"rollcall/internal/services/members/domain"
)

// Repo is the members write surface. It is bound per transaction or per
// savepoint so a failing statement only poisons its own scope.
type Repo interface {
	Insert(ctx context.Context, r domain.Row) (int64, error)
	Update(ctx context.Context, memberID int64, r domain.Row) error
	LookupExisting(ctx context.Context, ids []string) (map[string]domain.Stored, error)
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

func (r *queries) Insert(ctx context.Context, m domain.Row) (int64, error) {
	const sql = `
		INSERT INTO members (
			id_number, first_name, surname, date_of_birth, age,
			gender_id, race_id, language_id, citizenship_id, occupation_id, qualification_id,
			membership_type_id, membership_status_id, voter_status_id,
			cell_number, email, address,
			ward_code, municipality_code, district_code, province_code, voting_district_code,
			amount, date_joined, last_payment_date, expiry_date, expiry_computed,
			verified, verified_at, provider_status, last_upload_job
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10, $11,
			$12, $13, $14,
			$15, $16, $17,
			$18, $19, $20, $21, $22,
			$23, $24, $25, $26, $27,
			$28, $29, $30, $31
		)
		RETURNING member_id
	`
	var id int64
	err := r.q.QueryRow(ctx, sql,
		m.IDNumber, m.FirstName, m.Surname, m.DateOfBirth, m.Age,
		m.GenderID, m.RaceID, m.LanguageID, m.CitizenshipID, m.OccupationID, m.QualificationID,
		m.MembershipTypeID, m.MembershipStatusID, m.VoterStatusID,
		m.CellNumber, m.Email, m.Address,
		m.WardCode, m.MunicipalityCode, m.DistrictCode, m.ProvinceCode, m.VotingDistrictCode,
		m.Amount, m.DateJoined, m.LastPaymentDate, m.ExpiryDate, m.ExpiryComputed,
		m.Verified, m.VerifiedAt, m.ProviderStatus, m.UploadJob,
	).Scan(&id)
	return id, err
}

// Update fills supplied columns and keeps the rest. verified only ever flips on.
// A new ward replaces the whole hierarchy, so an unknown ward clears it.
func (r *queries) Update(ctx context.Context, memberID int64, m domain.Row) error {
	const sql = `
		UPDATE members SET
			first_name           = COALESCE($2, first_name),
			surname              = COALESCE($3, surname),
			date_of_birth        = COALESCE($4, date_of_birth),
			age                  = COALESCE($5, age),
			gender_id            = COALESCE($6, gender_id),
			race_id              = COALESCE($7, race_id),
			language_id          = COALESCE($8, language_id),
			citizenship_id       = COALESCE($9, citizenship_id),
			occupation_id        = COALESCE($10, occupation_id),
			qualification_id     = COALESCE($11, qualification_id),
			membership_type_id   = COALESCE($12, membership_type_id),
			membership_status_id = COALESCE($13, membership_status_id),
			voter_status_id      = COALESCE($14, voter_status_id),
			cell_number          = COALESCE($15, cell_number),
			email                = COALESCE($16, email),
			address              = COALESCE($17, address),
			ward_code            = COALESCE($18, ward_code),
			municipality_code    = CASE WHEN $18::text IS DISTINCT FROM ward_code AND $18::text IS NOT NULL
			                            THEN $19 ELSE COALESCE($19, municipality_code) END,
			district_code        = CASE WHEN $18::text IS DISTINCT FROM ward_code AND $18::text IS NOT NULL
			                            THEN $20 ELSE COALESCE($20, district_code) END,
			province_code        = CASE WHEN $18::text IS DISTINCT FROM ward_code AND $18::text IS NOT NULL
			                            THEN $21 ELSE COALESCE($21, province_code) END,
			voting_district_code = COALESCE($22, voting_district_code),
			amount               = COALESCE($23, amount),
			date_joined          = COALESCE($24, date_joined),
			last_payment_date    = COALESCE($25, last_payment_date),
			expiry_date          = COALESCE($26, expiry_date),
			expiry_computed      = CASE WHEN $26::date IS NULL THEN expiry_computed ELSE $27 END,
			verified             = verified OR $28,
			verified_at          = COALESCE($29, verified_at),
			provider_status      = COALESCE($30, provider_status),
			last_upload_job      = $31,
			updated_at           = now()
		WHERE member_id = $1
	`
	tag, err := r.q.Exec(ctx, sql,
		memberID,
		m.FirstName, m.Surname, m.DateOfBirth, m.Age,
		m.GenderID, m.RaceID, m.LanguageID, m.CitizenshipID, m.OccupationID, m.QualificationID,
		m.MembershipTypeID, m.MembershipStatusID, m.VoterStatusID,
		m.CellNumber, m.Email, m.Address,
		m.WardCode, m.MunicipalityCode, m.DistrictCode, m.ProvinceCode, m.VotingDistrictCode,
		m.Amount, m.DateJoined, m.LastPaymentDate, m.ExpiryDate, m.ExpiryComputed,
		m.Verified, m.VerifiedAt, m.ProviderStatus, m.UploadJob,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errMemberGone
	}
	return nil
}

func (r *queries) LookupExisting(ctx context.Context, ids []string) (map[string]domain.Stored, error) {
	out := make(map[string]domain.Stored, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	const sql = `
		SELECT member_id, id_number, COALESCE(ward_code, ''), COALESCE(voting_district_code, '')
		FROM members
		WHERE id_number = ANY($1)
	`
	rows, err := r.q.Query(ctx, sql, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var s domain.Stored
		if err := rows.Scan(&s.MemberID, &s.IDNumber, &s.Ward, &s.VotingDistrict); err != nil {
			return nil, err
		}
		out[s.IDNumber] = s
	}
	return out, rows.Err()
}
