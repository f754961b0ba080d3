package service

import (
	"strconv"
	"strings"
	"time"

	"rollcall/internal/core/idnumber"
	pstrings "rollcall/internal/platform/strings"
	ptime "rollcall/internal/platform/time"
	lookup "rollcall/internal/services/lookup/domain"
	"rollcall/internal/services/members/domain"
	"rollcall/internal/services/pipeline/validate"
	verify "rollcall/internal/services/verify/domain"
)

// Defaults used when an uploaded categorical value is absent or unknown
const (
	DefaultMembershipType   = "New"
	DefaultMembershipStatus = "Active"
	DefaultOccupation       = "Other"
	NotVerifiedStatus       = "Not Verified"
)

// insertRow builds a full row for a new member. Every categorical column is
// resolved with a default so a new member never has a dangling reference.
func insertRow(v validate.ValidRecord, res verify.Result, verified bool, lk lookup.Resolver, job string, now time.Time) domain.Row {
	r := v.Record
	row := domain.Row{
		IDNumber:        v.IDNumber(),
		FirstName:       pstrings.NilIfBlank(r.FirstName),
		Surname:         pstrings.NilIfBlank(r.Surname),
		CellNumber:      pstrings.NilIfBlank(r.CellNumber),
		Email:           pstrings.NilIfBlank(r.Email),
		Address:         pstrings.NilIfBlank(r.Address),
		Amount:          amount(r.Amount),
		DateJoined:      r.DateJoined,
		LastPaymentDate: r.LastPaymentDate,
		ExpiryDate:      r.ExpiryDate,
		ExpiryComputed:  r.ExpiryComputed,
		UploadJob:       job,
	}
	identity(&row, v.Identity, now)

	row.GenderID = id(lk.Resolve(lookup.Gender, r.Gender, string(v.Identity.Gender)))
	row.CitizenshipID = id(lk.Resolve(lookup.Citizenship, "", citizenship(v.Identity)))
	row.RaceID = id(lk.Resolve(lookup.Race, r.Race, ""))
	row.LanguageID = id(lk.Resolve(lookup.Language, r.Language, ""))
	row.OccupationID = id(lk.Resolve(lookup.Occupation, r.Occupation, DefaultOccupation))
	row.QualificationID = id(lk.Resolve(lookup.Qualification, r.Qualification, ""))
	row.MembershipTypeID = id(lk.Resolve(lookup.MembershipType, r.MembershipType, DefaultMembershipType))
	row.MembershipStatusID = id(lk.Resolve(lookup.MembershipStatus, r.MembershipStatus, DefaultMembershipStatus))

	geography(&row, r.WardCode, lk)
	row.VotingDistrictCode = pstrings.NilIfBlank(r.VotingDistrictCode)
	if verified {
		verification(&row, res, r.WardCode, lk)
	} else {
		row.VoterStatusID = id(lk.Resolve(lookup.VoterStatus, "", NotVerifiedStatus))
	}
	return row
}

// updateRow carries only what the upload supplied. Absent values stay nil so
// the stored columns are kept. Verification columns are set only when the
// provider answered.
func updateRow(e validate.ExistingRecord, res verify.Result, verified bool, lk lookup.Resolver, job string, now time.Time) domain.Row {
	r := e.Record
	row := domain.Row{
		IDNumber:        e.IDNumber(),
		FirstName:       pstrings.NilIfBlank(r.FirstName),
		Surname:         pstrings.NilIfBlank(r.Surname),
		CellNumber:      pstrings.NilIfBlank(r.CellNumber),
		Email:           pstrings.NilIfBlank(r.Email),
		Address:         pstrings.NilIfBlank(r.Address),
		Amount:          amount(r.Amount),
		DateJoined:      r.DateJoined,
		LastPaymentDate: r.LastPaymentDate,
		ExpiryDate:      r.ExpiryDate,
		ExpiryComputed:  r.ExpiryComputed,
		UploadJob:       job,
	}
	identity(&row, e.Identity, now)

	row.GenderID = found(lk.Resolve(lookup.Gender, r.Gender, ""))
	row.RaceID = found(lk.Resolve(lookup.Race, r.Race, ""))
	row.LanguageID = found(lk.Resolve(lookup.Language, r.Language, ""))
	row.OccupationID = found(lk.Resolve(lookup.Occupation, r.Occupation, ""))
	row.QualificationID = found(lk.Resolve(lookup.Qualification, r.Qualification, ""))
	row.MembershipTypeID = found(lk.Resolve(lookup.MembershipType, r.MembershipType, ""))
	row.MembershipStatusID = found(lk.Resolve(lookup.MembershipStatus, r.MembershipStatus, ""))

	if r.WardCode != "" {
		geography(&row, r.WardCode, lk)
	}
	row.VotingDistrictCode = pstrings.NilIfBlank(r.VotingDistrictCode)
	if verified {
		verification(&row, res, r.WardCode, lk)
	}
	return row
}

func identity(row *domain.Row, res idnumber.Result, now time.Time) {
	if !res.DOBValid || res.DateOfBirth == nil {
		return
	}
	dob := *res.DateOfBirth
	row.DateOfBirth = &dob
	if age := res.Age(now); age >= 0 {
		row.Age = &age
	}
}

func citizenship(res idnumber.Result) string {
	if res.Citizen {
		return "South African Citizen"
	}
	return "Permanent Resident"
}

// geography fills the hierarchy for a known ward. Special codes and unknown
// wards keep only the ward itself.
func geography(row *domain.Row, ward string, lk lookup.Resolver) {
	row.WardCode = pstrings.NilIfBlank(ward)
	if ward == "" || lk.IsSpecial(ward) {
		return
	}
	if g, ok := lk.Hierarchy(ward); ok {
		row.MunicipalityCode = pstrings.NilIfBlank(g.Municipality)
		row.DistrictCode = pstrings.NilIfBlank(g.District)
		row.ProvinceCode = pstrings.NilIfBlank(g.Province)
	}
}

func verification(row *domain.Row, res verify.Result, uploadWard string, lk lookup.Resolver) {
	d := lookup.AssignDistrict(lookup.DistrictInput{
		Registered:       res.Registered,
		ProviderStatus:   res.Status,
		ProviderDistrict: res.VotingDistrict,
		ProviderWard:     res.Ward,
		UploadWard:       uploadWard,
	})
	row.VotingDistrictCode = pstrings.NilIfBlank(d.Value())
	row.Verified = true
	row.VerifiedAt = ptime.Ptr(res.VerifiedAt)
	row.ProviderStatus = pstrings.NilIfBlank(res.Status)

	def := "Registered"
	if !res.Registered {
		def = "Not Registered"
	}
	if d.Kind == lookup.KindSentinel {
		switch d.Sentinel {
		case lookup.Deceased:
			def = "Deceased"
		case lookup.International:
			def = "International"
		case lookup.NotRegistered, lookup.DifferentWard, lookup.RegisteredNoDistrict:
		}
	}
	row.VoterStatusID = id(lk.Resolve(lookup.VoterStatus, res.Status, def))
}

// amount accepts "R 1,250.50" style values; anything else is absent
func amount(s string) *float64 {
	s = strings.NewReplacer("R", "", "r", "", " ", "", ",", "", "\u00a0", "").Replace(strings.TrimSpace(s))
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}

func id(r lookup.Resolution) *int64 {
	if !r.Found() {
		return nil
	}
	v := r.ID
	return &v
}

// found keeps only real matches; a fallback on update would overwrite good data
func found(r lookup.Resolution) *int64 {
	if r.Match == lookup.MatchFallback {
		return nil
	}
	return id(r)
}
