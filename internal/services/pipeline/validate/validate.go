// Package validate partitions read records into invalid, duplicate, new and existing buckets
package validate

import (
	"context"

	"rollcall/internal/adapters/ingest/sheet"
	"rollcall/internal/core/idnumber"
	perr "rollcall/internal/platform/errors"
	members "rollcall/internal/services/members/domain"
)

// InvalidRecord failed identity validation
type InvalidRecord struct {
	Record sheet.Record  `json:"record"`
	Kind   idnumber.Kind `json:"kind"`
	Reason string        `json:"reason"`
}

// ValidRecord passed identity validation
type ValidRecord struct {
	Record   sheet.Record    `json:"record"`
	Identity idnumber.Result `json:"-"`
}

// IDNumber is the normalized identity number
func (v ValidRecord) IDNumber() string { return v.Identity.Normalized }

// DuplicateRecord is one occurrence of an identity number seen more than once.
// Every occurrence is listed, including the one kept as unique.
type DuplicateRecord struct {
	Record         sheet.Record `json:"record"`
	IDNumber       string       `json:"id_number"`
	AllRowNumbers  []int        `json:"all_row_numbers"`
	DuplicateCount int          `json:"duplicate_count"`
}

// ExistingRecord matched a stored member
type ExistingRecord struct {
	ValidRecord
	MemberID               int64  `json:"member_id"`
	PreviousWard           string `json:"previous_ward,omitempty"`
	PreviousVotingDistrict string `json:"previous_voting_district,omitempty"`
	WardChanged            bool   `json:"ward_changed"`
	VotingDistrictChanged  bool   `json:"voting_district_changed"`
}

// Stats counts each stage
type Stats struct {
	Total           int `json:"total"`
	Valid           int `json:"valid"`
	Invalid         int `json:"invalid"`
	MissingIdentity int `json:"missing_identity"`
	FormatErrors    int `json:"format_errors"`
	ChecksumErrors  int `json:"checksum_errors"`
	DuplicateGroups int `json:"duplicate_groups"`
	DuplicateRows   int `json:"duplicate_rows"`
	Unique          int `json:"unique"`
	New             int `json:"new"`
	Existing        int `json:"existing"`
	WardChanges     int `json:"ward_changes"`
	VDChanges       int `json:"voting_district_changes"`
}

// Batch is the validated partition of one upload
type Batch struct {
	Invalid    []InvalidRecord
	Duplicates []DuplicateRecord
	Unique     []ValidRecord
	New        []ValidRecord
	Existing   []ExistingRecord
	Stats      Stats
}

// ExistingLookup finds stored members by identity number in one query
type ExistingLookup interface {
	LookupExisting(ctx context.Context, ids []string) (map[string]members.Stored, error)
}

// Run applies the four stages. A lookup failure is fatal; nothing partial is returned.
func Run(ctx context.Context, recs []sheet.Record, lookup ExistingLookup) (Batch, error) {
	var b Batch
	b.Stats.Total = len(recs)

	valid, invalid := CheckIdentities(recs)
	b.Invalid = invalid
	b.Stats.Valid, b.Stats.Invalid = len(valid), len(invalid)
	for _, inv := range invalid {
		switch inv.Kind {
		case idnumber.MissingIdentity:
			b.Stats.MissingIdentity++
		case idnumber.FormatError:
			b.Stats.FormatErrors++
		case idnumber.ChecksumError:
			b.Stats.ChecksumErrors++
		}
	}

	unique, dups, groups := Deduplicate(valid)
	b.Unique, b.Duplicates = unique, dups
	b.Stats.Unique, b.Stats.DuplicateRows, b.Stats.DuplicateGroups = len(unique), len(dups), groups

	fresh, existing, err := Classify(ctx, unique, lookup)
	if err != nil {
		return Batch{}, err
	}
	b.New, b.Existing = fresh, existing
	b.Stats.New, b.Stats.Existing = len(fresh), len(existing)
	for _, e := range existing {
		if e.WardChanged {
			b.Stats.WardChanges++
		}
		if e.VotingDistrictChanged {
			b.Stats.VDChanges++
		}
	}
	return b, nil
}

// CheckIdentities validates every record's identity number
func CheckIdentities(recs []sheet.Record) ([]ValidRecord, []InvalidRecord) {
	var valid []ValidRecord
	var invalid []InvalidRecord
	for _, r := range recs {
		res := idnumber.Validate(r.IDNumber)
		if res.OK() {
			valid = append(valid, ValidRecord{Record: r, Identity: res})
			continue
		}
		invalid = append(invalid, InvalidRecord{Record: r, Kind: res.Kind, Reason: res.Reason})
	}
	return valid, invalid
}

// Deduplicate keeps the first occurrence of each identity number and reports
// every occurrence of numbers seen more than once, in row order
func Deduplicate(valid []ValidRecord) (unique []ValidRecord, dups []DuplicateRecord, groups int) {
	order := make([]string, 0, len(valid))
	byID := make(map[string][]ValidRecord, len(valid))
	for _, v := range valid {
		id := v.IDNumber()
		if _, seen := byID[id]; !seen {
			order = append(order, id)
			unique = append(unique, v)
		}
		byID[id] = append(byID[id], v)
	}
	for _, id := range order {
		occ := byID[id]
		if len(occ) < 2 {
			continue
		}
		groups++
		rows := make([]int, len(occ))
		for i, v := range occ {
			rows[i] = v.Record.RowNumber
		}
		for _, v := range occ {
			dups = append(dups, DuplicateRecord{
				Record:         v.Record,
				IDNumber:       id,
				AllRowNumbers:  append([]int(nil), rows...),
				DuplicateCount: len(occ),
			})
		}
	}
	return unique, dups, groups
}

// Classify splits unique records into new and existing with a single bulk lookup
func Classify(ctx context.Context, unique []ValidRecord, lookup ExistingLookup) ([]ValidRecord, []ExistingRecord, error) {
	if len(unique) == 0 {
		return nil, nil, nil
	}
	ids := make([]string, len(unique))
	for i, v := range unique {
		ids[i] = v.IDNumber()
	}
	stored, err := lookup.LookupExisting(ctx, ids)
	if err != nil {
		if _, ok := perr.As(err); ok {
			return nil, nil, err
		}
		return nil, nil, perr.Wrap(err, perr.ErrorCodeDB, "validate: existing member lookup")
	}

	var fresh []ValidRecord
	var existing []ExistingRecord
	for _, v := range unique {
		s, ok := stored[v.IDNumber()]
		if !ok {
			fresh = append(fresh, v)
			continue
		}
		existing = append(existing, ExistingRecord{
			ValidRecord:            v,
			MemberID:               s.MemberID,
			PreviousWard:           s.Ward,
			PreviousVotingDistrict: s.VotingDistrict,
			WardChanged:            changed(v.Record.WardCode, s.Ward),
			VotingDistrictChanged:  changed(v.Record.VotingDistrictCode, s.VotingDistrict),
		})
	}
	return fresh, existing, nil
}

func changed(upload, stored string) bool {
	return upload != "" && upload != stored
}
