// Package domain holds member rows and persistence outcomes
package domain

import "time"

// Op is the write performed for one record
type Op string

// Write operations
const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
)

// Stored is what the members table already holds for an identity number
type Stored struct {
	MemberID       int64
	IDNumber       string
	Ward           string
	VotingDistrict string
}

// Row is one member write. Nil pointers are absent values: inserts store
// NULL, updates keep the current column.
type Row struct {
	IDNumber  string
	FirstName *string
	Surname   *string

	DateOfBirth *time.Time
	Age         *int

	GenderID           *int64
	RaceID             *int64
	LanguageID         *int64
	CitizenshipID      *int64
	OccupationID       *int64
	QualificationID    *int64
	MembershipTypeID   *int64
	MembershipStatusID *int64
	VoterStatusID      *int64

	CellNumber *string
	Email      *string
	Address    *string

	WardCode           *string
	MunicipalityCode   *string
	DistrictCode       *string
	ProvinceCode       *string
	VotingDistrictCode *string

	Amount          *float64
	DateJoined      *time.Time
	LastPaymentDate *time.Time
	ExpiryDate      *time.Time
	ExpiryComputed  bool

	Verified       bool
	VerifiedAt     *time.Time
	ProviderStatus *string

	UploadJob string
}

// Outcome is the result of writing one record
type Outcome struct {
	RowNumber int    `json:"row_number"`
	IDNumber  string `json:"id_number"`
	Op        Op     `json:"op"`
	OK        bool   `json:"ok"`
	MemberID  int64  `json:"member_id,omitempty"`
	Err       string `json:"error,omitempty"`
	Verified  bool   `json:"verified"`
}

// Counts summarises outcomes
type Counts struct {
	Inserted   int `json:"inserted"`
	Updated    int `json:"updated"`
	Failed     int `json:"failed"`
	Unverified int `json:"unverified"`
}

// Tally counts outcomes by kind
func Tally(outs []Outcome) Counts {
	var c Counts
	for _, o := range outs {
		switch {
		case !o.OK:
			c.Failed++
		case o.Op == OpInsert:
			c.Inserted++
		default:
			c.Updated++
		}
		if o.OK && !o.Verified {
			c.Unverified++
		}
	}
	return c
}
