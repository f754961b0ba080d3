// Package domain holds reference data types, the voting district variant and lookup ports
package domain

import "context"

// Table names a reference code table
type Table string

// Reference tables loaded per job
const (
	Gender           Table = "gender"
	Race             Table = "race"
	Language         Table = "language"
	Citizenship      Table = "citizenship"
	Occupation       Table = "occupation"
	Qualification    Table = "qualification"
	MembershipType   Table = "membership_type"
	MembershipStatus Table = "membership_status"
	VoterStatus      Table = "voter_status"
)

// Tables lists every reference table in load order
var Tables = []Table{Gender, Race, Language, Citizenship, Occupation, Qualification, MembershipType, MembershipStatus, VoterStatus}

// Code is one reference row
type Code struct {
	Table Table
	ID    int64
	Code  string
	Label string
}

// Geo is a ward with its place in the hierarchy, all as codes
type Geo struct {
	Ward         string `json:"ward"`
	Municipality string `json:"municipality"`
	District     string `json:"district"`
	Province     string `json:"province"`
}

// Snapshot is everything Load reads from the store
type Snapshot struct {
	Codes   []Code
	Wards   []Geo
	Special []Code
}

// Match says how a free text value was resolved
type Match string

// Match kinds, strongest first
const (
	MatchExact     Match = "exact"
	MatchVariation Match = "variation"
	MatchSubstring Match = "substring"
	MatchFallback  Match = "fallback"
)

// Resolution is the outcome of resolving one value. ID is zero when even the
// default is not a known code.
type Resolution struct {
	ID    int64  `json:"id"`
	Code  string `json:"code"`
	Label string `json:"label"`
	Match Match  `json:"match"`
}

// Found reports whether the resolution points at a stored row
func (r Resolution) Found() bool { return r.ID != 0 }

// FallbackStat counts values that could not be resolved in one table
type FallbackStat struct {
	Count   int      `json:"count"`
	Samples []string `json:"samples,omitempty"`
}

// Resolver is the read surface of a loaded catalog
type Resolver interface {
	Resolve(table Table, raw, def string) Resolution
	Hierarchy(ward string) (Geo, bool)
	IsSpecial(code string) bool
	Fallbacks() map[Table]FallbackStat
}

// Loader loads a fresh catalog from the store
type Loader interface {
	Load(ctx context.Context) (Resolver, error)
}
