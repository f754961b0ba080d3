package voterroll

import "time"

// Voter is the provider's registration document for one identity number
type Voter struct {
	IDNumber       string `json:"id_number"`
	Status         string `json:"status"`
	Registered     bool   `json:"registered"`
	Ward           string `json:"ward"`
	VotingDistrict string `json:"voting_district"`
}

// ReplyKind tags what the provider said about an identity number
type ReplyKind int

// Reply kinds
const (
	Found ReplyKind = iota
	NotFound
	RateLimited
)

func (k ReplyKind) String() string {
	switch k {
	case Found:
		return "found"
	case NotFound:
		return "not_found"
	case RateLimited:
		return "rate_limited"
	}
	return "unknown"
}

// Reply is a successful exchange with the provider. Voter is set for Found,
// ResetAt for RateLimited.
type Reply struct {
	Kind    ReplyKind
	Voter   Voter
	ResetAt time.Time
}

// StatusNotFound is the status text the provider uses for unknown voters
const StatusNotFound = "Not Found"
