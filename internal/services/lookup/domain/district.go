package domain

import (
	"fmt"
	"strings"
)

// Sentinel is a reserved voting district value that is not a real place
type Sentinel int

// Reserved districts
const (
	NotRegistered Sentinel = iota + 1
	Deceased
	International
	DifferentWard
	RegisteredNoDistrict
)

// Code returns the reserved district code stored for s
func (s Sentinel) Code() string {
	switch s {
	case NotRegistered:
		return "99999999"
	case Deceased:
		return "11111111"
	case International:
		return "22222222"
	case DifferentWard:
		return "33333333"
	case RegisteredNoDistrict:
		return "00000000"
	default:
		panic(fmt.Sprintf("lookup: unknown sentinel %d", int(s)))
	}
}

func (s Sentinel) String() string {
	switch s {
	case NotRegistered:
		return "not_registered"
	case Deceased:
		return "deceased"
	case International:
		return "international"
	case DifferentWard:
		return "different_ward"
	case RegisteredNoDistrict:
		return "registered_no_district"
	default:
		return fmt.Sprintf("sentinel(%d)", int(s))
	}
}

// Sentinels lists every reserved district
var Sentinels = []Sentinel{NotRegistered, Deceased, International, DifferentWard, RegisteredNoDistrict}

// DistrictKind tags a District
type DistrictKind int

// District kinds
const (
	KindSentinel DistrictKind = iota + 1
	KindCode
)

// District is either a reserved sentinel or a provider supplied code
type District struct {
	Kind     DistrictKind
	Sentinel Sentinel
	Code     string
}

// SentinelDistrict wraps a reserved value
func SentinelDistrict(s Sentinel) District { return District{Kind: KindSentinel, Sentinel: s} }

// CodeDistrict wraps a real district code
func CodeDistrict(code string) District { return District{Kind: KindCode, Code: code} }

// Value is the code stored in the members table
func (d District) Value() string {
	switch d.Kind {
	case KindSentinel:
		return d.Sentinel.Code()
	case KindCode:
		return d.Code
	default:
		return ""
	}
}

func (d District) String() string {
	if d.Kind == KindSentinel {
		return d.Sentinel.String()
	}
	return d.Value()
}

// IsSentinelCode reports whether code is one of the reserved values
func IsSentinelCode(code string) bool {
	for _, s := range Sentinels {
		if s.Code() == code {
			return true
		}
	}
	return false
}

// DistrictInput is what the provider said plus the ward the upload claimed
type DistrictInput struct {
	Registered       bool
	ProviderStatus   string
	ProviderDistrict string
	ProviderWard     string
	UploadWard       string
}

// AssignDistrict applies the precedence rules in order. A ward mismatch beats
// a provider supplied code, and a provider code is trusted without checking
// it against the geographic reference data.
func AssignDistrict(in DistrictInput) District {
	status := strings.ToLower(in.ProviderStatus)
	upWard := strings.TrimSpace(in.UploadWard)
	pvWard := strings.TrimSpace(in.ProviderWard)
	code := strings.TrimSpace(in.ProviderDistrict)

	switch {
	case !in.Registered:
		return SentinelDistrict(NotRegistered)
	case strings.Contains(status, "deceased"):
		return SentinelDistrict(Deceased)
	case strings.Contains(status, "international") || strings.Contains(status, "abroad"):
		return SentinelDistrict(International)
	case upWard != "" && pvWard != "" && upWard != pvWard:
		return SentinelDistrict(DifferentWard)
	case code != "":
		return CodeDistrict(code)
	default:
		return SentinelDistrict(RegisteredNoDistrict)
	}
}
