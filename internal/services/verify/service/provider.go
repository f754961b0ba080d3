package service

import (
	"context"
	"time"

	"rollcall/internal/adapters/provider/voterroll"
	lookup "rollcall/internal/services/lookup/domain"
	"rollcall/internal/services/verify/domain"
)

// Roll adapts the voter roll client to the Provider port
type Roll struct {
	client *voterroll.Client
	now    func() time.Time
}

var _ domain.Provider = (*Roll)(nil)

// NewRoll wraps a voter roll client
func NewRoll(c *voterroll.Client) *Roll { return &Roll{client: c, now: time.Now} }

// Check maps provider replies onto outcomes. Not found is a definite answer,
// not an error, and carries the not registered district.
func (p *Roll) Check(ctx context.Context, id string) domain.Outcome {
	rep, err := p.client.Lookup(ctx, id)
	if err != nil {
		return domain.Failed(id, err, p.now())
	}
	switch rep.Kind {
	case voterroll.RateLimited:
		return domain.RateLimited(rep.ResetAt)
	case voterroll.NotFound:
		return domain.Ok(domain.Result{
			IDNumber:       id,
			Registered:     false,
			Status:         voterroll.StatusNotFound,
			VotingDistrict: lookup.NotRegistered.Code(),
			VerifiedAt:     p.now(),
		})
	default:
		v := rep.Voter
		return domain.Ok(domain.Result{
			IDNumber:       id,
			Registered:     v.Registered,
			Ward:           v.Ward,
			VotingDistrict: v.VotingDistrict,
			Status:         v.Status,
			VerifiedAt:     p.now(),
		})
	}
}
