package ticketing

import "github.com/zenorz/zenorz/pkg/entities"

const (
	// maxActiveFree is the concurrent active ticket limit on the free tier.
	maxActiveFree = 10

	// maxActiveBasic is the concurrent active ticket limit on the basic tier.
	maxActiveBasic = 30
)

// MaxActive returns the maximum number of concurrent active tickets a user
// may hold on the given tier. limited is false for tiers with no ceiling.
func MaxActive(tier entities.Tier) (limit int, limited bool) {
	switch tier {
	case entities.TierFree:
		return maxActiveFree, true
	case entities.TierBasic:
		return maxActiveBasic, true
	default:
		// pro and elite are unbounded.
		return 0, false
	}
}

// EvaluateQuota returns a QuotaExceededError iff count has reached the
// tier's limit. Intake and Accept both gate on this same function, which is
// what keeps the two checks consistent.
func EvaluateQuota(count int, tier entities.Tier) error {
	limit, limited := MaxActive(tier)
	if !limited {
		return nil
	}
	if count >= limit {
		return &QuotaExceededError{Limit: limit}
	}
	return nil
}
