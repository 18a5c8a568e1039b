package entities

// Tier is the subscription level of a guild. It gates ticket quotas and
// the rejection-reason flow.
type Tier string

const (
	TierFree  Tier = "free"
	TierBasic Tier = "basic"
	TierPro   Tier = "pro"
	TierElite Tier = "elite"
)

// ParseTier normalises a stored tier value. Unknown or empty values fall
// back to the free tier, matching how unconfigured guilds behave.
func ParseTier(s string) Tier {
	switch Tier(s) {
	case TierBasic, TierPro, TierElite:
		return Tier(s)
	default:
		return TierFree
	}
}

// RequiresRejectReason reports whether staff must supply a reason when
// rejecting a ticket request on this tier.
func (t Tier) RequiresRejectReason() bool {
	return t == TierPro || t == TierElite
}

// Premium is the premium state of a guild.
type Premium struct {
	// IsActive is whether the guild has an active premium subscription.
	IsActive bool `json:"is_active" bson:"is_active"`

	// Tier is the subscription tier.
	Tier Tier `json:"tier" bson:"tier"`
}
