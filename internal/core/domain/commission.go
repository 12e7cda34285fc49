package domain

import "math"

// CommissionPolicy is the fee schedule applied to a merchant's orders and
// payouts. Fees are fractions in [0,1). OrderFee is retained by the platform
// at settlement; PayoutFee is retained again when the merchant balance is paid
// out; CustomerFee is surfaced to the payer and never moved by the ledger.
type CommissionPolicy struct {
	OrderFee    float64 `json:"order_fee" mapstructure:"order_fee"`
	PayoutFee   float64 `json:"payout_fee" mapstructure:"payout_fee"`
	CustomerFee float64 `json:"customer_fee" mapstructure:"customer_fee"`
}

// CommissionResolver resolves the policy for a merchant: the merchant-specific
// override when present, otherwise the default. Pure, no failure modes.
type CommissionResolver struct {
	defaultPolicy CommissionPolicy
	overrides     map[string]CommissionPolicy
}

// NewCommissionResolver builds a resolver from a default policy and optional
// per-merchant overrides keyed by merchant id.
func NewCommissionResolver(def CommissionPolicy, overrides map[string]CommissionPolicy) *CommissionResolver {
	return &CommissionResolver{defaultPolicy: def, overrides: overrides}
}

// Resolve returns the effective policy for the merchant.
func (r *CommissionResolver) Resolve(merchantID string) CommissionPolicy {
	if p, ok := r.overrides[merchantID]; ok {
		return p
	}
	return r.defaultPolicy
}

// CommissionAmount computes the commission on an amount at the given rate,
// rounded half away from zero to whole minor units.
func CommissionAmount(amount int64, rate float64) int64 {
	return int64(math.Round(float64(amount) * rate))
}
