// Package domain defines rate limiting tiers, decisions and block state.
package domain

// Tier is an independent throttling dimension. A request must pass every tier.
type Tier string

const (
	// TierIP throttles all traffic from one address.
	TierIP Tier = "ip"
	// TierPrincipal throttles one authenticated principal across addresses.
	TierPrincipal Tier = "principal"
	// TierOperation throttles one principal's use of one operation.
	TierOperation Tier = "operation"
)

// Decision is the outcome of a rate limit check.
type Decision string

const (
	// Allow admits the request.
	Allow Decision = "allow"
	// SoftWarn admits the request but signals the caller to hint backoff:
	// 80% or more of the bucket is consumed.
	SoftWarn Decision = "soft_warn"
	// Deny rejects the request.
	Deny Decision = "deny"
)

// Admitted reports whether the request may proceed.
func (d Decision) Admitted() bool {
	return d != Deny
}
