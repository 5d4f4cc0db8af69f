package domain

import "time"

// PaymentMethod is a tokenized, gateway-specific handle for charging a
// user. The core never stores raw card/account data, only the opaque
// external_id the gateway hands back from register_method.
type PaymentMethod struct {
	ID         string
	UserID     string
	Gateway    string
	ExternalID string
	Valid      bool
	ExpiresAt  *time.Time
	CreatedAt  time.Time
}

// IsExpired reports whether the payment method's expiry has passed.
func (pm *PaymentMethod) IsExpired(now time.Time) bool {
	return pm.ExpiresAt != nil && now.After(*pm.ExpiresAt)
}

// CanBeUsed reports whether the method is still chargeable.
func (pm *PaymentMethod) CanBeUsed(now time.Time) bool {
	return pm.Valid && !pm.IsExpired(now)
}
