package domain

import "errors"

// Kind classifies a domain error for propagation policy (spec.md §7):
// scheduled operations branch on Kind to decide retry vs. terminal
// transition; on-demand operations map Kind to a caller-facing status.
type Kind string

const (
	KindNotFound            Kind = "not_found"
	KindInvalidInput        Kind = "invalid_input"
	KindAlreadyActive       Kind = "already_active"
	KindInsufficientFunds   Kind = "insufficient_funds"
	KindPaymentGatewayError Kind = "payment_gateway_error"
	KindLockUnavailable     Kind = "lock_unavailable"
	KindInternal            Kind = "internal"
)

// Error is the single error type the core returns. It carries enough
// structure for a caller to branch on Kind without string-matching the
// message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds a domain error of the given kind.
func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap attaches kind/message context to an underlying error.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the Kind from err, defaulting to KindInternal for
// errors that are not *domain.Error.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// IsKind reports whether err is a *domain.Error of the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Sentinel errors for conditions referenced by name across packages.
var (
	ErrSubscriptionNotFound      = NewError(KindNotFound, "subscription not found")
	ErrPlanNotFound              = NewError(KindNotFound, "plan not found")
	ErrUserNotFound              = NewError(KindNotFound, "user not found")
	ErrPaymentMethodNotFound     = NewError(KindNotFound, "payment method not found")
	ErrTransactionNotFound       = NewError(KindNotFound, "transaction not found")
	ErrPromoCodeNotFound         = NewError(KindNotFound, "promo code not found")
	ErrSubscriptionAlreadyExists = NewError(KindAlreadyActive, "an active subscription for this user and plan already exists")
	ErrAlreadyCancelled          = NewError(KindInvalidInput, "subscription is already cancelled")
	ErrInvalidUpgrade            = NewError(KindInvalidInput, "new plan must be strictly more expensive than the current plan")
	ErrLockUnavailable           = NewError(KindLockUnavailable, "subscription is locked by another worker")
	ErrZeroAmount                = NewError(KindInvalidInput, "transaction amount must be non-zero")
	ErrPromoExpired              = NewError(KindInvalidInput, "promo code is not valid at this time")
	ErrPromoExhausted            = NewError(KindInvalidInput, "promo code has reached its maximum uses")
	ErrPromoNotAllowedForPlan    = NewError(KindInvalidInput, "promo code does not apply to this plan")
	ErrPromoAlreadyUsed          = NewError(KindInvalidInput, "promo code already used by this user")
)
