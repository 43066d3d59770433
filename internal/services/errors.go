package services

import "errors"

// Sentinel errors returned by the checkout and entitlement services.
// Handlers translate these into HTTP status codes at the boundary.
var (
	// ErrNotFound covers both a genuinely missing record and a record owned
	// by a different user, so lookups leak nothing about other users' data.
	ErrNotFound = errors.New("record not found")

	// ErrEmptyCart rejects checkout session creation with no items.
	ErrEmptyCart = errors.New("cart is empty")

	// ErrInvalidCartItem rejects a cart line that does not identify exactly
	// one item, or has a non-positive duration.
	ErrInvalidCartItem = errors.New("invalid cart item")

	// ErrNotFree rejects a free-checkout completion whose recomputed total
	// is greater than zero. A tampered client must not claim a paid cart.
	ErrNotFree = errors.New("session total is not zero")

	// errAlreadySettled is the internal signal that the settlement commit
	// point found the order already completed. Callers treat it as success:
	// gateways redeliver webhooks and retries must be no-ops.
	errAlreadySettled = errors.New("order already settled")
)
