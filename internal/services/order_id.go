package services

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// OrderKind tags a gateway order id with the aggregate it belongs to, so the
// webhook can dispatch without probing multiple tables.
type OrderKind string

const (
	OrderKindSession    OrderKind = "session"
	OrderKindPurchase   OrderKind = "purchase"
	OrderKindPreBooking OrderKind = "prebook"
	OrderKindUnknown    OrderKind = ""
)

// NewOrderID generates a tagged gateway order id, e.g. "session-<uuid>"
func NewOrderID(kind OrderKind) string {
	return fmt.Sprintf("%s-%s", kind, uuid.New().String())
}

// OrderKindOf extracts the kind tag from an order id. Ids without a known
// tag return OrderKindUnknown; the webhook falls back to sequential lookup
// for those.
func OrderKindOf(orderID string) OrderKind {
	prefix, _, found := strings.Cut(orderID, "-")
	if !found {
		return OrderKindUnknown
	}
	switch OrderKind(prefix) {
	case OrderKindSession, OrderKindPurchase, OrderKindPreBooking:
		return OrderKind(prefix)
	}
	return OrderKindUnknown
}
