package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeCheckoutCreated         = "CHECKOUT_CREATED"
	EventTypePaymentReconciled       = "PAYMENT_RECONCILED"
	EventTypeEntitlementShortCircuit = "ENTITLEMENT_SHORT_CIRCUIT"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// CheckoutCreatedEvent published when a new checkout session is prepared
type CheckoutCreatedEvent struct {
	BaseEvent
	CheckoutID    string          `json:"checkout_id"`
	SessionID     string          `json:"session_id"`
	UserID        string          `json:"user_id"`
	OrderID       string          `json:"order_id"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	PaymentMethod string          `json:"payment_method"`
}

// PaymentReconciledEvent published when a redirect-back reaches a terminal outcome
type PaymentReconciledEvent struct {
	BaseEvent
	CheckoutID   string    `json:"checkout_id"`
	ResourcePath string    `json:"resource_path,omitempty"`
	SessionID    string    `json:"session_id"`
	Outcome      Outcome   `json:"outcome"`
	ErrorKind    string    `json:"error_kind,omitempty"`
	Message      string    `json:"message,omitempty"`
	AttemptedAt  time.Time `json:"attempted_at"`
}

// EntitlementShortCircuitEvent published when an already-paid user skips checkout or reconciliation
type EntitlementShortCircuitEvent struct {
	BaseEvent
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	Route     string `json:"route"`
}
