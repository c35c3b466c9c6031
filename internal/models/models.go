package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentMethodHint selects the hosted widget variant for a checkout
type PaymentMethodHint string

const (
	PaymentMethodCard     PaymentMethodHint = "CARD"
	PaymentMethodApplePay PaymentMethodHint = "APPLE_PAY"
)

// Customer is the payer as sent to the payment gateway
type Customer struct {
	Email     string `json:"email" validate:"required,email"`
	GivenName string `json:"givenName" validate:"required"`
	Surname   string `json:"surname"`
}

// Billing is the billing address attached to a checkout
type Billing struct {
	Street1  string `json:"street1"`
	City     string `json:"city"`
	State    string `json:"state"`
	Country  string `json:"country"`
	Postcode string `json:"postcode"`
}

// CheckoutSession is a server-side payment session. It is never reused across retries.
type CheckoutSession struct {
	CheckoutID    string            `json:"checkout_id"`
	Amount        decimal.Decimal   `json:"amount"`
	Currency      string            `json:"currency"`
	PaymentMethod PaymentMethodHint `json:"payment_method"`
	Customer      Customer          `json:"customer"`
	Billing       Billing           `json:"billing"`
	CreatedAt     time.Time         `json:"created_at"`
}

// Correlation identifies the transaction a redirect-back refers to.
// ResourcePath takes priority over CheckoutID when both are present.
type Correlation struct {
	CheckoutID   string `json:"checkout_id,omitempty"`
	ResourcePath string `json:"resource_path,omitempty"`
}

// Empty reports whether no transaction identifier is present
func (c Correlation) Empty() bool {
	return c.CheckoutID == "" && c.ResourcePath == ""
}

// Key returns a stable identifier for claims and logs
func (c Correlation) Key() string {
	if c.ResourcePath != "" {
		return "rp:" + c.ResourcePath
	}
	return "id:" + c.CheckoutID
}

// StatusResult is the backend's verdict on a checkout
type StatusResult struct {
	Success bool   `json:"success"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Outcome of a reconciliation attempt
type Outcome string

const (
	OutcomePending Outcome = "PENDING"
	OutcomeSuccess Outcome = "SUCCESS"
	OutcomeFailure Outcome = "FAILURE"
)

// ReconciliationAttempt tracks one status lookup for one mounted result view
type ReconciliationAttempt struct {
	Correlation Correlation `json:"correlation"`
	AttemptedAt time.Time   `json:"attempted_at"`
	Outcome     Outcome     `json:"outcome"`
}

// PackageSnapshot is the wash package as the backend describes it
type PackageSnapshot struct {
	ID          string          `json:"_id"`
	Name        string          `json:"name"`
	Type        string          `json:"type,omitempty"`
	BasePrice   decimal.Decimal `json:"basePrice"`
	Washes      int             `json:"washes"`
	Size        string          `json:"size,omitempty"`
	Description string          `json:"description,omitempty"`
	Features    []string        `json:"features,omitempty"`
}

// UserProfile mirrors GET /users/profile
type UserProfile struct {
	ID      string           `json:"_id"`
	Name    string           `json:"name"`
	Email   string           `json:"email"`
	Phone   string           `json:"phone,omitempty"`
	IsPaid  bool             `json:"isPaid"`
	CarType string           `json:"carType,omitempty"`
	Package *PackageSnapshot `json:"package,omitempty"`
}

// EntitlementSnapshot is the authoritative "already paid" signal plus greeting fields
type EntitlementSnapshot struct {
	IsPaid bool   `json:"is_paid"`
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
}

// Snapshot extracts the entitlement view of a profile
func (p *UserProfile) Snapshot() *EntitlementSnapshot {
	return &EntitlementSnapshot{
		IsPaid: p.IsPaid,
		UserID: p.ID,
		Name:   p.Name,
		Email:  p.Email,
	}
}

// CustomerSnapshot is the buyer as staged in the draft
type CustomerSnapshot struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

// DraftPurchase is staged before checkout. It is advisory and never proof of payment.
type DraftPurchase struct {
	Package    PackageSnapshot  `json:"package"`
	Customer   CustomerSnapshot `json:"customer"`
	CarType    string           `json:"carType,omitempty"`
	TotalPrice decimal.Decimal  `json:"totalPrice"`
	OrderID    string           `json:"orderId"`
	OrderDate  time.Time        `json:"orderDate"`
}

// FinalOrder is the snapshot written after a successful reconciliation
type FinalOrder struct {
	DraftPurchase
	CheckoutID  string    `json:"checkoutId,omitempty"`
	Status      string    `json:"status"`
	CompletedAt time.Time `json:"completedAt"`
}

// QRCode mirrors GET /user/package-qr-code
type QRCode struct {
	QRCode      string         `json:"qrCode"`
	PackageInfo map[string]any `json:"packageInfo,omitempty"`
}

// PackageStatus mirrors GET /user/package-status
type PackageStatus struct {
	HasPackage bool           `json:"hasPackage"`
	Package    map[string]any `json:"package,omitempty"`
}

// QRSnapshot is what the QR view renders
type QRSnapshot struct {
	Image       string         `json:"qrCode"`
	Payload     string         `json:"payload,omitempty"`
	PackageInfo map[string]any `json:"packageInfo,omitempty"`
	IssuedAt    time.Time      `json:"issuedAt"`
}

// RatingRequest is a branch rating posted after a wash
type RatingRequest struct {
	BranchID string `json:"branchId" validate:"required"`
	Rating   int    `json:"rating" validate:"min=1,max=5"`
	Comment  string `json:"comment,omitempty" validate:"max=1000"`
}

// TipRequest is a tip for the wash crew
type TipRequest struct {
	BranchID string          `json:"branchId" validate:"required"`
	Amount   decimal.Decimal `json:"amount"`
	Message  string          `json:"message,omitempty" validate:"max=500"`
}

// CheckoutRecord is a ledger row for a created checkout
type CheckoutRecord struct {
	ID            int64           `db:"id" json:"id"`
	CheckoutID    string          `db:"checkout_id" json:"checkout_id"`
	SessionID     string          `db:"session_id" json:"session_id"`
	UserID        string          `db:"user_id" json:"user_id"`
	OrderID       string          `db:"order_id" json:"order_id"`
	Amount        decimal.Decimal `db:"amount" json:"amount"`
	Currency      string          `db:"currency" json:"currency"`
	PaymentMethod string          `db:"payment_method" json:"payment_method"`
	Status        string          `db:"status" json:"status"`
	SupersededBy  *string         `db:"superseded_by" json:"superseded_by,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}

// ReconciliationRecord is a ledger row for a reconciliation outcome
type ReconciliationRecord struct {
	ID           int64     `db:"id" json:"id"`
	CheckoutID   string    `db:"checkout_id" json:"checkout_id"`
	ResourcePath string    `db:"resource_path" json:"resource_path,omitempty"`
	SessionID    string    `db:"session_id" json:"session_id"`
	Outcome      string    `db:"outcome" json:"outcome"`
	ErrorKind    string    `db:"error_kind" json:"error_kind,omitempty"`
	Message      string    `db:"message" json:"message,omitempty"`
	AttemptedAt  time.Time `db:"attempted_at" json:"attempted_at"`
	CompletedAt  time.Time `db:"completed_at" json:"completed_at"`
}

// Checkout ledger statuses
const (
	CheckoutStatusOpen       = "OPEN"
	CheckoutStatusPaid       = "PAID"
	CheckoutStatusFailed     = "FAILED"
	CheckoutStatusSuperseded = "SUPERSEDED"
)
