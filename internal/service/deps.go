package service

import (
	"context"
	"encoding/json"

	"github.com/MohamedElsayed002/frontend-carwash/internal/backend"
	"github.com/MohamedElsayed002/frontend-carwash/internal/broker"
	"github.com/MohamedElsayed002/frontend-carwash/internal/models"
)

// Backend is the part of the backend client the services depend on
type Backend interface {
	PrepareCheckout(ctx context.Context, token string, body backend.PrepareCheckoutRequest) (string, error)
	HostedFormURL(checkoutID, userID string) string
	CheckoutStatus(ctx context.Context, token string, corr models.Correlation) (*models.StatusResult, error)
	Profile(ctx context.Context, token string) (*models.UserProfile, error)
	PackageQRCode(ctx context.Context, token string) (*models.QRCode, error)
	PackageStatus(ctx context.Context, token string) (*models.PackageStatus, error)
	SubmitRating(ctx context.Context, token string, req models.RatingRequest) error
	SubmitTip(ctx context.Context, token string, req models.TipRequest) error
	ValidateApplePayMerchant(ctx context.Context, validationURL string, body backend.MerchantValidationRequest) (json.RawMessage, error)
}

// EventPublisher publishes checkout lifecycle events
type EventPublisher interface {
	PublishCheckoutCreated(ctx context.Context, event *models.CheckoutCreatedEvent) error
	PublishPaymentReconciled(ctx context.Context, event *models.PaymentReconciledEvent) error
	PublishEntitlementShortCircuit(ctx context.Context, event *models.EntitlementShortCircuitEvent) error
}

var (
	_ Backend        = (*backend.Client)(nil)
	_ EventPublisher = (*broker.EventPublisher)(nil)
	_ EventPublisher = broker.Discard{}
)
