package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/MohamedElsayed002/frontend-carwash/config"
	"github.com/MohamedElsayed002/frontend-carwash/internal/apperr"
	"github.com/MohamedElsayed002/frontend-carwash/internal/backend"
	"github.com/MohamedElsayed002/frontend-carwash/internal/models"
)

// PaymentMethod is one widget variant of the hosted form
type PaymentMethod interface {
	Hint() models.PaymentMethodHint
	// Brands is the widget's brand list
	Brands() string
}

// MerchantValidator is implemented by methods that must validate the merchant before the wallet sheet opens
type MerchantValidator interface {
	ValidateMerchant(ctx context.Context, validationURL string) (json.RawMessage, error)
}

type cardMethod struct{}

func (cardMethod) Hint() models.PaymentMethodHint { return models.PaymentMethodCard }

func (cardMethod) Brands() string { return "VISA MASTER MADA" }

type applePayMethod struct {
	backend Backend
	cfg     config.ApplePayConfig
}

func (applePayMethod) Hint() models.PaymentMethodHint { return models.PaymentMethodApplePay }

func (applePayMethod) Brands() string { return "APPLEPAY" }

func (m applePayMethod) ValidateMerchant(ctx context.Context, validationURL string) (json.RawMessage, error) {
	if m.cfg.MerchantID == "" {
		return nil, apperr.New(apperr.KindValidation, "Apple Pay is not configured")
	}
	u, err := url.Parse(validationURL)
	if err != nil || u.Scheme != "https" || !isAppleHost(u.Hostname()) {
		return nil, apperr.Newf(apperr.KindValidation, "validation URL %q is not an Apple Pay endpoint", validationURL)
	}
	return m.backend.ValidateApplePayMerchant(ctx, validationURL, backend.MerchantValidationRequest{
		MerchantIdentifier: m.cfg.MerchantID,
		DomainName:         m.cfg.Domain,
		DisplayName:        m.cfg.DisplayName,
	})
}

func isAppleHost(host string) bool {
	host = strings.ToLower(host)
	return host == "apple.com" || strings.HasSuffix(host, ".apple.com")
}

// PaymentMethods resolves a hint to its method
type PaymentMethods struct {
	byHint map[models.PaymentMethodHint]PaymentMethod
}

// NewPaymentMethods registers the card and Apple Pay methods
func NewPaymentMethods(backend Backend, applePay config.ApplePayConfig) *PaymentMethods {
	return &PaymentMethods{
		byHint: map[models.PaymentMethodHint]PaymentMethod{
			models.PaymentMethodCard:     cardMethod{},
			models.PaymentMethodApplePay: applePayMethod{backend: backend, cfg: applePay},
		},
	}
}

// Get returns the method for hint, defaulting an empty hint to card
func (m *PaymentMethods) Get(hint models.PaymentMethodHint) (PaymentMethod, error) {
	if hint == "" {
		hint = models.PaymentMethodCard
	}
	method, ok := m.byHint[hint]
	if !ok {
		return nil, apperr.Newf(apperr.KindValidation, "unsupported payment method %q", hint)
	}
	return method, nil
}

// ValidateMerchant runs merchant validation for methods that support it
func (m *PaymentMethods) ValidateMerchant(ctx context.Context, hint models.PaymentMethodHint, validationURL string) (json.RawMessage, error) {
	method, err := m.Get(hint)
	if err != nil {
		return nil, err
	}
	v, ok := method.(MerchantValidator)
	if !ok {
		return nil, apperr.Newf(apperr.KindValidation, "%s does not use merchant validation", hint)
	}
	raw, err := v.ValidateMerchant(ctx, validationURL)
	if err != nil {
		return nil, fmt.Errorf("merchant validation failed: %w", err)
	}
	return raw, nil
}
