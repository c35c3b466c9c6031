package service

import (
	"context"
	"regexp"
	"testing"

	"github.com/MohamedElsayed002/frontend-carwash/internal/apperr"
	"github.com/MohamedElsayed002/frontend-carwash/internal/drafts"
	"github.com/MohamedElsayed002/frontend-carwash/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validCheckoutRequest() CheckoutRequest {
	return CheckoutRequest{
		Amount:   decimal.RequireFromString("149.5"),
		Currency: "SAR",
		Customer: models.Customer{Email: "sara@example.com", GivenName: "Sara", Surname: "Al Harbi"},
		Billing:  models.Billing{City: "Riyadh", Country: "SA"},
	}
}

func TestCreateCheckoutRejectsInvalidInputWithoutNetwork(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CheckoutRequest)
	}{
		{"zero amount", func(r *CheckoutRequest) { r.Amount = decimal.Zero }},
		{"negative amount", func(r *CheckoutRequest) { r.Amount = decimal.NewFromInt(-5) }},
		{"missing currency", func(r *CheckoutRequest) { r.Currency = "" }},
		{"lower case currency", func(r *CheckoutRequest) { r.Currency = "sar" }},
		{"long currency", func(r *CheckoutRequest) { r.Currency = "SARS" }},
		{"bad email", func(r *CheckoutRequest) { r.Customer.Email = "not-an-email" }},
		{"missing given name", func(r *CheckoutRequest) { r.Customer.GivenName = "" }},
		{"unknown method", func(r *CheckoutRequest) { r.PaymentMethod = "BITCOIN" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			req := validCheckoutRequest()
			tt.mutate(&req)

			_, err := h.checkout.CreateCheckout(context.Background(), "token", req)

			require.Error(t, err)
			assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
			assert.Zero(t, h.backend.prepareCalls.Load())
		})
	}
}

func TestCreateCheckoutSendsFixedPointAmount(t *testing.T) {
	h := newHarness(t)

	session, err := h.checkout.CreateCheckout(context.Background(), "token", validCheckoutRequest())
	require.NoError(t, err)

	assert.Equal(t, "CHK-1", session.CheckoutID)
	assert.Equal(t, models.PaymentMethodCard, session.PaymentMethod)
	assert.Equal(t, "149.50", h.backend.lastPrepare.Amount)
	assert.Equal(t, "DB", h.backend.lastPrepare.PaymentType)
	assert.Equal(t, "SAR", h.backend.lastPrepare.Currency)
}

func TestCreateCheckoutIssuesFreshSessions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first, err := h.checkout.CreateCheckout(ctx, "token", validCheckoutRequest())
	require.NoError(t, err)
	h.backend.checkoutID = "CHK-2"
	second, err := h.checkout.CreateCheckout(ctx, "token", validCheckoutRequest())
	require.NoError(t, err)

	assert.NotEqual(t, first.CheckoutID, second.CheckoutID)
	assert.Equal(t, int32(2), h.backend.prepareCalls.Load())
}

func TestCreateCheckoutPropagatesBackendKind(t *testing.T) {
	h := newHarness(t)
	h.backend.prepareErr = apperr.New(apperr.KindNetwork, "connection reset")

	_, err := h.checkout.CreateCheckout(context.Background(), "token", validCheckoutRequest())

	require.Error(t, err)
	assert.Equal(t, apperr.KindNetwork, apperr.KindOf(err))
}

func TestStartPurchaseStagesDraftAndOpensCheckout(t *testing.T) {
	h := newHarness(t)
	h.signIn(t, "sid-1")
	ctx := context.Background()

	res, err := h.checkout.StartPurchase(ctx, "sid-1", PurchaseRequest{})
	require.NoError(t, err)

	assert.False(t, res.AlreadyPaid)
	assert.Equal(t, "/payment-form/CHK-1", res.RedirectTo)
	assert.Equal(t, "VISA MASTER MADA", res.Brands)
	assert.Regexp(t, regexp.MustCompile(`^ORDER-[0-9A-Z]{9}$`), res.OrderID)
	assert.Equal(t, "Sara", h.backend.lastPrepare.Customer.GivenName)
	assert.Equal(t, "Al Harbi", h.backend.lastPrepare.Customer.Surname)
	assert.Equal(t, "Riyadh", h.backend.lastPrepare.Billing.City)

	draft, err := h.drafts.Read(ctx, "sid-1")
	require.NoError(t, err)
	require.NotNil(t, draft)
	assert.Equal(t, res.OrderID, draft.OrderID)
	assert.Equal(t, "sedan", draft.CarType)

	var staged string
	ok, err := h.drafts.Get(ctx, "sid-1", drafts.KeyCheckoutID, &staged)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "CHK-1", staged)

	created, _, _ := h.publisher.counts()
	assert.Equal(t, 1, created)
}

func TestStartPurchaseAlreadyPaidSkipsCheckout(t *testing.T) {
	h := newHarness(t)
	h.signIn(t, "sid-1")
	h.backend.setPaid(true)

	res, err := h.checkout.StartPurchase(context.Background(), "sid-1", PurchaseRequest{})
	require.NoError(t, err)

	assert.True(t, res.AlreadyPaid)
	assert.Equal(t, "/qr", res.RedirectTo)
	assert.Zero(t, h.backend.prepareCalls.Load())
	_, _, short := h.publisher.counts()
	assert.Equal(t, 1, short)
}

func TestStartPurchaseRejectsAmountMismatch(t *testing.T) {
	h := newHarness(t)
	h.signIn(t, "sid-1")
	wrong := decimal.NewFromInt(10)

	_, err := h.checkout.StartPurchase(context.Background(), "sid-1", PurchaseRequest{Amount: &wrong})

	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Zero(t, h.backend.prepareCalls.Load())
}

func TestStartPurchaseRequiresToken(t *testing.T) {
	h := newHarness(t)

	_, err := h.checkout.StartPurchase(context.Background(), "anon", PurchaseRequest{})

	assert.Equal(t, apperr.KindAuthRequired, apperr.KindOf(err))
	assert.Zero(t, h.backend.profileCalls.Load())
}

func TestNewOrderIDFormat(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := newOrderID()
		assert.Regexp(t, `^ORDER-[0-9A-Z]{9}$`, id)
		seen[id] = true
	}
	assert.Greater(t, len(seen), 95)
}

func TestSplitName(t *testing.T) {
	given, surname := splitName("  Sara  Al Harbi ")
	assert.Equal(t, "Sara", given)
	assert.Equal(t, "Al Harbi", surname)

	given, surname = splitName("")
	assert.Empty(t, given)
	assert.Empty(t, surname)
}

func TestApplePayMerchantValidation(t *testing.T) {
	h := newHarness(t)
	methods := NewPaymentMethods(h.backend, h.checkout.methods.byHint[models.PaymentMethodApplePay].(applePayMethod).cfg)
	ctx := context.Background()

	_, err := methods.ValidateMerchant(ctx, models.PaymentMethodApplePay, "https://evil.example.com/paymentSession")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	_, err = methods.ValidateMerchant(ctx, models.PaymentMethodApplePay, "http://apple-pay-gateway.apple.com/paymentservices/paymentSession")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	_, err = methods.ValidateMerchant(ctx, models.PaymentMethodCard, "https://apple-pay-gateway.apple.com/paymentservices/paymentSession")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Zero(t, h.backend.merchantCalls.Load())

	h.backend.merchantReply = []byte(`{"merchantSessionIdentifier":"abc"}`)
	raw, err := methods.ValidateMerchant(ctx, models.PaymentMethodApplePay, "https://apple-pay-gateway.apple.com/paymentservices/paymentSession")
	require.NoError(t, err)
	assert.JSONEq(t, `{"merchantSessionIdentifier":"abc"}`, string(raw))
	assert.Equal(t, int32(1), h.backend.merchantCalls.Load())
}
