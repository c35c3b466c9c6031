package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MohamedElsayed002/frontend-carwash/internal/apperr"
	"github.com/MohamedElsayed002/frontend-carwash/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/api", 2*time.Second)
}

func TestPrepareCheckout(t *testing.T) {
	var got PrepareCheckoutRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/hyperpay/prepare-checkout-copyandpay", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": map[string]string{"checkoutId": "CHK-1"}})
	})

	id, err := c.PrepareCheckout(context.Background(), "tok", PrepareCheckoutRequest{
		Amount:      "49.00",
		Currency:    "SAR",
		PaymentType: "DB",
		Customer:    models.Customer{Email: "a@b.co", GivenName: "Sara"},
	})
	require.NoError(t, err)
	assert.Equal(t, "CHK-1", id)
	assert.Equal(t, "49.00", got.Amount)
	assert.Equal(t, "DB", got.PaymentType)
	assert.Equal(t, "Sara", got.Customer.GivenName)
}

func TestPrepareCheckoutRejected(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "invalid amount"})
	})

	_, err := c.PrepareCheckout(context.Background(), "tok", PrepareCheckoutRequest{})
	require.Error(t, err)
	assert.Equal(t, apperr.KindBackendRejected, apperr.KindOf(err))
	assert.Equal(t, "invalid amount", apperr.As(err).Message())
}

func TestPrepareCheckoutMissingID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": map[string]string{}})
	})

	_, err := c.PrepareCheckout(context.Background(), "tok", PrepareCheckoutRequest{})
	assert.Equal(t, apperr.KindBackendRejected, apperr.KindOf(err))
}

func TestNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewClient(url, time.Second)
	_, err := c.Profile(context.Background(), "tok")
	assert.Equal(t, apperr.KindNetwork, apperr.KindOf(err))
}

func TestHostedFormURLDeterministic(t *testing.T) {
	c := NewClient("https://api.example.com/api/", time.Second)

	a := c.HostedFormURL("CHK 1/x", "user&1")
	b := c.HostedFormURL("CHK 1/x", "user&1")

	assert.Equal(t, a, b)
	assert.Equal(t, "https://api.example.com/api/hyperpay/create-checkout-form/CHK%201%2Fx?userId=user%261", a)
	assert.NotEqual(t, a, c.HostedFormURL("CHK-2", "user&1"))
}

func TestCheckoutStatusByID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/hyperpay/status/CHK-9", r.URL.Path)
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "status": "success"})
	})

	res, err := c.CheckoutStatus(context.Background(), "tok", models.Correlation{CheckoutID: "CHK-9"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "success", res.Status)
}

func TestCheckoutStatusPrefersResourcePath(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/hyperpay/status", r.URL.Path)
		assert.Equal(t, "/v1/checkouts/CHK-9/payment", r.URL.Query().Get("resourcePath"))
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": map[string]string{"status": "success"}})
	})

	res, err := c.CheckoutStatus(context.Background(), "tok", models.Correlation{
		CheckoutID:   "CHK-9",
		ResourcePath: "/v1/checkouts/CHK-9/payment",
	})
	require.NoError(t, err)
	assert.Equal(t, "success", res.Status)
}

func TestCheckoutStatusClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		msg    string
		want   apperr.Kind
	}{
		{"not found", http.StatusNotFound, "nope", apperr.KindAlreadyConsumed},
		{"expired marker", http.StatusBadRequest, "Checkout expired or not found", apperr.KindAlreadyConsumed},
		{"gateway code", http.StatusBadRequest, "result 200.300.404", apperr.KindAlreadyConsumed},
		{"session marker", http.StatusBadRequest, "Invalid session", apperr.KindAlreadyConsumed},
		{"unauthorized", http.StatusUnauthorized, "token expired", apperr.KindAuthRequired},
		{"rejected", http.StatusBadRequest, "declined", apperr.KindBackendRejected},
		{"gateway down", http.StatusBadGateway, "upstream", apperr.KindNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, map[string]any{"success": false, "message": tt.msg})
			})
			_, err := c.CheckoutStatus(context.Background(), "tok", models.Correlation{CheckoutID: "X"})
			assert.Equal(t, tt.want, apperr.KindOf(err))
		})
	}
}

func TestCheckoutStatusNoCorrelation(t *testing.T) {
	called := false
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) { called = true })

	_, err := c.CheckoutStatus(context.Background(), "tok", models.Correlation{})
	assert.Equal(t, apperr.KindMissingCorrelation, apperr.KindOf(err))
	assert.False(t, called)
}

func TestProfile(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/users/profile", r.URL.Path)
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"data": map[string]any{
				"_id":    "u1",
				"name":   "Sara Ali",
				"email":  "sara@example.com",
				"isPaid": true,
				"package": map[string]any{
					"_id": "p1", "name": "Gold", "basePrice": 49, "washes": 8,
				},
			},
		})
	})

	p, err := c.Profile(context.Background(), "tok")
	require.NoError(t, err)
	assert.True(t, p.IsPaid)
	require.NotNil(t, p.Package)
	assert.Equal(t, "49", p.Package.BasePrice.String())
}

func TestProfileUnauthorized(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "jwt expired"})
	})

	_, err := c.Profile(context.Background(), "tok")
	assert.Equal(t, apperr.KindAuthRequired, apperr.KindOf(err))
}

func TestSubmitRatingNotAccepted(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/feedback/submit-rating", r.URL.Path)
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "message": "already rated"})
	})

	err := c.SubmitRating(context.Background(), "tok", models.RatingRequest{BranchID: "b1", Rating: 5})
	assert.Equal(t, apperr.KindBackendRejected, apperr.KindOf(err))
}

func TestValidateApplePayMerchant(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body MerchantValidationRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "merchant.com.paypass", body.MerchantIdentifier)
		writeJSON(w, http.StatusOK, map[string]string{"merchantSessionIdentifier": "ms-1"})
	}))
	defer srv.Close()

	c := NewClient("http://unused.invalid", time.Second)
	raw, err := c.ValidateApplePayMerchant(context.Background(), srv.URL+"/paymentSession", MerchantValidationRequest{
		MerchantIdentifier: "merchant.com.paypass",
		DomainName:         "pay.example.com",
		DisplayName:        "PayPass Car Wash",
	})
	require.NoError(t, err)
	assert.Contains(t, string(raw), "ms-1")
}

func TestLooksConsumed(t *testing.T) {
	tests := []struct {
		message string
		want    bool
	}{
		{"Checkout EXPIRED OR NOT FOUND", true},
		{"200.300.404 - invalid or missing parameter", true},
		{"Payment session expired", true},
		{"Session not found for checkout", true},
		{"card declined", false},
		{"session creation failed", false},
		{"could not open session with acquirer", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LooksConsumed(tt.message), tt.message)
	}
}
