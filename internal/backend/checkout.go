package backend

import (
	"context"
	"fmt"
	"net/url"

	"github.com/MohamedElsayed002/frontend-carwash/internal/apperr"
	"github.com/MohamedElsayed002/frontend-carwash/internal/models"

	"github.com/go-resty/resty/v2"
)

// PrepareCheckoutRequest is the body of POST /hyperpay/prepare-checkout-copyandpay
type PrepareCheckoutRequest struct {
	Amount      string          `json:"amount"`
	Currency    string          `json:"currency"`
	PaymentType string          `json:"paymentType"`
	Customer    models.Customer `json:"customer"`
	Billing     models.Billing  `json:"billing"`
}

type prepareCheckoutData struct {
	CheckoutID string `json:"checkoutId"`
	ID         string `json:"id"`
}

type statusBody struct {
	Success bool   `json:"success"`
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    *struct {
		Status string `json:"status"`
	} `json:"data"`
}

// PrepareCheckout creates a checkout session on the backend and returns its id
func (c *Client) PrepareCheckout(ctx context.Context, token string, body PrepareCheckoutRequest) (string, error) {
	var out envelope[prepareCheckoutData]
	_, err := c.do(ctx, "PrepareCheckout", false, func(ctx context.Context) (*resty.Response, error) {
		return c.request(ctx, token).
			SetBody(body).
			SetResult(&out).
			Post("/hyperpay/prepare-checkout-copyandpay")
	})
	if err != nil {
		return "", err
	}

	id := out.Data.CheckoutID
	if id == "" {
		id = out.Data.ID
	}
	if !out.Success || id == "" {
		msg := out.Message
		if msg == "" {
			msg = "backend did not return a checkout id"
		}
		return "", apperr.New(apperr.KindBackendRejected, msg)
	}
	return id, nil
}

// HostedFormURL builds the hosted payment form address for a checkout.
// It performs no I/O and is deterministic in its inputs.
func (c *Client) HostedFormURL(checkoutID, userID string) string {
	return BuildHostedFormURL(c.baseURL, checkoutID, userID)
}

// BuildHostedFormURL is HostedFormURL without a client
func BuildHostedFormURL(baseURL, checkoutID, userID string) string {
	return fmt.Sprintf("%s/hyperpay/create-checkout-form/%s?userId=%s",
		baseURL, url.PathEscape(checkoutID), url.QueryEscape(userID))
}

// CheckoutStatus asks the backend for the verdict on a checkout. The backend consumes the
// session on lookup, so callers must query a given checkout at most once.
func (c *Client) CheckoutStatus(ctx context.Context, token string, corr models.Correlation) (*models.StatusResult, error) {
	if corr.Empty() {
		return nil, apperr.New(apperr.KindMissingCorrelation, "no checkout id or resource path")
	}

	var out statusBody
	_, err := c.do(ctx, "CheckoutStatus", true, func(ctx context.Context) (*resty.Response, error) {
		req := c.request(ctx, token).SetResult(&out)
		if corr.ResourcePath != "" {
			return req.SetQueryParam("resourcePath", corr.ResourcePath).Get("/hyperpay/status")
		}
		return req.SetPathParam("checkoutId", corr.CheckoutID).Get("/hyperpay/status/{checkoutId}")
	})
	if err != nil {
		return nil, err
	}

	res := &models.StatusResult{
		Success: out.Success,
		Status:  out.Status,
		Message: out.Message,
	}
	if res.Status == "" && out.Data != nil {
		res.Status = out.Data.Status
	}
	return res, nil
}
