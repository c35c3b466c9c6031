package backend

import (
	"context"
	"encoding/json"

	"github.com/go-resty/resty/v2"
)

// MerchantValidationRequest is posted to the Apple Pay validation URL
type MerchantValidationRequest struct {
	MerchantIdentifier string `json:"merchantIdentifier"`
	DomainName         string `json:"domainName"`
	DisplayName        string `json:"displayName"`
}

// ValidateApplePayMerchant posts the merchant identity to an absolute validation URL
// and returns the opaque merchant session for the wallet sheet.
func (c *Client) ValidateApplePayMerchant(ctx context.Context, validationURL string, body MerchantValidationRequest) (json.RawMessage, error) {
	resp, err := c.do(ctx, "ApplePayMerchantValidation", false, func(ctx context.Context) (*resty.Response, error) {
		return c.request(ctx, "").SetBody(body).Post(validationURL)
	})
	if err != nil {
		return nil, err
	}
	return json.RawMessage(resp.Body()), nil
}
