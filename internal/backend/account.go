package backend

import (
	"context"
	"encoding/json"

	"github.com/MohamedElsayed002/frontend-carwash/internal/apperr"
	"github.com/MohamedElsayed002/frontend-carwash/internal/models"

	"github.com/go-resty/resty/v2"
)

// Profile fetches the signed-in user's profile, including the isPaid entitlement flag
func (c *Client) Profile(ctx context.Context, token string) (*models.UserProfile, error) {
	var out envelope[*models.UserProfile]
	_, err := c.do(ctx, "Profile", false, func(ctx context.Context) (*resty.Response, error) {
		return c.request(ctx, token).SetResult(&out).Get("/users/profile")
	})
	if err != nil {
		return nil, err
	}
	if out.Data == nil {
		return nil, apperr.New(apperr.KindBackendRejected, "profile response had no data")
	}
	return out.Data, nil
}

// PackageQRCode fetches the QR code for the active package
func (c *Client) PackageQRCode(ctx context.Context, token string) (*models.QRCode, error) {
	var out envelope[*models.QRCode]
	_, err := c.do(ctx, "PackageQRCode", false, func(ctx context.Context) (*resty.Response, error) {
		return c.request(ctx, token).SetResult(&out).Get("/user/package-qr-code")
	})
	if err != nil {
		return nil, err
	}
	if out.Data == nil || out.Data.QRCode == "" {
		return nil, apperr.New(apperr.KindBackendRejected, "no QR code issued for this account")
	}
	return out.Data, nil
}

// PackageStatus fetches the active package summary
func (c *Client) PackageStatus(ctx context.Context, token string) (*models.PackageStatus, error) {
	var out envelope[*models.PackageStatus]
	_, err := c.do(ctx, "PackageStatus", false, func(ctx context.Context) (*resty.Response, error) {
		return c.request(ctx, token).SetResult(&out).Get("/user/package-status")
	})
	if err != nil {
		return nil, err
	}
	if out.Data == nil {
		return &models.PackageStatus{}, nil
	}
	return out.Data, nil
}

// SubmitRating posts a branch rating
func (c *Client) SubmitRating(ctx context.Context, token string, req models.RatingRequest) error {
	return c.postForm(ctx, "SubmitRating", token, "/feedback/submit-rating", req)
}

// SubmitTip posts a tip
func (c *Client) SubmitTip(ctx context.Context, token string, req models.TipRequest) error {
	return c.postForm(ctx, "SubmitTip", token, "/tips/submit-tip", req)
}

func (c *Client) postForm(ctx context.Context, endpoint, token, path string, body any) error {
	var out envelope[json.RawMessage]
	_, err := c.do(ctx, endpoint, false, func(ctx context.Context) (*resty.Response, error) {
		return c.request(ctx, token).SetBody(body).SetResult(&out).Post(path)
	})
	if err != nil {
		return err
	}
	if !out.Success {
		msg := out.Message
		if msg == "" {
			msg = endpoint + " was not accepted"
		}
		return apperr.New(apperr.KindBackendRejected, msg)
	}
	return nil
}
