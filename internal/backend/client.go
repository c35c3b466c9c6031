// Package backend is the REST client for the car-wash backend and the payment gateway endpoints it fronts.
package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/MohamedElsayed002/frontend-carwash/internal/apperr"
	"github.com/MohamedElsayed002/frontend-carwash/internal/util"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Client talks to the backend over JSON with bearer auth
type Client struct {
	http    *resty.Client
	baseURL string
	logger  *zap.Logger
}

// NewClient creates a backend client with the given base URL and per-request timeout
func NewClient(baseURL string, timeout time.Duration) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	rc := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	return &Client{
		http:    rc,
		baseURL: baseURL,
		logger:  util.GetLogger(),
	}
}

// BaseURL returns the configured backend root
func (c *Client) BaseURL() string {
	return c.baseURL
}

type envelope[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    T      `json:"data"`
}

type errorBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

// consumedMarkers are the phrases HyperPay and the backend use for a checkout
// that expired or was already queried
var consumedMarkers = []string{
	"expired or not found",
	"200.300.404",
	"session expired",
	"session has expired",
	"session not found",
	"invalid session",
	"session already",
}

// LooksConsumed reports whether a backend message means the checkout session is expired or already used
func LooksConsumed(message string) bool {
	lower := strings.ToLower(message)
	for _, m := range consumedMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

func (c *Client) request(ctx context.Context, token string) *resty.Request {
	req := c.http.R().SetContext(ctx).SetError(&errorBody{})
	if token != "" {
		req.SetAuthToken(token)
	}
	return req
}

// do runs one call with tracing, latency metrics and error classification.
// consumable marks endpoints whose 404 means the checkout session is gone.
func (c *Client) do(ctx context.Context, endpoint string, consumable bool, call func(context.Context) (*resty.Response, error)) (*resty.Response, error) {
	ctx, span := util.StartSpan(ctx, "BackendClient."+endpoint)
	defer span.End()

	start := time.Now()
	resp, err := call(ctx)
	status := "error"
	if resp != nil && err == nil {
		status = fmt.Sprintf("%d", resp.StatusCode())
	}
	util.BackendRequestDuration.WithLabelValues(endpoint, status).Observe(time.Since(start).Seconds())

	if cerr := classify(endpoint, resp, err, consumable); cerr != nil {
		util.RecordSpanError(span, cerr)
		c.logger.Warn("Backend call failed",
			zap.String("endpoint", endpoint),
			zap.String("status", status),
			zap.Error(cerr))
		return resp, cerr
	}
	return resp, nil
}

func classify(endpoint string, resp *resty.Response, err error, consumable bool) error {
	if err != nil {
		return apperr.Wrap(apperr.KindNetwork, err, endpoint+" request failed")
	}
	if resp.IsSuccess() {
		return nil
	}

	msg := errorMessage(resp)
	code := resp.StatusCode()
	switch {
	case code == http.StatusUnauthorized:
		return apperr.New(apperr.KindAuthRequired, msg)
	case consumable && (code == http.StatusNotFound || LooksConsumed(msg)):
		return apperr.New(apperr.KindAlreadyConsumed, msg)
	case code == http.StatusBadGateway || code == http.StatusServiceUnavailable || code == http.StatusGatewayTimeout:
		return apperr.New(apperr.KindNetwork, msg)
	default:
		return apperr.New(apperr.KindBackendRejected, msg)
	}
}

func errorMessage(resp *resty.Response) string {
	if body, ok := resp.Error().(*errorBody); ok && body != nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Error != "" {
			return body.Error
		}
	}
	var body errorBody
	if json.Unmarshal(resp.Body(), &body) == nil && body.Message != "" {
		return body.Message
	}
	return fmt.Sprintf("backend returned %d %s", resp.StatusCode(), http.StatusText(resp.StatusCode()))
}

// Health probes the payment gateway health endpoint
func (c *Client) Health(ctx context.Context) error {
	_, err := c.do(ctx, "Health", false, func(ctx context.Context) (*resty.Response, error) {
		return c.request(ctx, "").Get("/hyperpay/health")
	})
	return err
}
