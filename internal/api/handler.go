package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/MohamedElsayed002/frontend-carwash/config"
	"github.com/MohamedElsayed002/frontend-carwash/internal/apperr"
	"github.com/MohamedElsayed002/frontend-carwash/internal/models"
	"github.com/MohamedElsayed002/frontend-carwash/internal/service"
	"github.com/MohamedElsayed002/frontend-carwash/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Probe is a readiness check for one dependency
type Probe func(ctx context.Context) error

// Services are the collaborators the HTTP surface drives
type Services struct {
	Sessions *service.SessionService
	Checkout *service.CheckoutService
	Mounts   *service.MountRegistry
	Handoff  *service.Handoff
	Feedback *service.FeedbackService
	Methods  *service.PaymentMethods
}

// Handler contains HTTP handlers
type Handler struct {
	svc     Services
	cfg     *config.Config
	probes  map[string]Probe
	cookies cookieConfig
	logger  *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(svc Services, cfg *config.Config, probes map[string]Probe) *Handler {
	return &Handler{
		svc:     svc,
		cfg:     cfg,
		probes:  probes,
		cookies: cookieConfig{secure: cfg.Server.CookieSecure, maxAge: cfg.Checkout.DraftTTL},
		logger:  util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	browser := router.Group("/", h.sessionMiddleware())
	{
		browser.GET("/payment-form/:checkoutId", h.paymentForm)
		browser.GET("/payment/result", h.paymentResult)
		browser.DELETE("/payment/result", h.leavePaymentResult)
		browser.GET("/payment/result/continue", h.continueToQR)
		browser.GET("/qr", h.qrSnapshot)
		browser.GET("/qr.png", h.qrImage)
	}

	v1 := router.Group("/api/v1", h.sessionMiddleware())
	{
		v1.PUT("/session", h.signIn)
		v1.DELETE("/session", h.signOut)
		v1.GET("/entitlement", h.entitlement)
		v1.GET("/drafts", h.drafts)
		v1.POST("/checkout", h.createCheckout)
		v1.POST("/applepay/merchant-validation", h.applePayMerchantValidation)
		v1.POST("/feedback/rating", h.submitRating)
		v1.POST("/tips", h.submitTip)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck reports ready only when every probe passes
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	checks := make(gin.H, len(h.probes))
	ready := true
	for name, probe := range h.probes {
		if err := probe(ctx); err != nil {
			checks[name] = err.Error()
			ready = false
			continue
		}
		checks[name] = "ok"
	}

	status, code := "ready", http.StatusOK
	if !ready {
		status, code = "not ready", http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status": status,
		"checks": checks,
		"time":   time.Now().Unix(),
	})
}

type signInRequest struct {
	Token string `json:"token" binding:"required"`
}

// signIn binds a bearer token to the browser session
func (h *Handler) signIn(c *gin.Context) {
	var req signInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	snap, err := h.svc.Sessions.SignIn(c.Request.Context(), sessionID(c), req.Token)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// signOut clears the session token and every staged draft
func (h *Handler) signOut(c *gin.Context) {
	if err := h.svc.Sessions.SignOut(c.Request.Context(), sessionID(c)); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) entitlement(c *gin.Context) {
	snap, err := h.svc.Sessions.Entitlement(c.Request.Context(), sessionID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *Handler) drafts(c *gin.Context) {
	draft, final, err := h.svc.Sessions.Drafts(c.Request.Context(), sessionID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"draft":       draft,
		"final_order": final,
	})
}

// createCheckout stages the profile's package and opens a fresh checkout session
func (h *Handler) createCheckout(c *gin.Context) {
	var req service.PurchaseRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.badRequest(c, err)
			return
		}
	}

	res, err := h.svc.Checkout.StartPurchase(c.Request.Context(), sessionID(c), req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	code := http.StatusCreated
	if res.AlreadyPaid {
		code = http.StatusOK
	}
	c.JSON(code, res)
}

type merchantValidationRequest struct {
	ValidationURL string `json:"validationURL" binding:"required"`
}

// applePayMerchantValidation proxies the wallet's merchant validation through the backend
func (h *Handler) applePayMerchantValidation(c *gin.Context) {
	var req merchantValidationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	raw, err := h.svc.Methods.ValidateMerchant(c.Request.Context(), models.PaymentMethodApplePay, req.ValidationURL)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json", raw)
}

func (h *Handler) submitRating(c *gin.Context) {
	var req models.RatingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	if err := h.svc.Feedback.SubmitRating(c.Request.Context(), sessionID(c), req); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) submitTip(c *gin.Context) {
	var req models.TipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	if err := h.svc.Feedback.SubmitTip(c.Request.Context(), sessionID(c), req); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) qrSnapshot(c *gin.Context) {
	snap, err := h.svc.Handoff.IssueQR(c.Request.Context(), sessionID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *Handler) qrImage(c *gin.Context) {
	snap, err := h.svc.Handoff.IssueQR(c.Request.Context(), sessionID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	png, err := service.PNG(snap)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", png)
}

func (h *Handler) badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "Invalid request body",
		"code":    apperr.KindValidation,
		"details": err.Error(),
	})
}

// respondError renders err with its kind's status and public message
func (h *Handler) respondError(c *gin.Context, err error) {
	if errors.Is(err, context.Canceled) {
		c.Status(499)
		return
	}

	kind := apperr.KindOf(err)
	meta := apperr.MetadataFor(kind)

	details := ""
	if typed := apperr.As(err); typed != nil {
		details = typed.Message()
	}
	if kind == apperr.KindInternal {
		h.logger.Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
		details = ""
	}

	c.JSON(meta.HTTPStatus, gin.H{
		"error":   meta.PublicMessage,
		"code":    kind,
		"details": details,
	})
}
