package api

import (
	"fmt"
	"net/http"

	"github.com/MohamedElsayed002/frontend-carwash/internal/service"

	"github.com/gin-gonic/gin"
)

// returnParams reads the hosted form's redirect query. The form may send the
// checkout id as either checkoutId or id.
func returnParams(c *gin.Context) service.ReturnParams {
	checkoutID := c.Query("checkoutId")
	if checkoutID == "" {
		checkoutID = c.Query("id")
	}
	return service.ReturnParams{
		Status:         c.Query("status"),
		CheckoutID:     checkoutID,
		ResourcePath:   c.Query("resourcePath"),
		FormCheckoutID: c.Query("formCheckoutId"),
	}
}

// paymentForm serves the form page, which reconciles when the widget redirects back to it
func (h *Handler) paymentForm(c *gin.Context) {
	params := returnParams(c)
	params.FormCheckoutID = c.Param("checkoutId")
	h.resolve(c, params)
}

// paymentResult serves the redirect-back landing page
func (h *Handler) paymentResult(c *gin.Context) {
	h.resolve(c, returnParams(c))
}

func (h *Handler) resolve(c *gin.Context, params service.ReturnParams) {
	handler := h.svc.Mounts.Mount(sessionID(c), params)
	view := handler.Resolve(c.Request.Context())

	switch {
	case view.Redirect != nil:
		c.Header("Refresh", fmt.Sprintf("%d; url=%s", view.Redirect.AfterSeconds, view.Redirect.To))
	case !view.Terminal() && view.State != service.StateAwaitingForm:
		c.Header("Refresh", "2")
	}
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, view)
}

// leavePaymentResult unmounts the view; a status response still in flight is discarded
func (h *Handler) leavePaymentResult(c *gin.Context) {
	if !h.svc.Mounts.Unmount(sessionID(c), returnParams(c)) {
		c.JSON(http.StatusNotFound, gin.H{"error": "No result view is mounted"})
		return
	}
	c.Status(http.StatusNoContent)
}

// continueToQR is the manual "continue" action of a successful view
func (h *Handler) continueToQR(c *gin.Context) {
	handler, ok := h.svc.Mounts.Lookup(sessionID(c), returnParams(c))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "No result view is mounted"})
		return
	}

	view := handler.View()
	if !view.Succeeded() {
		c.JSON(http.StatusConflict, view)
		return
	}
	c.Redirect(http.StatusSeeOther, h.cfg.Checkout.QRRoute)
}
