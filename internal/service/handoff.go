package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/MohamedElsayed002/frontend-carwash/internal/apperr"
	"github.com/MohamedElsayed002/frontend-carwash/internal/drafts"
	"github.com/MohamedElsayed002/frontend-carwash/internal/models"
	"github.com/MohamedElsayed002/frontend-carwash/internal/util"

	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"
)

const pngDataURLPrefix = "data:image/png;base64,"

// Handoff runs after a confirmed payment: it snapshots the order for display and
// issues the QR code. It never decides whether a payment succeeded.
type Handoff struct {
	backend Backend
	gate    *EntitlementGate
	drafts  *drafts.Store
	logger  *zap.Logger
	now     func() time.Time
}

// NewHandoff creates a new post-payment handoff
func NewHandoff(backend Backend, gate *EntitlementGate, drafts *drafts.Store) *Handoff {
	return &Handoff{
		backend: backend,
		gate:    gate,
		drafts:  drafts,
		logger:  util.GetLogger(),
		now:     time.Now,
	}
}

// Complete writes the advisory final-order snapshot for a reconciled checkout
func (h *Handoff) Complete(ctx context.Context, sid string, corr models.Correlation) error {
	ctx, span := util.StartSpan(ctx, "Handoff.Complete")
	defer span.End()

	final := models.FinalOrder{
		CheckoutID:  corr.CheckoutID,
		Status:      "paid",
		CompletedAt: h.now().UTC(),
	}
	draft, err := h.drafts.Read(ctx, sid)
	if err != nil {
		return fmt.Errorf("failed to read draft: %w", err)
	}
	if draft != nil {
		final.DraftPurchase = *draft
	}
	if final.CheckoutID == "" {
		var staged string
		if _, err := h.drafts.Get(ctx, sid, drafts.KeyCheckoutID, &staged); err == nil {
			final.CheckoutID = staged
		}
	}

	if err := h.drafts.Put(ctx, sid, drafts.KeyFinalOrderData, final); err != nil {
		return err
	}
	h.logger.Info("Final order snapshot written",
		zap.String("session_id", sid),
		zap.String("order_id", final.OrderID),
		zap.String("checkout_id", final.CheckoutID))
	return nil
}

// IssueQR fetches the package QR code and status, merges them and stages the result
func (h *Handoff) IssueQR(ctx context.Context, sid string) (*models.QRSnapshot, error) {
	ctx, span := util.StartSpan(ctx, "Handoff.IssueQR")
	defer span.End()

	token, err := h.gate.Bearer(ctx, sid)
	if err != nil {
		return nil, err
	}

	qr, err := h.backend.PackageQRCode(ctx, token)
	if err != nil {
		util.RecordSpanError(span, err)
		return nil, fmt.Errorf("failed to fetch QR code: %w", err)
	}

	info := make(map[string]any, len(qr.PackageInfo))
	for k, v := range qr.PackageInfo {
		info[k] = v
	}
	status, err := h.backend.PackageStatus(ctx, token)
	if err != nil {
		h.logger.Warn("Package status unavailable, using QR package info", zap.Error(err))
	} else if status.HasPackage {
		for k, v := range status.Package {
			info[k] = v
		}
	}

	snap := &models.QRSnapshot{
		PackageInfo: info,
		IssuedAt:    h.now().UTC(),
	}
	if strings.HasPrefix(qr.QRCode, "data:image/") {
		snap.Image = qr.QRCode
	} else {
		png, err := qrcode.Encode(qr.QRCode, qrcode.Medium, 256)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindInternal, err, "failed to render QR code")
		}
		snap.Image = pngDataURLPrefix + base64.StdEncoding.EncodeToString(png)
		snap.Payload = qr.QRCode
	}

	if err := h.drafts.Put(ctx, sid, drafts.KeyQRCodeData, snap); err != nil {
		h.logger.Warn("Failed to stage QR code", zap.Error(err))
	}
	util.QRIssuedTotal.Inc()
	return snap, nil
}

// PNG returns the QR image bytes of a snapshot
func PNG(snap *models.QRSnapshot) ([]byte, error) {
	if !strings.HasPrefix(snap.Image, pngDataURLPrefix) {
		if snap.Payload != "" {
			return qrcode.Encode(snap.Payload, qrcode.Medium, 256)
		}
		return nil, apperr.New(apperr.KindInternal, "QR image is not a PNG")
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(snap.Image, pngDataURLPrefix))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, err, "failed to decode QR image")
	}
	return raw, nil
}
