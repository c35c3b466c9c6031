package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/MohamedElsayed002/frontend-carwash/internal/models"
	"github.com/MohamedElsayed002/frontend-carwash/internal/store"
	"github.com/MohamedElsayed002/frontend-carwash/internal/util"

	"go.uber.org/zap"
)

// LedgerStore is the part of the store the projector writes to
type LedgerStore interface {
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
	RecordCheckout(ctx context.Context, rec *models.CheckoutRecord) error
	RecordReconciliation(ctx context.Context, rec *models.ReconciliationRecord) error
	UpdateCheckoutStatus(ctx context.Context, checkoutID, status string) error
}

var _ LedgerStore = (*store.Store)(nil)

// LedgerProjector folds checkout events into the audit ledger.
// The ledger is a record for operators; the browser flow never reads it.
type LedgerProjector struct {
	store  LedgerStore
	logger *zap.Logger
}

// NewLedgerProjector creates a new ledger projector
func NewLedgerProjector(store LedgerStore) *LedgerProjector {
	return &LedgerProjector{
		store:  store,
		logger: util.GetLogger(),
	}
}

func (lp *LedgerProjector) seen(ctx context.Context, event models.BaseEvent) (bool, error) {
	processed, err := lp.store.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return false, fmt.Errorf("failed to check event processed: %w", err)
	}
	if processed {
		lp.logger.Info("Event already processed", zap.String("event_id", event.EventID))
		util.LedgerEventsTotal.WithLabelValues(event.EventType, "duplicate").Inc()
	}
	return processed, nil
}

func (lp *LedgerProjector) done(ctx context.Context, event models.BaseEvent) {
	if err := lp.store.MarkEventProcessed(ctx, event.EventID, event.EventType); err != nil {
		lp.logger.Error("Failed to mark event processed", zap.Error(err))
	}
	util.LedgerEventsTotal.WithLabelValues(event.EventType, "applied").Inc()
}

// HandleCheckoutCreated records a new checkout, superseding the session's older ones
func (lp *LedgerProjector) HandleCheckoutCreated(ctx context.Context, event *models.CheckoutCreatedEvent) error {
	ctx, span := util.StartSpan(ctx, "LedgerProjector.HandleCheckoutCreated")
	defer span.End()

	if seen, err := lp.seen(ctx, event.BaseEvent); err != nil || seen {
		return err
	}

	rec := &models.CheckoutRecord{
		CheckoutID:    event.CheckoutID,
		SessionID:     event.SessionID,
		UserID:        event.UserID,
		OrderID:       event.OrderID,
		Amount:        event.Amount,
		Currency:      event.Currency,
		PaymentMethod: event.PaymentMethod,
		Status:        models.CheckoutStatusOpen,
	}
	if err := lp.store.RecordCheckout(ctx, rec); err != nil {
		util.RecordSpanError(span, err)
		util.LedgerEventsTotal.WithLabelValues(event.EventType, "error").Inc()
		return fmt.Errorf("failed to record checkout: %w", err)
	}

	lp.done(ctx, event.BaseEvent)
	lp.logger.Info("Checkout recorded",
		zap.String("checkout_id", event.CheckoutID),
		zap.String("order_id", event.OrderID))
	return nil
}

// HandlePaymentReconciled appends the outcome and settles the checkout status
func (lp *LedgerProjector) HandlePaymentReconciled(ctx context.Context, event *models.PaymentReconciledEvent) error {
	ctx, span := util.StartSpan(ctx, "LedgerProjector.HandlePaymentReconciled")
	defer span.End()

	if seen, err := lp.seen(ctx, event.BaseEvent); err != nil || seen {
		return err
	}

	rec := &models.ReconciliationRecord{
		CheckoutID:   event.CheckoutID,
		ResourcePath: event.ResourcePath,
		SessionID:    event.SessionID,
		Outcome:      string(event.Outcome),
		ErrorKind:    event.ErrorKind,
		Message:      event.Message,
		AttemptedAt:  event.AttemptedAt,
	}
	if err := lp.store.RecordReconciliation(ctx, rec); err != nil {
		util.RecordSpanError(span, err)
		util.LedgerEventsTotal.WithLabelValues(event.EventType, "error").Inc()
		return fmt.Errorf("failed to record reconciliation: %w", err)
	}

	status := models.CheckoutStatusFailed
	if event.Outcome == models.OutcomeSuccess {
		status = models.CheckoutStatusPaid
	}
	if event.CheckoutID != "" {
		err := lp.store.UpdateCheckoutStatus(ctx, event.CheckoutID, status)
		if errors.Is(err, store.ErrCheckoutNotFound) {
			lp.logger.Warn("Reconciled checkout missing from ledger", zap.String("checkout_id", event.CheckoutID))
		} else if err != nil {
			return fmt.Errorf("failed to update checkout status: %w", err)
		}
	}

	lp.done(ctx, event.BaseEvent)
	lp.logger.Info("Reconciliation recorded",
		zap.String("checkout_id", event.CheckoutID),
		zap.String("outcome", string(event.Outcome)))
	return nil
}

// HandleEntitlementShortCircuit only marks the event; short circuits touch no checkout
func (lp *LedgerProjector) HandleEntitlementShortCircuit(ctx context.Context, event *models.EntitlementShortCircuitEvent) error {
	if seen, err := lp.seen(ctx, event.BaseEvent); err != nil || seen {
		return err
	}
	lp.logger.Info("Entitlement short circuit",
		zap.String("user_id", event.UserID),
		zap.String("route", event.Route))
	lp.done(ctx, event.BaseEvent)
	return nil
}
