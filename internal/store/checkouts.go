package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/MohamedElsayed002/frontend-carwash/internal/models"
)

// ErrCheckoutNotFound is returned when no ledger row exists for a checkout id
var ErrCheckoutNotFound = errors.New("checkout not found")

// RecordCheckout inserts a checkout and supersedes the session's older open checkouts
func (s *Store) RecordCheckout(ctx context.Context, rec *models.CheckoutRecord) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		UPDATE checkouts
		SET status = $1, superseded_by = $2, updated_at = NOW()
		WHERE session_id = $3 AND status = $4 AND checkout_id <> $2`,
		models.CheckoutStatusSuperseded, rec.CheckoutID, rec.SessionID, models.CheckoutStatusOpen)
	if err != nil {
		return fmt.Errorf("failed to supersede open checkouts: %w", err)
	}

	if rec.Status == "" {
		rec.Status = models.CheckoutStatusOpen
	}
	err = tx.GetContext(ctx, rec, `
		INSERT INTO checkouts (checkout_id, session_id, user_id, order_id, amount, currency, payment_method, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (checkout_id) DO UPDATE SET updated_at = NOW()
		RETURNING *`,
		rec.CheckoutID, rec.SessionID, rec.UserID, rec.OrderID,
		rec.Amount, rec.Currency, rec.PaymentMethod, rec.Status)
	if err != nil {
		return fmt.Errorf("failed to insert checkout: %w", err)
	}

	return tx.Commit()
}

// GetCheckout retrieves a checkout by its gateway id
func (s *Store) GetCheckout(ctx context.Context, checkoutID string) (*models.CheckoutRecord, error) {
	var rec models.CheckoutRecord
	err := s.db.GetContext(ctx, &rec, "SELECT * FROM checkouts WHERE checkout_id = $1", checkoutID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCheckoutNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// UpdateCheckoutStatus moves a checkout to status unless it is already paid
func (s *Store) UpdateCheckoutStatus(ctx context.Context, checkoutID, status string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE checkouts SET status = $1, updated_at = NOW()
		WHERE checkout_id = $2 AND status <> $3`,
		status, checkoutID, models.CheckoutStatusPaid)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		var exists bool
		if err := s.db.GetContext(ctx, &exists,
			"SELECT EXISTS(SELECT 1 FROM checkouts WHERE checkout_id = $1)", checkoutID); err != nil {
			return err
		}
		if !exists {
			return ErrCheckoutNotFound
		}
	}
	return nil
}

// RecordReconciliation appends a reconciliation outcome
func (s *Store) RecordReconciliation(ctx context.Context, rec *models.ReconciliationRecord) error {
	return s.db.GetContext(ctx, rec, `
		INSERT INTO reconciliations (checkout_id, resource_path, session_id, outcome, error_kind, message, attempted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, completed_at`,
		rec.CheckoutID, rec.ResourcePath, rec.SessionID, rec.Outcome, rec.ErrorKind, rec.Message, rec.AttemptedAt)
}

// GetReconciliations lists the outcomes recorded for a checkout, oldest first
func (s *Store) GetReconciliations(ctx context.Context, checkoutID string) ([]models.ReconciliationRecord, error) {
	var recs []models.ReconciliationRecord
	err := s.db.SelectContext(ctx, &recs,
		"SELECT * FROM reconciliations WHERE checkout_id = $1 ORDER BY completed_at", checkoutID)
	return recs, err
}

// IsEventProcessed checks if an event has been processed
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

// MarkEventProcessed marks an event as processed
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	return err
}
