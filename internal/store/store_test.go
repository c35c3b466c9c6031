package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/MohamedElsayed002/frontend-carwash/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("Integration test - requires TEST_DATABASE_URL")
	}
	s, err := NewStore(context.Background(), url)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newRecord(sid string) *models.CheckoutRecord {
	return &models.CheckoutRecord{
		CheckoutID:    "CHK-" + uuid.New().String(),
		SessionID:     sid,
		UserID:        "user-1",
		OrderID:       "ORDER-ABC123XYZ",
		Amount:        decimal.RequireFromString("149.00"),
		Currency:      "SAR",
		PaymentMethod: string(models.PaymentMethodCard),
	}
}

func TestRecordCheckoutSupersedesOpen(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	sid := uuid.New().String()

	first := newRecord(sid)
	require.NoError(t, s.RecordCheckout(ctx, first))
	assert.NotZero(t, first.ID)
	assert.Equal(t, models.CheckoutStatusOpen, first.Status)

	second := newRecord(sid)
	require.NoError(t, s.RecordCheckout(ctx, second))

	old, err := s.GetCheckout(ctx, first.CheckoutID)
	require.NoError(t, err)
	assert.Equal(t, models.CheckoutStatusSuperseded, old.Status)
	require.NotNil(t, old.SupersededBy)
	assert.Equal(t, second.CheckoutID, *old.SupersededBy)
}

func TestPaidCheckoutIsSticky(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec := newRecord(uuid.New().String())
	require.NoError(t, s.RecordCheckout(ctx, rec))
	require.NoError(t, s.UpdateCheckoutStatus(ctx, rec.CheckoutID, models.CheckoutStatusPaid))
	require.NoError(t, s.UpdateCheckoutStatus(ctx, rec.CheckoutID, models.CheckoutStatusFailed))

	got, err := s.GetCheckout(ctx, rec.CheckoutID)
	require.NoError(t, err)
	assert.Equal(t, models.CheckoutStatusPaid, got.Status)

	assert.ErrorIs(t, s.UpdateCheckoutStatus(ctx, "missing-"+uuid.New().String(), models.CheckoutStatusPaid), ErrCheckoutNotFound)
}

func TestRecordReconciliation(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec := &models.ReconciliationRecord{
		CheckoutID:  "CHK-" + uuid.New().String(),
		SessionID:   "sid",
		Outcome:     string(models.OutcomeFailure),
		ErrorKind:   "BACKEND_REJECTED",
		AttemptedAt: time.Now().UTC(),
	}
	require.NoError(t, s.RecordReconciliation(ctx, rec))
	assert.NotZero(t, rec.ID)

	recs, err := s.GetReconciliations(ctx, rec.CheckoutID)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "BACKEND_REJECTED", recs[0].ErrorKind)
}

func TestEventIdempotency(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	id := uuid.New().String()

	processed, err := s.IsEventProcessed(ctx, id)
	require.NoError(t, err)
	assert.False(t, processed)

	require.NoError(t, s.MarkEventProcessed(ctx, id, models.EventTypeCheckoutCreated))
	require.NoError(t, s.MarkEventProcessed(ctx, id, models.EventTypeCheckoutCreated))

	processed, err = s.IsEventProcessed(ctx, id)
	require.NoError(t, err)
	assert.True(t, processed)
}
