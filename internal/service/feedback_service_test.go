package service

import (
	"context"
	"testing"

	"github.com/MohamedElsayed002/frontend-carwash/internal/apperr"
	"github.com/MohamedElsayed002/frontend-carwash/internal/drafts"
	"github.com/MohamedElsayed002/frontend-carwash/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitRating(t *testing.T) {
	h := newHarness(t)
	h.signIn(t, "sid-1")
	fs := NewFeedbackService(h.backend, h.gate, h.drafts)
	ctx := context.Background()

	err := fs.SubmitRating(ctx, "sid-1", models.RatingRequest{BranchID: "b1", Rating: 6})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	err = fs.SubmitRating(ctx, "sid-1", models.RatingRequest{Rating: 4})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Zero(t, h.backend.ratingCalls.Load())

	require.NoError(t, fs.SubmitRating(ctx, "sid-1", models.RatingRequest{BranchID: "b1", Rating: 5}))
	assert.Equal(t, int32(1), h.backend.ratingCalls.Load())

	var staged models.RatingRequest
	ok, err := h.drafts.Get(ctx, "sid-1", drafts.KeyBranchRating, &staged)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 5, staged.Rating)
}

func TestSubmitTip(t *testing.T) {
	h := newHarness(t)
	h.signIn(t, "sid-1")
	fs := NewFeedbackService(h.backend, h.gate, h.drafts)
	ctx := context.Background()

	err := fs.SubmitTip(ctx, "sid-1", models.TipRequest{BranchID: "b1", Amount: decimal.Zero})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Zero(t, h.backend.tipCalls.Load())

	err = fs.SubmitTip(ctx, "anon", models.TipRequest{BranchID: "b1", Amount: decimal.NewFromInt(10)})
	assert.Equal(t, apperr.KindAuthRequired, apperr.KindOf(err))

	require.NoError(t, fs.SubmitTip(ctx, "sid-1", models.TipRequest{BranchID: "b1", Amount: decimal.NewFromInt(10)}))
	assert.Equal(t, int32(1), h.backend.tipCalls.Load())
}
