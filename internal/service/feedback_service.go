package service

import (
	"context"
	"fmt"

	"github.com/MohamedElsayed002/frontend-carwash/internal/apperr"
	"github.com/MohamedElsayed002/frontend-carwash/internal/drafts"
	"github.com/MohamedElsayed002/frontend-carwash/internal/models"
	"github.com/MohamedElsayed002/frontend-carwash/internal/util"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// FeedbackService forwards post-wash ratings and tips
type FeedbackService struct {
	backend  Backend
	gate     *EntitlementGate
	drafts   *drafts.Store
	validate *validator.Validate
	logger   *zap.Logger
}

// NewFeedbackService creates a new feedback service
func NewFeedbackService(backend Backend, gate *EntitlementGate, drafts *drafts.Store) *FeedbackService {
	return &FeedbackService{
		backend:  backend,
		gate:     gate,
		drafts:   drafts,
		validate: validator.New(),
		logger:   util.GetLogger(),
	}
}

// SubmitRating validates and forwards a branch rating
func (s *FeedbackService) SubmitRating(ctx context.Context, sid string, req models.RatingRequest) error {
	ctx, span := util.StartSpan(ctx, "FeedbackService.SubmitRating")
	defer span.End()

	if err := s.validate.Struct(req); err != nil {
		return validationError(err)
	}
	token, err := s.gate.Bearer(ctx, sid)
	if err != nil {
		return err
	}

	if err := s.drafts.Put(ctx, sid, drafts.KeyBranchRating, req); err != nil {
		s.logger.Warn("Failed to stage rating", zap.Error(err))
	}
	if err := s.backend.SubmitRating(ctx, token, req); err != nil {
		util.RecordSpanError(span, err)
		return fmt.Errorf("failed to submit rating: %w", err)
	}

	s.logger.Info("Rating submitted",
		zap.String("branch_id", req.BranchID),
		zap.Int("rating", req.Rating))
	return nil
}

// SubmitTip validates and forwards a tip
func (s *FeedbackService) SubmitTip(ctx context.Context, sid string, req models.TipRequest) error {
	ctx, span := util.StartSpan(ctx, "FeedbackService.SubmitTip")
	defer span.End()

	if !req.Amount.IsPositive() {
		return apperr.New(apperr.KindValidation, "tip amount must be positive")
	}
	if err := s.validate.Struct(req); err != nil {
		return validationError(err)
	}
	token, err := s.gate.Bearer(ctx, sid)
	if err != nil {
		return err
	}

	if err := s.drafts.Put(ctx, sid, drafts.KeyTipData, req); err != nil {
		s.logger.Warn("Failed to stage tip", zap.Error(err))
	}
	if err := s.backend.SubmitTip(ctx, token, req); err != nil {
		util.RecordSpanError(span, err)
		return fmt.Errorf("failed to submit tip: %w", err)
	}

	s.logger.Info("Tip submitted",
		zap.String("branch_id", req.BranchID),
		zap.String("amount", req.Amount.StringFixed(2)))
	return nil
}
