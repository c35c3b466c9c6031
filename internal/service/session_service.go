package service

import (
	"context"
	"fmt"

	"github.com/MohamedElsayed002/frontend-carwash/internal/apperr"
	"github.com/MohamedElsayed002/frontend-carwash/internal/drafts"
	"github.com/MohamedElsayed002/frontend-carwash/internal/models"
	"github.com/MohamedElsayed002/frontend-carwash/internal/session"
	"github.com/MohamedElsayed002/frontend-carwash/internal/util"

	"go.uber.org/zap"
)

// SessionService binds a bearer token to a browser session and tears it down again
type SessionService struct {
	sessions *session.Store
	drafts   *drafts.Store
	gate     *EntitlementGate
	mounts   *MountRegistry
	logger   *zap.Logger
}

// NewSessionService creates a new session service
func NewSessionService(sessions *session.Store, drafts *drafts.Store, gate *EntitlementGate, mounts *MountRegistry) *SessionService {
	return &SessionService{
		sessions: sessions,
		drafts:   drafts,
		gate:     gate,
		mounts:   mounts,
		logger:   util.GetLogger(),
	}
}

// SignIn stores the token and verifies it against the profile endpoint
func (s *SessionService) SignIn(ctx context.Context, sid, token string) (*models.EntitlementSnapshot, error) {
	ctx, span := util.StartSpan(ctx, "SessionService.SignIn")
	defer span.End()

	if token == "" {
		return nil, apperr.New(apperr.KindValidation, "token is required")
	}
	if err := s.sessions.SetToken(ctx, sid, token); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, err, "failed to store token")
	}

	profile, err := s.gate.Check(ctx, sid, token)
	if err != nil {
		util.RecordSpanError(span, err)
		return nil, err
	}

	s.logger.Info("Session signed in",
		zap.String("session_id", sid),
		zap.String("user_id", profile.ID))
	return profile.Snapshot(), nil
}

// SignOut unmounts the session's result views and drops its token and drafts
func (s *SessionService) SignOut(ctx context.Context, sid string) error {
	ctx, span := util.StartSpan(ctx, "SessionService.SignOut")
	defer span.End()

	unmounted := s.mounts.UnmountSession(sid)

	if err := s.sessions.Clear(ctx, sid); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	if err := s.drafts.ClearAll(ctx, sid); err != nil {
		return fmt.Errorf("failed to clear drafts: %w", err)
	}

	s.logger.Info("Session signed out",
		zap.String("session_id", sid),
		zap.Int("unmounted_views", unmounted))
	return nil
}

// Entitlement fetches a fresh entitlement snapshot
func (s *SessionService) Entitlement(ctx context.Context, sid string) (*models.EntitlementSnapshot, error) {
	return s.gate.Snapshot(ctx, sid)
}

// Drafts returns the staged purchase and the final-order snapshot, either may be nil
func (s *SessionService) Drafts(ctx context.Context, sid string) (*models.DraftPurchase, *models.FinalOrder, error) {
	draft, err := s.drafts.Read(ctx, sid)
	if err != nil {
		return nil, nil, apperr.Wrap(apperr.KindInternal, err, "failed to read draft")
	}
	var final models.FinalOrder
	ok, err := s.drafts.Get(ctx, sid, drafts.KeyFinalOrderData, &final)
	if err != nil {
		return nil, nil, apperr.Wrap(apperr.KindInternal, err, "failed to read final order")
	}
	if !ok {
		return draft, nil, nil
	}
	return draft, &final, nil
}
