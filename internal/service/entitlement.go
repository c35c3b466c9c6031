package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/MohamedElsayed002/frontend-carwash/internal/apperr"
	"github.com/MohamedElsayed002/frontend-carwash/internal/models"
	"github.com/MohamedElsayed002/frontend-carwash/internal/session"
	"github.com/MohamedElsayed002/frontend-carwash/internal/util"

	"go.uber.org/zap"
)

// EntitlementGate answers "does this user already hold a paid package".
// The profile is fetched from the backend on every call; the cached copy is only for greetings.
type EntitlementGate struct {
	backend  Backend
	sessions *session.Store
	logger   *zap.Logger
}

// NewEntitlementGate creates a new entitlement gate
func NewEntitlementGate(backend Backend, sessions *session.Store) *EntitlementGate {
	return &EntitlementGate{
		backend:  backend,
		sessions: sessions,
		logger:   util.GetLogger(),
	}
}

// Bearer returns the session's token or an AUTH_REQUIRED error
func (g *EntitlementGate) Bearer(ctx context.Context, sid string) (string, error) {
	token, err := g.sessions.Token(ctx, sid)
	if errors.Is(err, session.ErrNoToken) {
		return "", apperr.New(apperr.KindAuthRequired, "no bearer token for this session")
	}
	if err != nil {
		return "", apperr.Wrap(apperr.KindInternal, err, "failed to read session")
	}
	return token, nil
}

// Check fetches the profile and refreshes the cached copy
func (g *EntitlementGate) Check(ctx context.Context, sid, token string) (*models.UserProfile, error) {
	ctx, span := util.StartSpan(ctx, "EntitlementGate.Check")
	defer span.End()

	profile, err := g.backend.Profile(ctx, token)
	if err != nil {
		util.RecordSpanError(span, err)
		if apperr.Is(err, apperr.KindAuthRequired) {
			if cerr := g.sessions.Clear(ctx, sid); cerr != nil {
				g.logger.Warn("Failed to clear rejected session", zap.String("session_id", sid), zap.Error(cerr))
			}
		}
		return nil, fmt.Errorf("failed to fetch profile: %w", err)
	}

	if err := g.sessions.SetUser(ctx, sid, profile); err != nil {
		g.logger.Warn("Failed to cache profile", zap.String("session_id", sid), zap.Error(err))
	}

	g.logger.Debug("Entitlement checked",
		zap.String("session_id", sid),
		zap.String("user_id", profile.ID),
		zap.Bool("is_paid", profile.IsPaid))
	return profile, nil
}

// Snapshot is Bearer followed by Check
func (g *EntitlementGate) Snapshot(ctx context.Context, sid string) (*models.EntitlementSnapshot, error) {
	token, err := g.Bearer(ctx, sid)
	if err != nil {
		return nil, err
	}
	profile, err := g.Check(ctx, sid, token)
	if err != nil {
		return nil, err
	}
	return profile.Snapshot(), nil
}
