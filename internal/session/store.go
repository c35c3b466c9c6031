// Package session keeps the per-browser bearer token and cached display profile.
// It is the only writer of session keys.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/MohamedElsayed002/frontend-carwash/internal/models"
	"github.com/MohamedElsayed002/frontend-carwash/internal/redisclient"
)

// ErrNoToken is returned when the browser session carries no bearer token
var ErrNoToken = errors.New("session: no bearer token")

type Store struct {
	kv  redisclient.KV
	ttl time.Duration
}

func NewStore(kv redisclient.KV, ttl time.Duration) *Store {
	return &Store{kv: kv, ttl: ttl}
}

func tokenKey(sid string) string { return fmt.Sprintf("session:%s:token", sid) }
func userKey(sid string) string  { return fmt.Sprintf("session:%s:user", sid) }

// SetToken stores the bearer token issued by the auth collaborator
func (s *Store) SetToken(ctx context.Context, sid, token string) error {
	if token == "" {
		return errors.New("session: empty token")
	}
	return s.kv.Set(ctx, tokenKey(sid), token, s.ttl)
}

// Token returns the bearer token or ErrNoToken
func (s *Store) Token(ctx context.Context, sid string) (string, error) {
	tok, err := s.kv.Get(ctx, tokenKey(sid))
	if errors.Is(err, redisclient.ErrMissing) {
		return "", ErrNoToken
	}
	if err != nil {
		return "", fmt.Errorf("failed to read token: %w", err)
	}
	return tok, nil
}

// SetUser caches the last fetched profile for greetings
func (s *Store) SetUser(ctx context.Context, sid string, profile *models.UserProfile) error {
	raw, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}
	return s.kv.Set(ctx, userKey(sid), string(raw), s.ttl)
}

// User returns the cached profile, or nil if none is cached
func (s *Store) User(ctx context.Context, sid string) (*models.UserProfile, error) {
	raw, err := s.kv.Get(ctx, userKey(sid))
	if errors.Is(err, redisclient.ErrMissing) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cached profile: %w", err)
	}
	var profile models.UserProfile
	if err := json.Unmarshal([]byte(raw), &profile); err != nil {
		return nil, fmt.Errorf("failed to decode cached profile: %w", err)
	}
	return &profile, nil
}

// Clear removes the token and cached profile
func (s *Store) Clear(ctx context.Context, sid string) error {
	return s.kv.Del(ctx, tokenKey(sid), userKey(sid))
}
