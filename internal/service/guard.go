package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/MohamedElsayed002/frontend-carwash/internal/models"
	"github.com/MohamedElsayed002/frontend-carwash/internal/redisclient"
)

const (
	guardIdle int32 = iota
	guardInFlight
	guardDone
)

// OneShot admits exactly one trigger. Claim is a compare-and-swap, so the
// winner is decided before any asynchronous work starts.
type OneShot struct {
	state atomic.Int32
}

// Claim moves idle to in-flight and reports whether this caller won
func (g *OneShot) Claim() bool {
	return g.state.CompareAndSwap(guardIdle, guardInFlight)
}

// Finish marks the guarded work complete
func (g *OneShot) Finish() {
	g.state.Store(guardDone)
}

// InFlight reports whether the guarded work is running
func (g *OneShot) InFlight() bool {
	return g.state.Load() == guardInFlight
}

// Done reports whether the guarded work has finished
func (g *OneShot) Done() bool {
	return g.state.Load() == guardDone
}

// ClaimStore extends the one-shot guarantee across replicas and browser tabs:
// the first claimant of a correlation queries the backend, everyone else follows
// the view it remembers.
type ClaimStore struct {
	kv  redisclient.KV
	ttl time.Duration
}

// NewClaimStore creates a claim store whose entries live for ttl
func NewClaimStore(kv redisclient.KV, ttl time.Duration) *ClaimStore {
	return &ClaimStore{kv: kv, ttl: ttl}
}

func claimKey(corr models.Correlation) string { return "reconcile:claim:" + corr.Key() }
func viewKey(corr models.Correlation) string  { return "reconcile:view:" + corr.Key() }

// Claim takes the correlation for owner and reports whether it was free
func (c *ClaimStore) Claim(ctx context.Context, corr models.Correlation, owner string) (bool, error) {
	ok, err := c.kv.SetNX(ctx, claimKey(corr), owner, c.ttl)
	if err != nil {
		return false, fmt.Errorf("failed to claim reconciliation: %w", err)
	}
	return ok, nil
}

// Remember stores the terminal view for followers
func (c *ClaimStore) Remember(ctx context.Context, corr models.Correlation, view View) error {
	raw, err := json.Marshal(view)
	if err != nil {
		return fmt.Errorf("failed to marshal view: %w", err)
	}
	return c.kv.Set(ctx, viewKey(corr), string(raw), c.ttl)
}

// Recall returns the remembered view, or nil while the claimant is still working
func (c *ClaimStore) Recall(ctx context.Context, corr models.Correlation) (*View, error) {
	raw, err := c.kv.Get(ctx, viewKey(corr))
	if errors.Is(err, redisclient.ErrMissing) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to recall view: %w", err)
	}
	var view View
	if err := json.Unmarshal([]byte(raw), &view); err != nil {
		return nil, fmt.Errorf("failed to decode view: %w", err)
	}
	return &view, nil
}
