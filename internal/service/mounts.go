package service

import (
	"context"
	"sync"
	"time"

	"github.com/MohamedElsayed002/frontend-carwash/internal/util"

	"go.uber.org/zap"
)

// MountRegistry maps (browser session, navigation) to its mounted result view,
// so refreshes and duplicate loads re-render the same handler.
type MountRegistry struct {
	mu         sync.Mutex
	mounts     map[string]*ReturnHandler
	reconciler *Reconciler
	ttl        time.Duration
	logger     *zap.Logger
}

// NewMountRegistry creates a registry that expires mounts after ttl
func NewMountRegistry(reconciler *Reconciler, ttl time.Duration) *MountRegistry {
	return &MountRegistry{
		mounts:     make(map[string]*ReturnHandler),
		reconciler: reconciler,
		ttl:        ttl,
		logger:     util.GetLogger(),
	}
}

func mountKey(sid string, p ReturnParams) string {
	return sid + "#" + p.key()
}

// Mount returns the handler for this navigation, creating it on first sight
func (m *MountRegistry) Mount(sid string, p ReturnParams) *ReturnHandler {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := mountKey(sid, p)
	if h, ok := m.mounts[key]; ok {
		return h
	}
	h := m.reconciler.Mount(sid, p)
	m.mounts[key] = h
	util.MountedResultViews.Inc()
	return h
}

// Lookup returns an existing handler without mounting
func (m *MountRegistry) Lookup(sid string, p ReturnParams) (*ReturnHandler, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	h, ok := m.mounts[mountKey(sid, p)]
	return h, ok
}

// Unmount detaches one navigation
func (m *MountRegistry) Unmount(sid string, p ReturnParams) bool {
	m.mu.Lock()
	key := mountKey(sid, p)
	h, ok := m.mounts[key]
	if ok {
		delete(m.mounts, key)
	}
	m.mu.Unlock()

	if ok {
		h.Unmount()
		util.MountedResultViews.Dec()
	}
	return ok
}

// UnmountSession detaches every view the session has mounted
func (m *MountRegistry) UnmountSession(sid string) int {
	m.mu.Lock()
	var victims []*ReturnHandler
	for key, h := range m.mounts {
		if h.sid == sid {
			victims = append(victims, h)
			delete(m.mounts, key)
		}
	}
	m.mu.Unlock()

	for _, h := range victims {
		h.Unmount()
		util.MountedResultViews.Dec()
	}
	return len(victims)
}

// CleanupExpired unmounts views older than the ttl
func (m *MountRegistry) CleanupExpired() int {
	cutoff := time.Now().Add(-m.ttl)

	m.mu.Lock()
	var victims []*ReturnHandler
	for key, h := range m.mounts {
		if h.mountedAt.Before(cutoff) {
			victims = append(victims, h)
			delete(m.mounts, key)
		}
	}
	m.mu.Unlock()

	for _, h := range victims {
		h.Unmount()
		util.MountedResultViews.Dec()
	}
	if len(victims) > 0 {
		m.logger.Debug("Expired result views", zap.Int("count", len(victims)))
	}
	return len(victims)
}

// Len returns the number of mounted views
func (m *MountRegistry) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.mounts)
}

// Run sweeps expired mounts until ctx is cancelled
func (m *MountRegistry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CleanupExpired()
		}
	}
}
