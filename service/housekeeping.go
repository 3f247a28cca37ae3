package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/layer-3/beacon/ports"
)

// DefaultHousekeepingInterval is how often expired state is swept.
const DefaultHousekeepingInterval = time.Minute

// Housekeeper periodically prunes TTL-bearing stores that lack native
// expiry. Stores with native expiry report zero from Prune and cost
// nothing. A prune failure is logged and does not affect the next run.
type Housekeeper struct {
	challenges ports.ChallengeStore
	sessions   ports.SessionStore
	limiter    ports.RateLimiter
	gate       *AccessGate
	interval   time.Duration
	log        *slog.Logger

	mu     sync.Mutex
	stopCh chan struct{}
}

// NewHousekeeper creates a housekeeper over the given stores. A zero
// interval selects the default.
func NewHousekeeper(
	challenges ports.ChallengeStore,
	sessions ports.SessionStore,
	limiter ports.RateLimiter,
	gate *AccessGate,
	interval time.Duration,
	log *slog.Logger,
) *Housekeeper {
	if interval <= 0 {
		interval = DefaultHousekeepingInterval
	}
	return &Housekeeper{
		challenges: challenges,
		sessions:   sessions,
		limiter:    limiter,
		gate:       gate,
		interval:   interval,
		log:        log,
	}
}

// Start schedules the sweep. Calling Start while running is a no-op.
func (h *Housekeeper) Start() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stopCh != nil {
		return
	}
	h.stopCh = make(chan struct{})

	go func(stop chan struct{}) {
		ticker := time.NewTicker(h.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				h.sweep()
			case <-stop:
				return
			}
		}
	}(h.stopCh)
}

// Stop cancels the sweep. Safe to call repeatedly.
func (h *Housekeeper) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stopCh == nil {
		return
	}
	close(h.stopCh)
	h.stopCh = nil
}

func (h *Housekeeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if n, err := h.challenges.Prune(ctx); err != nil {
		h.log.Error("challenge prune failed", "err", err)
	} else if n > 0 {
		h.log.Debug("pruned challenges", "removed", n)
	}

	if n, err := h.sessions.Prune(ctx); err != nil {
		h.log.Error("session prune failed", "err", err)
	} else if n > 0 {
		h.log.Debug("pruned sessions", "removed", n)
	}

	if n, err := h.limiter.Prune(ctx); err != nil {
		h.log.Error("rate window prune failed", "err", err)
	} else if n > 0 {
		h.log.Debug("pruned rate windows", "removed", n)
	}

	if h.gate != nil {
		if n := h.gate.PruneAgeCache(); n > 0 {
			h.log.Debug("pruned age cache", "removed", n)
		}
	}
}
