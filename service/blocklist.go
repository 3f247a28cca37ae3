package service

import (
	"log/slog"
	"sync"
	"time"
)

const (
	// blockStaleAfter is how long a DID may stay idle before its block
	// record is reclaimed.
	blockStaleAfter = 10 * time.Minute

	// blockSweepEvery is the interval between staleness sweeps.
	blockSweepEvery = 5 * time.Minute
)

type blockRecord struct {
	blocked  map[string]struct{}
	lastSeen time.Time
}

// BlockService tracks per-DID block lists with an activity-driven
// retention policy: records survive as long as the owning DID stays
// active, not as long as the list is non-empty.
type BlockService struct {
	mu      sync.RWMutex
	records map[string]*blockRecord

	sweepMu sync.Mutex
	stopCh  chan struct{}

	staleAfter time.Duration
	sweepEvery time.Duration
	log        *slog.Logger
	now        func() time.Time
}

// NewBlockService creates an empty block service.
func NewBlockService(log *slog.Logger) *BlockService {
	return &BlockService{
		records:    make(map[string]*blockRecord),
		staleAfter: blockStaleAfter,
		sweepEvery: blockSweepEvery,
		log:        log,
		now:        time.Now,
	}
}

// Sync fully replaces the DID's block set and stamps lastSeen. An empty
// list deletes the record entirely rather than keeping an empty set, so
// users with zero blocks cost nothing.
func (s *BlockService) Sync(did string, blockedDIDs []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(blockedDIDs) == 0 {
		delete(s.records, did)
		return
	}

	blocked := make(map[string]struct{}, len(blockedDIDs))
	for _, b := range blockedDIDs {
		blocked[b] = struct{}{}
	}
	s.records[did] = &blockRecord{blocked: blocked, lastSeen: s.now()}
}

// Touch updates lastSeen without altering the block set. Called on every
// connect and message so activity drives retention.
func (s *BlockService) Touch(did string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.records[did]; ok {
		rec.lastSeen = s.now()
	}
}

// IsBlocked is symmetric: true if either DID blocks the other. Used to
// suppress message delivery and to mask presence.
func (s *BlockService) IsBlocked(a, b string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.doesBlockLocked(a, b) || s.doesBlockLocked(b, a)
}

// DoesBlock is strictly directional: true only if blocker blocks target.
// Used where only the blocker's own intent matters, such as filtering a
// member listing from the blocker's point of view.
func (s *BlockService) DoesBlock(blocker, target string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.doesBlockLocked(blocker, target)
}

func (s *BlockService) doesBlockLocked(blocker, target string) bool {
	rec, ok := s.records[blocker]
	if !ok {
		return false
	}
	_, blocked := rec.blocked[target]
	return blocked
}

// Clear removes both the DID's block set and its liveness record.
func (s *BlockService) Clear(did string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, did)
}

// Dump returns a copy of every tracked block set, keyed by owner DID.
// Introspection only.
func (s *BlockService) Dump() map[string][]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string][]string, len(s.records))
	for did, rec := range s.records {
		blocked := make([]string, 0, len(rec.blocked))
		for b := range rec.blocked {
			blocked = append(blocked, b)
		}
		out[did] = blocked
	}
	return out
}

// StartSweep begins the periodic staleness sweep. Calling it while a
// sweep is already scheduled is a no-op.
func (s *BlockService) StartSweep() {
	s.sweepMu.Lock()
	defer s.sweepMu.Unlock()

	if s.stopCh != nil {
		return
	}
	s.stopCh = make(chan struct{})

	go func(stop chan struct{}) {
		ticker := time.NewTicker(s.sweepEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				removed := s.sweep()
				if removed > 0 {
					s.log.Debug("swept stale block records", "removed", removed)
				}
			case <-stop:
				return
			}
		}
	}(s.stopCh)
}

// StopSweep cancels the periodic sweep. Safe to call repeatedly.
func (s *BlockService) StopSweep() {
	s.sweepMu.Lock()
	defer s.sweepMu.Unlock()

	if s.stopCh == nil {
		return
	}
	close(s.stopCh)
	s.stopCh = nil
}

// sweep removes every record whose lastSeen is older than the staleness
// threshold, returning the count removed.
func (s *BlockService) sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.staleAfter)
	removed := 0
	for did, rec := range s.records {
		if rec.lastSeen.Before(cutoff) {
			delete(s.records, did)
			removed++
		}
	}
	return removed
}
