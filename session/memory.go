package session

import (
	"context"
	"sync"
	"time"

	"github.com/MrEthical07/goGuard/clock"
	"github.com/MrEthical07/goGuard/fingerprint"
	"github.com/MrEthical07/goGuard/internal"
	"github.com/MrEthical07/goGuard/risk"
)

// MemoryStore is a process-local Store. A single RWMutex guards both
// maps; Validate holds the write lock across the nested rotation so no
// reader observes a half-rotated session.
type MemoryStore struct {
	mu     sync.RWMutex
	byID   map[string]*Session
	byUser map[string]map[string]struct{}

	cfg   Config
	risk  *risk.Engine
	clock clock.Clock
}

// NewMemoryStore returns an empty MemoryStore. A nil engine uses
// risk.Default and a nil clock uses the wall clock.
func NewMemoryStore(cfg Config, engine *risk.Engine, clk clock.Clock) (*MemoryStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if engine == nil {
		engine = risk.Default()
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &MemoryStore{
		byID:   make(map[string]*Session),
		byUser: make(map[string]map[string]struct{}),
		cfg:    cfg,
		risk:   engine,
		clock:  clk,
	}, nil
}

// Create stores a new session for userID, evicting the least recently
// accessed sessions of that user when the cap is reached.
func (m *MemoryStore) Create(ctx context.Context, userID string, fp fingerprint.Fingerprint, privileged bool) (CreateResult, error) {
	if userID == "" {
		return CreateResult{}, ErrUserIDRequired
	}
	id, err := internal.NewSessionIDString()
	if err != nil {
		return CreateResult{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	live := make([]*Session, 0, len(m.byUser[userID]))
	for sid := range m.byUser[userID] {
		s := m.byID[sid]
		if s.Expired(now) {
			m.deleteLocked(s)
			continue
		}
		live = append(live, s)
	}

	var evicted []string
	for _, victim := range evictionVictims(live, m.cfg.MaxConcurrentSessions) {
		m.deleteLocked(victim)
		evicted = append(evicted, victim.ID)
	}

	s := newSession(id, userID, fp, privileged, now, m.cfg)
	m.putLocked(s)
	return CreateResult{Session: s.Clone(), Evicted: evicted}, nil
}

// Validate checks id against fp and applies the risk policy.
func (m *MemoryStore) Validate(ctx context.Context, id string, fp fingerprint.Fingerprint) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.byID[id]
	if !ok {
		return Result{Outcome: OutcomeNotFound}, nil
	}
	now := m.clock.Now()
	if s.Expired(now) {
		m.deleteLocked(s)
		return Result{Outcome: OutcomeExpired}, nil
	}

	a := m.risk.Score(s.Fingerprint, fp)
	applyAssessment(s, a, now, m.cfg)
	if a.Level != risk.LevelHigh {
		return Result{Outcome: OutcomeValid, Session: s.Clone(), Assessment: a}, nil
	}

	if !canRotate(s, m.cfg) {
		m.deleteLocked(s)
		return Result{Outcome: OutcomeRotationLimit, Assessment: a}, nil
	}
	next, err := m.rotateLocked(s, fp, false, now)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Outcome:    OutcomeValid,
		Session:    next.Clone(),
		Assessment: a,
		Rotated:    true,
		PreviousID: id,
	}, nil
}

// Rotate replaces id with a fresh session bound to fp.
func (m *MemoryStore) Rotate(ctx context.Context, id string, fp fingerprint.Fingerprint) (*Session, error) {
	return m.replace(id, fp, false)
}

// Escalate rotates id into a privileged session.
func (m *MemoryStore) Escalate(ctx context.Context, id string, fp fingerprint.Fingerprint) (*Session, error) {
	return m.replace(id, fp, true)
}

func (m *MemoryStore) replace(id string, fp fingerprint.Fingerprint, escalate bool) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.byID[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	now := m.clock.Now()
	if s.Expired(now) {
		m.deleteLocked(s)
		return nil, ErrSessionExpired
	}
	if !canRotate(s, m.cfg) {
		m.deleteLocked(s)
		return nil, ErrRotationLimit
	}
	next, err := m.rotateLocked(s, fp, escalate, now)
	if err != nil {
		return nil, err
	}
	return next.Clone(), nil
}

func (m *MemoryStore) rotateLocked(s *Session, fp fingerprint.Fingerprint, escalate bool, now time.Time) (*Session, error) {
	newID, err := internal.NewSessionIDString()
	if err != nil {
		return nil, err
	}
	next := rotated(s, newID, fp, escalate, now, m.cfg)
	m.deleteLocked(s)
	m.putLocked(next)
	return next, nil
}

// Get returns a copy of the session without touching it.
func (m *MemoryStore) Get(ctx context.Context, id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.byID[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if s.Expired(m.clock.Now()) {
		return nil, ErrSessionExpired
	}
	return s.Clone(), nil
}

// ListForUser returns the user's live sessions, most recently accessed
// first.
func (m *MemoryStore) ListForUser(ctx context.Context, userID string) ([]*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := m.clock.Now()
	out := make([]*Session, 0, len(m.byUser[userID]))
	for sid := range m.byUser[userID] {
		if s := m.byID[sid]; !s.Expired(now) {
			out = append(out, s.Clone())
		}
	}
	sortMostRecentFirst(out)
	return out, nil
}

// Destroy removes id. Unknown ids are not an error.
func (m *MemoryStore) Destroy(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.byID[id]; ok {
		m.deleteLocked(s)
	}
	return nil
}

// DestroyAllForUser removes every session of userID and returns how many
// of them had not yet expired.
func (m *MemoryStore) DestroyAllForUser(ctx context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	n := 0
	for sid := range m.byUser[userID] {
		if s, ok := m.byID[sid]; ok && !s.Expired(now) {
			n++
		}
		delete(m.byID, sid)
	}
	delete(m.byUser, userID)
	return n, nil
}

// Stats aggregates over live sessions.
func (m *MemoryStore) Stats(ctx context.Context) (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := m.clock.Now()
	acc := newStatsAccumulator(m.risk.Thresholds().High)
	for _, s := range m.byID {
		if !s.Expired(now) {
			acc.add(s)
		}
	}
	return acc.result(), nil
}

// Sweep removes expired sessions and returns how many were removed.
func (m *MemoryStore) Sweep(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	removed := 0
	for _, s := range m.byID {
		if s.Expired(now) {
			m.deleteLocked(s)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of stored sessions, expired ones included.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byID)
}

func (m *MemoryStore) putLocked(s *Session) {
	m.byID[s.ID] = s
	ids, ok := m.byUser[s.UserID]
	if !ok {
		ids = make(map[string]struct{})
		m.byUser[s.UserID] = ids
	}
	ids[s.ID] = struct{}{}
}

func (m *MemoryStore) deleteLocked(s *Session) {
	delete(m.byID, s.ID)
	if ids, ok := m.byUser[s.UserID]; ok {
		delete(ids, s.ID)
		if len(ids) == 0 {
			delete(m.byUser, s.UserID)
		}
	}
}

var _ Store = (*MemoryStore)(nil)
