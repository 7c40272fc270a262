package mining

import (
	"context"
	"sync"
	"time"

	"github.com/dht-dimaond/diamond/internal/domain"
)

// Manager hands out one session per user, resuming from the durable
// checkpoint (offline earnings included) when a session is first touched
// after a restart.
type Manager struct {
	users       BalanceStore
	checkpoints CheckpointStore
	tick        time.Duration
	nowMs       func() int64

	mu       sync.Mutex
	sessions map[int64]*Session
}

func NewManager(users BalanceStore, checkpoints CheckpointStore) *Manager {
	return &Manager{
		users:       users,
		checkpoints: checkpoints,
		tick:        TickInterval,
		nowMs:       func() int64 { return time.Now().UnixMilli() },
		sessions:    make(map[int64]*Session),
	}
}

// NewManagerAt builds a manager with an injected tick interval and clock for
// tests.
func NewManagerAt(users BalanceStore, checkpoints CheckpointStore, tick time.Duration, nowMs func() int64) *Manager {
	m := NewManager(users, checkpoints)
	m.tick = tick
	m.nowMs = nowMs
	return m
}

// Session returns the user's accumulator, creating and resuming it on first
// touch. The user must exist.
func (m *Manager) Session(ctx context.Context, userID int64) (*Session, error) {
	m.mu.Lock()
	if s, ok := m.sessions[userID]; ok {
		m.mu.Unlock()
		return s, nil
	}
	m.mu.Unlock()

	user, err := m.users.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.ErrUserNotFound
	}

	s := &Session{
		userID:      userID,
		users:       m.users,
		checkpoints: m.checkpoints,
		tick:        m.tick,
		nowMs:       m.nowMs,
		hashRate:    user.Hashrate,
		completed:   make(chan struct{}),
	}

	if cp, ok, err := m.checkpoints.Load(userID); err == nil && ok {
		s.accumulated = resumeAmount(cp, m.nowMs())
		if s.accumulated >= MaxMinableAmount {
			select {
			case <-s.completed:
			default:
				close(s.completed)
			}
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.sessions[userID]; ok {
		return existing, nil
	}
	m.sessions[userID] = s
	return s, nil
}

// Shutdown stops every running ticker.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		s.mu.Lock()
		s.stopLocked()
		s.mu.Unlock()
	}
}
