// Package mining runs the cooperative accrual loop: a per-user session ticks
// once a second while mining, saturates at the cap, and hands off to the user
// repository for the balance credit on claim. The session is not
// server-authoritative; it checkpoints to durable local storage so offline
// time is reconciled on resume.
package mining

import (
	"context"
	"sync"
	"time"

	"github.com/dht-dimaond/diamond/internal/domain"
)

const (
	// RatePerHashUnit is the accrual per tick per unit of hashrate.
	RatePerHashUnit = 0.00278

	// MaxMinableAmount caps a single mining session. Reaching it stops
	// the loop; claiming is a separate, explicit step.
	MaxMinableAmount = 100.0

	// TickInterval is the fixed accrual tick.
	TickInterval = time.Second
)

// BalanceStore is the slice of the user repository the claim path needs.
type BalanceStore interface {
	GetUser(ctx context.Context, id int64) (*domain.User, error)
	SetBalance(ctx context.Context, id int64, balance float64) error
}

// State is a snapshot of a session for callers.
type State struct {
	Mining      bool    `json:"mining"`
	Accumulated float64 `json:"accumulated"`
	HashRate    float64 `json:"hashRate"`
	Progress    float64 `json:"progress"`
	Claimable   bool    `json:"claimable"`
}

// Session is a single user's accumulator. All methods are safe for
// concurrent use; the tick goroutine is cancellable and never outlives a
// Stop or Claim.
type Session struct {
	userID      int64
	users       BalanceStore
	checkpoints CheckpointStore
	tick        time.Duration
	nowMs       func() int64

	mu          sync.Mutex
	hashRate    float64
	accumulated float64
	mining      bool
	cancel      context.CancelFunc
	completed   chan struct{}
}

// Offline reconciliation: elapsed wall time since the checkpoint accrues at
// the checkpointed hashrate, then re-caps.
func resumeAmount(cp Checkpoint, nowMs int64) float64 {
	elapsed := float64(nowMs-cp.Timestamp) / 1000
	if elapsed < 0 {
		elapsed = 0
	}
	amount := cp.Amount + RatePerHashUnit*cp.SavedHashRate*elapsed
	if amount > MaxMinableAmount {
		amount = MaxMinableAmount
	}
	return amount
}

// Start begins (or resumes) accrual. A no-op when already mining or already
// at the cap.
func (s *Session) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mining || s.accumulated >= MaxMinableAmount {
		return
	}
	s.mining = true
	s.saveCheckpointLocked()

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	go s.run(runCtx)
}

// Stop halts accrual and checkpoints. The tick goroutine is torn down before
// Stop returns, so a dangling timer cannot fire across a claim or page
// change.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	s.saveCheckpointLocked()
}

func (s *Session) stopLocked() {
	s.mining = false
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// Completed is closed when the session reaches the cap. It does not
// auto-claim.
func (s *Session) Completed() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completed
}

// State snapshots the session.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		Mining:      s.mining,
		Accumulated: s.accumulated,
		HashRate:    s.hashRate,
		Progress:    s.accumulated / MaxMinableAmount * 100,
		Claimable:   s.accumulated >= MaxMinableAmount,
	}
}

// SetHashRate applies an upgrade mid-session and re-checkpoints.
func (s *Session) SetHashRate(rate float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hashRate = rate
	s.saveCheckpointLocked()
}

// Claim credits the accumulated amount to the durable balance. The durable
// write happens first; local state resets and the checkpoint clears only
// after the write succeeded, so a failed write leaves the accumulator
// untouched for a retry.
func (s *Session) Claim(ctx context.Context) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.accumulated < MaxMinableAmount {
		return 0, domain.ErrMiningIncomplete
	}
	s.stopLocked()

	user, err := s.users.GetUser(ctx, s.userID)
	if err != nil {
		return 0, err
	}
	if user == nil {
		return 0, domain.ErrUserNotFound
	}

	amount := s.accumulated
	if err := s.users.SetBalance(ctx, s.userID, user.Balance+amount); err != nil {
		return 0, err
	}

	s.accumulated = 0
	s.completed = make(chan struct{})
	_ = s.checkpoints.Clear(s.userID)
	return amount, nil
}

func (s *Session) run(ctx context.Context) {
	t := time.NewTicker(s.tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if done := s.tickOnce(); done {
				return
			}
		}
	}
}

// tickOnce applies one accrual step; returns true once the loop should end.
func (s *Session) tickOnce() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.mining {
		return true
	}
	s.accumulated += RatePerHashUnit * s.hashRate
	if s.accumulated >= MaxMinableAmount {
		s.accumulated = MaxMinableAmount
		s.stopLocked()
		select {
		case <-s.completed:
		default:
			close(s.completed)
		}
	}
	s.saveCheckpointLocked()
	return !s.mining
}

func (s *Session) saveCheckpointLocked() {
	_ = s.checkpoints.Save(s.userID, Checkpoint{
		Timestamp:     s.nowMs(),
		Amount:        s.accumulated,
		SavedHashRate: s.hashRate,
	})
}
