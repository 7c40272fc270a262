package mining

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/dht-dimaond/diamond/internal/domain"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// fakeUsers is an in-memory BalanceStore with a switchable write failure.
type fakeUsers struct {
	users    map[int64]*domain.User
	failNext bool
}

func newFakeUsers(ids ...int64) *fakeUsers {
	f := &fakeUsers{users: make(map[int64]*domain.User)}
	for _, id := range ids {
		f.users[id] = domain.NewUser(id, domain.Profile{})
	}
	return f
}

func (f *fakeUsers) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) SetBalance(ctx context.Context, id int64, balance float64) error {
	if f.failNext {
		f.failNext = false
		return errors.New("write failed")
	}
	u, ok := f.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.Balance = balance
	return nil
}

// memCheckpoints keeps checkpoints in a map.
type memCheckpoints struct {
	cps map[int64]Checkpoint
}

func newMemCheckpoints() *memCheckpoints {
	return &memCheckpoints{cps: make(map[int64]Checkpoint)}
}

func (m *memCheckpoints) Load(userID int64) (Checkpoint, bool, error) {
	cp, ok := m.cps[userID]
	return cp, ok, nil
}

func (m *memCheckpoints) Save(userID int64, cp Checkpoint) error {
	m.cps[userID] = cp
	return nil
}

func (m *memCheckpoints) Clear(userID int64) error {
	delete(m.cps, userID)
	return nil
}

func newTestSession(t *testing.T, users BalanceStore, cps CheckpointStore) *Session {
	t.Helper()
	mgr := NewManagerAt(users, cps, TickInterval, func() int64 { return 0 })
	s, err := mgr.Session(context.Background(), 1)
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	return s
}

func TestTickAccrual(t *testing.T) {
	s := newTestSession(t, newFakeUsers(1), newMemCheckpoints())

	s.mu.Lock()
	s.mining = true
	s.mu.Unlock()

	s.tickOnce()
	s.tickOnce()

	want := 2 * RatePerHashUnit * domain.DefaultHashrate
	got := s.State().Accumulated
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("expected %v after two ticks, got %v", want, got)
	}
}

func TestTickSaturatesAtCap(t *testing.T) {
	s := newTestSession(t, newFakeUsers(1), newMemCheckpoints())

	s.mu.Lock()
	s.mining = true
	s.accumulated = MaxMinableAmount - 0.001
	s.mu.Unlock()

	if done := s.tickOnce(); !done {
		t.Fatalf("expected loop to end at the cap")
	}

	state := s.State()
	if state.Accumulated != MaxMinableAmount {
		t.Fatalf("expected saturation at %v, got %v", MaxMinableAmount, state.Accumulated)
	}
	if state.Mining {
		t.Fatalf("mining should stop at the cap")
	}
	if !state.Claimable {
		t.Fatalf("capped session should be claimable")
	}

	select {
	case <-s.Completed():
	default:
		t.Fatalf("completed channel not closed")
	}
}

func TestClaimBelowCap(t *testing.T) {
	users := newFakeUsers(1)
	s := newTestSession(t, users, newMemCheckpoints())

	s.mu.Lock()
	s.accumulated = 50
	s.mu.Unlock()

	_, err := s.Claim(context.Background())
	if !errors.Is(err, domain.ErrMiningIncomplete) {
		t.Fatalf("expected ErrMiningIncomplete, got %v", err)
	}
	if got := s.State().Accumulated; got != 50 {
		t.Fatalf("failed claim touched the accumulator: %v", got)
	}
	if users.users[1].Balance != 0 {
		t.Fatalf("failed claim credited balance: %v", users.users[1].Balance)
	}
}

func TestClaimCreditsAndResets(t *testing.T) {
	users := newFakeUsers(1)
	cps := newMemCheckpoints()
	s := newTestSession(t, users, cps)

	s.mu.Lock()
	s.accumulated = MaxMinableAmount
	s.mu.Unlock()

	amount, err := s.Claim(context.Background())
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if amount != MaxMinableAmount {
		t.Fatalf("expected claim of %v, got %v", MaxMinableAmount, amount)
	}
	if users.users[1].Balance != MaxMinableAmount {
		t.Fatalf("balance not credited: %v", users.users[1].Balance)
	}
	if got := s.State().Accumulated; got != 0 {
		t.Fatalf("accumulator not reset: %v", got)
	}
	if _, ok, _ := cps.Load(1); ok {
		t.Fatalf("checkpoint not cleared after claim")
	}
}

func TestClaimDurableWriteFailureKeepsState(t *testing.T) {
	users := newFakeUsers(1)
	s := newTestSession(t, users, newMemCheckpoints())

	s.mu.Lock()
	s.accumulated = MaxMinableAmount
	s.mu.Unlock()

	users.failNext = true
	if _, err := s.Claim(context.Background()); err == nil {
		t.Fatalf("expected write failure")
	}

	// the accumulator survives for a retry
	if got := s.State().Accumulated; got != MaxMinableAmount {
		t.Fatalf("failed durable write lost the accumulator: %v", got)
	}

	amount, err := s.Claim(context.Background())
	if err != nil {
		t.Fatalf("retry claim: %v", err)
	}
	if amount != MaxMinableAmount || users.users[1].Balance != MaxMinableAmount {
		t.Fatalf("retry did not credit: %v %v", amount, users.users[1].Balance)
	}
}

func TestResumeFromCheckpoint(t *testing.T) {
	users := newFakeUsers(1)
	cps := newMemCheckpoints()
	_ = cps.Save(1, Checkpoint{Timestamp: 0, Amount: 10, SavedHashRate: 20})

	// one hour offline at the checkpointed rate
	now := int64(3600 * 1000)
	mgr := NewManagerAt(users, cps, TickInterval, func() int64 { return now })
	s, err := mgr.Session(context.Background(), 1)
	if err != nil {
		t.Fatalf("session: %v", err)
	}

	want := 10 + RatePerHashUnit*20*3600
	if want > MaxMinableAmount {
		want = MaxMinableAmount
	}
	if got := s.State().Accumulated; got != want {
		t.Fatalf("expected offline resume to %v, got %v", want, got)
	}
}

func TestResumeClockSkew(t *testing.T) {
	users := newFakeUsers(1)
	cps := newMemCheckpoints()
	// checkpoint from the future (host clock moved backwards)
	_ = cps.Save(1, Checkpoint{Timestamp: 10_000, Amount: 5, SavedHashRate: 20})

	mgr := NewManagerAt(users, cps, TickInterval, func() int64 { return 0 })
	s, err := mgr.Session(context.Background(), 1)
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	if got := s.State().Accumulated; got != 5 {
		t.Fatalf("negative elapsed time accrued: %v", got)
	}
}

func TestSessionUnknownUser(t *testing.T) {
	mgr := NewManagerAt(newFakeUsers(), newMemCheckpoints(), TickInterval, func() int64 { return 0 })
	_, err := mgr.Session(context.Background(), 404)
	if !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestManagerReturnsSameSession(t *testing.T) {
	mgr := NewManagerAt(newFakeUsers(1), newMemCheckpoints(), TickInterval, func() int64 { return 0 })
	ctx := context.Background()

	a, err := mgr.Session(ctx, 1)
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	b, err := mgr.Session(ctx, 1)
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	if a != b {
		t.Fatalf("manager handed out two sessions for one user")
	}
}

func TestResumeAmountNeverExceedsCap(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)
	properties.Property("resume amount stays within [0, cap]", prop.ForAll(
		func(amount, rate float64, elapsedMs int64) bool {
			cp := Checkpoint{Timestamp: 0, Amount: amount, SavedHashRate: rate}
			got := resumeAmount(cp, elapsedMs)
			return got >= 0 && got <= MaxMinableAmount
		},
		gen.Float64Range(0, MaxMinableAmount),
		gen.Float64Range(0, 1000),
		gen.Int64Range(-1_000_000, 365*24*3600*1000),
	))
	properties.TestingRun(t)
}
