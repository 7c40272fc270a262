package consistency

import (
	"context"
	"testing"

	"github.com/dht-dimaond/diamond/internal/domain"
	"github.com/dht-dimaond/diamond/internal/referral"
	"github.com/dht-dimaond/diamond/internal/repository"
	"github.com/dht-dimaond/diamond/internal/store"
	"github.com/dht-dimaond/diamond/internal/store/memstore"
)

// raceStore lets a write land between the checker's collection scan and its
// repair, like an attribution committing mid-run.
type raceStore struct {
	*memstore.Store
	afterAll func()
}

func (r *raceStore) All(ctx context.Context, collection string) ([]store.Document, error) {
	docs, err := r.Store.All(ctx, collection)
	if err == nil && r.afterAll != nil {
		fn := r.afterAll
		r.afterAll = nil
		fn()
	}
	return docs, err
}

func TestCheckReferralCountsConcurrentAttribution(t *testing.T) {
	mem := memstore.New()
	users := repository.NewUserRepository(mem)
	graph := referral.NewManager(mem, referral.Config{})
	ctx := context.Background()

	if err := users.EnsureUser(ctx, 1, domain.Profile{}); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if err := graph.Attribute(ctx, 10, 1); err != nil {
		t.Fatalf("attribute: %v", err)
	}
	// counter lags the array by one so the checker targets user 1
	err := mem.Update(ctx, repository.UsersCollection, repository.UserKey(1), store.Document{
		"referralsCount": 0,
	})
	if err != nil {
		t.Fatalf("seed drift: %v", err)
	}

	rs := &raceStore{Store: mem, afterAll: func() {
		if err := graph.Attribute(ctx, 11, 1); err != nil {
			t.Errorf("mid-run attribute: %v", err)
		}
	}}

	if _, err := NewChecker(rs).CheckReferralCounts(ctx); err != nil {
		t.Fatalf("check: %v", err)
	}

	u, err := users.GetUser(ctx, 1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(u.Referrals) != 2 {
		t.Fatalf("expected 2 referrals, got %d", len(u.Referrals))
	}
	if u.ReferralsCount != 2 {
		t.Fatalf("repair clobbered the mid-run attribution: count %d, referrals %d",
			u.ReferralsCount, len(u.Referrals))
	}
}

func TestCheckReferralCountsRepairsDrift(t *testing.T) {
	s := memstore.New()
	users := repository.NewUserRepository(s)
	ctx := context.Background()

	if err := users.EnsureUser(ctx, 1, domain.Profile{}); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if err := users.EnsureUser(ctx, 2, domain.Profile{}); err != nil {
		t.Fatalf("ensure: %v", err)
	}

	// an out-of-band edit desynchronizes the cached counter
	err := s.Update(ctx, repository.UsersCollection, repository.UserKey(1), store.Document{
		"referrals":      store.ArrayUnion(int64(10), int64(11)),
		"referralsCount": 5,
	})
	if err != nil {
		t.Fatalf("seed drift: %v", err)
	}

	repaired, err := NewChecker(s).CheckReferralCounts(ctx)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if repaired != 1 {
		t.Fatalf("expected 1 repair, got %d", repaired)
	}

	u, _ := users.GetUser(ctx, 1)
	if u.ReferralsCount != 2 {
		t.Fatalf("counter not repaired: %d", u.ReferralsCount)
	}

	// a second run finds nothing
	repaired, err = NewChecker(s).CheckReferralCounts(ctx)
	if err != nil || repaired != 0 {
		t.Fatalf("expected clean second run, got %d %v", repaired, err)
	}
}
