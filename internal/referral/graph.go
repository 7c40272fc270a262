// Package referral maintains the one-referrer-per-user, many-referrals-per-
// referrer relationship. The edge lives on the two User documents (referrer
// field on one side, referrals array on the other), so every mutation runs as
// a single multi-document transaction: the two sides can never disagree.
package referral

import (
	"context"
	"errors"

	"github.com/dht-dimaond/diamond/internal/domain"
	"github.com/dht-dimaond/diamond/internal/repository"
	"github.com/dht-dimaond/diamond/internal/store"
)

// Config carries the attribution policy knobs.
type Config struct {
	// AutoCreateReferrer creates a defaulted record for an unknown
	// referrer instead of failing. Off by default: attributing to an
	// unverified external id is the weaker invariant.
	AutoCreateReferrer bool
}

// Manager enforces the referral-graph invariants.
type Manager struct {
	store store.Store
	cfg   Config
}

func NewManager(s store.Store, cfg Config) *Manager {
	return &Manager{store: s, cfg: cfg}
}

// Attribute records that userID was referred by referrerID. The referral
// state machine is one-way: once a referrer is set it never changes, and a
// repeated call (same invite link opened again) is a silent no-op. The
// referred user's record is created with defaults here when the referral
// touch is their first contact.
func (m *Manager) Attribute(ctx context.Context, userID, referrerID int64) error {
	if userID == referrerID {
		return domain.ErrSelfReferral
	}

	return m.store.RunTransaction(ctx, func(tx store.Tx) error {
		userKey := repository.UserKey(userID)
		referrerKey := repository.UserKey(referrerID)

		var user *domain.User
		userDoc, err := tx.Get(repository.UsersCollection, userKey)
		switch {
		case errors.Is(err, store.ErrNotFound):
			// first referral touch creates the user
		case err != nil:
			return err
		default:
			if user, err = repository.DecodeUser(userDoc); err != nil {
				return err
			}
		}

		if user != nil && user.Referrer != nil {
			return nil
		}

		_, err = tx.Get(repository.UsersCollection, referrerKey)
		if errors.Is(err, store.ErrNotFound) {
			if !m.cfg.AutoCreateReferrer {
				return domain.ErrReferrerNotFound
			}
			ghost, err := store.Encode(domain.NewUser(referrerID, domain.Profile{}))
			if err != nil {
				return err
			}
			tx.Set(repository.UsersCollection, referrerKey, ghost, false)
		} else if err != nil {
			return err
		}

		if user == nil {
			fresh := domain.NewUser(userID, domain.Profile{})
			fresh.Referrer = &referrerID
			doc, err := store.Encode(fresh)
			if err != nil {
				return err
			}
			tx.Set(repository.UsersCollection, userKey, doc, false)
		} else {
			tx.Update(repository.UsersCollection, userKey, store.Document{
				"referrer": referrerID,
			})
		}

		tx.Update(repository.UsersCollection, referrerKey, store.Document{
			"referrals":      store.ArrayUnion(userID),
			"referralsCount": store.Increment(1),
		})
		return nil
	})
}

// GetReferrer resolves a user's referrer to the full profile, or nil when
// unreferred.
func (m *Manager) GetReferrer(ctx context.Context, userID int64) (*domain.User, error) {
	user, err := m.getUser(ctx, userID)
	if err != nil || user == nil || user.Referrer == nil {
		return nil, err
	}
	return m.getUser(ctx, *user.Referrer)
}

// GetReferrals returns the ids of everyone the user referred.
func (m *Manager) GetReferrals(ctx context.Context, userID int64) ([]int64, error) {
	user, err := m.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.ErrUserNotFound
	}
	return user.Referrals, nil
}

// GetReferralsWithDetails resolves the referrals array to full records via
// batched multi-gets, chunked to the store's in-clause limit so arbitrarily
// long referral lists stay correct.
func (m *Manager) GetReferralsWithDetails(ctx context.Context, userID int64) ([]*domain.User, error) {
	ids, err := m.GetReferrals(ctx, userID)
	if err != nil {
		return nil, err
	}

	keys := make([]any, len(ids))
	for i, id := range ids {
		keys[i] = repository.UserKey(id)
	}

	var out []*domain.User
	for _, batch := range store.Chunk(keys) {
		docs, err := m.store.QueryIn(ctx, repository.UsersCollection, store.KeyField, batch)
		if err != nil {
			return nil, err
		}
		for _, doc := range docs {
			u, err := repository.DecodeUser(doc)
			if err != nil {
				return nil, err
			}
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *Manager) getUser(ctx context.Context, id int64) (*domain.User, error) {
	doc, err := m.store.Get(ctx, repository.UsersCollection, repository.UserKey(id))
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return repository.DecodeUser(doc)
}
