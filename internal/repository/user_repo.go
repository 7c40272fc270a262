package repository

import (
	"context"
	"errors"
	"strconv"

	"github.com/dht-dimaond/diamond/internal/domain"
	"github.com/dht-dimaond/diamond/internal/store"
)

// UsersCollection is the document collection holding one User per identity.
const UsersCollection = "users"

// UserKey renders the stable numeric identity as the document key.
func UserKey(id int64) string { return strconv.FormatInt(id, 10) }

// DecodeUser converts a stored document back into a User.
func DecodeUser(doc store.Document) (*domain.User, error) {
	var u domain.User
	if err := store.Decode(doc, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// UserRepository owns CRUD over the User document and its field-level
// defaults on first sight of an identity.
type UserRepository struct {
	store store.Store
}

func NewUserRepository(s store.Store) *UserRepository {
	return &UserRepository{store: s}
}

// EnsureUser creates the user document if this identity has never been seen,
// with the full defaulted schema. For an existing user only the denormalized
// profile snapshot is refreshed; balance, mission and referral state are
// never touched.
func (r *UserRepository) EnsureUser(ctx context.Context, id int64, p domain.Profile) error {
	return r.store.RunTransaction(ctx, func(tx store.Tx) error {
		_, err := tx.Get(UsersCollection, UserKey(id))
		if errors.Is(err, store.ErrNotFound) {
			doc, err := store.Encode(domain.NewUser(id, p))
			if err != nil {
				return err
			}
			tx.Set(UsersCollection, UserKey(id), doc, false)
			return nil
		}
		if err != nil {
			return err
		}
		tx.Update(UsersCollection, UserKey(id), store.Document{
			"username":  p.Username,
			"firstName": p.FirstName,
			"lastName":  p.LastName,
			"isPremium": p.IsPremium,
		})
		return nil
	})
}

// GetUser is a point read. An absent identity returns (nil, nil), not an
// error.
func (r *UserRepository) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	doc, err := r.store.Get(ctx, UsersCollection, UserKey(id))
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return DecodeUser(doc)
}

// SetBalance overwrites the balance unconditionally. Non-negativity is the
// caller's responsibility.
func (r *UserRepository) SetBalance(ctx context.Context, id int64, newBalance float64) error {
	err := r.store.Update(ctx, UsersCollection, UserKey(id), store.Document{
		"balance": newBalance,
	})
	if errors.Is(err, store.ErrNotFound) {
		return domain.ErrUserNotFound
	}
	return err
}

// AddHashrate credits a purchased mining-rate upgrade.
func (r *UserRepository) AddHashrate(ctx context.Context, id int64, delta float64) error {
	err := r.store.Update(ctx, UsersCollection, UserKey(id), store.Document{
		"hashrate": store.Increment(delta),
	})
	if errors.Is(err, store.ErrNotFound) {
		return domain.ErrUserNotFound
	}
	return err
}
