// Package consistency holds offline reconciliation jobs run on a schedule.
package consistency

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dht-dimaond/diamond/internal/logger"
	"github.com/dht-dimaond/diamond/internal/repository"
	"github.com/dht-dimaond/diamond/internal/store"
)

// Checker verifies that the cached referralsCount never drifts from the
// authoritative referrals array. The two are written in the same transaction
// so drift indicates a bug or out-of-band edit; mismatches are logged and
// repaired to the derived value.
type Checker struct {
	store store.Store
	log   *slog.Logger
}

func NewChecker(s store.Store) *Checker {
	return &Checker{store: s, log: logger.With("component", "consistency")}
}

// CheckReferralCounts scans every user and repairs counter drift. Returns
// the number of repaired documents.
func (c *Checker) CheckReferralCounts(ctx context.Context) (int, error) {
	docs, err := c.store.All(ctx, repository.UsersCollection)
	if err != nil {
		return 0, err
	}

	repaired := 0
	for _, doc := range docs {
		user, err := repository.DecodeUser(doc)
		if err != nil {
			c.log.Warn("skipping undecodable user document", "error", err)
			continue
		}
		if user.ReferralsCount == len(user.Referrals) {
			continue
		}

		fixed, err := c.repairUser(ctx, user.TelegramID)
		if err != nil {
			return repaired, err
		}
		if fixed {
			repaired++
		}
	}

	if repaired > 0 {
		c.log.Info("referral counters repaired", "count", repaired)
	}
	return repaired, nil
}

// repairUser re-reads the user transactionally and derives the counter from
// that fresh read, so an attribution committed after the scan is never
// clobbered with a stale value. Returns whether a repair was written.
func (c *Checker) repairUser(ctx context.Context, userID int64) (bool, error) {
	repaired := false
	err := c.store.RunTransaction(ctx, func(tx store.Tx) error {
		repaired = false
		doc, err := tx.Get(repository.UsersCollection, repository.UserKey(userID))
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		user, err := repository.DecodeUser(doc)
		if err != nil {
			return err
		}
		if user.ReferralsCount == len(user.Referrals) {
			return nil
		}

		c.log.Warn("referral counter drift",
			"user", user.TelegramID,
			"cached", user.ReferralsCount,
			"derived", len(user.Referrals),
		)
		tx.Update(repository.UsersCollection, repository.UserKey(userID), store.Document{
			"referralsCount": len(user.Referrals),
		})
		repaired = true
		return nil
	})
	return repaired, err
}
