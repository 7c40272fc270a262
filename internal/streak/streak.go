// Package streak maintains the daily-login counter and its milestone
// credits. A user document is mutated at most once per calendar day.
package streak

import (
	"context"
	"errors"
	"time"

	"github.com/dht-dimaond/diamond/internal/domain"
	"github.com/dht-dimaond/diamond/internal/repository"
	"github.com/dht-dimaond/diamond/internal/store"
)

const dayFormat = "2006-01-02"

// Tracker compares host-local days against the stored streak record.
type Tracker struct {
	store store.Store
	now   func() time.Time
}

func New(s store.Store) *Tracker {
	return &Tracker{store: s, now: time.Now}
}

// NewAt builds a tracker with an injected clock. Tests drive day transitions
// through it.
func NewAt(s store.Store, now func() time.Time) *Tracker {
	return &Tracker{store: s, now: now}
}

// Touch advances the streak for today. Same-day touches are no-ops; a gap of
// exactly one day increments, anything longer resets the current counter
// while leaving the highest untouched.
func (t *Tracker) Touch(ctx context.Context, userID int64) (domain.StreakRecord, error) {
	var record domain.StreakRecord

	err := t.store.RunTransaction(ctx, func(tx store.Tx) error {
		user, err := getUser(tx, userID)
		if err != nil {
			return err
		}

		today := t.now().Format(dayFormat)
		s := user.Streak

		if s.LastLoginDate == today {
			record = s
			return nil
		}

		switch daysBetween(s.LastLoginDate, today) {
		case 1:
			s.CurrentStreak++
			if s.CurrentStreak > s.HighestStreak {
				s.HighestStreak = s.CurrentStreak
			}
		default:
			// first-ever touch or a broken streak
			s.CurrentStreak = 1
			s.StartDate = today
			if s.HighestStreak < 1 {
				s.HighestStreak = 1
			}
		}
		s.LastLoginDate = today

		tx.Update(repository.UsersCollection, repository.UserKey(userID), store.Document{
			"streak.currentStreak": s.CurrentStreak,
			"streak.highestStreak": s.HighestStreak,
			"streak.lastLoginDate": s.LastLoginDate,
			"streak.startDate":     s.StartDate,
		})
		record = s
		return nil
	})
	return record, err
}

// CheckMilestones credits the first milestone at or below the current streak
// that has not been claimed yet. The claimed set is permanent: a milestone is
// never re-credited even if the streak regresses and climbs back past it.
// Returns nil when no new milestone is reached.
func (t *Tracker) CheckMilestones(ctx context.Context, userID int64) (*domain.StreakMilestone, error) {
	var credited *domain.StreakMilestone

	err := t.store.RunTransaction(ctx, func(tx store.Tx) error {
		credited = nil
		user, err := getUser(tx, userID)
		if err != nil {
			return err
		}

		claimed := make(map[int]bool, len(user.ClaimedMilestones))
		for _, d := range user.ClaimedMilestones {
			claimed[d] = true
		}

		for _, m := range domain.StreakMilestones {
			if user.Streak.CurrentStreak >= m.Days && !claimed[m.Days] {
				tx.Update(repository.UsersCollection, repository.UserKey(userID), store.Document{
					"balance":           store.Increment(m.Reward),
					"claimedMilestones": store.ArrayUnion(m.Days),
				})
				milestone := m
				credited = &milestone
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return credited, nil
}

// daysBetween returns the whole calendar days from to to, or -1 when from is
// unset or malformed.
func daysBetween(from, to string) int {
	if from == "" {
		return -1
	}
	a, err := time.Parse(dayFormat, from)
	if err != nil {
		return -1
	}
	b, err := time.Parse(dayFormat, to)
	if err != nil {
		return -1
	}
	return int(b.Sub(a).Hours() / 24)
}

func getUser(tx store.Tx, userID int64) (*domain.User, error) {
	doc, err := tx.Get(repository.UsersCollection, repository.UserKey(userID))
	if errors.Is(err, store.ErrNotFound) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return repository.DecodeUser(doc)
}
