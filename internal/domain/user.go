package domain

import (
	"strings"
	"time"
)

// DefaultHashrate is the mining speed every new user starts with.
const DefaultHashrate = 20

// DiamondMarker is the glyph users put into their Telegram last name to
// complete the diamond-name mission. Completion is derived from the profile,
// not user-initiated.
const DiamondMarker = "💎"

// MissionKind identifies one of the fixed one-off missions.
type MissionKind string

const (
	MissionTwitter         MissionKind = "twitter"
	MissionTelegram        MissionKind = "telegram"
	MissionDiamondLastName MissionKind = "diamondlastname"
	MissionYoutube         MissionKind = "youtube"
	MissionTiktok          MissionKind = "tiktok"
)

// MissionKinds lists every mission in display order.
var MissionKinds = []MissionKind{
	MissionTwitter,
	MissionTelegram,
	MissionDiamondLastName,
	MissionYoutube,
	MissionTiktok,
}

// Valid reports whether k names a known mission.
func (k MissionKind) Valid() bool {
	switch k {
	case MissionTwitter, MissionTelegram, MissionDiamondLastName, MissionYoutube, MissionTiktok:
		return true
	}
	return false
}

// RewardKind identifies a claimable reward: every mission plus the two
// referral-count rewards.
type RewardKind string

const (
	RewardReferral   RewardKind = "referral"
	RewardGrandPrize RewardKind = "grandPrize"
)

// RewardForMission maps a mission to its reward kind of the same name.
func RewardForMission(k MissionKind) RewardKind { return RewardKind(k) }

// MissionOf returns the mission a reward is gated on, or false for the
// referral-count rewards.
func (k RewardKind) MissionOf() (MissionKind, bool) {
	m := MissionKind(k)
	if m.Valid() {
		return m, true
	}
	return "", false
}

// MissionState is the per-mission flag pair. Claimed implies Complete.
type MissionState struct {
	Complete bool `json:"complete"`
	Claimed  bool `json:"claimed"`
}

// User is the single per-participant document, keyed by the Telegram ID
// rendered as a string.
type User struct {
	TelegramID int64  `json:"telegramId"`
	Username   string `json:"username"`
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	IsPremium  bool   `json:"isPremium"`

	Balance  float64 `json:"balance"`
	Hashrate float64 `json:"hashrate"`

	Missions map[MissionKind]MissionState `json:"missions"`

	Referrer              *int64  `json:"referrer"`
	Referrals             []int64 `json:"referrals"`
	ReferralsCount        int     `json:"referralsCount"`
	ReferralRewardClaimed bool    `json:"referralRewardClaimed"`

	IsAmbassador            bool `json:"isAmbassador"`
	GrandPrizeRewardClaimed bool `json:"grandPrizeRewardClaimed"`

	Streak            StreakRecord `json:"streak"`
	ClaimedMilestones []int        `json:"claimedMilestones"`

	CreatedAt time.Time `json:"createdAt"`
}

// Profile is the denormalized snapshot taken from the Telegram init data.
type Profile struct {
	Username  string
	FirstName string
	LastName  string
	IsPremium bool
}

// NewUser builds a user document with field-level defaults. All flags start
// false and the hashrate is defaulted; this is the only place the schema's
// zero state is defined.
func NewUser(telegramID int64, p Profile) *User {
	missions := make(map[MissionKind]MissionState, len(MissionKinds))
	for _, k := range MissionKinds {
		missions[k] = MissionState{}
	}
	return &User{
		TelegramID: telegramID,
		Username:   p.Username,
		FirstName:  p.FirstName,
		LastName:   p.LastName,
		IsPremium:  p.IsPremium,
		Hashrate:   DefaultHashrate,
		Missions:   missions,
		Referrals:  []int64{},
		CreatedAt:  time.Now().UTC(),
	}
}

// Mission returns the flag pair for a mission, zero value if never touched.
func (u *User) Mission(k MissionKind) MissionState {
	if u.Missions == nil {
		return MissionState{}
	}
	return u.Missions[k]
}

// HasDiamondName reports whether the last name carries the marker glyph.
func HasDiamondName(lastName string) bool {
	return strings.Contains(lastName, DiamondMarker)
}
