package domain

import "errors"

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrReferrerNotFound = errors.New("referrer not found")
	ErrSelfReferral     = errors.New("self-referral not allowed")
	ErrAlreadyClaimed   = errors.New("reward already claimed")

	ErrMissionIncomplete = errors.New("mission not complete")
	ErrMiningIncomplete  = errors.New("mining not complete")

	ErrThresholdNotReached = errors.New("referral threshold not reached")
)
