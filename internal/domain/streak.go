package domain

// StreakRecord tracks the daily-login counter. Dates are day-granular,
// host-local, stored as "2006-01-02".
type StreakRecord struct {
	CurrentStreak int    `json:"currentStreak"`
	HighestStreak int    `json:"highestStreak"`
	LastLoginDate string `json:"lastLoginDate"`
	StartDate     string `json:"startDate"`
}

// StreakMilestone pairs a streak length with its one-time reward.
type StreakMilestone struct {
	Days   int
	Reward float64
}

// StreakMilestones is the fixed milestone table, ascending by days.
var StreakMilestones = []StreakMilestone{
	{Days: 7, Reward: 50},
	{Days: 30, Reward: 250},
	{Days: 90, Reward: 1000},
}
