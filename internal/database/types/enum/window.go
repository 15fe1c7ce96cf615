package enum

// LeaderboardWindow is the time range a leaderboard aggregates over.
//
//go:generate go tool enumer -type=LeaderboardWindow -trimprefix=LeaderboardWindow -transform=lower
type LeaderboardWindow int

const (
	LeaderboardWindowWeek LeaderboardWindow = iota
	LeaderboardWindowMonth
	LeaderboardWindowYear
	LeaderboardWindowAll
)
