package replaystore

import (
	"fightcade-stats/fcadehttp"
	"time"
)

type GameList struct {
	Updated time.Time
	Games   []fcadehttp.Game
}

// StoredReplay is one replay as persisted, keyed by its challenge id.
type StoredReplay struct {
	QuarkID string
	GameID  string
	Date    time.Time
	Replay  fcadehttp.Replay
}

// StoredUser is a fetched user profile. Missing marks accounts the service
// reported as unknown, so they are not re-fetched every iteration.
type StoredUser struct {
	Username string
	Updated  time.Time
	Missing  bool
	User     *fcadehttp.User
}

type VideoLink struct {
	QuarkID string
	URL     string
	Checked time.Time
}

type PlayerGameKey struct {
	Username string
	GameID   string
}

// PlayerGameStats aggregates one player's stored replays for one game.
type PlayerGameStats struct {
	Username        string         `json:"username"`
	GameID          string         `json:"gameid"`
	Replays         uint32         `json:"replays"`
	RankedReplays   uint32         `json:"ranked_replays"`
	CancelledSets   uint32         `json:"cancelled_sets"`
	Matches         uint32         `json:"matches"`
	Duration        time.Duration  `json:"duration"`
	LastSeen        time.Time      `json:"last_seen"`
	BestRankSeen    fcadehttp.Rank `json:"best_rank_seen"`
	BestRankedScore int64          `json:"best_ranked_score"`
}
