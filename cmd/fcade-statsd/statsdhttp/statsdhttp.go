package statsdhttp

type ReplayPlayer struct {
	Name    string `json:"name"`
	Country string `json:"country"`
	Rank    string `json:"rank"`
	Score   int64  `json:"score"`
}

type ReplayInfo struct {
	QuarkID     string         `json:"quarkid"`
	GameID      string         `json:"gameid"`
	ChannelName string         `json:"channelname"`
	Date        int64          `json:"date"`
	Duration    int64          `json:"duration"`
	Emulator    string         `json:"emulator"`
	Ranked      string         `json:"ranked"`
	Players     []ReplayPlayer `json:"players"`
	ReplayURL   string         `json:"replay_url"`
	VideoURL    string         `json:"video_url,omitempty"`
}

type ReplaysResponse struct {
	Replays []ReplayInfo `json:"replays"`
}

type PlayerGameStats struct {
	GameID          string `json:"gameid"`
	Replays         uint32 `json:"replays"`
	RankedReplays   uint32 `json:"ranked_replays"`
	CancelledSets   uint32 `json:"cancelled_sets"`
	Matches         uint32 `json:"matches"`
	DurationSeconds int64  `json:"duration_seconds"`
	LastSeen        int64  `json:"last_seen"`
	BestRankSeen    string `json:"best_rank_seen"`
	BestRankedScore int64  `json:"best_ranked_score"`
}

type PlayerResponse struct {
	Username   string            `json:"username"`
	Missing    bool              `json:"missing"`
	Ranked     bool              `json:"ranked"`
	CreatedAt  int64             `json:"created_at,omitempty"`
	LastOnline int64             `json:"last_online,omitempty"`
	Stats      []PlayerGameStats `json:"stats"`
}
