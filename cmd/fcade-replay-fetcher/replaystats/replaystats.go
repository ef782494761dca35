// Package replaystats turns stored replays into per-player per-game
// aggregates. Pure transformation, no I/O.
package replaystats

import (
	"fightcade-stats/cmd/fcade-replay-fetcher/replaystore"
	"time"
)

func AggregatePlayerGameStats(replays []replaystore.StoredReplay) map[replaystore.PlayerGameKey]replaystore.PlayerGameStats {
	stats := make(map[replaystore.PlayerGameKey]replaystore.PlayerGameStats, len(replays)*2)

	for _, stored := range replays {
		r := stored.Replay

		for i := range r.Players {
			p := r.Players[i]

			key := replaystore.PlayerGameKey{
				Username: p.Name,
				GameID:   stored.GameID,
			}

			s, ok := stats[key]
			if !ok {
				s = replaystore.PlayerGameStats{
					Username: p.Name,
					GameID:   stored.GameID,
				}
			}

			s.Replays++
			s.Duration += time.Second * time.Duration(r.Duration)

			if r.NumMatches != nil {
				s.Matches += uint32(*r.NumMatches)
			}

			if r.Ranked != nil {
				if r.Ranked.Cancelled {
					s.CancelledSets++
				} else {
					s.RankedReplays++
				}
			}

			if stored.Date.After(s.LastSeen) {
				s.LastSeen = stored.Date
			}

			if p.Rank != nil && *p.Rank > s.BestRankSeen {
				s.BestRankSeen = *p.Rank
			}

			if p.Score != nil && *p.Score > s.BestRankedScore {
				s.BestRankedScore = *p.Score
			}

			stats[key] = s
		}
	}

	return stats
}
