package leaderboard

import ws "github.com/gokatarajesh/live-quiz/pkg/http/ws"

// ToWSEntries converts ranked standings to wire entries with 1-based ranks.
func ToWSEntries(ranked []Standing) []ws.LeaderboardEntry {
	result := make([]ws.LeaderboardEntry, len(ranked))
	for i, s := range ranked {
		result[i] = ws.LeaderboardEntry{
			Rank:  i + 1,
			Name:  s.Name,
			Score: s.Score,
			Team:  s.Team,
		}
	}
	return result
}

// ToWSTeams converts team standings to wire entries.
func ToWSTeams(teams []TeamStanding) []ws.TeamEntry {
	result := make([]ws.TeamEntry, len(teams))
	for i, t := range teams {
		result[i] = ws.TeamEntry{
			Rank:        i + 1,
			Team:        t.Team,
			Score:       t.Score,
			PlayerCount: t.PlayerCount,
			TopPlayers:  ToWSEntries(t.TopPlayers),
		}
	}
	return result
}
