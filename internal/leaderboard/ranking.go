package leaderboard

import (
	"sort"
	"strings"
)

// Standing is one participant's position input for ranking.
// Reached is a session-wide sequence stamped whenever the participant's
// score last changed; lower means they got there first.
type Standing struct {
	Name    string
	Team    string
	Score   int
	Reached uint64
}

// TeamStanding is the aggregated result for one team.
type TeamStanding struct {
	Team        string
	Score       int
	PlayerCount int
	TopPlayers  []Standing
}

// Less orders by score desc, then who reached the score first, then case-folded name.
func Less(a, b Standing) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.Reached != b.Reached {
		return a.Reached < b.Reached
	}
	return strings.ToLower(a.Name) < strings.ToLower(b.Name)
}

// Rank returns a sorted copy of standings. The input is not modified.
func Rank(standings []Standing) []Standing {
	out := append([]Standing(nil), standings...)
	sort.SliceStable(out, func(i, j int) bool { return Less(out[i], out[j]) })
	return out
}

// Teams aggregates each configured team from its top-N members.
// When N exceeds a team's size every member counts. Teams without members
// are still listed with a zero score. Ties are broken by team name.
func Teams(standings []Standing, teams []string, topN int) []TeamStanding {
	if topN < 1 {
		topN = 1
	}

	ranked := Rank(standings)
	out := make([]TeamStanding, 0, len(teams))
	for _, team := range teams {
		ts := TeamStanding{Team: team}
		for _, s := range ranked {
			if s.Team != team {
				continue
			}
			ts.PlayerCount++
			if len(ts.TopPlayers) < topN {
				ts.TopPlayers = append(ts.TopPlayers, s)
				ts.Score += s.Score
			}
		}
		out = append(out, ts)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Team < out[j].Team
	})
	return out
}
