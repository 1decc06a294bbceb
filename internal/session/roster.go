package session

import (
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gokatarajesh/live-quiz/internal/history"
	"github.com/gokatarajesh/live-quiz/internal/leaderboard"
	ws "github.com/gokatarajesh/live-quiz/pkg/http/ws"
)

// Participant is one named player in a session. The record survives
// disconnects; ConnID is empty while the player is away.
type Participant struct {
	Name         string
	ConnID       string
	Team         string
	Score        int
	Streak       int
	Missed       int
	JoinedAt     time.Time
	LastActivity time.Time
	Answers      []history.ResponseRecord

	reached uint64
}

// Connected reports whether the participant currently has a live connection.
func (p *Participant) Connected() bool {
	return p.ConnID != ""
}

func (p *Participant) standing() leaderboard.Standing {
	return leaderboard.Standing{Name: p.Name, Team: p.Team, Score: p.Score, Reached: p.reached}
}

// NameKey folds a display name for case-insensitive identity.
func NameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Roster holds the participants of one session in join order.
// It is not safe for concurrent use; the owning session serializes access.
type Roster struct {
	max     int
	maxName int
	members map[string]*Participant
	order   []string
	byConn  map[string]string
	banned  map[string]*Participant
}

// NewRoster creates an empty roster capped at max participants.
func NewRoster(max, maxNameLength int) *Roster {
	return &Roster{
		max:     max,
		maxName: maxNameLength,
		members: make(map[string]*Participant),
		byConn:  make(map[string]string),
		banned:  make(map[string]*Participant),
	}
}

// Add admits a new participant.
func (r *Roster) Add(name, connID string, now time.Time) (*Participant, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameEmpty
	}
	if r.maxName > 0 && utf8.RuneCountInString(name) > r.maxName {
		return nil, ErrNameTooLong
	}

	key := NameKey(name)
	if _, banned := r.banned[key]; banned {
		return nil, ErrNameBanned
	}
	if _, exists := r.members[key]; exists {
		return nil, ErrNameTaken
	}
	if r.max > 0 && len(r.members) >= r.max {
		return nil, ErrSessionFull
	}

	p := &Participant{
		Name:         name,
		ConnID:       connID,
		JoinedAt:     now,
		LastActivity: now,
	}
	r.members[key] = p
	r.order = append(r.order, key)
	if connID != "" {
		r.byConn[connID] = key
	}
	return p, nil
}

// Remove drops a participant entirely.
func (r *Roster) Remove(name string) (*Participant, bool) {
	key := NameKey(name)
	p, ok := r.members[key]
	if !ok {
		return nil, false
	}

	delete(r.members, key)
	if p.ConnID != "" {
		delete(r.byConn, p.ConnID)
	}
	for i, k := range r.order {
		if k == key {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return p, true
}

// Get looks a participant up by name, case-insensitively.
func (r *Roster) Get(name string) (*Participant, bool) {
	p, ok := r.members[NameKey(name)]
	return p, ok
}

// ByConn finds the participant bound to a connection.
func (r *Roster) ByConn(connID string) (*Participant, bool) {
	key, ok := r.byConn[connID]
	if !ok {
		return nil, false
	}
	p, ok := r.members[key]
	return p, ok
}

// Attach binds a connection to an existing participant, replacing any previous binding.
func (r *Roster) Attach(name, connID string) (*Participant, error) {
	key := NameKey(name)
	p, ok := r.members[key]
	if !ok {
		return nil, ErrPlayerNotFound
	}

	if other, ok := r.byConn[connID]; ok && other != key {
		r.members[other].ConnID = ""
	}
	if p.ConnID != "" {
		delete(r.byConn, p.ConnID)
	}
	p.ConnID = connID
	r.byConn[connID] = key
	return p, nil
}

// Detach clears the connection of whoever is bound to connID. The record is kept.
func (r *Roster) Detach(connID string) (*Participant, bool) {
	p, ok := r.ByConn(connID)
	if !ok {
		return nil, false
	}
	delete(r.byConn, connID)
	p.ConnID = ""
	return p, true
}

// Ban removes a current participant and blocks the name from rejoining.
// The removed record is kept so a readmit restores score, streak and team.
func (r *Roster) Ban(name string) {
	key := NameKey(name)
	p, ok := r.Remove(name)
	if ok {
		p.ConnID = ""
	}
	r.banned[key] = p
}

// Readmit lifts a ban and reports whether one existed. A kept record goes
// back on the roster disconnected, with its missed count cleared, so the
// player can reconnect by name. The capacity cap does not apply.
func (r *Roster) Readmit(name string) (*Participant, bool) {
	key := NameKey(name)
	p, ok := r.banned[key]
	if !ok {
		return nil, false
	}
	delete(r.banned, key)
	if p == nil {
		return nil, true
	}
	if _, taken := r.members[key]; taken {
		return nil, true
	}
	p.Missed = 0
	r.members[key] = p
	r.order = append(r.order, key)
	return p, true
}

// IsBanned reports whether a name is blocked.
func (r *Roster) IsBanned(name string) bool {
	_, ok := r.banned[NameKey(name)]
	return ok
}

// Len is the number of participants.
func (r *Roster) Len() int {
	return len(r.members)
}

// Members lists participants in join order.
func (r *Roster) Members() []*Participant {
	out := make([]*Participant, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, r.members[key])
	}
	return out
}

// ConnIDs lists the live connections of all participants, in join order.
func (r *Roster) ConnIDs() []string {
	out := make([]string, 0, len(r.order))
	for _, key := range r.order {
		if id := r.members[key].ConnID; id != "" {
			out = append(out, id)
		}
	}
	return out
}

// Ranked lists participants by score, then by who reached it first.
func (r *Roster) Ranked() []*Participant {
	out := r.Members()
	sort.SliceStable(out, func(i, j int) bool {
		return leaderboard.Less(out[i].standing(), out[j].standing())
	})
	return out
}

// Standings returns ranked leaderboard inputs.
func (r *Roster) Standings() []leaderboard.Standing {
	ranked := r.Ranked()
	out := make([]leaderboard.Standing, len(ranked))
	for i, p := range ranked {
		out[i] = p.standing()
	}
	return out
}

// Players renders the roster for the wire, in join order.
func (r *Roster) Players() []ws.Player {
	members := r.Members()
	out := make([]ws.Player, len(members))
	for i, p := range members {
		out[i] = ws.Player{
			Name:      p.Name,
			Score:     p.Score,
			Team:      p.Team,
			Connected: p.Connected(),
		}
	}
	return out
}

// ClearTeamsNotIn resets the team of anyone whose team is not in teams.
// It reports whether any participant changed.
func (r *Roster) ClearTeamsNotIn(teams []string) bool {
	allowed := make(map[string]struct{}, len(teams))
	for _, t := range teams {
		allowed[t] = struct{}{}
	}

	changed := false
	for _, p := range r.members {
		if p.Team == "" {
			continue
		}
		if _, ok := allowed[p.Team]; !ok {
			p.Team = ""
			changed = true
		}
	}
	return changed
}
