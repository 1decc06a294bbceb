package session

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 4, 1, 19, 0, 0, 0, time.UTC)

func TestRoster_AddEnforcesUniqueNames(t *testing.T) {
	r := NewRoster(10, 30)

	anna, err := r.Add("  Anna ", "c1", epoch)
	require.NoError(t, err)
	assert.Equal(t, "Anna", anna.Name)

	_, err = r.Add("anna", "c2", epoch)
	assert.ErrorIs(t, err, ErrNameTaken)

	_, err = r.Add("ANNA", "c3", epoch)
	assert.ErrorIs(t, err, ErrNameTaken)

	assert.Equal(t, 1, r.Len())
}

func TestRoster_AddValidation(t *testing.T) {
	r := NewRoster(1, 5)

	_, err := r.Add("   ", "c1", epoch)
	assert.ErrorIs(t, err, ErrNameEmpty)

	_, err = r.Add(strings.Repeat("x", 6), "c1", epoch)
	assert.ErrorIs(t, err, ErrNameTooLong)

	_, err = r.Add("Ben", "c1", epoch)
	require.NoError(t, err)

	_, err = r.Add("Carl", "c2", epoch)
	assert.ErrorIs(t, err, ErrSessionFull)
}

func TestRoster_BanAndReadmit(t *testing.T) {
	r := NewRoster(10, 30)
	_, err := r.Add("Dora", "c1", epoch)
	require.NoError(t, err)

	r.Ban("Mallory")
	_, err = r.Add("mallory", "c3", epoch)
	assert.ErrorIs(t, err, ErrNameBanned)
	restored, ok := r.Readmit("MALLORY")
	assert.True(t, ok)
	assert.Nil(t, restored, "a bare ban has no record to restore")
	_, err = r.Add("Mallory", "c3", epoch)
	assert.NoError(t, err)

	_, ok = r.Readmit("dora")
	assert.False(t, ok)
}

func TestRoster_BanKeepsRecordForReadmit(t *testing.T) {
	r := NewRoster(1, 30)
	p, err := r.Add("Dora", "c1", epoch)
	require.NoError(t, err)
	p.Score, p.Streak, p.Team, p.Missed = 1200, 2, "Red", 3

	r.Ban("dora")
	assert.Zero(t, r.Len())
	assert.True(t, r.IsBanned("DORA"))
	_, ok := r.ByConn("c1")
	assert.False(t, ok, "banned connection is unbound")

	_, err = r.Add("Zed", "c2", epoch)
	require.NoError(t, err)

	restored, ok := r.Readmit("Dora")
	require.True(t, ok)
	require.NotNil(t, restored)
	assert.Equal(t, 2, r.Len(), "readmit ignores the cap")
	assert.False(t, restored.Connected())
	assert.Equal(t, 1200, restored.Score)
	assert.Equal(t, "Red", restored.Team)
	assert.Zero(t, restored.Missed)

	back, err := r.Attach("dora", "c9")
	require.NoError(t, err)
	assert.Equal(t, 1200, back.Score)
}

func TestRoster_DetachKeepsRecord(t *testing.T) {
	r := NewRoster(10, 30)
	p, err := r.Add("Anna", "c1", epoch)
	require.NoError(t, err)
	p.Score = 700

	detached, ok := r.Detach("c1")
	require.True(t, ok)
	assert.Same(t, p, detached)
	assert.False(t, p.Connected())
	assert.Empty(t, r.ConnIDs())

	_, ok = r.ByConn("c1")
	assert.False(t, ok)

	again, err := r.Attach("ANNA", "c9")
	require.NoError(t, err)
	assert.Same(t, p, again)
	assert.Equal(t, 700, again.Score)
	assert.Equal(t, []string{"c9"}, r.ConnIDs())

	_, err = r.Attach("nobody", "c10")
	assert.ErrorIs(t, err, ErrPlayerNotFound)
}

func TestRoster_AttachMovesConnection(t *testing.T) {
	r := NewRoster(10, 30)
	a, _ := r.Add("Anna", "c1", epoch)
	b, _ := r.Add("Ben", "c2", epoch)

	_, err := r.Attach("Ben", "c1")
	require.NoError(t, err)

	assert.False(t, a.Connected())
	assert.Equal(t, "c1", b.ConnID)
	got, ok := r.ByConn("c1")
	require.True(t, ok)
	assert.Same(t, b, got)
	_, ok = r.ByConn("c2")
	assert.False(t, ok)
}

func TestRoster_Ranked(t *testing.T) {
	r := NewRoster(10, 30)
	a, _ := r.Add("Anna", "c1", epoch)
	b, _ := r.Add("Ben", "c2", epoch)
	c, _ := r.Add("Carl", "c3", epoch)

	a.Score, a.reached = 500, 2
	b.Score, b.reached = 500, 1
	c.Score, c.reached = 900, 3

	ranked := r.Ranked()
	assert.Equal(t, []string{"Carl", "Ben", "Anna"}, []string{ranked[0].Name, ranked[1].Name, ranked[2].Name})

	members := r.Members()
	assert.Equal(t, "Anna", members[0].Name, "join order is preserved")
}

func TestRoster_ClearTeamsNotIn(t *testing.T) {
	r := NewRoster(10, 30)
	a, _ := r.Add("Anna", "c1", epoch)
	b, _ := r.Add("Ben", "c2", epoch)
	a.Team = "Red"
	b.Team = "Blue"

	assert.True(t, r.ClearTeamsNotIn([]string{"Red", "Green"}))
	assert.Equal(t, "Red", a.Team)
	assert.Empty(t, b.Team)
	assert.False(t, r.ClearTeamsNotIn([]string{"Red"}))
}
