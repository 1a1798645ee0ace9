package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildHistory(t *testing.T) {
	start := time.Unix(1000, 0)
	rec := NewGameRecord("g1", "alice", "bob", NewDeckFactory(1), start)
	rec.IsPrivate = true
	rec.Players[0].Deck = []CardKind{Stone, Stone, Stone}
	rec.Players[0].DrawsRemaining = 1
	rec.Players[1].Deck = nil

	p1, p2, draw := Player1, Player2, Draw
	rec.Rounds = []Round{
		{Player1Card: Joker, Player2Card: Stone, Winner: &p1},
		{Player1Card: Sheets, Player2Card: Cloth, Winner: &p2},
		{Player1Card: Boulder, Player2Card: Sword, Winner: &draw},
	}
	require.NoError(t, rec.Finish("alice", start.Add(90*time.Second)))

	h := BuildHistory("h1", rec)

	assert.Equal(t, "h1", h.ID)
	assert.Equal(t, "g1", h.GameID)
	assert.Equal(t, "alice", h.WinnerID)
	assert.Equal(t, 90.0, h.Duration)
	assert.Equal(t, 3, h.TotalRounds)
	assert.True(t, h.WasPrivate)
	assert.Equal(t, SpecialCards{JokersPlayed: 1, UpgradesPlayed: 3}, h.SpecialCards)
	assert.Equal(t, []HistoryPlayer{
		{UserID: "alice", FinalDeckSize: 3, CardsPlayed: 12, DrawsUsed: 2},
		{UserID: "bob", FinalDeckSize: 0, CardsPlayed: 15, DrawsUsed: 0},
	}, h.Players)

	h.Rounds[0].Player1Card = Stone
	*h.Rounds[1].Winner = Draw
	assert.Equal(t, Joker, rec.Rounds[0].Player1Card)
	assert.Equal(t, Player2, *rec.Rounds[1].Winner)
}

func TestCountSpecialCards_IgnoresEmptySlots(t *testing.T) {
	got := CountSpecialCards([]Round{{Player1Card: Joker}, {Player2Card: Sword}})
	assert.Equal(t, SpecialCards{JokersPlayed: 1, UpgradesPlayed: 1}, got)
	assert.Equal(t, SpecialCards{}, CountSpecialCards(nil))
}
