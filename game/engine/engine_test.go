package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveRound_Scenarios(t *testing.T) {
	tests := []struct {
		name   string
		c1, c2 CardKind
		want   Outcome
	}{
		{"stone beats sheers", Stone, Sheers, Player1},
		{"sheers beats sheets", Sheers, Sheets, Player1},
		{"sheets beats stone", Sheets, Stone, Player1},
		{"stone loses to sheets", Stone, Sheets, Player2},
		{"identical base cards draw", Sheets, Sheets, Draw},
		{"boulder beats stone", Boulder, Stone, Player1},
		{"cloth beats sheets", Cloth, Sheets, Player1},
		{"sword beats sheers", Sword, Sheers, Player1},
		{"stone loses to boulder", Stone, Boulder, Player2},
		{"joker beats base", Joker, Stone, Player1},
		{"joker loses to upgrade", Joker, Boulder, Player2},
		{"upgrade beats joker", Sword, Joker, Player1},
		{"base loses to joker", Sheers, Joker, Player2},
		{"joker vs joker", Joker, Joker, Draw},
		{"upgrade vs unrelated base draws", Boulder, Sheets, Draw},
		{"upgrade vs upgrade draws", Boulder, Cloth, Draw},
		{"same upgrade draws", Sword, Sword, Draw},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveRound(tt.c1, tt.c2))
		})
	}
}

func TestResolveRound_TotalAndSymmetric(t *testing.T) {
	for _, a := range AllCards {
		for _, b := range AllCards {
			got := ResolveRound(a, b)
			assert.Contains(t, []Outcome{Player1, Player2, Draw}, got, "%s vs %s", a, b)
			assert.Equal(t, got.Swap(), ResolveRound(b, a), "%s vs %s not symmetric", a, b)
			assert.Equal(t, got, ResolveRound(a, b), "%s vs %s not stable", a, b)
		}
	}
}

func TestIsOverAndDecideGameOutcome(t *testing.T) {
	rec := &GameRecord{Players: [2]Player{
		{UserID: "a", Deck: []CardKind{Stone, Stone}},
		{UserID: "b", Deck: []CardKind{Sheets}},
	}}
	assert.False(t, IsOver(rec))

	rec.Players[1].Deck = nil
	assert.True(t, IsOver(rec))
	assert.Equal(t, Player1, DecideGameOutcome(rec))
	assert.Equal(t, "a", WinnerID(rec))

	rec.Players[0].Deck = nil
	assert.Equal(t, Player2, DecideGameOutcome(rec), "tie goes to player2")
	assert.Equal(t, "b", WinnerID(rec))

	rec.Players[1].Deck = []CardKind{Joker}
	assert.Equal(t, Player2, DecideGameOutcome(rec))
}
