package engine

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCardKind_Classification(t *testing.T) {
	for _, c := range []CardKind{Stone, Sheets, Sheers} {
		assert.True(t, c.IsBase(), c.String())
		assert.False(t, c.IsUpgrade(), c.String())
		assert.Equal(t, NoCard, c.Base())
	}
	assert.Equal(t, Stone, Boulder.Base())
	assert.Equal(t, Sheets, Cloth.Base())
	assert.Equal(t, Sheers, Sword.Base())
	assert.False(t, Joker.IsBase())
	assert.False(t, Joker.IsUpgrade())
	assert.False(t, NoCard.Valid())
	assert.False(t, CardKind(42).Valid())
}

func TestCardKind_JSON(t *testing.T) {
	data, err := json.Marshal([]CardKind{Stone, Joker, Sword})
	require.NoError(t, err)
	assert.JSONEq(t, `["Stone","Joker","Sword"]`, string(data))

	var back []CardKind
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, []CardKind{Stone, Joker, Sword}, back)

	assert.Error(t, json.Unmarshal([]byte(`["Paper"]`), &back))
	_, err = json.Marshal(CardKind(99))
	assert.Error(t, err)
}

func TestRound_JSONOmitsEmptySlots(t *testing.T) {
	data, err := json.Marshal(Round{Player1Card: Cloth})
	require.NoError(t, err)
	assert.JSONEq(t, `{"player1_card":"Cloth"}`, string(data))

	w := Player2
	data, err = json.Marshal(Round{Player1Card: Stone, Player2Card: Sheets, Winner: &w})
	require.NoError(t, err)
	assert.JSONEq(t, `{"player1_card":"Stone","player2_card":"Sheets","winner":"player2"}`, string(data))
}

func TestStatus_Transitions(t *testing.T) {
	assert.True(t, StatusWaiting.CanTransitionTo(StatusPlaying))
	assert.True(t, StatusPlaying.CanTransitionTo(StatusFinished))

	assert.False(t, StatusWaiting.CanTransitionTo(StatusFinished))
	assert.False(t, StatusPlaying.CanTransitionTo(StatusWaiting))
	assert.False(t, StatusFinished.CanTransitionTo(StatusPlaying))
	assert.False(t, StatusFinished.CanTransitionTo(StatusFinished))
}

func TestUserStats_WinRate(t *testing.T) {
	assert.Zero(t, UserStats{}.WinRate())
	assert.InDelta(t, 75.0, UserStats{GamesPlayed: 4, Wins: 3, Losses: 1}.WinRate(), 0.001)
}
