package engine

import (
	"fmt"
	"time"
)

// CardKind identifies a card. The zero value marks an empty round slot.
type CardKind uint8

const (
	NoCard CardKind = iota
	Stone
	Sheets
	Sheers
	Boulder
	Cloth
	Sword
	Joker
)

const (
	// StartingDraws is the number of draw actions each player begins with.
	StartingDraws = 3
	// DrawCount is the number of cards added by one draw action.
	DrawCount = 2
	// BaselineDeckSize is the per-player card baseline used by history snapshots.
	BaselineDeckSize = 15
)

var cardNames = [...]string{
	NoCard:  "",
	Stone:   "Stone",
	Sheets:  "Sheets",
	Sheers:  "Sheers",
	Boulder: "Boulder",
	Cloth:   "Cloth",
	Sword:   "Sword",
	Joker:   "Joker",
}

// AllCards lists every playable card kind.
var AllCards = []CardKind{Stone, Sheets, Sheers, Boulder, Cloth, Sword, Joker}

func (c CardKind) String() string {
	if int(c) < len(cardNames) {
		return cardNames[c]
	}
	return fmt.Sprintf("CardKind(%d)", uint8(c))
}

// Valid reports whether c is one of the seven playable kinds.
func (c CardKind) Valid() bool {
	return c >= Stone && c <= Joker
}

// IsBase reports whether c is Stone, Sheets or Sheers.
func (c CardKind) IsBase() bool {
	switch c {
	case Stone, Sheets, Sheers:
		return true
	}
	return false
}

// IsUpgrade reports whether c is Boulder, Cloth or Sword.
func (c CardKind) IsUpgrade() bool {
	switch c {
	case Boulder, Cloth, Sword:
		return true
	}
	return false
}

// Base returns the base card an upgrade card upgrades, or NoCard.
func (c CardKind) Base() CardKind {
	switch c {
	case Boulder:
		return Stone
	case Cloth:
		return Sheets
	case Sword:
		return Sheers
	}
	return NoCard
}

func (c CardKind) MarshalText() ([]byte, error) {
	if c != NoCard && !c.Valid() {
		return nil, fmt.Errorf("invalid card kind %d", uint8(c))
	}
	return []byte(c.String()), nil
}

func (c *CardKind) UnmarshalText(text []byte) error {
	k, err := ParseCardKind(string(text))
	if err != nil {
		return err
	}
	*c = k
	return nil
}

// ParseCardKind maps a card name to its kind. The empty string is NoCard.
func ParseCardKind(name string) (CardKind, error) {
	for i, n := range cardNames {
		if n == name {
			return CardKind(i), nil
		}
	}
	return NoCard, fmt.Errorf("unknown card %q", name)
}

// Outcome is the result of a round or a game, in seat terms.
type Outcome uint8

const (
	Draw Outcome = iota
	Player1
	Player2
)

func (o Outcome) String() string {
	switch o {
	case Player1:
		return "player1"
	case Player2:
		return "player2"
	default:
		return "draw"
	}
}

// Swap exchanges the player labels.
func (o Outcome) Swap() Outcome {
	switch o {
	case Player1:
		return Player2
	case Player2:
		return Player1
	default:
		return Draw
	}
}

// Seat returns the winning seat index, or -1 for a draw.
func (o Outcome) Seat() int {
	switch o {
	case Player1:
		return 0
	case Player2:
		return 1
	default:
		return -1
	}
}

func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

func (o *Outcome) UnmarshalText(text []byte) error {
	switch string(text) {
	case "player1":
		*o = Player1
	case "player2":
		*o = Player2
	case "draw":
		*o = Draw
	default:
		return fmt.Errorf("unknown outcome %q", text)
	}
	return nil
}

// Status is the lifecycle stage of a game.
type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusPlaying  Status = "playing"
	StatusFinished Status = "finished"
)

// CanTransitionTo reports whether moving from s to next is a legal step.
// Status only ever advances waiting -> playing -> finished.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusWaiting:
		return next == StatusPlaying
	case StatusPlaying:
		return next == StatusFinished
	default:
		return false
	}
}

// Player is one seat in a game.
type Player struct {
	UserID         string     `json:"user_id"`
	Deck           []CardKind `json:"deck"`
	DrawsRemaining int        `json:"draws_remaining"`
}

// Round is one exchange of cards. Winner is set once, when the second card lands.
type Round struct {
	Player1Card CardKind `json:"player1_card,omitempty"`
	Player2Card CardKind `json:"player2_card,omitempty"`
	Winner      *Outcome `json:"winner,omitempty"`
}

// Complete reports whether both cards have been played.
func (r Round) Complete() bool {
	return r.Player1Card != NoCard && r.Player2Card != NoCard
}

// Card returns the card played by seat, or NoCard.
func (r Round) Card(seat int) CardKind {
	if seat == 0 {
		return r.Player1Card
	}
	return r.Player2Card
}

// GameRecord is the authoritative state of one session. Version counts
// committed changes and grows by one per commit.
type GameRecord struct {
	ID          string     `json:"id"`
	Version     int64      `json:"version"`
	Players     [2]Player  `json:"players"`
	CurrentTurn string     `json:"current_turn"`
	Status      Status     `json:"status"`
	Rounds      []Round    `json:"rounds"`
	Winner      string     `json:"winner,omitempty"`
	RoomCode    string     `json:"room_code,omitempty"`
	IsPrivate   bool       `json:"is_private"`
	StartTime   time.Time  `json:"start_time"`
	EndTime     *time.Time `json:"end_time,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// HistoryPlayer is a participant's line in a GameHistory.
type HistoryPlayer struct {
	UserID        string `json:"user_id"`
	FinalDeckSize int    `json:"final_deck_size"`
	CardsPlayed   int    `json:"cards_played"`
	DrawsUsed     int    `json:"draws_used"`
}

// SpecialCards counts jokers and upgrade cards played across a game.
type SpecialCards struct {
	JokersPlayed   int `json:"jokers_played"`
	UpgradesPlayed int `json:"upgrades_played"`
}

// GameHistory is the immutable summary written once per finished game.
type GameHistory struct {
	ID           string          `json:"id"`
	GameID       string          `json:"game_id"`
	Players      []HistoryPlayer `json:"players"`
	WinnerID     string          `json:"winner_id"`
	Rounds       []Round         `json:"rounds"`
	Duration     float64         `json:"duration"` // seconds
	TotalRounds  int             `json:"total_rounds"`
	WasPrivate   bool            `json:"was_private"`
	SpecialCards SpecialCards    `json:"special_cards"`
	StartTime    time.Time       `json:"start_time"`
	EndTime      time.Time       `json:"end_time"`
}

// PlayerStats aggregates all history snapshots that include one player.
type PlayerStats struct {
	TotalGames          int     `json:"total_games"`
	Wins                int     `json:"wins"`
	AvgDuration         float64 `json:"avg_duration"`
	TotalJokersPlayed   int     `json:"total_jokers_played"`
	TotalUpgradesPlayed int     `json:"total_upgrades_played"`
}

// UserStats are the win/loss counters kept on a user account.
type UserStats struct {
	GamesPlayed int `json:"games_played"`
	Wins        int `json:"wins"`
	Losses      int `json:"losses"`
}

// WinRate is wins as a percentage of games played.
func (s UserStats) WinRate() float64 {
	if s.GamesPlayed == 0 {
		return 0
	}
	return float64(s.Wins) / float64(s.GamesPlayed) * 100
}
