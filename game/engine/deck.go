package engine

import (
	"math/rand"
	"sync"
	"time"
)

// startingDeck is the fixed composition of a fresh deck.
var startingDeck = []struct {
	kind  CardKind
	count int
}{
	{Stone, 5},
	{Sheets, 5},
	{Sheers, 5},
	{Boulder, 2},
	{Cloth, 2},
	{Sword, 2},
	{Joker, 1},
}

// drawPool is what replacement draws sample from. The Joker is never drawn.
var drawPool = []CardKind{Stone, Sheets, Sheers, Boulder, Cloth, Sword}

// StartingDeckSize is the number of cards in a fresh deck.
const StartingDeckSize = 22

// DeckFactory builds shuffled decks and replacement draws. It is safe for
// concurrent use.
type DeckFactory struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewDeckFactory returns a factory with a deterministic source.
func NewDeckFactory(seed int64) *DeckFactory {
	return &DeckFactory{rng: rand.New(rand.NewSource(seed))}
}

// DefaultDeckFactory returns a factory seeded from the clock.
func DefaultDeckFactory() *DeckFactory {
	return NewDeckFactory(time.Now().UnixNano())
}

// NewDeck returns the 22-card starting deck in uniformly random order.
func (f *DeckFactory) NewDeck() []CardKind {
	deck := make([]CardKind, 0, StartingDeckSize)
	for _, c := range startingDeck {
		for i := 0; i < c.count; i++ {
			deck = append(deck, c.kind)
		}
	}

	f.mu.Lock()
	f.rng.Shuffle(len(deck), func(i, j int) { deck[i], deck[j] = deck[j], deck[i] })
	f.mu.Unlock()

	return deck
}

// DrawCards returns n cards sampled uniformly with replacement from the
// base and upgrade cards.
func (f *DeckFactory) DrawCards(n int) []CardKind {
	if n <= 0 {
		return nil
	}
	cards := make([]CardKind, n)

	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range cards {
		cards[i] = drawPool[f.rng.Intn(len(drawPool))]
	}
	return cards
}
