package cards

import (
	"encoding/json"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func c(id string) Card {
	card, err := Parse(id)
	if err != nil {
		panic(err)
	}
	return card
}

func TestBuildDeck(t *testing.T) {
	deck := BuildDeck()
	require.Len(t, deck, DeckSize)

	seen := make(map[Card]bool)
	total := 0
	for _, card := range deck {
		assert.False(t, seen[card], "duplicate card %s", card)
		seen[card] = true
		total += Points(card)
	}
	assert.Equal(t, 120, total)
}

func TestShuffle_KeepsCards(t *testing.T) {
	deck := Shuffle(BuildDeck(), rand.New(rand.NewPCG(1, 2)))
	assert.ElementsMatch(t, BuildDeck(), deck)
	assert.NotEqual(t, BuildDeck(), deck)

	// nil source falls back to the global generator
	assert.ElementsMatch(t, BuildDeck(), Shuffle(BuildDeck(), nil))
}

func TestParse(t *testing.T) {
	card, err := Parse("Q♠")
	require.NoError(t, err)
	assert.Equal(t, Card{Rank: Queen, Suit: Spades}, card)

	card, err = Parse(" A♦ ")
	require.NoError(t, err)
	assert.Equal(t, Card{Rank: Ace, Suit: Diamonds}, card)

	for _, bad := range []string{"", "♠", "10♠", "2♥", "QX", "Q"} {
		_, err := Parse(bad)
		assert.ErrorIs(t, err, ErrInvalidCard, bad)
	}
}

func TestCardJSON(t *testing.T) {
	data, err := json.Marshal(c("7♣"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"rank":"7","suit":"♣","id":"7♣"}`, string(data))

	var back Card
	require.NoError(t, json.Unmarshal([]byte(`{"id":"J♥"}`), &back))
	assert.Equal(t, c("J♥"), back)
}

func TestPoints(t *testing.T) {
	tests := map[string]int{"7♠": 10, "A♥": 11, "K♦": 4, "Q♣": 3, "J♠": 2, "6♥": 0, "3♣": 0}
	for id, want := range tests {
		assert.Equal(t, want, Points(c(id)), id)
	}
}

func TestUniversalTrumps(t *testing.T) {
	assert.True(t, IsUniversalTrump(c("Q♠"), Hearts))
	assert.True(t, IsUniversalTrump(c("3♣"), Hearts))
	assert.True(t, IsUniversalTrump(c("A♣"), Hearts))
	assert.False(t, IsUniversalTrump(c("A♦"), Hearts))
	assert.True(t, IsUniversalTrump(c("A♦"), Clubs))
	assert.False(t, IsUniversalTrump(c("K♠"), Spades))

	assert.True(t, IsTrump(c("K♠"), Spades))
	assert.True(t, IsTrump(c("Q♠"), Diamonds))
	assert.False(t, IsTrump(c("K♥"), Spades))
}

func TestStrengthOrdering(t *testing.T) {
	order := []Card{c("3♥"), c("4♥"), c("5♥"), c("6♥"), c("J♥"), c("Q♥"), c("K♥"), c("7♥"),
		c("A♦"), c("A♣"), c("3♣"), c("Q♠"), c("A♥")}
	for i := 1; i < len(order); i++ {
		assert.Less(t, Strength(order[i-1], Clubs), Strength(order[i], Clubs),
			"%s should be weaker than %s", order[i-1], order[i])
	}
	assert.Equal(t, 100, Strength(c("A♦"), Clubs))
	// without clubs as trump the Ace of diamonds is a plain Ace
	assert.Equal(t, 140, Strength(c("A♦"), Hearts))
	assert.Equal(t, 6, Strength(c("K♣"), Clubs))
}

func TestTrickWinner(t *testing.T) {
	tests := []struct {
		name  string
		trump Suit
		trick []Play
		want  int
	}{
		{
			name:  "highest trump wins",
			trump: Spades,
			trick: []Play{{0, c("5♣")}, {1, c("K♠")}, {2, c("3♠")}, {3, c("7♣")}},
			want:  1,
		},
		{
			name:  "lead suit without trumps",
			trump: Hearts,
			trick: []Play{{2, c("5♦")}, {3, c("K♠")}, {0, c("7♦")}, {1, c("A♠")}},
			want:  0,
		},
		{
			name:  "universal trump beats suit trump",
			trump: Hearts,
			trick: []Play{{0, c("7♥")}, {1, c("3♣")}, {2, c("K♥")}, {3, c("6♦")}},
			want:  1,
		},
		{
			name:  "dourado only when clubs are trump",
			trump: Clubs,
			trick: []Play{{0, c("7♦")}, {1, c("A♦")}, {2, c("K♣")}, {3, c("J♦")}},
			want:  1,
		},
		{
			name:  "plain ace tops dama fina",
			trump: Hearts,
			trick: []Play{{3, c("Q♠")}, {0, c("A♥")}, {1, c("4♥")}, {2, c("J♣")}},
			want:  0,
		},
		{
			name:  "off-suit aces lose to a small trump",
			trump: Diamonds,
			trick: []Play{{1, c("4♦")}, {2, c("5♠")}, {3, c("A♥")}, {0, c("A♠")}},
			want:  1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TrickWinner(tt.trick, tt.trump))
		})
	}
	assert.Equal(t, -1, TrickWinner(nil, Spades))
}

func TestSeats(t *testing.T) {
	assert.Equal(t, []int{0, 1, 0, 1}, []int{TeamOfSeat(0), TeamOfSeat(1), TeamOfSeat(2), TeamOfSeat(3)})
	assert.Equal(t, []int{1, 2, 3, 0}, []int{NextSeat(0), NextSeat(1), NextSeat(2), NextSeat(3)})
}

func TestWeakest(t *testing.T) {
	card, ok := Weakest([]Card{c("7♠"), c("A♦"), c("4♥"), c("4♠")}, Clubs)
	require.True(t, ok)
	assert.Equal(t, c("4♥"), card)

	_, ok = Weakest(nil, Clubs)
	assert.False(t, ok)
}

func TestSwap(t *testing.T) {
	faceUp := c("A♥")
	hand := []Card{c("5♠"), c("3♥"), c("K♦")}

	assert.True(t, CanSwap(&faceUp, Hearts, hand))
	newHand, newFaceUp, ok := Swap(&faceUp, Hearts, hand)
	require.True(t, ok)
	assert.Equal(t, c("3♥"), newFaceUp)
	assert.Equal(t, []Card{c("5♠"), c("A♥"), c("K♦")}, newHand)
	assert.Equal(t, c("3♥"), hand[1], "input hand must not change")

	assert.False(t, CanSwap(nil, Hearts, hand))
	assert.Equal(t, c("4♣"), SwapCard(Clubs))
	assert.False(t, CanSwap(&faceUp, Clubs, []Card{c("3♣")}))
	_, _, ok = Swap(&faceUp, Spades, hand)
	assert.False(t, ok)
}
