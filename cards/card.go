// cards/card.go
package cards

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"unicode/utf8"
)

// Suit 花色
type Suit string

const (
	Spades   Suit = "♠"
	Hearts   Suit = "♥"
	Diamonds Suit = "♦"
	Clubs    Suit = "♣"
)

// Rank 点数。没有 2、8、9、10。
type Rank string

const (
	Three Rank = "3"
	Four  Rank = "4"
	Five  Rank = "5"
	Six   Rank = "6"
	Jack  Rank = "J"
	Queen Rank = "Q"
	King  Rank = "K"
	Seven Rank = "7"
	Ace   Rank = "A"
)

// DeckSize is the number of cards in a full deck: 9 ranks in 4 suits.
const DeckSize = 36

// Suits lists the suits in deck-construction order.
var Suits = []Suit{Spades, Hearts, Diamonds, Clubs}

// Ranks lists the ranks from weakest to strongest in the base order.
var Ranks = []Rank{Three, Four, Five, Six, Jack, Queen, King, Seven, Ace}

// ErrInvalidCard is returned when a card id cannot be parsed.
var ErrInvalidCard = errors.New("invalid card")

// Card is an immutable (rank, suit) pair.
type Card struct {
	Rank Rank
	Suit Suit
}

// ID returns the canonical identity used on the wire, e.g. "7♠".
func (c Card) ID() string {
	return string(c.Rank) + string(c.Suit)
}

func (c Card) String() string {
	return c.ID()
}

type cardJSON struct {
	Rank Rank   `json:"rank"`
	Suit Suit   `json:"suit"`
	ID   string `json:"id"`
}

func (c Card) MarshalJSON() ([]byte, error) {
	return json.Marshal(cardJSON{Rank: c.Rank, Suit: c.Suit, ID: c.ID()})
}

func (c *Card) UnmarshalJSON(data []byte) error {
	var raw cardJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.ID != "" && raw.Rank == "" {
		parsed, err := Parse(raw.ID)
		if err != nil {
			return err
		}
		*c = parsed
		return nil
	}
	c.Rank, c.Suit = raw.Rank, raw.Suit
	return nil
}

// Parse turns a card id such as "Q♠" back into a Card.
func Parse(id string) (Card, error) {
	id = strings.TrimSpace(id)
	r, size := utf8.DecodeLastRuneInString(id)
	if r == utf8.RuneError || size >= len(id) {
		return Card{}, fmt.Errorf("%w: %q", ErrInvalidCard, id)
	}
	c := Card{Rank: Rank(id[:len(id)-size]), Suit: Suit(string(r))}
	if !validSuit(c.Suit) {
		return Card{}, fmt.Errorf("%w: unknown suit in %q", ErrInvalidCard, id)
	}
	if !validRank(c.Rank) {
		return Card{}, fmt.Errorf("%w: unknown rank in %q", ErrInvalidCard, id)
	}
	return c, nil
}

func validRank(r Rank) bool {
	for _, v := range Ranks {
		if v == r {
			return true
		}
	}
	return false
}

func validSuit(s Suit) bool {
	for _, v := range Suits {
		if v == s {
			return true
		}
	}
	return false
}

// BuildDeck returns the DeckSize cards (9 ranks in 4 suits) in suit-major order.
func BuildDeck() []Card {
	deck := make([]Card, 0, DeckSize)
	for _, s := range Suits {
		for _, r := range Ranks {
			deck = append(deck, Card{Rank: r, Suit: s})
		}
	}
	return deck
}

// Shuffler is satisfied by *rand.Rand.
type Shuffler interface {
	Shuffle(n int, swap func(i, j int))
}

// Shuffle permutes cards in place and returns the same slice.
// A nil source uses the package-level generator.
func Shuffle(deck []Card, src Shuffler) []Card {
	swap := func(i, j int) { deck[i], deck[j] = deck[j], deck[i] }
	if src == nil {
		rand.Shuffle(len(deck), swap)
		return deck
	}
	src.Shuffle(len(deck), swap)
	return deck
}

// Points is the trick-scoring value of a card. A full deck is worth 120.
func Points(c Card) int {
	switch c.Rank {
	case Seven:
		return 10
	case Ace:
		return 11
	case King:
		return 4
	case Queen:
		return 3
	case Jack:
		return 2
	default:
		return 0
	}
}

// IsBisca reports an Ace or Seven outside the trump suit.
func IsBisca(c Card, trump Suit) bool {
	return (c.Rank == Ace || c.Rank == Seven) && c.Suit != trump
}
