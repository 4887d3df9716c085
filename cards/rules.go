package cards

// Seats per table; seats 0&2 and 1&3 are partners.
const Seats = 4

// Play is one card laid into a trick.
type Play struct {
	Seat int  `json:"seat"`
	Card Card `json:"card"`
}

var baseRank = map[Rank]int{
	Three: 0,
	Four:  1,
	Five:  2,
	Six:   3,
	Jack:  4,
	Queen: 5,
	King:  6,
	Seven: 7,
}

// 特殊王牌的强度
const (
	strengthDourado   = 100
	strengthPeDePinto = 110
	strengthZangao    = 120
	strengthDamaFina  = 130
	strengthAce       = 140
)

func isDourado(c Card, trump Suit) bool {
	return trump == Clubs && c.Rank == Ace && c.Suit == Diamonds
}

// IsUniversalTrump reports the named cards that are trump whatever the round
// trump suit is: Dama Fina (Q♠), Zangão (3♣), Pé de Pinto (A♣), and Dourado
// (A♦) only while clubs are trump.
func IsUniversalTrump(c Card, trump Suit) bool {
	switch {
	case c.Rank == Queen && c.Suit == Spades:
		return true
	case c.Rank == Three && c.Suit == Clubs:
		return true
	case c.Rank == Ace && c.Suit == Clubs:
		return true
	}
	return isDourado(c, trump)
}

// IsTrump reports whether c belongs to the trump pool this round.
func IsTrump(c Card, trump Suit) bool {
	return c.Suit == trump || IsUniversalTrump(c, trump)
}

// Strength orders cards inside a winning pool:
// 3 < 4 < 5 < 6 < J < Q < K < 7 < Dourado < Pé de Pinto < Zangão < Dama Fina < A.
func Strength(c Card, trump Suit) int {
	switch {
	case isDourado(c, trump):
		return strengthDourado
	case c.Rank == Ace && c.Suit == Clubs:
		return strengthPeDePinto
	case c.Rank == Three && c.Suit == Clubs:
		return strengthZangao
	case c.Rank == Queen && c.Suit == Spades:
		return strengthDamaFina
	case c.Rank == Ace:
		return strengthAce
	}
	return baseRank[c.Rank]
}

// TrickWinner returns the seat that takes the trick, or -1 for an empty trick.
// Trumps beat everything; without trumps only the lead suit competes.
// On equal strength the earlier play wins.
func TrickWinner(trick []Play, trump Suit) int {
	if len(trick) == 0 {
		return -1
	}
	lead := trick[0].Card.Suit

	pool := make([]Play, 0, len(trick))
	for _, p := range trick {
		if IsTrump(p.Card, trump) {
			pool = append(pool, p)
		}
	}
	if len(pool) == 0 {
		for _, p := range trick {
			if p.Card.Suit == lead {
				pool = append(pool, p)
			}
		}
	}

	best := pool[0]
	for _, p := range pool[1:] {
		if Strength(p.Card, trump) > Strength(best.Card, trump) {
			best = p
		}
	}
	return best.Seat
}

// TrickPoints sums the card points of a trick.
func TrickPoints(trick []Play) int {
	total := 0
	for _, p := range trick {
		total += Points(p.Card)
	}
	return total
}

// TeamOfSeat maps seats 0,2 to team 0 and 1,3 to team 1.
func TeamOfSeat(seat int) int {
	return seat % 2
}

// NextSeat is the clockwise successor.
func NextSeat(seat int) int {
	return (seat + 1) % Seats
}

// Weakest picks the lowest-strength card of a hand, first one on ties.
// ok is false for an empty hand.
func Weakest(hand []Card, trump Suit) (c Card, ok bool) {
	if len(hand) == 0 {
		return Card{}, false
	}
	best := hand[0]
	for _, h := range hand[1:] {
		if Strength(h, trump) < Strength(best, trump) {
			best = h
		}
	}
	return best, true
}

// SwapCard is the card that may be exchanged for the face-up trump card:
// the 3 of trump, or the 4 of clubs when clubs are trump (3♣ is Zangão).
func SwapCard(trump Suit) Card {
	if trump == Clubs {
		return Card{Rank: Four, Suit: Clubs}
	}
	return Card{Rank: Three, Suit: trump}
}

// IndexOf returns the position of c in hand, or -1.
func IndexOf(hand []Card, c Card) int {
	for i, h := range hand {
		if h == c {
			return i
		}
	}
	return -1
}

// CanSwap reports whether hand holds the exchange card while a face-up card
// is still on the table.
func CanSwap(faceUp *Card, trump Suit, hand []Card) bool {
	return faceUp != nil && IndexOf(hand, SwapCard(trump)) >= 0
}

// Swap exchanges the qualifying card with the face-up card. It returns the
// new hand (a copy) and the new face-up card; ok is false when not allowed.
func Swap(faceUp *Card, trump Suit, hand []Card) (newHand []Card, newFaceUp Card, ok bool) {
	if faceUp == nil {
		return nil, Card{}, false
	}
	idx := IndexOf(hand, SwapCard(trump))
	if idx < 0 {
		return nil, Card{}, false
	}
	newHand = append([]Card(nil), hand...)
	newFaceUp = newHand[idx]
	newHand[idx] = *faceUp
	return newHand, newFaceUp, true
}
