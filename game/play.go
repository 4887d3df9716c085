package game

import (
	"fmt"
	"slices"
	"time"

	"github.com/wfunc/serra/cards"
	"github.com/wfunc/serra/logger"
)

// TrickResult describes a resolved trick.
type TrickResult struct {
	Number int          `json:"number"`
	Plays  []cards.Play `json:"plays"`
	Winner int          `json:"winner"`
	Team   int          `json:"team"`
	Points int          `json:"points"`
}

// Outcome is what a single accepted play changed.
type Outcome struct {
	Seat  int
	Card  cards.Card
	Trick *TrickResult // set when the play completed a trick
	Ended bool
}

// AutoPlay reports what the turn clock did for an expired turn.
type AutoPlay struct {
	Seat    int
	Aborted bool // turn seat was empty and the game went back to the lobby
	Outcome Outcome
}

// Play validates and applies a card from seat. Rejected plays change nothing.
func (g *Game) Play(seat int, cardID string) (Outcome, error) {
	if g.Phase() != PhasePlaying {
		return Outcome{}, ErrNotPlayingPhase
	}
	if seat != g.turn {
		return Outcome{}, ErrNotYourTurn
	}
	card, err := cards.Parse(cardID)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %v", ErrCardNotInHand, err)
	}
	idx := cards.IndexOf(g.seats[seat].Hand, card)
	if idx < 0 {
		return Outcome{}, ErrCardNotInHand
	}
	return g.commitPlay(seat, idx), nil
}

// ExpireTurn plays the weakest card for the turn seat once its deadline has
// passed. ok is false when nothing was due.
func (g *Game) ExpireTurn(now time.Time) (ap AutoPlay, ok bool) {
	if g.Phase() != PhasePlaying || g.deadline.IsZero() || now.Before(g.deadline) {
		return AutoPlay{}, false
	}
	seat := g.turn
	ap.Seat = seat

	card, has := cards.Weakest(g.seats[seat].Hand, g.trump)
	if (!g.seats[seat].Occupied() && g.rules.ResetOnVacate) || !has {
		if err := g.machine.ChangeState(g.lobby); err != nil {
			logger.Log.Errorf("Seat %d expired but the round could not be reset: %v", seat, err)
			return AutoPlay{}, false
		}
		ap.Aborted = true
		return ap, true
	}
	ap.Outcome = g.commitPlay(seat, cards.IndexOf(g.seats[seat].Hand, card))
	return ap, true
}

// SwapTrump exchanges the seat's qualifying card for the face-up card.
// Only the seat on turn may swap.
func (g *Game) SwapTrump(seat int) (cards.Card, error) {
	if g.Phase() != PhasePlaying {
		return cards.Card{}, ErrNotPlayingPhase
	}
	if !g.rules.AllowTrumpSwap {
		return cards.Card{}, ErrSwapUnavailable
	}
	if seat != g.turn {
		return cards.Card{}, ErrNotYourTurn
	}
	hand, faceUp, ok := cards.Swap(g.faceUp, g.trump, g.seats[seat].Hand)
	if !ok {
		return cards.Card{}, ErrSwapUnavailable
	}
	taken := *g.faceUp
	g.seats[seat].Hand = hand
	g.faceUp = &faceUp
	return taken, nil
}

func (g *Game) commitPlay(seat, idx int) Outcome {
	card := g.seats[seat].Hand[idx]
	g.seats[seat].Hand = slices.Delete(g.seats[seat].Hand, idx, idx+1)
	g.trick = append(g.trick, cards.Play{Seat: seat, Card: card})

	out := Outcome{Seat: seat, Card: card}
	if len(g.trick) < cards.Seats {
		g.turn = cards.NextSeat(g.turn)
		g.armDeadline()
		return out
	}

	out.Trick = g.resolveTrick()
	// the transition is guarded by finished
	if err := g.machine.ChangeState(g.ended); err == nil {
		out.Ended = true
		return out
	}
	g.armDeadline()
	return out
}

// resolveTrick scores the full trick, hands the lead to the winner and
// refills hands from the stock starting with the winner.
func (g *Game) resolveTrick() *TrickResult {
	winner := cards.TrickWinner(g.trick, g.trump)
	team := cards.TeamOfSeat(winner)

	g.tricksPlayed++
	points := cards.TrickPoints(g.trick)
	if g.exhausted() {
		points += g.rules.LastTrickBonus
	}
	g.score[team] += points
	for _, p := range g.trick {
		g.won[team] = append(g.won[team], p.Card)
	}

	result := &TrickResult{
		Number: g.tricksPlayed,
		Plays:  g.trick,
		Winner: winner,
		Team:   team,
		Points: points,
	}
	g.lastTrick = result
	g.trick = nil
	g.leader, g.turn = winner, winner

	g.replenish(winner)
	return result
}

func (g *Game) replenish(from int) {
	for i := 0; i < cards.Seats; i++ {
		card, ok := g.draw()
		if !ok {
			return
		}
		seat := (from + i) % cards.Seats
		g.seats[seat].Hand = append(g.seats[seat].Hand, card)
	}
}

// draw takes from the stock; the face-up card is the last one drawn.
func (g *Game) draw() (cards.Card, bool) {
	if len(g.stock) > 0 {
		card := g.stock[0]
		g.stock = g.stock[1:]
		return card, true
	}
	if g.faceUp != nil {
		card := *g.faceUp
		g.faceUp = nil
		return card, true
	}
	return cards.Card{}, false
}
