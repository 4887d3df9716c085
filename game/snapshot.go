package game

import (
	"time"

	"github.com/wfunc/serra/cards"
)

// SeatView is the public part of a seat. Hands are never included.
type SeatView struct {
	Seat      int    `json:"seat"`
	Occupied  bool   `json:"occupied"`
	Name      string `json:"name"`
	Ready     bool   `json:"ready"`
	HandCount int    `json:"hand_count"`
}

// PublicState is what every seat may see.
type PublicState struct {
	Phase        Phase        `json:"phase"`
	Seats        []SeatView   `json:"seats"`
	TrumpSuit    cards.Suit   `json:"trump_suit,omitempty"`
	FaceUp       *cards.Card  `json:"face_up"`
	LeaderSeat   int          `json:"leader_seat"`
	TurnSeat     int          `json:"turn_seat"`
	TurnDeadline *int64       `json:"turn_deadline"` // epoch ms
	Trick        []cards.Play `json:"trick"`
	LastTrick    *TrickResult `json:"last_trick,omitempty"`
	TeamScore    [2]int       `json:"team_score"`
	TricksPlayed int          `json:"tricks_played"`
	StockCount   int          `json:"stock_count"`
}

// Snapshot copies the public state.
func (g *Game) Snapshot() PublicState {
	ps := PublicState{
		Phase:        g.Phase(),
		Seats:        make([]SeatView, cards.Seats),
		TrumpSuit:    g.trump,
		LeaderSeat:   g.leader,
		TurnSeat:     g.turn,
		Trick:        append([]cards.Play{}, g.trick...),
		TeamScore:    g.score,
		TricksPlayed: g.tricksPlayed,
		StockCount:   len(g.stock),
	}
	for i, s := range g.seats {
		ps.Seats[i] = SeatView{
			Seat:      i,
			Occupied:  s.Occupied(),
			Name:      s.Name,
			Ready:     s.Ready,
			HandCount: len(s.Hand),
		}
	}
	if g.faceUp != nil {
		faceUp := *g.faceUp
		ps.FaceUp = &faceUp
	}
	if !g.deadline.IsZero() {
		ms := g.deadline.UnixMilli()
		ps.TurnDeadline = &ms
	}
	if g.lastTrick != nil {
		last := *g.lastTrick
		last.Plays = append([]cards.Play(nil), last.Plays...)
		ps.LastTrick = &last
	}
	return ps
}

// Result summarises a finished game.
type Result struct {
	Names      [cards.Seats]string `json:"names"`
	TeamScore  [2]int              `json:"team_score"`
	WinnerTeam int                 `json:"winner_team"` // -1 on a draw
	Tricks     int                 `json:"tricks"`
	StartedAt  time.Time           `json:"started_at"`
	EndedAt    time.Time           `json:"ended_at"`
}

// Result is only meaningful once the game has ended.
func (g *Game) Result() Result {
	r := Result{
		TeamScore:  g.score,
		WinnerTeam: -1,
		Tricks:     g.tricksPlayed,
		StartedAt:  g.startedAt,
		EndedAt:    g.endedAt,
	}
	for i, s := range g.seats {
		r.Names[i] = s.Name
	}
	switch {
	case g.score[0] > g.score[1]:
		r.WinnerTeam = 0
	case g.score[1] > g.score[0]:
		r.WinnerTeam = 1
	}
	return r
}
