// Package game implements one table of Serra: seating, the lobby/playing/ended
// phases, dealing, turns, trick resolution, stock draws and scoring.
//
// A Game is not safe for concurrent use. The owning room serializes calls.
package game

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/wfunc/serra/cards"
	"github.com/wfunc/serra/state"
)

// Phase 牌局阶段
type Phase string

const (
	PhaseLobby   Phase = "lobby"
	PhasePlaying Phase = "playing"
	PhaseEnded   Phase = "ended"
)

const maxNameLength = 24

var (
	ErrNotPlayingPhase = errors.New("game is not in playing phase")
	ErrNotYourTurn     = errors.New("not your turn")
	ErrCardNotInHand   = errors.New("card not in hand")
	ErrSeatsFull       = errors.New("no empty seat")
	ErrSeatEmpty       = errors.New("seat is not occupied")
	ErrSwapUnavailable = errors.New("trump swap unavailable")
)

// Rules are the table settings fixed at creation.
type Rules struct {
	TargetScore    int
	HandSize       int
	TurnTimeout    time.Duration
	LastTrickBonus int
	// ResetOnVacate sends a running game back to the lobby when any seat
	// empties. When false the game continues and the vacant seat is
	// auto-played at each deadline.
	ResetOnVacate  bool
	AllowTrumpSwap bool
}

// DefaultRules returns 61 points, 3-card hands, 30s turns, no last-trick bonus.
func DefaultRules() Rules {
	return Rules{
		TargetScore:    61,
		HandSize:       3,
		TurnTimeout:    30 * time.Second,
		LastTrickBonus: 0,
		ResetOnVacate:  true,
		AllowTrumpSwap: true,
	}
}

// Seat is one of the four positions at the table.
type Seat struct {
	Occupant string
	Name     string
	Ready    bool
	Hand     []cards.Card
}

// Occupied reports whether a connection holds the seat.
func (s Seat) Occupied() bool {
	return s.Occupant != ""
}

// Option configures a Game.
type Option func(*Game)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(g *Game) { g.now = now }
}

// WithShuffler fixes the shuffle source.
func WithShuffler(s cards.Shuffler) Option {
	return func(g *Game) { g.shuffler = s }
}

type Game struct {
	rules    Rules
	now      func() time.Time
	shuffler cards.Shuffler

	machine *state.BaseStateMachine
	lobby   *lobbyState
	playing *playingState
	ended   *endedState

	seats        [cards.Seats]Seat
	stock        []cards.Card
	faceUp       *cards.Card
	trump        cards.Suit
	trick        []cards.Play
	leader       int
	turn         int
	deadline     time.Time
	tricksPlayed int
	score        [2]int
	won          [2][]cards.Card
	lastTrick    *TrickResult
	startedAt    time.Time
	endedAt      time.Time
}

// New creates a table in the lobby phase.
func New(rules Rules, opts ...Option) *Game {
	if rules.HandSize <= 0 || rules.HandSize*cards.Seats >= cards.DeckSize {
		rules.HandSize = DefaultRules().HandSize
	}
	if rules.TargetScore <= 0 {
		rules.TargetScore = DefaultRules().TargetScore
	}
	if rules.TurnTimeout <= 0 {
		rules.TurnTimeout = DefaultRules().TurnTimeout
	}

	g := &Game{rules: rules, now: time.Now}
	for _, opt := range opts {
		opt(g)
	}

	g.lobby = &lobbyState{StateBase: state.StateBase{ID: string(PhaseLobby)}, g: g}
	g.playing = &playingState{StateBase: state.StateBase{ID: string(PhasePlaying)}, g: g}
	g.ended = &endedState{StateBase: state.StateBase{ID: string(PhaseEnded)}, g: g}

	g.machine = state.NewBaseStateMachine(g.lobby)
	g.machine.AddTransition(g.lobby, g.playing, g.allSeatedAndReady)
	g.machine.AddTransition(g.playing, g.ended, g.finished)
	g.machine.AddTransition(g.playing, g.lobby, nil)
	g.machine.AddTransition(g.ended, g.lobby, nil)
	return g
}

// Rules returns the table settings.
func (g *Game) Rules() Rules {
	return g.rules
}

// Phase returns the current phase.
func (g *Game) Phase() Phase {
	return Phase(g.machine.GetCurrentState().GetID())
}

// Turn is the seat expected to play next.
func (g *Game) Turn() int {
	return g.turn
}

// Deadline is the current turn deadline; zero when no clock is armed.
func (g *Game) Deadline() time.Time {
	return g.deadline
}

// Score returns both team scores.
func (g *Game) Score() [2]int {
	return g.score
}

// Trump returns the round trump suit.
func (g *Game) Trump() cards.Suit {
	return g.trump
}

// Seat returns a copy of the seat.
func (g *Game) Seat(seat int) Seat {
	if !validSeat(seat) {
		return Seat{}
	}
	s := g.seats[seat]
	s.Hand = append([]cards.Card(nil), s.Hand...)
	return s
}

// Hand returns a copy of the cards held by seat.
func (g *Game) Hand(seat int) []cards.Card {
	return g.Seat(seat).Hand
}

// SeatOf returns the seat held by occupant, or -1.
func (g *Game) SeatOf(occupant string) int {
	if occupant == "" {
		return -1
	}
	for i, s := range g.seats {
		if s.Occupant == occupant {
			return i
		}
	}
	return -1
}

// Occupants maps each occupied seat to its occupant.
func (g *Game) Occupants() map[int]string {
	out := make(map[int]string, cards.Seats)
	for i, s := range g.seats {
		if s.Occupied() {
			out[i] = s.Occupant
		}
	}
	return out
}

// Empty reports whether no seat is occupied.
func (g *Game) Empty() bool {
	for _, s := range g.seats {
		if s.Occupied() {
			return false
		}
	}
	return true
}

// Sit places occupant in the first empty seat.
func (g *Game) Sit(occupant, name string) (int, error) {
	if occupant == "" {
		return -1, errors.New("empty occupant")
	}
	for i := range g.seats {
		if g.seats[i].Occupied() {
			continue
		}
		g.seats[i].Occupant = occupant
		g.seats[i].Name = cleanName(name, i)
		g.seats[i].Ready = false
		return i, nil
	}
	return -1, ErrSeatsFull
}

// Vacate frees a seat. With ResetOnVacate a running or finished game goes
// back to the lobby and reset reports true.
func (g *Game) Vacate(seat int) (reset bool, err error) {
	if !validSeat(seat) || !g.seats[seat].Occupied() {
		return false, ErrSeatEmpty
	}
	g.seats[seat].Occupant = ""
	g.seats[seat].Name = ""
	g.seats[seat].Ready = false

	if g.rules.ResetOnVacate && g.Phase() != PhaseLobby {
		if err := g.machine.ChangeState(g.lobby); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

// SetReady toggles the ready flag and starts the game once all four seats
// are occupied and ready.
func (g *Game) SetReady(seat int, ready bool) (started bool, err error) {
	if !validSeat(seat) || !g.seats[seat].Occupied() {
		return false, ErrSeatEmpty
	}
	g.seats[seat].Ready = ready

	if g.Phase() == PhaseLobby && g.machine.CanChangeState(g.playing) {
		if err := g.machine.ChangeState(g.playing); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

func (g *Game) allSeatedAndReady() bool {
	for _, s := range g.seats {
		if !s.Occupied() || !s.Ready {
			return false
		}
	}
	return true
}

// finished: a team reached the target, or no card is left anywhere to play.
func (g *Game) finished() bool {
	if g.score[0] >= g.rules.TargetScore || g.score[1] >= g.rules.TargetScore {
		return true
	}
	return g.exhausted()
}

func (g *Game) exhausted() bool {
	if len(g.stock) > 0 || g.faceUp != nil {
		return false
	}
	for _, s := range g.seats {
		if len(s.Hand) > 0 {
			return false
		}
	}
	return true
}

func (g *Game) armDeadline() {
	g.deadline = g.now().Add(g.rules.TurnTimeout)
}

func validSeat(seat int) bool {
	return seat >= 0 && seat < cards.Seats
}

func cleanName(name string, seat int) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Sprintf("Jogador %d", seat+1)
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		name = string([]rune(name)[:maxNameLength])
	}
	return name
}
