package game

import (
	"time"

	"github.com/wfunc/serra/cards"
	"github.com/wfunc/serra/state"
)

// 大厅：进入时清空本局数据，座位与准备状态保留
type lobbyState struct {
	state.StateBase
	g *Game
}

func (s *lobbyState) OnEnter() {
	s.g.resetRound()
}

// 游戏中：进入时洗牌发牌
type playingState struct {
	state.StateBase
	g *Game
}

func (s *playingState) OnEnter() {
	s.g.deal()
}

// 结束：时钟永久停止
type endedState struct {
	state.StateBase
	g *Game
}

func (s *endedState) OnEnter() {
	s.g.deadline = time.Time{}
	s.g.endedAt = s.g.now()
}

func (g *Game) resetRound() {
	for i := range g.seats {
		g.seats[i].Hand = nil
	}
	g.stock = nil
	g.faceUp = nil
	g.trump = ""
	g.trick = nil
	g.leader, g.turn = 0, 0
	g.deadline = time.Time{}
	g.tricksPlayed = 0
	g.score = [2]int{}
	g.won = [2][]cards.Card{}
	g.lastTrick = nil
	g.startedAt, g.endedAt = time.Time{}, time.Time{}
}

// deal turns up the first card of a fresh deck as trump and hands out
// HandSize cards per seat in seat order. The rest is the stock.
func (g *Game) deal() {
	g.resetRound()

	deck := cards.Shuffle(cards.BuildDeck(), g.shuffler)
	faceUp := deck[0]
	deck = deck[1:]
	g.faceUp = &faceUp
	g.trump = faceUp.Suit

	for i := range g.seats {
		g.seats[i].Hand = append([]cards.Card(nil), deck[:g.rules.HandSize]...)
		deck = deck[g.rules.HandSize:]
	}
	g.stock = deck

	g.startedAt = g.now()
	g.armDeadline()
}
