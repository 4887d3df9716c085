// room/room.go
package room

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/wfunc/serra/cards"
	"github.com/wfunc/serra/game"
	"github.com/wfunc/serra/logger"
	"github.com/wfunc/serra/network"
)

var (
	ErrRoomNotFound       = errors.New("room not found")
	ErrRoomFull           = errors.New("room is full")
	ErrNotInRoom          = errors.New("not in room")
	ErrEmptyMessage       = errors.New("empty chat message")
	ErrCodeSpaceExhausted = errors.New("could not allocate a free room code")
)

// Config holds the settings shared by every room of a Manager.
type Config struct {
	Rules         game.Rules
	ChatMaxLength int // runes
	ChatHistory   int // messages kept
	// Clock replaces time.Now for rooms and their games.
	Clock       func() time.Time
	GameOptions []game.Option
}

func DefaultConfig() Config {
	return Config{
		Rules:         game.DefaultRules(),
		ChatMaxLength: 80,
		ChatHistory:   25,
	}
}

// ChatMessage 聊天记录
type ChatMessage struct {
	Seat int    `json:"seat"`
	Name string `json:"name"`
	Text string `json:"msg"`
	At   int64  `json:"ts"` // epoch ms
}

// State is the public room snapshot pushed to every occupant.
type State struct {
	Code string `json:"code"`
	game.PublicState
	Chat []ChatMessage `json:"chat"`
}

// Summary describes a finished game in a room.
type Summary struct {
	Code string `json:"code"`
	game.Result
}

// Room 是游戏房间的核心结构. All access to the game goes through mu.
type Room struct {
	Code      string
	CreatedAt time.Time

	cfg         Config
	now         func() time.Time
	game        *game.Game
	chat        []ChatMessage
	broadcaster Broadcaster
	observer    Observer

	mu     sync.Mutex
	closed bool
}

func newRoom(code string, cfg Config, broadcaster Broadcaster, observer Observer) *Room {
	now := cfg.Clock
	opts := cfg.GameOptions
	if now == nil {
		now = time.Now
	} else {
		opts = append([]game.Option{game.WithClock(now)}, opts...)
	}
	return &Room{
		Code:        code,
		CreatedAt:   now(),
		cfg:         cfg,
		now:         now,
		game:        game.New(cfg.Rules, opts...),
		broadcaster: broadcaster,
		observer:    observer,
	}
}

// Snapshot returns the public state.
func (r *Room) Snapshot() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// Phase returns the current game phase.
func (r *Room) Phase() game.Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.game.Phase()
}

// SeatOf returns member's seat or -1.
func (r *Room) SeatOf(member string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.game.SeatOf(member)
}

// Hand returns a copy of member's cards.
func (r *Room) Hand(member string) ([]cards.Card, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seat, err := r.seatLocked(member)
	if err != nil {
		return nil, err
	}
	return r.game.Hand(seat), nil
}

// SetReady marks member ready or not; the deal happens once all four are.
func (r *Room) SetReady(member string, ready bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	seat, err := r.seatLocked(member)
	if err != nil {
		return err
	}
	started, err := r.game.SetReady(seat, ready)
	if err != nil {
		return err
	}
	if started {
		logger.Log.Infof("Room %s: game started, trump %s", r.Code, r.game.Trump())
	}
	r.publishLocked(started)
	return nil
}

// Play plays cardID from member's hand.
func (r *Room) Play(member, cardID string) (game.Outcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	seat, err := r.seatLocked(member)
	if err != nil {
		return game.Outcome{}, err
	}
	out, err := r.game.Play(seat, cardID)
	if err != nil {
		return game.Outcome{}, err
	}
	r.afterPlayLocked(out)
	return out, nil
}

// SwapTrump exchanges member's qualifying card for the face-up card and
// returns the card taken.
func (r *Room) SwapTrump(member string) (cards.Card, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	seat, err := r.seatLocked(member)
	if err != nil {
		return cards.Card{}, err
	}
	taken, err := r.game.SwapTrump(seat)
	if err != nil {
		return cards.Card{}, err
	}
	logger.Log.Infof("Room %s: seat %d swapped for %s", r.Code, seat, taken)
	r.publishLocked(true)
	return taken, nil
}

// Chat appends a message from member to the room log.
func (r *Room) Chat(member, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	seat, err := r.seatLocked(member)
	if err != nil {
		return err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}
	if limit := r.cfg.ChatMaxLength; limit > 0 && utf8.RuneCountInString(text) > limit {
		text = string([]rune(text)[:limit])
	}

	r.chat = append(r.chat, ChatMessage{
		Seat: seat,
		Name: r.game.Seat(seat).Name,
		Text: text,
		At:   r.now().UnixMilli(),
	})
	if keep := r.cfg.ChatHistory; keep > 0 && len(r.chat) > keep {
		r.chat = append([]ChatMessage(nil), r.chat[len(r.chat)-keep:]...)
	}
	r.publishLocked(false)
	return nil
}

// Tick applies an expired turn deadline. A room busy with another
// operation is skipped and reports false; the next tick retries.
func (r *Room) Tick(now time.Time) bool {
	if !r.mu.TryLock() {
		return false
	}
	defer r.mu.Unlock()

	if r.closed {
		return false
	}
	ap, ok := r.game.ExpireTurn(now)
	if !ok {
		return false
	}
	if ap.Aborted {
		logger.Log.Infof("Room %s: seat %d empty at deadline, back to lobby", r.Code, ap.Seat)
		r.publishLocked(true)
		return true
	}

	logger.Log.Infof("Room %s: turn expired, auto-played %s for seat %d", r.Code, ap.Outcome.Card, ap.Seat)
	r.observer.AutoPlayed(r.Code, ap.Seat, ap.Outcome.Card)
	r.afterPlayLocked(ap.Outcome)
	return true
}

// join seats member, or returns its current seat if already seated.
func (r *Room) join(member, name string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return -1, ErrRoomNotFound
	}
	if seat := r.game.SeatOf(member); seat >= 0 {
		return seat, nil
	}
	seat, err := r.game.Sit(member, name)
	if errors.Is(err, game.ErrSeatsFull) {
		return -1, ErrRoomFull
	}
	if err != nil {
		return -1, err
	}
	logger.Log.Infof("Room %s: %s took seat %d", r.Code, member, seat)
	// a joiner can inherit a hand when vacated seats keep playing
	r.publishLocked(r.game.Phase() != game.PhaseLobby)
	return seat, nil
}

// leave frees member's seat. empty reports that the room is now closed.
func (r *Room) leave(member string) (empty bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	seat, err := r.seatLocked(member)
	if err != nil {
		return false, err
	}
	reset, err := r.game.Vacate(seat)
	if err != nil {
		return false, err
	}
	logger.Log.Infof("Room %s: seat %d vacated", r.Code, seat)

	if r.game.Empty() {
		r.closed = true
		return true, nil
	}
	r.publishLocked(reset)
	return false, nil
}

func (r *Room) seatLocked(member string) (int, error) {
	if r.closed {
		return -1, ErrRoomNotFound
	}
	seat := r.game.SeatOf(member)
	if seat < 0 {
		return -1, ErrNotInRoom
	}
	return seat, nil
}

func (r *Room) afterPlayLocked(out game.Outcome) {
	if t := out.Trick; t != nil {
		logger.Log.Debugf("Room %s: trick %d to seat %d for %d points", r.Code, t.Number, t.Winner, t.Points)
	}
	r.publishLocked(true)
	if !out.Ended {
		return
	}

	summary := Summary{Code: r.Code, Result: r.game.Result()}
	logger.Log.Infof("Room %s: game ended %d-%d", r.Code, summary.TeamScore[0], summary.TeamScore[1])
	if data, err := json.Marshal(summary); err == nil {
		r.sendLocked(network.MsgTypeGameEnd, data)
	}
	r.observer.GameEnded(summary)
}

func (r *Room) snapshotLocked() State {
	return State{
		Code:        r.Code,
		PublicState: r.game.Snapshot(),
		Chat:        append([]ChatMessage{}, r.chat...),
	}
}

// publishLocked pushes the public state to every occupant and, when hands
// changed, each occupant's private hand.
func (r *Room) publishLocked(hands bool) {
	data, err := json.Marshal(r.snapshotLocked())
	if err != nil {
		logger.Log.Errorf("Room %s: failed to encode state: %v", r.Code, err)
		return
	}
	r.sendLocked(network.MsgTypeRoomState, data)
	if !hands {
		return
	}

	for seat, member := range r.game.Occupants() {
		hand := r.game.Hand(seat)
		if hand == nil {
			hand = []cards.Card{}
		}
		data, err := json.Marshal(network.HandPayload{Code: r.Code, Seat: seat, Cards: hand})
		if err != nil {
			logger.Log.Errorf("Room %s: failed to encode hand: %v", r.Code, err)
			continue
		}
		if err := r.broadcaster.SendTo(member, network.MsgTypeHand, data); err != nil {
			logger.Log.Warnf("Room %s: hand to %s failed: %v", r.Code, member, err)
		}
	}
}

func (r *Room) sendLocked(msgID uint16, data []byte) {
	occupants := r.game.Occupants()
	members := make([]string, 0, len(occupants))
	for _, m := range occupants {
		members = append(members, m)
	}
	if err := r.broadcaster.BroadcastToRoom(members, msgID, data); err != nil {
		logger.Log.Warnf("Room %s: broadcast %d failed: %v", r.Code, msgID, err)
	}
}
