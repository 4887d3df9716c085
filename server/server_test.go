package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/serra/game"
	"github.com/wfunc/serra/models"
	"github.com/wfunc/serra/monitor"
	"github.com/wfunc/serra/network"
	"github.com/wfunc/serra/room"
	"github.com/wfunc/serra/services"
	"github.com/wfunc/serra/session"
)

const waitFor = 5 * time.Second

// MockDatabase collects archived matches.
type MockDatabase struct {
	mu      sync.Mutex
	records []models.GameRecord
}

func (m *MockDatabase) SaveGameRecord(ctx context.Context, record *models.GameRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	record.ID = int64(len(m.records) + 1)
	m.records = append(m.records, *record)
	return nil
}

func (m *MockDatabase) RecentGameRecords(ctx context.Context, limit int) ([]models.GameRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.GameRecord(nil), m.records...), nil
}

func (m *MockDatabase) Close() error { return nil }

func (m *MockDatabase) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

type replyMsg struct {
	OK      bool            `json:"ok"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
	Code    string          `json:"code"`
	Seat    *int            `json:"seat"`
	State   json.RawMessage `json:"state"`
}

// testClient speaks the binary frame protocol. Frames that were not asked
// for yet stay queued.
type testClient struct {
	t       *testing.T
	conn    *websocket.Conn
	pending []*network.Packet
}

func dial(t *testing.T, ts *httptest.Server) *testClient {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &testClient{t: t, conn: conn}
}

func (c *testClient) send(msgID uint16, v any) {
	c.t.Helper()
	var data []byte
	if v != nil {
		var err error
		data, err = json.Marshal(v)
		require.NoError(c.t, err)
	}
	c.sendRaw(msgID, data)
}

func (c *testClient) sendRaw(msgID uint16, data []byte) {
	c.t.Helper()
	packet, err := network.EncodePacket(msgID, data)
	require.NoError(c.t, err)
	require.NoError(c.t, c.conn.WriteMessage(websocket.BinaryMessage, packet))
}

func (c *testClient) expect(msgID uint16) *network.Packet {
	c.t.Helper()
	for {
		for i, p := range c.pending {
			if p.MsgID == msgID {
				c.pending = append(c.pending[:i], c.pending[i+1:]...)
				return p
			}
		}
		c.conn.SetReadDeadline(time.Now().Add(waitFor))
		_, data, err := c.conn.ReadMessage()
		require.NoError(c.t, err, "waiting for message %d", msgID)
		packet, err := network.DecodePacket(data)
		require.NoError(c.t, err)
		c.pending = append(c.pending, packet)
	}
}

func (c *testClient) call(msgID uint16, v any) replyMsg {
	c.t.Helper()
	c.send(msgID, v)
	return c.reply(msgID)
}

func (c *testClient) reply(msgID uint16) replyMsg {
	c.t.Helper()
	var r replyMsg
	require.NoError(c.t, json.Unmarshal(c.expect(msgID).Data, &r))
	return r
}

// stateWhere reads room state pushes until match accepts one.
func (c *testClient) stateWhere(match func(room.State) bool) room.State {
	c.t.Helper()
	for {
		var st room.State
		require.NoError(c.t, json.Unmarshal(c.expect(network.MsgTypeRoomState).Data, &st))
		if match(st) {
			return st
		}
	}
}

func (c *testClient) hand() network.HandPayload {
	c.t.Helper()
	var h network.HandPayload
	require.NoError(c.t, json.Unmarshal(c.expect(network.MsgTypeHand).Data, &h))
	return h
}

var registryCount int

func newTestServer(t *testing.T, rules game.Rules, matches *services.MatchService) (*GameServer, *httptest.Server) {
	t.Helper()
	cfg := room.DefaultConfig()
	cfg.Rules = rules

	registryCount++
	mon := monitor.NewMonitor(fmt.Sprintf("serra_test_%d", registryCount), prometheus.NewRegistry())
	gs := NewGameServer(Options{TickInterval: 2 * time.Millisecond, Room: cfg}, mon, matches)

	ts := httptest.NewServer(gs.Handler())
	t.Cleanup(ts.Close)
	return gs, ts
}

// seatFour creates a room and fills it. clients[i] sits at seat i.
func seatFour(t *testing.T, ts *httptest.Server) (string, []*testClient) {
	t.Helper()
	clients := make([]*testClient, 4)
	clients[0] = dial(t, ts)
	created := clients[0].call(network.MsgTypeCreateRoom, network.CreateRoomRequest{Name: "Ana"})
	require.True(t, created.OK, created.Error)
	code := created.Code

	for i := 1; i < 4; i++ {
		clients[i] = dial(t, ts)
		r := clients[i].call(network.MsgTypeJoinRoom, network.JoinRoomRequest{Code: code, Name: fmt.Sprintf("P%d", i)})
		require.True(t, r.OK, r.Error)
		require.Equal(t, i, *r.Seat)
	}
	return code, clients
}

func readyAll(t *testing.T, clients []*testClient) {
	t.Helper()
	for _, c := range clients {
		r := c.call(network.MsgTypeReady, network.ReadyRequest{})
		require.True(t, r.OK, r.Error)
	}
}

func TestCreateAndJoinRoom(t *testing.T) {
	_, ts := newTestServer(t, game.DefaultRules(), nil)

	host := dial(t, ts)
	created := host.call(network.MsgTypeCreateRoom, network.CreateRoomRequest{Name: "Ana"})
	require.True(t, created.OK)
	assert.Len(t, created.Code, room.CodeLength)
	require.NotNil(t, created.Seat)
	assert.Equal(t, 0, *created.Seat)

	guest := dial(t, ts)
	joined := guest.call(network.MsgTypeJoinRoom, network.JoinRoomRequest{Code: strings.ToLower(created.Code), Name: "Bia"})
	require.True(t, joined.OK, joined.Error)
	assert.Equal(t, created.Code, joined.Code)
	assert.Equal(t, 1, *joined.Seat)

	var st room.State
	require.NoError(t, json.Unmarshal(joined.State, &st))
	assert.Equal(t, "Ana", st.Seats[0].Name)
	assert.Equal(t, game.PhaseLobby, st.Phase)

	pushed := host.stateWhere(func(s room.State) bool { return s.Seats[1].Occupied })
	assert.Equal(t, "Bia", pushed.Seats[1].Name)
}

func TestJoinErrors(t *testing.T) {
	_, ts := newTestServer(t, game.DefaultRules(), nil)

	c := dial(t, ts)
	r := c.call(network.MsgTypeJoinRoom, network.JoinRoomRequest{Code: "ZZZZZ"})
	assert.False(t, r.OK)
	assert.Equal(t, network.CodeRoomNotFound, r.Error)

	r = c.call(network.MsgTypeJoinRoom, network.JoinRoomRequest{})
	assert.Equal(t, network.CodeBadRequest, r.Error)

	code, _ := seatFour(t, ts)
	r = c.call(network.MsgTypeJoinRoom, network.JoinRoomRequest{Code: code})
	assert.Equal(t, network.CodeRoomFull, r.Error)
}

func TestBadRequests(t *testing.T) {
	_, ts := newTestServer(t, game.DefaultRules(), nil)
	c := dial(t, ts)

	c.sendRaw(network.MsgTypeCreateRoom, []byte("{not json"))
	assert.Equal(t, network.CodeBadRequest, c.reply(network.MsgTypeCreateRoom).Error)

	unknown := c.call(999, nil)
	assert.False(t, unknown.OK)
	assert.Equal(t, network.CodeBadRequest, unknown.Error)

	// short frame keeps the connection open
	require.NoError(t, c.conn.WriteMessage(websocket.BinaryMessage, []byte{0x00}))
	assert.Equal(t, network.CodeBadRequest, c.reply(0).Error)

	hb := c.call(network.MsgTypeHeartbeat, nil)
	assert.True(t, hb.OK)

	r := c.call(network.MsgTypeChat, network.ChatRequest{Msg: "oi"})
	assert.Equal(t, network.CodeNotInRoom, r.Error)
}

func TestChatAndLobbyErrors(t *testing.T) {
	_, ts := newTestServer(t, game.DefaultRules(), nil)
	c := dial(t, ts)
	require.True(t, c.call(network.MsgTypeCreateRoom, network.CreateRoomRequest{Name: "Ana"}).OK)

	r := c.call(network.MsgTypeChat, network.ChatRequest{Msg: "   "})
	assert.Equal(t, network.CodeEmptyMessage, r.Error)

	r = c.call(network.MsgTypeChat, network.ChatRequest{Msg: "bora"})
	require.True(t, r.OK)
	st := c.stateWhere(func(s room.State) bool { return len(s.Chat) == 1 })
	assert.Equal(t, "bora", st.Chat[0].Text)
	assert.Equal(t, "Ana", st.Chat[0].Name)

	r = c.call(network.MsgTypePlayCard, network.PlayCardRequest{Card: "7♠"})
	assert.Equal(t, network.CodeNotPlayingPhase, r.Error)

	r = c.call(network.MsgTypePlayCard, network.PlayCardRequest{})
	assert.Equal(t, network.CodeBadRequest, r.Error)
}

func TestReadyDealsAndPlay(t *testing.T) {
	_, ts := newTestServer(t, game.DefaultRules(), nil)
	code, clients := seatFour(t, ts)
	readyAll(t, clients)

	hands := make([]network.HandPayload, 4)
	for i, c := range clients {
		hands[i] = c.hand()
		assert.Equal(t, code, hands[i].Code)
		assert.Equal(t, i, hands[i].Seat)
		assert.Len(t, hands[i].Cards, game.DefaultRules().HandSize)
	}

	st := clients[0].stateWhere(func(s room.State) bool { return s.Phase == game.PhasePlaying })
	turn := st.TurnSeat
	other := (turn + 1) % 4

	r := clients[other].call(network.MsgTypePlayCard, network.PlayCardRequest{Card: hands[other].Cards[0].ID()})
	assert.Equal(t, network.CodeNotYourTurn, r.Error)

	r = clients[turn].call(network.MsgTypePlayCard, network.PlayCardRequest{Card: hands[other].Cards[0].ID()})
	assert.Equal(t, network.CodeCardNotInHand, r.Error)

	r = clients[other].call(network.MsgTypeSwapTrump, nil)
	assert.Equal(t, network.CodeNotYourTurn, r.Error)

	swap := clients[turn].call(network.MsgTypeSwapTrump, nil)
	if swap.OK {
		assert.NotEmpty(t, swap.Message)
		hands[turn] = clients[turn].hand()
	} else {
		assert.Equal(t, network.CodeSwapUnavailable, swap.Error)
	}

	card := hands[turn].Cards[0]
	r = clients[turn].call(network.MsgTypePlayCard, network.PlayCardRequest{Code: code, Card: card.ID()})
	require.True(t, r.OK, r.Error)

	after := clients[other].stateWhere(func(s room.State) bool { return len(s.Trick) == 1 })
	assert.Equal(t, turn, after.Trick[0].Seat)
	assert.Equal(t, card, after.Trick[0].Card)
	assert.Equal(t, other, after.TurnSeat)
}

func TestDisconnectResetsRoom(t *testing.T) {
	gs, ts := newTestServer(t, game.DefaultRules(), nil)
	_, clients := seatFour(t, ts)
	readyAll(t, clients)
	clients[0].stateWhere(func(s room.State) bool { return s.Phase == game.PhasePlaying })

	require.NoError(t, clients[3].conn.Close())

	st := clients[0].stateWhere(func(s room.State) bool {
		return s.Phase == game.PhaseLobby && !s.Seats[3].Occupied
	})
	assert.True(t, st.Seats[1].Occupied)
	assert.Eventually(t, func() bool { return gs.sessionManager.Count() == 3 }, waitFor, 10*time.Millisecond)
}

func TestLeaveDeletesEmptyRoom(t *testing.T) {
	gs, ts := newTestServer(t, game.DefaultRules(), nil)
	c := dial(t, ts)
	created := c.call(network.MsgTypeCreateRoom, network.CreateRoomRequest{Name: "Ana"})
	require.True(t, created.OK)

	// creating again moves the connection to the new room
	second := c.call(network.MsgTypeCreateRoom, network.CreateRoomRequest{Name: "Ana"})
	require.True(t, second.OK)
	assert.Equal(t, 1, gs.RoomManager().Count())

	r := c.call(network.MsgTypeLeaveRoom, nil)
	require.True(t, r.OK, r.Error)
	assert.Equal(t, second.Code, r.Code)
	assert.Equal(t, 0, gs.RoomManager().Count())

	r = c.call(network.MsgTypeLeaveRoom, nil)
	assert.Equal(t, network.CodeNotInRoom, r.Error)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	var health map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health["status"])
	assert.EqualValues(t, 0, health["rooms"])
	assert.EqualValues(t, 1, health["sessions"])
}

func TestGameRunsOnTimeoutsAndIsRecorded(t *testing.T) {
	rules := game.DefaultRules()
	rules.TurnTimeout = 5 * time.Millisecond

	db := &MockDatabase{}
	matches := services.NewMatchService(db, nil)
	gs, ts := newTestServer(t, rules, matches)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go gs.RunClock(ctx)

	_, clients := seatFour(t, ts)
	readyAll(t, clients)

	var summary room.Summary
	require.NoError(t, json.Unmarshal(clients[2].expect(network.MsgTypeGameEnd).Data, &summary))
	score := summary.TeamScore
	assert.True(t, score[0] >= 61 || score[1] >= 61 || score[0]+score[1] == 120)
	assert.Equal(t, "Ana", summary.Names[0])

	require.Eventually(t, func() bool { return db.count() == 1 }, waitFor, 10*time.Millisecond)
	matches.Wait()
	recent, err := matches.RecentMatches(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, summary.Code, recent[0].RoomCode)
}

func TestDispatchRecoversPanic(t *testing.T) {
	gs, _ := newTestServer(t, game.DefaultRules(), nil)
	sess := session.NewSession("s1", nil)

	reply := gs.dispatch(func(*session.Session, []byte) network.Reply {
		panic("boom")
	}, sess, &network.Packet{MsgID: network.MsgTypeChat})
	assert.False(t, reply.OK)
	assert.Equal(t, network.CodeInternal, reply.Error)
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		err  error
		code string
	}{
		{room.ErrRoomNotFound, network.CodeRoomNotFound},
		{room.ErrRoomFull, network.CodeRoomFull},
		{fmt.Errorf("wrapped: %w", room.ErrNotInRoom), network.CodeNotInRoom},
		{game.ErrNotPlayingPhase, network.CodeNotPlayingPhase},
		{game.ErrNotYourTurn, network.CodeNotYourTurn},
		{game.ErrCardNotInHand, network.CodeCardNotInHand},
		{room.ErrEmptyMessage, network.CodeEmptyMessage},
		{game.ErrSwapUnavailable, network.CodeSwapUnavailable},
		{decode([]byte("["), &struct{}{}), network.CodeBadRequest},
		{errors.New("disk on fire"), network.CodeInternal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.code, errorCode(tt.err), tt.err.Error())
	}

	assert.Equal(t, "internal error", errorReply(errors.New("secret detail")).Message)
}

func TestAllowedOrigins(t *testing.T) {
	mon := monitor.NewMonitor("serra_origin_test", prometheus.NewRegistry())
	gs := NewGameServer(Options{
		TickInterval:   time.Second,
		AllowedOrigins: []string{"https://serra.example"},
		Room:           room.DefaultConfig(),
	}, mon, nil)
	ts := httptest.NewServer(gs.Handler())
	defer ts.Close()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://evil.example"}})
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://SERRA.example"}})
	require.NoError(t, err)
	conn.Close()

	// non-browser clients send no Origin
	conn, _, err = websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	conn.Close()
}
