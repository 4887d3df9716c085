package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/wfunc/serra/broadcast"
	"github.com/wfunc/serra/cards"
	"github.com/wfunc/serra/logger"
	"github.com/wfunc/serra/monitor"
	"github.com/wfunc/serra/network"
	"github.com/wfunc/serra/room"
	"github.com/wfunc/serra/services"
	"github.com/wfunc/serra/session"
	"github.com/wfunc/serra/timer"
)

// Options configures the gateway.
type Options struct {
	Addr              string
	HeartbeatInterval time.Duration // 0 disables read deadlines
	TickInterval      time.Duration
	AllowedOrigins    []string // Origin header values; empty or "*" accepts any
	Room              room.Config
}

type GameServer struct {
	opts           Options
	upgrader       websocket.Upgrader
	roomManager    *room.Manager
	sessionManager *session.Manager
	broadcaster    *broadcast.RoomBroadcaster
	monitor        *monitor.Monitor
	matches        *services.MatchService
	clock          *timer.Clock
	handlers       map[uint16]handlerFunc
	httpServer     *http.Server
	mutex          sync.Mutex
}

// NewGameServer wires rooms, sessions and the turn clock. matches may be
// nil when no history backend is configured.
func NewGameServer(opts Options, mon *monitor.Monitor, matches *services.MatchService) *GameServer {
	s := &GameServer{
		opts:           opts,
		sessionManager: session.NewManager(),
		monitor:        mon,
		matches:        matches,
	}
	s.upgrader = websocket.Upgrader{CheckOrigin: s.checkOrigin}

	// 初始化广播器
	s.broadcaster = broadcast.NewRoomBroadcaster(s.sessionManager)
	s.roomManager = room.NewRoomManager(opts.Room, s.broadcaster, s)

	s.clock = timer.NewClock(opts.TickInterval, s.tickables, timer.WithTickHook(func(int) {
		s.monitor.SetActiveRooms(s.roomManager.Count())
	}))
	s.registerHandlers()
	return s
}

// RoomManager exposes the registry to the admin RPC.
func (s *GameServer) RoomManager() *room.Manager {
	return s.roomManager
}

func (s *GameServer) tickables() []timer.Tickable {
	rooms := s.roomManager.Rooms()
	out := make([]timer.Tickable, len(rooms))
	for i, r := range rooms {
		out[i] = r
	}
	return out
}

// Handler serves /ws and /health.
func (s *GameServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	return mux
}

// RunClock drives turn deadlines until ctx is done.
func (s *GameServer) RunClock(ctx context.Context) {
	s.clock.Run(ctx)
}

// Run starts the turn clock and serves HTTP until Shutdown.
func (s *GameServer) Run(ctx context.Context) error {
	go s.RunClock(ctx)

	s.mutex.Lock()
	s.httpServer = &http.Server{Addr: s.opts.Addr, Handler: s.Handler()}
	srv := s.httpServer
	s.mutex.Unlock()

	logger.Log.Infof("Game server listening on %s", s.opts.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and closes the open ones.
func (s *GameServer) Shutdown(ctx context.Context) error {
	s.mutex.Lock()
	srv := s.httpServer
	s.mutex.Unlock()

	var err error
	if srv != nil {
		err = srv.Shutdown(ctx)
	}
	// hijacked websocket connections are not closed by http.Server
	for _, sess := range s.sessionManager.All() {
		sess.Close()
	}
	return err
}

func (s *GameServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":   "ok",
		"rooms":    s.roomManager.Count(),
		"sessions": s.sessionManager.Count(),
	})
}

// checkOrigin 跨域检查. Requests without an Origin header come from
// non-browser clients and are accepted.
func (s *GameServer) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(s.opts.AllowedOrigins) == 0 {
		return true
	}
	for _, allowed := range s.opts.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(strings.TrimSuffix(allowed, "/"), origin) {
			return true
		}
	}
	logger.Log.Infof("Rejected websocket origin %q", origin)
	return false
}

func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	wsConn := network.NewWSConnection(conn)
	if s.opts.HeartbeatInterval > 0 {
		wsConn.SetHeartbeat(s.opts.HeartbeatInterval)
	}
	s.handleConnection(wsConn)
}

func (s *GameServer) handleConnection(conn network.Connection) {
	sess := session.NewSession(uuid.New().String(), conn)
	s.sessionManager.Add(sess)
	s.monitor.IncOnlinePlayers()

	logger.Log.Infof("New connection from %s, session ID: %s", conn.RemoteAddr(), sess.GetID())

	defer func() {
		logger.Log.Infof("Connection closed from %s, session ID: %s", conn.RemoteAddr(), sess.GetID())
		// free seats before the session disappears so the others are told
		if codes := s.roomManager.Disconnect(sess.GetID()); len(codes) > 0 {
			logger.Log.Infof("Session %s left rooms %v", sess.GetID(), codes)
		}
		s.sessionManager.Remove(sess.GetID())
		s.monitor.DecOnlinePlayers()
		s.monitor.SetActiveRooms(s.roomManager.Count())
		conn.Close()
	}()

	for {
		packet, err := conn.ReadPacket()
		if errors.Is(err, io.ErrShortBuffer) {
			s.reply(sess, 0, failure(network.CodeBadRequest, "malformed frame"))
			continue
		}
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Log.Debugf("Session %s read error: %v", sess.GetID(), err)
			}
			return
		}
		s.handlePacket(sess, packet)
	}
}

func (s *GameServer) handlePacket(sess *session.Session, packet *network.Packet) {
	start := time.Now()
	s.monitor.IncMessagesReceived()
	defer func() { s.monitor.ObserveMessageLatency(time.Since(start)) }()

	sess.Touch()
	handler, ok := s.handlers[packet.MsgID]
	if !ok {
		logger.Log.Infof("Unknown message type: %d", packet.MsgID)
		s.reply(sess, packet.MsgID, failure(network.CodeBadRequest, "unknown message type"))
		return
	}
	s.reply(sess, packet.MsgID, s.dispatch(handler, sess, packet))
}

// dispatch turns a handler panic into an Internal reply.
func (s *GameServer) dispatch(h handlerFunc, sess *session.Session, packet *network.Packet) (reply network.Reply) {
	defer func() {
		if r := recover(); r != nil {
			logger.Log.Errorf("Panic handling message %d from %s: %v", packet.MsgID, sess.GetID(), r)
			reply = failure(network.CodeInternal, "internal error")
		}
	}()
	return h(sess, packet.Data)
}

func (s *GameServer) reply(sess *session.Session, msgID uint16, reply network.Reply) {
	if !reply.OK {
		s.monitor.IncRequestError(reply.Error)
	}
	data, err := json.Marshal(reply)
	if err != nil {
		logger.Log.Errorf("Failed to encode reply %d: %v", msgID, err)
		return
	}
	if err := sess.Send(msgID, data); err != nil {
		logger.Log.Debugf("Reply %d to %s failed: %v", msgID, sess.GetID(), err)
	}
}

// --- room.Observer ---

func (s *GameServer) AutoPlayed(code string, seat int, card cards.Card) {
	s.monitor.IncAutoPlays()
}

func (s *GameServer) GameEnded(summary room.Summary) {
	s.monitor.IncGamesFinished(summary.WinnerTeam)
	if s.matches != nil {
		s.matches.RecordFinishedAsync(summary)
	}
}
