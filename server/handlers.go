package server

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/wfunc/serra/game"
	"github.com/wfunc/serra/logger"
	"github.com/wfunc/serra/network"
	"github.com/wfunc/serra/room"
	"github.com/wfunc/serra/session"
)

var errBadRequest = errors.New("bad request")

type handlerFunc func(sess *session.Session, data []byte) network.Reply

func (s *GameServer) registerHandlers() {
	s.handlers = map[uint16]handlerFunc{
		network.MsgTypeHeartbeat:  s.handleHeartbeat,
		network.MsgTypeCreateRoom: s.handleCreateRoom,
		network.MsgTypeJoinRoom:   s.handleJoinRoom,
		network.MsgTypeLeaveRoom:  s.handleLeaveRoom,
		network.MsgTypeReady:      s.handleReady,
		network.MsgTypePlayCard:   s.handlePlayCard,
		network.MsgTypeChat:       s.handleChat,
		network.MsgTypeSwapTrump:  s.handleSwapTrump,
	}
}

func decode(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

// errorCode maps an operation error onto its reply code.
func errorCode(err error) string {
	switch {
	case errors.Is(err, room.ErrRoomNotFound):
		return network.CodeRoomNotFound
	case errors.Is(err, room.ErrRoomFull):
		return network.CodeRoomFull
	case errors.Is(err, room.ErrNotInRoom):
		return network.CodeNotInRoom
	case errors.Is(err, game.ErrNotPlayingPhase):
		return network.CodeNotPlayingPhase
	case errors.Is(err, game.ErrNotYourTurn):
		return network.CodeNotYourTurn
	case errors.Is(err, game.ErrCardNotInHand):
		return network.CodeCardNotInHand
	case errors.Is(err, room.ErrEmptyMessage):
		return network.CodeEmptyMessage
	case errors.Is(err, game.ErrSwapUnavailable):
		return network.CodeSwapUnavailable
	case errors.Is(err, errBadRequest):
		return network.CodeBadRequest
	default:
		return network.CodeInternal
	}
}

func failure(code, message string) network.Reply {
	return network.Reply{Error: code, Message: message}
}

func errorReply(err error) network.Reply {
	code := errorCode(err)
	if code == network.CodeInternal {
		logger.Log.Errorf("Request failed: %v", err)
		return failure(code, "internal error")
	}
	return failure(code, err.Error())
}

// roomFor resolves the request code, falling back to the session's room.
func (s *GameServer) roomFor(sess *session.Session, code string) (*room.Room, error) {
	if code == "" {
		code = sess.RoomCode()
	}
	if code == "" {
		return nil, room.ErrNotInRoom
	}
	r, ok := s.roomManager.GetRoom(code)
	if !ok {
		return nil, room.ErrRoomNotFound
	}
	return r, nil
}

// enter records r as the session's room and leaves the previous one.
func (s *GameServer) enter(sess *session.Session, r *room.Room) {
	prev := sess.RoomCode()
	sess.SetRoomCode(r.Code)
	if prev == "" || prev == r.Code {
		return
	}
	if err := s.roomManager.LeaveRoom(prev, sess.GetID()); err != nil && !errors.Is(err, room.ErrRoomNotFound) {
		logger.Log.Warnf("Session %s could not leave %s: %v", sess.GetID(), prev, err)
	}
}

func (s *GameServer) handleHeartbeat(sess *session.Session, data []byte) network.Reply {
	return network.Reply{OK: true}
}

func (s *GameServer) handleCreateRoom(sess *session.Session, data []byte) network.Reply {
	var req network.CreateRoomRequest
	if err := decode(data, &req); err != nil {
		return errorReply(err)
	}
	if req.Name == "" {
		req.Name = sess.Name()
	}

	r, seat, err := s.roomManager.CreateRoom(sess.GetID(), req.Name)
	if err != nil {
		return errorReply(err)
	}
	sess.SetName(req.Name)
	s.enter(sess, r)
	s.monitor.SetActiveRooms(s.roomManager.Count())

	logger.Log.Infof("Session %s created room %s", sess.GetID(), r.Code)
	return network.Reply{OK: true, Code: r.Code, Seat: &seat, State: r.Snapshot()}
}

func (s *GameServer) handleJoinRoom(sess *session.Session, data []byte) network.Reply {
	var req network.JoinRoomRequest
	if err := decode(data, &req); err != nil {
		return errorReply(err)
	}
	if req.Code == "" {
		return failure(network.CodeBadRequest, "code is required")
	}
	if req.Name == "" {
		req.Name = sess.Name()
	}

	r, seat, err := s.roomManager.JoinRoom(req.Code, sess.GetID(), req.Name)
	if err != nil {
		return errorReply(err)
	}
	sess.SetName(req.Name)
	s.enter(sess, r)

	logger.Log.Infof("Session %s joined room %s at seat %d", sess.GetID(), r.Code, seat)
	return network.Reply{OK: true, Code: r.Code, Seat: &seat, State: r.Snapshot()}
}

func (s *GameServer) handleLeaveRoom(sess *session.Session, data []byte) network.Reply {
	var req network.RoomRequest
	if err := decode(data, &req); err != nil {
		return errorReply(err)
	}
	code := room.NormalizeCode(req.Code)
	if code == "" {
		code = sess.RoomCode()
	}
	if code == "" {
		return errorReply(room.ErrNotInRoom)
	}

	if err := s.roomManager.LeaveRoom(code, sess.GetID()); err != nil {
		return errorReply(err)
	}
	if sess.RoomCode() == code {
		sess.SetRoomCode("")
	}
	s.monitor.SetActiveRooms(s.roomManager.Count())
	return network.Reply{OK: true, Code: code}
}

func (s *GameServer) handleReady(sess *session.Session, data []byte) network.Reply {
	var req network.ReadyRequest
	if err := decode(data, &req); err != nil {
		return errorReply(err)
	}
	ready := req.Ready == nil || *req.Ready

	r, err := s.roomFor(sess, req.Code)
	if err != nil {
		return errorReply(err)
	}
	if err := r.SetReady(sess.GetID(), ready); err != nil {
		return errorReply(err)
	}
	return network.Reply{OK: true, Code: r.Code}
}

func (s *GameServer) handlePlayCard(sess *session.Session, data []byte) network.Reply {
	var req network.PlayCardRequest
	if err := decode(data, &req); err != nil {
		return errorReply(err)
	}
	if req.Card == "" {
		return failure(network.CodeBadRequest, "card is required")
	}

	r, err := s.roomFor(sess, req.Code)
	if err != nil {
		return errorReply(err)
	}
	if _, err := r.Play(sess.GetID(), req.Card); err != nil {
		return errorReply(err)
	}
	return network.Reply{OK: true, Code: r.Code}
}

func (s *GameServer) handleChat(sess *session.Session, data []byte) network.Reply {
	var req network.ChatRequest
	if err := decode(data, &req); err != nil {
		return errorReply(err)
	}

	r, err := s.roomFor(sess, req.Code)
	if err != nil {
		return errorReply(err)
	}
	if err := r.Chat(sess.GetID(), req.Msg); err != nil {
		return errorReply(err)
	}
	return network.Reply{OK: true, Code: r.Code}
}

func (s *GameServer) handleSwapTrump(sess *session.Session, data []byte) network.Reply {
	var req network.RoomRequest
	if err := decode(data, &req); err != nil {
		return errorReply(err)
	}

	r, err := s.roomFor(sess, req.Code)
	if err != nil {
		return errorReply(err)
	}
	taken, err := r.SwapTrump(sess.GetID())
	if err != nil {
		return errorReply(err)
	}
	return network.Reply{OK: true, Code: r.Code, Message: taken.ID()}
}
