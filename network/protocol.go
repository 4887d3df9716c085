package network

import "github.com/wfunc/serra/cards"

// Client requests. Replies reuse the request id.
const (
	MsgTypeHeartbeat  = 1
	MsgTypeJoinRoom   = 101
	MsgTypeLeaveRoom  = 102
	MsgTypeCreateRoom = 103
	MsgTypeReady      = 104
	MsgTypePlayCard   = 105
	MsgTypeChat       = 106
	MsgTypeSwapTrump  = 107
)

// Server pushes.
const (
	MsgTypeRoomState = 301
	MsgTypeHand      = 302
	MsgTypeGameEnd   = 305
)

// Reply error codes.
const (
	CodeRoomNotFound    = "RoomNotFound"
	CodeRoomFull        = "RoomFull"
	CodeNotInRoom       = "NotInRoom"
	CodeNotPlayingPhase = "NotPlayingPhase"
	CodeNotYourTurn     = "NotYourTurn"
	CodeCardNotInHand   = "CardNotInHand"
	CodeEmptyMessage    = "EmptyMessage"
	CodeSwapUnavailable = "SwapUnavailable"
	CodeBadRequest      = "BadRequest"
	CodeInternal        = "Internal"
)

type CreateRoomRequest struct {
	Name string `json:"name"`
}

type JoinRoomRequest struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// RoomRequest is used by leave and swap-trump. An empty code means the
// room the connection currently sits in.
type RoomRequest struct {
	Code string `json:"code"`
}

type ReadyRequest struct {
	Code  string `json:"code"`
	Ready *bool  `json:"ready"` // defaults to true
}

type PlayCardRequest struct {
	Code string `json:"code"`
	Card string `json:"card"`
}

type ChatRequest struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

// Reply answers every request.
type Reply struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
	Seat    *int   `json:"seat,omitempty"`
	State   any    `json:"state,omitempty"`
}

// HandPayload is pushed privately to one seat.
type HandPayload struct {
	Code  string       `json:"code"`
	Seat  int          `json:"seat"`
	Cards []cards.Card `json:"cards"`
}
