package room

import "github.com/wfunc/serra/cards"

// Broadcaster defines the interface for delivering encoded messages to room
// members. Members are connection ids. This is defined here to break the
// import cycle between room and broadcast.
type Broadcaster interface {
	BroadcastToRoom(members []string, msgID uint16, data []byte) error
	SendTo(member string, msgID uint16, data []byte) error
}

// Observer receives room events that happen outside a player request.
// Calls are made with the room locked; implementations must not call back
// into the room and must not block.
type Observer interface {
	AutoPlayed(code string, seat int, card cards.Card)
	GameEnded(summary Summary)
}

type nopBroadcaster struct{}

func (nopBroadcaster) BroadcastToRoom([]string, uint16, []byte) error { return nil }
func (nopBroadcaster) SendTo(string, uint16, []byte) error            { return nil }

type nopObserver struct{}

func (nopObserver) AutoPlayed(string, int, cards.Card) {}
func (nopObserver) GameEnded(Summary)                  {}
