// broadcast/broadcast.go
package broadcast

import (
	"errors"
	"fmt"

	"github.com/wfunc/serra/room"
	"github.com/wfunc/serra/session"
)

var (
	ErrSessionNotFound = errors.New("session not found")
)

var _ room.Broadcaster = (*RoomBroadcaster)(nil)

// 基于会话的广播器. Room members are session ids.
type RoomBroadcaster struct {
	sessionManager *session.Manager
}

func NewRoomBroadcaster(sessionManager *session.Manager) *RoomBroadcaster {
	return &RoomBroadcaster{
		sessionManager: sessionManager,
	}
}

// BroadcastToRoom sends to every member that still has a session. Delivery
// continues past failures; all of them are returned together.
func (b *RoomBroadcaster) BroadcastToRoom(members []string, msgID uint16, data []byte) error {
	var errs []error
	for _, m := range members {
		if err := b.SendTo(m, msgID, data); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (b *RoomBroadcaster) SendTo(member string, msgID uint16, data []byte) error {
	s, ok := b.sessionManager.Get(member)
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, member)
	}
	if err := s.Send(msgID, data); err != nil {
		return fmt.Errorf("send %d to %s: %w", msgID, member, err)
	}
	return nil
}
