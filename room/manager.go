package room

import (
	"errors"
	"sort"
	"sync"

	"github.com/wfunc/serra/logger"
)

const maxCodeAttempts = 64

// --- 房间管理器 ---

// Manager 管理所有房间. The manager lock only guards the map; it is never
// held while a room lock is taken.
type Manager struct {
	rooms       map[string]*Room
	mutex       sync.RWMutex
	cfg         Config
	broadcaster Broadcaster
	observer    Observer
	newCode     func() (string, error)
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithCodeGenerator replaces GenerateCode.
func WithCodeGenerator(gen func() (string, error)) ManagerOption {
	return func(m *Manager) { m.newCode = gen }
}

// NewRoomManager 创建一个新的房间管理器. Nil broadcaster or observer are
// replaced by no-ops.
func NewRoomManager(cfg Config, broadcaster Broadcaster, observer Observer, opts ...ManagerOption) *Manager {
	if broadcaster == nil {
		broadcaster = nopBroadcaster{}
	}
	if observer == nil {
		observer = nopObserver{}
	}
	m := &Manager{
		rooms:       make(map[string]*Room),
		cfg:         cfg,
		broadcaster: broadcaster,
		observer:    observer,
		newCode:     GenerateCode,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CreateRoom opens a room under a fresh code with member in seat 0.
func (m *Manager) CreateRoom(member, name string) (*Room, int, error) {
	m.mutex.Lock()
	code, err := m.freeCodeLocked()
	if err != nil {
		m.mutex.Unlock()
		return nil, -1, err
	}
	room := newRoom(code, m.cfg, m.broadcaster, m.observer)
	// not yet visible, no room lock needed
	seat, err := room.game.Sit(member, name)
	if err != nil {
		m.mutex.Unlock()
		return nil, -1, err
	}
	m.rooms[code] = room
	m.mutex.Unlock()

	logger.Log.Infof("Room %s created by %s", code, member)
	room.mu.Lock()
	room.publishLocked(false)
	room.mu.Unlock()
	return room, seat, nil
}

func (m *Manager) freeCodeLocked() (string, error) {
	for range maxCodeAttempts {
		code, err := m.newCode()
		if err != nil {
			return "", err
		}
		if _, taken := m.rooms[code]; !taken {
			return code, nil
		}
	}
	return "", ErrCodeSpaceExhausted
}

// JoinRoom seats member in the first empty seat. Joining a room the member
// already sits in returns the existing seat.
func (m *Manager) JoinRoom(code, member, name string) (*Room, int, error) {
	room, ok := m.GetRoom(code)
	if !ok {
		return nil, -1, ErrRoomNotFound
	}
	seat, err := room.join(member, name)
	if err != nil {
		return nil, -1, err
	}
	return room, seat, nil
}

// LeaveRoom frees member's seat and deletes the room once it is empty.
// The manager lock is not held while the room publishes.
func (m *Manager) LeaveRoom(code, member string) error {
	code = NormalizeCode(code)
	room, ok := m.GetRoom(code)
	if !ok {
		return ErrRoomNotFound
	}
	empty, err := room.leave(member)
	if err != nil {
		return err
	}
	if empty {
		m.remove(room)
	}
	return nil
}

// Disconnect frees every seat member holds and returns the affected codes.
func (m *Manager) Disconnect(member string) []string {
	var codes []string
	for _, room := range m.Rooms() {
		empty, err := room.leave(member)
		if errors.Is(err, ErrNotInRoom) || errors.Is(err, ErrRoomNotFound) {
			continue
		}
		if err != nil {
			logger.Log.Warnf("Room %s: disconnect of %s failed: %v", room.Code, member, err)
			continue
		}
		codes = append(codes, room.Code)
		if empty {
			m.remove(room)
		}
	}
	return codes
}

// remove deletes a closed room unless its code already maps to another one.
func (m *Manager) remove(room *Room) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.rooms[room.Code] == room {
		delete(m.rooms, room.Code)
		logger.Log.Infof("Room %s removed, no occupants left", room.Code)
	}
}

// GetRoom 从管理器中获取一个房间
func (m *Manager) GetRoom(code string) (*Room, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	room, exists := m.rooms[NormalizeCode(code)]
	return room, exists
}

// Rooms returns the live rooms ordered by code.
func (m *Manager) Rooms() []*Room {
	m.mutex.RLock()
	rooms := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	m.mutex.RUnlock()

	sort.Slice(rooms, func(i, j int) bool { return rooms[i].Code < rooms[j].Code })
	return rooms
}

// Count returns the number of live rooms.
func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.rooms)
}
