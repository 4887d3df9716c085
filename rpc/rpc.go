package rpc

import (
	"context"
	"errors"
	"net"
	"net/rpc"
	"time"

	"github.com/wfunc/serra/logger"
	"github.com/wfunc/serra/models"
	"github.com/wfunc/serra/room"
)

// AdminServiceName is the net/rpc service name, e.g. "Admin.ListRooms".
const AdminServiceName = "Admin"

// Server manages the RPC listener.
type Server struct {
	listener net.Listener
	address  string
	rpc      *rpc.Server
}

// NewServer creates a new RPC server.
func NewServer(addr string) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		address:  listener.Addr().String(),
		rpc:      rpc.NewServer(),
	}, nil
}

// Register exposes an AdminService.
func (s *Server) Register(admin *AdminService) error {
	return s.rpc.RegisterName(AdminServiceName, admin)
}

// Addr is the bound address.
func (s *Server) Addr() string {
	return s.address
}

// Start begins listening for RPC requests.
func (s *Server) Start() {
	logger.Log.Infof("RPC server listening on %s", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				logger.Log.Info("RPC server listener closed.")
				return
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		go s.rpc.ServeConn(conn)
	}
}

// Stop closes the RPC listener.
func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}

// RoomSource lists live rooms.
type RoomSource interface {
	Rooms() []*room.Room
}

// MatchSource reads finished matches.
type MatchSource interface {
	RecentMatches(ctx context.Context, limit int) ([]models.GameRecord, error)
}

// AdminService is the struct that exposes RPC methods.
type AdminService struct {
	rooms   RoomSource
	matches MatchSource
}

// NewAdminService creates a new AdminService. matches may be nil.
func NewAdminService(rooms RoomSource, matches MatchSource) *AdminService {
	return &AdminService{rooms: rooms, matches: matches}
}

type RoomInfo struct {
	Code         string
	Phase        string
	Players      []string
	TeamScore    [2]int
	TricksPlayed int
	CreatedAt    time.Time
}

// ListRoomsArgs filters by phase; empty lists every room.
type ListRoomsArgs struct {
	Phase string
}

type ListRoomsReply struct {
	Rooms []RoomInfo
}

// ListRooms follows the net/rpc signature: exported method, exported
// arguments, second argument is a pointer, return type is error.
func (a *AdminService) ListRooms(args *ListRoomsArgs, reply *ListRoomsReply) error {
	for _, r := range a.rooms.Rooms() {
		st := r.Snapshot()
		if args.Phase != "" && string(st.Phase) != args.Phase {
			continue
		}
		info := RoomInfo{
			Code:         st.Code,
			Phase:        string(st.Phase),
			TeamScore:    st.TeamScore,
			TricksPlayed: st.TricksPlayed,
			CreatedAt:    r.CreatedAt,
		}
		for _, seat := range st.Seats {
			if seat.Occupied {
				info.Players = append(info.Players, seat.Name)
			}
		}
		reply.Rooms = append(reply.Rooms, info)
	}
	return nil
}

type RecentMatchesArgs struct {
	Limit int
}

type RecentMatchesReply struct {
	Matches []models.GameRecord
}

func (a *AdminService) RecentMatches(args *RecentMatchesArgs, reply *RecentMatchesReply) error {
	if a.matches == nil {
		return errors.New("match history is not configured")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	matches, err := a.matches.RecentMatches(ctx, args.Limit)
	if err != nil {
		return err
	}
	reply.Matches = matches
	return nil
}
