// models/models.go
package models

import (
	"time"
)

// Outcomes of a finished game for one player.
const (
	OutcomeWin  = "win"
	OutcomeLose = "lose"
	OutcomeDraw = "draw"
)

// GameRecord 对局记录
type GameRecord struct {
	ID         int64        `json:"id,omitempty"`
	RoomCode   string       `json:"room_code"`
	Players    []PlayerInfo `json:"players"`
	TeamScore  [2]int       `json:"team_score"`
	WinnerTeam int          `json:"winner_team"` // -1 on a draw
	Tricks     int          `json:"tricks"`
	StartedAt  time.Time    `json:"started_at"`
	EndedAt    time.Time    `json:"ended_at"`
}

// Duration is the wall time from deal to end.
func (r GameRecord) Duration() time.Duration {
	if r.StartedAt.IsZero() || r.EndedAt.Before(r.StartedAt) {
		return 0
	}
	return r.EndedAt.Sub(r.StartedAt)
}

// PlayerInfo 玩家信息（用于对局记录）
type PlayerInfo struct {
	Seat    int    `json:"seat"`
	Name    string `json:"name"`
	Team    int    `json:"team"`
	Outcome string `json:"outcome"` // win/lose/draw
}
