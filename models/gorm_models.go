// models/gorm_models.go
package models

import (
	"time"
)

// GormGameRecord 对局记录表
type GormGameRecord struct {
	ID           int64        `gorm:"primaryKey"`
	RoomCode     string       `gorm:"index;not null"`
	Players      []PlayerInfo `gorm:"serializer:json;type:jsonb;not null"`
	TeamAScore   int          `gorm:"not null"`
	TeamBScore   int          `gorm:"not null"`
	WinnerTeam   int          `gorm:"not null"`
	Tricks       int          `gorm:"not null"`
	StartedAt    time.Time
	EndedAt      time.Time `gorm:"index"`
	DurationSecs int       `gorm:"default:0"` // 对局时长(秒)
	CreatedAt    time.Time
}

func (GormGameRecord) TableName() string {
	return "game_records"
}

// NewGormGameRecord maps a record onto its table row.
func NewGormGameRecord(r *GameRecord) *GormGameRecord {
	return &GormGameRecord{
		ID:           r.ID,
		RoomCode:     r.RoomCode,
		Players:      r.Players,
		TeamAScore:   r.TeamScore[0],
		TeamBScore:   r.TeamScore[1],
		WinnerTeam:   r.WinnerTeam,
		Tricks:       r.Tricks,
		StartedAt:    r.StartedAt,
		EndedAt:      r.EndedAt,
		DurationSecs: int(r.Duration().Seconds()),
	}
}

// Record converts the row back.
func (g *GormGameRecord) Record() GameRecord {
	return GameRecord{
		ID:         g.ID,
		RoomCode:   g.RoomCode,
		Players:    g.Players,
		TeamScore:  [2]int{g.TeamAScore, g.TeamBScore},
		WinnerTeam: g.WinnerTeam,
		Tricks:     g.Tricks,
		StartedAt:  g.StartedAt,
		EndedAt:    g.EndedAt,
	}
}
