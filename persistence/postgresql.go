// persistence/postgresql.go
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	// PostgreSQL 驱动
	_ "github.com/lib/pq"
	"github.com/wfunc/serra/models"
)

// PostgreSQL 数据库实现
type PostgreSQL struct {
	db *sql.DB
}

// NewPostgreSQL 创建 PostgreSQL 数据库连接
func NewPostgreSQL(dsn string) (*PostgreSQL, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	// 设置连接池参数
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := initTables(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return NewPostgreSQLFromDB(db), nil
}

// NewPostgreSQLFromDB wraps an open handle; the schema must already exist.
func NewPostgreSQLFromDB(db *sql.DB) *PostgreSQL {
	return &PostgreSQL{db: db}
}

// initTables 初始化数据库表结构
func initTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
        CREATE TABLE IF NOT EXISTS game_records (
            id BIGSERIAL PRIMARY KEY,
            room_code VARCHAR(16) NOT NULL,
            players JSONB NOT NULL,
            team_a_score INTEGER NOT NULL,
            team_b_score INTEGER NOT NULL,
            winner_team INTEGER NOT NULL,
            tricks INTEGER NOT NULL,
            started_at TIMESTAMPTZ,
            ended_at TIMESTAMPTZ,
            duration_secs INTEGER DEFAULT 0,
            created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
        )
    `)
	if err != nil {
		return err
	}

	// 创建索引以提高查询性能
	_, err = db.ExecContext(ctx, `
        CREATE INDEX IF NOT EXISTS idx_game_records_room_code ON game_records(room_code);
        CREATE INDEX IF NOT EXISTS idx_game_records_ended_at ON game_records(ended_at);
    `)
	return err
}

// SaveGameRecord 保存对局记录, filling record.ID.
func (p *PostgreSQL) SaveGameRecord(ctx context.Context, record *models.GameRecord) error {
	players, err := json.Marshal(record.Players)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `
        INSERT INTO game_records (room_code, players, team_a_score, team_b_score, winner_team, tricks, started_at, ended_at, duration_secs)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        RETURNING id
    `
	err = p.db.QueryRowContext(ctx, query,
		record.RoomCode,
		players,
		record.TeamScore[0],
		record.TeamScore[1],
		record.WinnerTeam,
		record.Tricks,
		record.StartedAt,
		record.EndedAt,
		int(record.Duration().Seconds()),
	).Scan(&record.ID)
	if err != nil {
		return fmt.Errorf("insert game record: %w", err)
	}
	return nil
}

// RecentGameRecords 最近的对局, newest first.
func (p *PostgreSQL) RecentGameRecords(ctx context.Context, limit int) ([]models.GameRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `
        SELECT id, room_code, players, team_a_score, team_b_score, winner_team, tricks, started_at, ended_at
        FROM game_records
        ORDER BY ended_at DESC
        LIMIT $1
    `
	rows, err := p.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []models.GameRecord{}
	for rows.Next() {
		var (
			r       models.GameRecord
			players []byte
		)
		if err := rows.Scan(&r.ID, &r.RoomCode, &players, &r.TeamScore[0], &r.TeamScore[1],
			&r.WinnerTeam, &r.Tricks, &r.StartedAt, &r.EndedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(players, &r.Players); err != nil {
			return nil, fmt.Errorf("decode players of record %d: %w", r.ID, err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Close 关闭数据库连接
func (p *PostgreSQL) Close() error {
	return p.db.Close()
}
