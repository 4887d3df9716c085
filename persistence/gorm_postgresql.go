// persistence/gorm_postgresql.go
package persistence

import (
	"context"
	"database/sql"
	"log"
	"os"
	"time"

	"github.com/wfunc/serra/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// GormPostgreSQL 使用GORM的PostgreSQL实现
type GormPostgreSQL struct {
	db *gorm.DB
}

func gormConfig() *gorm.Config {
	// 配置GORM日志
	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags), // io writer
		logger.Config{
			SlowThreshold: time.Second,   // 慢SQL阈值
			LogLevel:      logger.Silent, // 日志级别
			Colorful:      false,         // 禁用彩色打印
		},
	)
	return &gorm.Config{Logger: gormLogger}
}

// NewGormPostgreSQL 创建GORM PostgreSQL数据库连接
func NewGormPostgreSQL(dsn string) (*GormPostgreSQL, error) {
	db, err := gorm.Open(postgres.Open(dsn), gormConfig())
	if err != nil {
		return nil, err
	}

	// 获取通用数据库对象 sql.DB
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// 设置连接池
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := migrate(db, sqlDB); err != nil {
		return nil, err
	}

	return &GormPostgreSQL{db: db}, nil
}

// migrate 自动迁移表结构; the pool is closed when it fails.
func migrate(db *gorm.DB, sqlDB *sql.DB) error {
	if err := db.AutoMigrate(&models.GormGameRecord{}); err != nil {
		sqlDB.Close()
		return err
	}
	return nil
}

// NewGormPostgreSQLFromConn builds on an open handle without migrating.
func NewGormPostgreSQLFromConn(conn *sql.DB) (*GormPostgreSQL, error) {
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: conn}), gormConfig())
	if err != nil {
		return nil, err
	}
	return &GormPostgreSQL{db: db}, nil
}

// SaveGameRecord 保存对局记录, filling record.ID.
func (p *GormPostgreSQL) SaveGameRecord(ctx context.Context, record *models.GameRecord) error {
	row := models.NewGormGameRecord(record)
	if err := p.db.WithContext(ctx).Create(row).Error; err != nil {
		return err
	}
	record.ID = row.ID
	return nil
}

// RecentGameRecords 最近的对局, newest first.
func (p *GormPostgreSQL) RecentGameRecords(ctx context.Context, limit int) ([]models.GameRecord, error) {
	var rows []models.GormGameRecord
	err := p.db.WithContext(ctx).
		Order("ended_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	records := make([]models.GameRecord, 0, len(rows))
	for i := range rows {
		records = append(records, rows[i].Record())
	}
	return records, nil
}

// Close 关闭数据库连接
func (p *GormPostgreSQL) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
