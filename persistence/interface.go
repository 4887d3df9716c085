// persistence/interface.go
package persistence

import (
	"context"
	"fmt"

	"github.com/wfunc/serra/models"
)

// Database 对局归档接口
type Database interface {
	SaveGameRecord(ctx context.Context, record *models.GameRecord) error
	RecentGameRecords(ctx context.Context, limit int) ([]models.GameRecord, error)
	Close() error
}

// Archive drivers.
const (
	DriverGorm     = "gorm"
	DriverPostgres = "postgres"
	DriverNone     = "none"
)

// 错误定义
var (
	ErrUnknownDriver = fmt.Errorf("unknown database driver")
)

// Open connects the archive named by driver. DriverNone returns a nil
// Database and no error.
func Open(driver, dsn string) (Database, error) {
	switch driver {
	case DriverGorm:
		db, err := NewGormPostgreSQL(dsn)
		if err != nil {
			return nil, err
		}
		return db, nil
	case DriverPostgres:
		db, err := NewPostgreSQL(dsn)
		if err != nil {
			return nil, err
		}
		return db, nil
	case DriverNone, "":
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}
