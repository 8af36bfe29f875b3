package db

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var testDBSeq atomic.Int64

// NewTest opens an isolated in-memory SQLite database for tests.
func NewTest() (*gorm.DB, error) {
	dsn := fmt.Sprintf("file:switchboard_test_%d?mode=memory&cache=shared&_pragma=foreign_keys(0)", testDBSeq.Add(1))
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:  gormlogger.Discard,
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return conn, nil
}
