package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func TestOperationFromSQL(t *testing.T) {
	assert.Equal(t, "SELECT", operationFromSQL("select * from calls"))
	assert.Equal(t, "INSERT", operationFromSQL("WITH x AS (SELECT 1) INSERT INTO calls VALUES (1)"))
	assert.Equal(t, "UNKNOWN", operationFromSQL(""))
}

func TestGormLoggerTrace(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := NewGormLogger(zap.New(core), GormLoggerConfig{
		Level:                gormlogger.Warn,
		SlowThreshold:        time.Millisecond,
		IgnoreRecordNotFound: true,
	})

	sql := func() (string, int64) { return "SELECT * FROM calls WHERE org_id = 1", 3 }

	l.Trace(context.Background(), time.Now(), sql, gormlogger.ErrRecordNotFound)
	assert.Equal(t, 0, logs.Len(), "record-not-found is ignored")

	l.Trace(context.Background(), time.Now(), sql, errors.New("boom"))
	l.Trace(context.Background(), time.Now().Add(-time.Second), sql, nil)

	entries := logs.All()
	if assert.Len(t, entries, 2) {
		assert.Equal(t, "gorm.query", entries[0].Message)
		assert.Equal(t, "gorm.slow_query", entries[1].Message)
		assert.Equal(t, "SELECT", entries[1].ContextMap()["operation"])
	}
}
