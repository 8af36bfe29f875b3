package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestIsDuplicateKeyErr(t *testing.T) {
	assert.False(t, IsDuplicateKeyErr(nil))
	assert.True(t, IsDuplicateKeyErr(gorm.ErrDuplicatedKey))
	assert.True(t, IsDuplicateKeyErr(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})))
	assert.False(t, IsDuplicateKeyErr(&pgconn.PgError{Code: "23503"}))
	assert.True(t, IsDuplicateKeyErr(errors.New("UNIQUE constraint failed: org_users.org_id, org_users.user_id")))
}

func TestIsUndefinedTable(t *testing.T) {
	assert.True(t, IsUndefinedTable(&pgconn.PgError{Code: "42P01"}))
	assert.False(t, IsUndefinedTable(errors.New("connection refused")))

	conn, err := NewTest()
	require.NoError(t, err)
	err = conn.Exec("SELECT 1 FROM sync_jobs").Error
	require.Error(t, err)
	assert.True(t, IsUndefinedTable(err))
}
