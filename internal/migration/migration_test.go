package migration

import (
	"testing"

	"github.com/smallbiznis/switchboard/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyAutoMigratesNonPostgres(t *testing.T) {
	conn, err := db.NewTest()
	require.NoError(t, err)

	require.NoError(t, Apply(conn, "sqlite"))
	for _, table := range []string{"organizations", "org_users", "calls", "sync_jobs", "invoices", "audit_logs"} {
		assert.True(t, conn.Migrator().HasTable(table), table)
	}

	// second run is a no-op
	require.NoError(t, Apply(conn, "sqlite"))
}

func TestMigrationsAreEmbedded(t *testing.T) {
	entries, err := embeddedMigrations.ReadDir(migrationsDir)
	require.NoError(t, err)
	assert.NotEmpty(t, entries)
}
