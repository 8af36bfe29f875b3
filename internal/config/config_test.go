package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseSchemaVersion(t *testing.T) {
	cases := map[string]SchemaVersion{
		"":                  SchemaDirect,
		"direct":            SchemaDirect,
		"MAPPED":            SchemaMapped,
		" org_phone_numbers": SchemaMapped,
		"something-else":    SchemaDirect,
	}
	for raw, want := range cases {
		assert.Equal(t, want, ParseSchemaVersion(raw), "raw=%q", raw)
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("ENVIRONMENT", "Production")
	t.Setenv("PORT", "9090")
	t.Setenv("SCHEMA_PHONE_ASSIGNMENT", "mapped")
	t.Setenv("SKIP_FATAL_SIGNAL_EXIT", "1")
	t.Setenv("ENABLE_DEV_SEED", "true")
	t.Setenv("MIGHTYCALL_BASE_URL", "https://api.example.test/v4/")
	t.Setenv("MIGHTYCALL_TIMEOUT", "5")

	cfg := Load()

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, SchemaMapped, cfg.Schema.PhoneAssignment)
	assert.True(t, cfg.Runtime.SkipFatalSignalExit)
	assert.False(t, cfg.DevSeedEnabled(), "seed endpoint must stay off in production")
	assert.Equal(t, "https://api.example.test/v4", cfg.MightyCall.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.MightyCall.Timeout)
}

func TestValidateSyncSchedule(t *testing.T) {
	assert.NoError(t, validateSyncSchedule(DefaultSyncSchedule()))

	bad := DefaultSyncSchedule()
	bad.Interval = time.Second
	assert.Error(t, validateSyncSchedule(bad))

	bad = DefaultSyncSchedule()
	bad.Resources = []string{"voicemail"}
	assert.Error(t, validateSyncSchedule(bad))
}
