package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/switchboard/internal/clock"
	"github.com/smallbiznis/switchboard/internal/config"
	"github.com/smallbiznis/switchboard/internal/integration/domain"
	"github.com/smallbiznis/switchboard/internal/integration/repository"
	"github.com/smallbiznis/switchboard/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T, key string) domain.Service {
	t.Helper()

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&domain.OrgIntegration{}))

	cfg := config.Config{IntegrationsKey: key}
	svc, err := New(Params{
		Log:   zap.NewNop(),
		Cfg:   cfg,
		Repo:  repository.NewRepository(conn),
		Clock: clock.NewFakeClock(time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)),
	})
	require.NoError(t, err)
	return svc
}

func TestPutGetCredentialsDelete(t *testing.T) {
	svc := newTestService(t, "integration-test-key")
	ctx := context.Background()
	orgID := snowflake.ID(42)

	creds, err := svc.Credentials(ctx, orgID)
	require.NoError(t, err)
	assert.Nil(t, creds, "no override configured yet")

	view, err := svc.Get(ctx, orgID)
	require.NoError(t, err)
	assert.False(t, view.Configured)

	_, err = svc.Put(ctx, orgID, domain.PutRequest{ClientID: "client-abcdef123", ClientSecret: "shh-secret"})
	require.NoError(t, err)

	view, err = svc.Get(ctx, orgID)
	require.NoError(t, err)
	assert.True(t, view.Configured)
	assert.Equal(t, "****f123", view.ClientID)
	assert.NotContains(t, view.ClientID, "client-abc")

	creds, err = svc.Credentials(ctx, orgID)
	require.NoError(t, err)
	require.NotNil(t, creds)
	assert.Equal(t, "client-abcdef123", creds.ClientID)
	assert.Equal(t, "shh-secret", creds.ClientSecret)

	_, err = svc.Put(ctx, orgID, domain.PutRequest{ClientID: "second-id-9999", ClientSecret: "x"})
	require.NoError(t, err)
	creds, err = svc.Credentials(ctx, orgID)
	require.NoError(t, err)
	assert.Equal(t, "second-id-9999", creds.ClientID, "put replaces existing credentials")

	require.NoError(t, svc.Delete(ctx, orgID))
	assert.ErrorIs(t, svc.Delete(ctx, orgID), domain.ErrNotFound)
}

func TestPutValidation(t *testing.T) {
	svc := newTestService(t, "k")
	ctx := context.Background()

	_, err := svc.Put(ctx, 0, domain.PutRequest{ClientID: "a", ClientSecret: "b"})
	assert.ErrorIs(t, err, domain.ErrInvalidOrganization)

	_, err = svc.Put(ctx, 1, domain.PutRequest{ClientID: " ", ClientSecret: "b"})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestPutWithoutKeyIsRejected(t *testing.T) {
	svc := newTestService(t, "")
	_, err := svc.Put(context.Background(), 1, domain.PutRequest{ClientID: "a", ClientSecret: "b"})
	assert.ErrorIs(t, err, domain.ErrNotConfigured)
}
