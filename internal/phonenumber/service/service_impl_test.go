package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/switchboard/internal/clock"
	"github.com/smallbiznis/switchboard/internal/config"
	"github.com/smallbiznis/switchboard/internal/phonenumber/domain"
	"github.com/smallbiznis/switchboard/internal/phonenumber/repository"
	"github.com/smallbiznis/switchboard/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func newTestService(t *testing.T, schema config.SchemaVersion) domain.Service {
	t.Helper()
	svc, _, _ := newTestServiceWithDB(t, schema)
	return svc
}

func newTestServiceWithDB(t *testing.T, schema config.SchemaVersion) (domain.Service, *gorm.DB, *clock.FakeClock) {
	t.Helper()

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&domain.PhoneNumber{}, &domain.OrgPhoneNumber{}))

	node, err := snowflake.NewNode(4)
	require.NoError(t, err)

	cfg := config.Config{Schema: config.SchemaConfig{PhoneAssignment: schema}}
	fake := clock.NewFakeClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	svc := New(Params{
		Log:   zap.NewNop(),
		Repo:  repository.NewRepository(conn, cfg),
		GenID: node,
		Clock: fake,
	})
	return svc, conn, fake
}

func TestUpsertIsIdempotentByExternalID(t *testing.T) {
	for _, schema := range []config.SchemaVersion{config.SchemaDirect, config.SchemaMapped} {
		t.Run(string(schema), func(t *testing.T) {
			svc := newTestService(t, schema)
			ctx := context.Background()

			batch := []domain.PhoneNumber{
				{ExternalID: "pn-1", Number: "+1 555 123 4567", Label: "Main", IsActive: true},
				{ExternalID: "pn-2", Number: "5559876543", Label: "Sales", IsActive: true},
				{Number: "  "},
			}
			n, err := svc.Upsert(ctx, batch)
			require.NoError(t, err)
			assert.Equal(t, 2, n)

			all, err := svc.ListAll(ctx, false)
			require.NoError(t, err)
			require.Len(t, all, 2)

			require.NoError(t, svc.Assign(ctx, 10, []snowflake.ID{all[0].ID}))

			batch[0].Label = "Main line"
			batch[0].Metadata = datatypes.JSONMap{"isEnabled": true}
			_, err = svc.Upsert(ctx, batch)
			require.NoError(t, err)

			all, err = svc.ListAll(ctx, false)
			require.NoError(t, err)
			require.Len(t, all, 2)

			owned, err := svc.ListForOrg(ctx, 10)
			require.NoError(t, err)
			require.Len(t, owned, 1, "re-sync must not clear ownership")
			assert.Equal(t, "Main line", owned[0].Label)
			assert.Equal(t, "15551234567", owned[0].NumberDigits)
			assert.Equal(t, "+15551234567", owned[0].E164)
		})
	}
}

func TestAssignAndUnassign(t *testing.T) {
	for _, schema := range []config.SchemaVersion{config.SchemaDirect, config.SchemaMapped} {
		t.Run(string(schema), func(t *testing.T) {
			svc := newTestService(t, schema)
			ctx := context.Background()

			_, err := svc.Upsert(ctx, []domain.PhoneNumber{
				{ExternalID: "a", Number: "5551110000", IsActive: true},
				{ExternalID: "b", Number: "5552220000", IsActive: true},
			})
			require.NoError(t, err)
			all, err := svc.ListAll(ctx, false)
			require.NoError(t, err)
			first, second := all[0].ID, all[1].ID

			assert.ErrorIs(t, svc.Assign(ctx, 10, nil), domain.ErrMissingRequiredFields)
			assert.ErrorIs(t, svc.Assign(ctx, 10, []snowflake.ID{999}), domain.ErrNotFound)

			require.NoError(t, svc.Assign(ctx, 10, []snowflake.ID{first, second}))
			require.NoError(t, svc.Assign(ctx, 20, []snowflake.ID{second}))

			a, err := svc.ListForOrg(ctx, 10)
			require.NoError(t, err)
			require.Len(t, a, 1)
			b, err := svc.ListForOrg(ctx, 20)
			require.NoError(t, err)
			require.Len(t, b, 1)
			assert.Equal(t, second, b[0].ID)

			unassigned, err := svc.ListAll(ctx, true)
			require.NoError(t, err)
			assert.Empty(t, unassigned)

			assert.ErrorIs(t, svc.Unassign(ctx, 10, second), domain.ErrNotFoundForOrg)
			require.NoError(t, svc.Unassign(ctx, 20, second))

			unassigned, err = svc.ListAll(ctx, true)
			require.NoError(t, err)
			require.Len(t, unassigned, 1)

			orgs, err := svc.OrgIDsWithNumbers(ctx)
			require.NoError(t, err)
			assert.Equal(t, []snowflake.ID{10}, orgs)

			set, err := svc.MatchSetForOrg(ctx, 10)
			require.NoError(t, err)
			assert.True(t, set.Contains("+1 555 111 0000"))
		})
	}
}

func TestAssignmentKeepsNumberTimestamps(t *testing.T) {
	for _, schema := range []config.SchemaVersion{config.SchemaDirect, config.SchemaMapped} {
		t.Run(string(schema), func(t *testing.T) {
			svc, conn, fake := newTestServiceWithDB(t, schema)
			ctx := context.Background()
			synced := fake.Now()

			_, err := svc.Upsert(ctx, []domain.PhoneNumber{{ExternalID: "a", Number: "5551110000", IsActive: true}})
			require.NoError(t, err)
			all, err := svc.ListAll(ctx, false)
			require.NoError(t, err)
			id := all[0].ID

			fake.Advance(time.Hour)
			require.NoError(t, svc.Assign(ctx, 10, []snowflake.ID{id}))

			if schema == config.SchemaMapped {
				var row domain.OrgPhoneNumber
				require.NoError(t, conn.Where("phone_number_id = ?", id).First(&row).Error)
				assert.True(t, row.CreatedAt.Equal(fake.Now()), "mapping row is stamped by the service clock")
			}

			fake.Advance(time.Hour)
			require.NoError(t, svc.Unassign(ctx, 10, id))

			var number domain.PhoneNumber
			require.NoError(t, conn.First(&number, id).Error)
			assert.Nil(t, number.OrgID)
			assert.True(t, number.UpdatedAt.Equal(synced), "updated_at = %s", number.UpdatedAt)
		})
	}
}
