package seed

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/smallbiznis/switchboard/internal/auth/domain"
	"github.com/smallbiznis/switchboard/internal/auth/password"
	"github.com/smallbiznis/switchboard/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsurePlatformAdmin(t *testing.T) {
	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&authdomain.User{}))
	node, err := snowflake.NewNode(3)
	require.NoError(t, err)
	ctx := context.Background()

	created, err := EnsurePlatformAdmin(ctx, conn, node, Admin{Email: " Root@Example.com ", Password: "s3cret-pass"})
	require.NoError(t, err)
	assert.True(t, created)

	var user authdomain.User
	require.NoError(t, conn.Where("email = ?", "root@example.com").Take(&user).Error)
	assert.Equal(t, "platform_admin", user.GlobalRole)
	assert.True(t, password.Verify("s3cret-pass", user.PasswordHash))

	created, err = EnsurePlatformAdmin(ctx, conn, node, Admin{Email: "root@example.com", Password: "other-pass"})
	require.NoError(t, err)
	assert.False(t, created)

	var count int64
	require.NoError(t, conn.Model(&authdomain.User{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
	require.NoError(t, conn.Where("email = ?", "root@example.com").Take(&user).Error)
	assert.True(t, password.Verify("s3cret-pass", user.PasswordHash))
}

func TestEnsurePlatformAdminPromotesExistingUser(t *testing.T) {
	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&authdomain.User{}))
	node, err := snowflake.NewNode(3)
	require.NoError(t, err)

	require.NoError(t, conn.Create(&authdomain.User{
		ID:           node.Generate(),
		Email:        "ops@example.com",
		PasswordHash: "x",
		GlobalRole:   "user",
	}).Error)

	created, err := EnsurePlatformAdmin(context.Background(), conn, node, Admin{Email: "ops@example.com", Password: "whatever1"})
	require.NoError(t, err)
	assert.False(t, created)

	var user authdomain.User
	require.NoError(t, conn.Where("email = ?", "ops@example.com").Take(&user).Error)
	assert.Equal(t, "platform_admin", user.GlobalRole)
}
