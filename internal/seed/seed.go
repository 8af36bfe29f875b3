package seed

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/smallbiznis/switchboard/internal/auth/domain"
	"github.com/smallbiznis/switchboard/internal/auth/password"
	"gorm.io/gorm"
)

const platformAdminRole = "platform_admin"

type Admin struct {
	Email       string
	Password    string
	DisplayName string
}

// EnsurePlatformAdmin creates the bootstrap platform admin when no user with
// that email exists. An existing user is promoted to platform_admin but its
// password is left alone. Reports whether a user was created.
func EnsurePlatformAdmin(ctx context.Context, db *gorm.DB, node *snowflake.Node, admin Admin) (bool, error) {
	if db == nil {
		return false, errors.New("seed database handle is required")
	}
	if node == nil {
		return false, errors.New("seed id generator is required")
	}

	email := strings.ToLower(strings.TrimSpace(admin.Email))
	if email == "" || admin.Password == "" {
		return false, errors.New("bootstrap admin email and password are required")
	}

	created := false
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing authdomain.User
		err := tx.Where("email = ?", email).Take(&existing).Error
		switch {
		case err == nil:
			if existing.GlobalRole == platformAdminRole {
				return nil
			}
			return tx.Model(&authdomain.User{}).
				Where("id = ?", existing.ID).
				Update("global_role", platformAdminRole).Error
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		hash, err := password.Hash(admin.Password)
		if err != nil {
			return err
		}
		display := strings.TrimSpace(admin.DisplayName)
		if display == "" {
			display = "Platform Admin"
		}

		user := authdomain.User{
			ID:           node.Generate(),
			Email:        email,
			PasswordHash: hash,
			DisplayName:  display,
			GlobalRole:   platformAdminRole,
		}
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		created = true
		return nil
	})
	return created, err
}
