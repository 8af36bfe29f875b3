package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	apikeydomain "github.com/smallbiznis/switchboard/internal/apikey/domain"
	auditdomain "github.com/smallbiznis/switchboard/internal/audit/domain"
	authdomain "github.com/smallbiznis/switchboard/internal/auth/domain"
	billingdomain "github.com/smallbiznis/switchboard/internal/billing/domain"
	calldomain "github.com/smallbiznis/switchboard/internal/call/domain"
	integrationdomain "github.com/smallbiznis/switchboard/internal/integration/domain"
	orgdomain "github.com/smallbiznis/switchboard/internal/organization/domain"
	phonenumberdomain "github.com/smallbiznis/switchboard/internal/phonenumber/domain"
	reconciledomain "github.com/smallbiznis/switchboard/internal/reconcile/domain"
	recordingdomain "github.com/smallbiznis/switchboard/internal/recording/domain"
	supportdomain "github.com/smallbiznis/switchboard/internal/support/domain"
	userdomain "github.com/smallbiznis/switchboard/internal/user/domain"
	"gorm.io/gorm"
)

// Models lists every persisted table, in creation order. Dialects without
// SQL migrations are built from it.
func Models() []any {
	return []any{
		&orgdomain.Organization{},
		&orgdomain.OrgSettings{},
		&authdomain.User{},
		&authdomain.Session{},
		&orgdomain.Member{},
		&orgdomain.ManagerPermissions{},
		&userdomain.PlatformPermissions{},
		&apikeydomain.APIKey{},
		&phonenumberdomain.PhoneNumber{},
		&phonenumberdomain.OrgPhoneNumber{},
		&calldomain.Call{},
		&calldomain.Extension{},
		&recordingdomain.Recording{},
		&reconciledomain.Report{},
		&reconciledomain.SMSMessage{},
		&reconciledomain.SyncJob{},
		&integrationdomain.OrgIntegration{},
		&supportdomain.Ticket{},
		&supportdomain.Message{},
		&billingdomain.Plan{},
		&billingdomain.Subscription{},
		&billingdomain.Invoice{},
		&billingdomain.InvoiceItem{},
		&auditdomain.AuditLog{},
	}
}

// Apply brings the schema up to date. Postgres runs the embedded SQL
// migrations; mysql and sqlite are auto-migrated from Models.
func Apply(conn *gorm.DB, dbType string) error {
	if conn == nil {
		return errors.New("migration database handle is required")
	}

	switch strings.ToLower(dbType) {
	case "", "postgres", "postgresql":
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	default:
		if err := conn.AutoMigrate(Models()...); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}
}

// RunMigrations applies the embedded postgres migrations.
func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Closing the migrator would close the shared *sql.DB.

	return nil
}
