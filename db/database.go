package db

import (
	"github.com/fortressmdm/fortressmdm/types"
	"github.com/fortressmdm/fortressmdm/utils"
	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Open connects to the configured database. Postgres is the production
// backend, sqlite serves local development.
func Open() (*gorm.DB, error) {
	cfg := &gorm.Config{DisableForeignKeyConstraintWhenMigrating: true}

	var dialector gorm.Dialector
	switch utils.DatabaseType() {
	case "postgres":
		dialector = postgres.Open(utils.ConnectionString())
	case "sqlite":
		dialector = sqlite.Open(utils.ConnectionString())
	default:
		return nil, errors.Errorf("unsupported database type %q", utils.DatabaseType())
	}

	gdb, err := gorm.Open(dialector, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}
	return gdb, nil
}

// AutoMigrate creates or updates the schema for all stored types.
func AutoMigrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&types.Device{},
		&types.DeviceCommand{},
		&types.DeviceLog{},
		&types.ChatMessage{},
		&types.Policy{},
	)
}
