package migrations

import (
	"fmt"

	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

var options = &gormigrate.Options{
	TableName:                 "certmint_migrations",
	IDColumnName:              "id",
	IDColumnSize:              255,
	UseTransaction:            true,
	ValidateUnknownMigrations: true,
}

func migrations() []*gormigrate.Migration {
	return []*gormigrate.Migration{
		createBatchesTable(),
		createBatchRecordsTable(),
		widenBatchTextColumns(),
	}
}

// Migrate brings the batch store schema up to date.
func Migrate(db *gorm.DB) error {
	if err := gormigrate.New(db, options, migrations()).Migrate(); err != nil {
		return fmt.Errorf("migrate batch store: %w", err)
	}
	return nil
}
