package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func widenBatchTextColumns() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000003_widen_batch_text_columns",
		Migrate: func(tx *gorm.DB) error {
			statements := []string{
				`ALTER TABLE batches ALTER COLUMN file_name TYPE text`,
				`ALTER TABLE batch_records
					ALTER COLUMN subject_address TYPE text,
					ALTER COLUMN subject_name TYPE text,
					ALTER COLUMN credential_title TYPE text,
					ALTER COLUMN issue_date TYPE text,
					ALTER COLUMN asset_name TYPE text`,
			}
			for _, sql := range statements {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			statements := []string{
				`ALTER TABLE batches ALTER COLUMN file_name TYPE varchar(255)`,
				`ALTER TABLE batch_records
					ALTER COLUMN subject_address TYPE varchar(64),
					ALTER COLUMN subject_name TYPE varchar(255),
					ALTER COLUMN credential_title TYPE varchar(255),
					ALTER COLUMN issue_date TYPE varchar(64),
					ALTER COLUMN asset_name TYPE varchar(255)`,
			}
			for _, sql := range statements {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
	}
}
