package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/certmint/internal/repository"
	"gorm.io/gorm"
)

func createBatchRecordsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_create_batch_records",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.BatchRecordModel{}); err != nil {
				return err
			}
			indexes := []string{
				`CREATE UNIQUE INDEX IF NOT EXISTS idx_batch_records_batch_index ON batch_records (batch_id, record_index)`,
				`CREATE INDEX IF NOT EXISTS idx_batch_records_subject ON batch_records (lower(subject_address))`,
				`CREATE INDEX IF NOT EXISTS idx_batch_records_tx_hash ON batch_records (tx_hash) WHERE tx_hash IS NOT NULL`,
			}
			for _, sql := range indexes {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.BatchRecordModel{})
		},
	}
}
