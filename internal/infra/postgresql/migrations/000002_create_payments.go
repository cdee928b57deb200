package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/payout-notifier/internal/repository"
	"gorm.io/gorm"
)

func createPaymentsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_create_payments",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.PaymentModel{}); err != nil {
				return err
			}
			indexes := []string{
				`CREATE INDEX IF NOT EXISTS idx_payments_scope ON payments (operator_id, payment_date, provider_id)`,
				`CREATE INDEX IF NOT EXISTS idx_payments_eligible ON payments (operator_id, payment_date) WHERE status = 'PAID' AND active`,
			}
			for _, sql := range indexes {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.PaymentModel{})
		},
	}
}
