package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/payout-notifier/internal/repository"
	"gorm.io/gorm"
)

// The unique index on delivery_items.payment_id is the claim guarantee:
// one payment links to at most one delivery, ever.
func createDeliveriesTables() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000003_create_deliveries",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.DeliveryModel{}, &repository.DeliveryItemModel{}); err != nil {
				return err
			}
			indexes := []string{
				`CREATE INDEX IF NOT EXISTS idx_deliveries_created_at ON deliveries (created_at DESC)`,
				`CREATE INDEX IF NOT EXISTS idx_deliveries_scope ON deliveries (operator_id, summary_date, provider_id)`,
			}
			for _, sql := range indexes {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(
				&repository.DeliveryItemModel{},
				&repository.DeliveryModel{},
			)
		},
	}
}
