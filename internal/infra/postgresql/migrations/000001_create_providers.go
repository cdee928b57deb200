package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/payout-notifier/internal/repository"
	"gorm.io/gorm"
)

func createProvidersTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_providers",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&repository.ProviderModel{})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.ProviderModel{})
		},
	}
}
