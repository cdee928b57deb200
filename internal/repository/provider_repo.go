package repository

import (
	"context"
	"errors"

	"github.com/kursadbilgin/payout-notifier/internal/domain"
	"gorm.io/gorm"
)

type ProviderRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Provider, error)
	GetByIDs(ctx context.Context, ids []string) (map[string]domain.Provider, error)
}

type GormProviderRepo struct {
	db *gorm.DB
}

func NewGormProviderRepo(db *gorm.DB) *GormProviderRepo {
	return &GormProviderRepo{db: db}
}

func (r *GormProviderRepo) GetByID(ctx context.Context, id string) (*domain.Provider, error) {
	var model ProviderModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return providerModelToDomain(&model), nil
}

func (r *GormProviderRepo) GetByIDs(ctx context.Context, ids []string) (map[string]domain.Provider, error) {
	if len(ids) == 0 {
		return map[string]domain.Provider{}, nil
	}

	var models []ProviderModel
	err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	providers := make(map[string]domain.Provider, len(models))
	for i := range models {
		providers[models[i].ID] = *providerModelToDomain(&models[i])
	}
	return providers, nil
}
