package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/payout-notifier/internal/domain"
	"gorm.io/gorm"
)

// Scope narrows a payment query to one operator and summary date, and
// optionally to a single provider.
type Scope struct {
	OperatorID string
	Date       time.Time
	ProviderID string
}

func (s Scope) Validate() error {
	if strings.TrimSpace(s.OperatorID) == "" {
		return fmt.Errorf("%w: operator id is required", domain.ErrValidation)
	}
	if s.Date.IsZero() {
		return fmt.Errorf("%w: summary date is required", domain.ErrValidation)
	}
	return nil
}

const dateLayout = "2006-01-02"

type PaymentRepository interface {
	ListEligible(ctx context.Context, scope Scope) ([]domain.Payment, error)
	ListClaimed(ctx context.Context, scope Scope) ([]domain.Payment, error)
}

type GormPaymentRepo struct {
	db *gorm.DB
}

func NewGormPaymentRepo(db *gorm.DB) *GormPaymentRepo {
	return &GormPaymentRepo{db: db}
}

// scopeQuery applies the scope conditions shared by every payment read.
func scopeQuery(db *gorm.DB, scope Scope) *gorm.DB {
	q := db.
		Where("operator_id = ?", scope.OperatorID).
		Where("payment_date = ?", scope.Date.Format(dateLayout))
	if scope.ProviderID != "" {
		q = q.Where("provider_id = ?", scope.ProviderID)
	}
	return q
}

// scopeEligible is the SQL mirror of domain.DefaultEligibility plus the
// no-claim-link condition. Keep the two in sync.
func scopeEligible(db *gorm.DB, scope Scope) *gorm.DB {
	return scopeQuery(db, scope).
		Where("status = ?", domain.PaymentStatusPaid).
		Where("active = ?", true).
		Where("NOT EXISTS (SELECT 1 FROM delivery_items di WHERE di.payment_id = payments.id)")
}

// encounterOrder fixes the in-group record order so summary totals and the
// recorded delivery always agree.
const encounterOrder = "payment_date ASC, id ASC"

func (r *GormPaymentRepo) ListEligible(ctx context.Context, scope Scope) ([]domain.Payment, error) {
	var models []PaymentModel
	err := scopeEligible(r.db.WithContext(ctx).Model(&PaymentModel{}), scope).
		Order(encounterOrder).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return paymentModelsToDomain(models), nil
}

func (r *GormPaymentRepo) ListClaimed(ctx context.Context, scope Scope) ([]domain.Payment, error) {
	var models []PaymentModel
	err := scopeQuery(r.db.WithContext(ctx).Model(&PaymentModel{}), scope).
		Where("status = ?", domain.PaymentStatusPaid).
		Where("active = ?", true).
		Where("EXISTS (SELECT 1 FROM delivery_items di WHERE di.payment_id = payments.id)").
		Order(encounterOrder).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return paymentModelsToDomain(models), nil
}
