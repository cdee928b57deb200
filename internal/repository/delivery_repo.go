package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/kursadbilgin/payout-notifier/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BuildDeliveryFunc turns the locked eligible records into the delivery to
// record. It runs inside the claim transaction; the gateway call lives in
// here so the claim read and the claim write stay one critical section.
type BuildDeliveryFunc func(payments []domain.Payment) (*domain.Delivery, error)

type DeliveryRepository interface {
	// ClaimAndRecord takes the scope's claim lock, selects the eligible
	// payments FOR UPDATE, invokes build, and in the same transaction
	// records the returned delivery plus one claim link per payment, all
	// or nothing. Concurrent calls for the same scope serialize on the
	// lock; the loser re-reads after the winner's commit and gets
	// domain.ErrNoEligibleRecords without build ever running.
	ClaimAndRecord(ctx context.Context, scope Scope, build BuildDeliveryFunc) (*domain.Delivery, []domain.Payment, error)
	List(ctx context.Context, params HistoryParams) ([]domain.Delivery, error)
}

// HistoryParams pages the recorded deliveries, newest first, optionally
// filtered by outcome status.
type HistoryParams struct {
	Limit  int
	Offset int
	Status *domain.DeliveryStatus
}

// claimLockKey identifies the advisory lock for one claim scope.
func claimLockKey(scope Scope) string {
	return scope.OperatorID + "|" + scope.ProviderID + "|" + scope.Date.Format(dateLayout)
}

type GormDeliveryRepo struct {
	db *gorm.DB
	// eligibility re-checks every claimed row inside the transaction so
	// the Go predicate and its SQL mirror in scopeEligible cannot drift.
	eligibility domain.EligibilityPolicy
}

func NewGormDeliveryRepo(db *gorm.DB) *GormDeliveryRepo {
	return &GormDeliveryRepo{db: db, eligibility: domain.DefaultEligibility}
}

func (r *GormDeliveryRepo) ClaimAndRecord(
	ctx context.Context,
	scope Scope,
	build BuildDeliveryFunc,
) (*domain.Delivery, []domain.Payment, error) {
	if build == nil {
		return nil, nil, fmt.Errorf("build func is required")
	}

	var (
		recorded *domain.Delivery
		claimed  []domain.Payment
	)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Serialize claims per scope before the eligibility read. Row locks
		// on payments are not enough: the claim lands in delivery_items, so
		// under READ COMMITTED a waiter whose SELECT predates the winner's
		// commit would keep its stale NOT EXISTS result, call the gateway a
		// second time, and only then hit the unique claim index.
		if err := tx.Exec(
			"SELECT pg_advisory_xact_lock(hashtextextended(?, 0))",
			claimLockKey(scope),
		).Error; err != nil {
			return fmt.Errorf("failed to acquire claim lock: %w", err)
		}

		var models []PaymentModel
		err := scopeEligible(tx.Model(&PaymentModel{}), scope).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Order(encounterOrder).
			Find(&models).Error
		if err != nil {
			return err
		}
		if len(models) == 0 {
			return domain.ErrNoEligibleRecords
		}

		claimed = paymentModelsToDomain(models)
		for i := range claimed {
			if !r.eligibility(&claimed[i]) {
				return fmt.Errorf("claimed row %s does not satisfy the eligibility policy", claimed[i].ID)
			}
		}

		delivery, err := build(claimed)
		if err != nil {
			return err
		}
		if err := delivery.Validate(); err != nil {
			return err
		}

		model := deliveryModelFromDomain(delivery)
		if err := tx.Create(model).Error; err != nil {
			return classifyWriteError(err)
		}

		items := make([]DeliveryItemModel, 0, len(delivery.CardPaymentIDs)+len(delivery.BankPaymentIDs))
		for _, paymentID := range delivery.CardPaymentIDs {
			items = append(items, DeliveryItemModel{
				ID:         uuid.NewString(),
				DeliveryID: model.ID,
				PaymentID:  paymentID,
				Channel:    domain.ChannelCard,
			})
		}
		for _, paymentID := range delivery.BankPaymentIDs {
			items = append(items, DeliveryItemModel{
				ID:         uuid.NewString(),
				DeliveryID: model.ID,
				PaymentID:  paymentID,
				Channel:    domain.ChannelBank,
			})
		}
		if err := tx.Create(&items).Error; err != nil {
			return classifyWriteError(err)
		}

		recorded = deliveryModelToDomain(model)
		recorded.CardPaymentIDs = delivery.CardPaymentIDs
		recorded.BankPaymentIDs = delivery.BankPaymentIDs
		return nil
	})
	if err != nil {
		return nil, claimed, err
	}

	return recorded, claimed, nil
}

func (r *GormDeliveryRepo) List(ctx context.Context, params HistoryParams) ([]domain.Delivery, error) {
	if params.Limit < 1 {
		return nil, fmt.Errorf("%w: limit must be >= 1", domain.ErrValidation)
	}
	if params.Offset < 0 {
		return nil, fmt.Errorf("%w: offset must be >= 0", domain.ErrValidation)
	}
	if params.Status != nil && !params.Status.IsValid() {
		return nil, fmt.Errorf("%w: invalid delivery status %q", domain.ErrValidation, *params.Status)
	}

	q := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(params.Limit).
		Offset(params.Offset)
	if params.Status != nil {
		q = q.Where("status = ?", *params.Status)
	}

	var models []DeliveryModel
	err := q.Find(&models).Error
	if err != nil {
		return nil, err
	}

	deliveries := make([]domain.Delivery, 0, len(models))
	ids := make([]string, 0, len(models))
	for i := range models {
		deliveries = append(deliveries, *deliveryModelToDomain(&models[i]))
		ids = append(ids, models[i].ID)
	}

	if len(ids) == 0 {
		return deliveries, nil
	}

	var items []DeliveryItemModel
	err = r.db.WithContext(ctx).
		Where("delivery_id IN ?", ids).
		Order("created_at ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}

	byDelivery := make(map[string]int, len(deliveries))
	for i := range deliveries {
		byDelivery[deliveries[i].ID] = i
	}
	for i := range items {
		idx, ok := byDelivery[items[i].DeliveryID]
		if !ok {
			continue
		}
		if items[i].Channel == domain.ChannelBank {
			deliveries[idx].BankPaymentIDs = append(deliveries[idx].BankPaymentIDs, items[i].PaymentID)
			continue
		}
		deliveries[idx].CardPaymentIDs = append(deliveries[idx].CardPaymentIDs, items[i].PaymentID)
	}

	return deliveries, nil
}

// classifyWriteError maps a unique violation on the claim index to
// ErrConflict: another dispatch won the race for the same records.
func classifyWriteError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: payment already claimed", domain.ErrConflict)
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint") {
		return fmt.Errorf("%w: payment already claimed", domain.ErrConflict)
	}
	return err
}
