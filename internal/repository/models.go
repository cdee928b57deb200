package repository

import (
	"time"

	"github.com/kursadbilgin/payout-notifier/internal/domain"
	"github.com/shopspring/decimal"
)

// PaymentModel is the persistence model for the payments table.
type PaymentModel struct {
	ID          string               `gorm:"type:uuid;primaryKey"`
	OperatorID  string               `gorm:"type:varchar(64);not null"`
	ProviderID  string               `gorm:"type:uuid;not null"`
	ClientName  string               `gorm:"type:varchar(255);not null"`
	Amount      decimal.Decimal      `gorm:"type:numeric(14,2);not null"`
	Code        string               `gorm:"type:varchar(64);not null;default:''"`
	PaymentDate time.Time            `gorm:"type:date;not null"`
	Active      bool                 `gorm:"not null;default:true"`
	Status      domain.PaymentStatus `gorm:"type:varchar(20);not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (PaymentModel) TableName() string {
	return "payments"
}

// ProviderModel is the persistence model for providers.
type ProviderModel struct {
	ID        string `gorm:"type:uuid;primaryKey"`
	Name      string `gorm:"type:varchar(255);not null"`
	Email     string `gorm:"type:varchar(255);not null"`
	Active    bool   `gorm:"not null;default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (ProviderModel) TableName() string {
	return "providers"
}

// DeliveryModel is the persistence model for deliveries.
type DeliveryModel struct {
	ID           string                `gorm:"type:uuid;primaryKey"`
	ProviderID   string                `gorm:"type:uuid;not null"`
	OperatorID   string                `gorm:"type:varchar(64);not null"`
	SummaryDate  time.Time             `gorm:"type:date;not null"`
	PaymentCount int                   `gorm:"not null"`
	TotalAmount  decimal.Decimal       `gorm:"type:numeric(14,2);not null"`
	Subject      string                `gorm:"type:varchar(255);not null"`
	Body         string                `gorm:"type:text;not null"`
	Status       domain.DeliveryStatus `gorm:"type:varchar(20);not null"`
	RawResponse  *string               `gorm:"type:text"`
	CreatedAt    time.Time
}

func (DeliveryModel) TableName() string {
	return "deliveries"
}

// DeliveryItemModel is the claim link between a payment and the delivery
// that consumed it. The unique index on payment_id is the store-level
// guarantee that a payment is claimed at most once, ever.
type DeliveryItemModel struct {
	ID         string         `gorm:"type:uuid;primaryKey"`
	DeliveryID string         `gorm:"type:uuid;not null;index"`
	PaymentID  string         `gorm:"type:uuid;not null;uniqueIndex:idx_delivery_items_payment_id"`
	Channel    domain.Channel `gorm:"type:varchar(10);not null"`
	CreatedAt  time.Time
}

func (DeliveryItemModel) TableName() string {
	return "delivery_items"
}

func paymentModelToDomain(m *PaymentModel) *domain.Payment {
	if m == nil {
		return nil
	}

	return &domain.Payment{
		ID:          m.ID,
		OperatorID:  m.OperatorID,
		ProviderID:  m.ProviderID,
		ClientName:  m.ClientName,
		Amount:      m.Amount,
		Code:        m.Code,
		PaymentDate: m.PaymentDate,
		Active:      m.Active,
		Status:      m.Status,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func paymentModelsToDomain(models []PaymentModel) []domain.Payment {
	payments := make([]domain.Payment, 0, len(models))
	for i := range models {
		payments = append(payments, *paymentModelToDomain(&models[i]))
	}
	return payments
}

func providerModelToDomain(m *ProviderModel) *domain.Provider {
	if m == nil {
		return nil
	}

	return &domain.Provider{
		ID:        m.ID,
		Name:      m.Name,
		Email:     m.Email,
		Active:    m.Active,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func deliveryModelFromDomain(d *domain.Delivery) *DeliveryModel {
	if d == nil {
		return nil
	}

	return &DeliveryModel{
		ID:           d.ID,
		ProviderID:   d.ProviderID,
		OperatorID:   d.OperatorID,
		SummaryDate:  d.SummaryDate,
		PaymentCount: d.PaymentCount,
		TotalAmount:  d.TotalAmount,
		Subject:      d.Subject,
		Body:         d.Body,
		Status:       d.Status,
		RawResponse:  d.RawResponse,
		CreatedAt:    d.CreatedAt,
	}
}

func deliveryModelToDomain(m *DeliveryModel) *domain.Delivery {
	if m == nil {
		return nil
	}

	return &domain.Delivery{
		ID:           m.ID,
		ProviderID:   m.ProviderID,
		OperatorID:   m.OperatorID,
		SummaryDate:  m.SummaryDate,
		PaymentCount: m.PaymentCount,
		TotalAmount:  m.TotalAmount,
		Subject:      m.Subject,
		Body:         m.Body,
		Status:       m.Status,
		RawResponse:  m.RawResponse,
		CreatedAt:    m.CreatedAt,
	}
}
