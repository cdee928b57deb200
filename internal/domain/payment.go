package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus represents the lifecycle state of a payment record.
type PaymentStatus string

const (
	PaymentStatusPaid     PaymentStatus = "PAID"
	PaymentStatusPending  PaymentStatus = "PENDING"
	PaymentStatusRejected PaymentStatus = "REJECTED"
)

func (s PaymentStatus) String() string { return string(s) }

func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusPaid, PaymentStatusPending, PaymentStatusRejected:
		return true
	}
	return false
}

func ParsePaymentStatusFromString(s string) (PaymentStatus, error) {
	st := PaymentStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid payment status %q", ErrValidation, s)
	}
	return st, nil
}

// Channel is the payment channel sub-type used to split claimed records
// on the outbound notification.
type Channel string

const (
	ChannelCard Channel = "CARD"
	ChannelBank Channel = "BANK"
)

func (c Channel) String() string { return string(c) }

// bankCodePrefix marks bank-channel payment codes, e.g. BANCO-001.
const bankCodePrefix = "BANCO-"

// ChannelForCode classifies a payment code: the BANCO- prefix selects the
// bank channel, everything else (including an empty code) is card.
func ChannelForCode(code string) Channel {
	if strings.HasPrefix(code, bankCodePrefix) {
		return ChannelBank
	}
	return ChannelCard
}

// Payment is one payment owed to one provider. Records are created by
// upstream payment processing and never deleted here; this subsystem only
// consumes them by linking them to a delivery.
type Payment struct {
	ID          string          `gorm:"type:uuid;primaryKey"`
	OperatorID  string          `gorm:"type:varchar(64);not null"`
	ProviderID  string          `gorm:"type:uuid;not null"`
	ClientName  string          `gorm:"type:varchar(255);not null"`
	Amount      decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	Code        string          `gorm:"type:varchar(64);not null;default:''"`
	PaymentDate time.Time       `gorm:"type:date;not null"`
	Active      bool            `gorm:"not null;default:true"`
	Status      PaymentStatus   `gorm:"type:varchar(20);not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (p *Payment) Channel() Channel { return ChannelForCode(p.Code) }

func (p *Payment) Validate() error {
	if p.OperatorID == "" {
		return fmt.Errorf("%w: operator id is required", ErrValidation)
	}
	if p.ProviderID == "" {
		return fmt.Errorf("%w: provider id is required", ErrValidation)
	}
	if !p.Status.IsValid() {
		return fmt.Errorf("%w: invalid payment status %q", ErrValidation, p.Status)
	}
	if p.Amount.IsNegative() {
		return fmt.Errorf("%w: amount must not be negative", ErrValidation)
	}
	if p.PaymentDate.IsZero() {
		return fmt.Errorf("%w: payment date is required", ErrValidation)
	}
	return nil
}

// EligibilityPolicy decides whether a payment record may still be
// notified. The claim link is checked by the store, not here; this policy
// covers the record's own state. Verification status is deliberately not
// consulted; the predicate is a single named function so that decision can
// change in one place.
type EligibilityPolicy func(p *Payment) bool

// DefaultEligibility: PAID and active.
func DefaultEligibility(p *Payment) bool {
	if p == nil {
		return false
	}
	return p.Status == PaymentStatusPaid && p.Active
}
