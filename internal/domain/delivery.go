package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DeliveryStatus is the recorded outcome of one dispatch attempt.
type DeliveryStatus string

const (
	DeliveryStatusSent  DeliveryStatus = "SENT"
	DeliveryStatusError DeliveryStatus = "DELIVERY_ERROR"
)

func (s DeliveryStatus) String() string { return string(s) }

func (s DeliveryStatus) IsValid() bool {
	switch s {
	case DeliveryStatusSent, DeliveryStatusError:
		return true
	}
	return false
}

func ParseDeliveryStatusFromString(s string) (DeliveryStatus, error) {
	st := DeliveryStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid delivery status %q", ErrValidation, s)
	}
	return st, nil
}

// DispatchState tracks one dispatch attempt through the coordinator.
// CLAIM_EMPTY and the two RECORDED states are terminal.
type DispatchState string

const (
	DispatchStateRequested     DispatchState = "REQUESTED"
	DispatchStateClaiming      DispatchState = "CLAIMING"
	DispatchStateClaimEmpty    DispatchState = "CLAIM_EMPTY"
	DispatchStateClaimed       DispatchState = "CLAIMED"
	DispatchStateDelivering    DispatchState = "DELIVERING"
	DispatchStateRecordedSent  DispatchState = "RECORDED_SENT"
	DispatchStateRecordedError DispatchState = "RECORDED_ERROR"
)

// Delivery ("envio") is the durable record of one dispatch attempt.
// Created exactly once per successful claim, regardless of whether the
// external call succeeded, and immutable afterward.
type Delivery struct {
	ID           string          `gorm:"type:uuid;primaryKey"`
	ProviderID   string          `gorm:"type:uuid;not null"`
	OperatorID   string          `gorm:"type:varchar(64);not null"`
	SummaryDate  time.Time       `gorm:"type:date;not null"`
	PaymentCount int             `gorm:"not null"`
	TotalAmount  decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	Subject      string          `gorm:"type:varchar(255);not null"`
	Body         string          `gorm:"type:text;not null"`
	Status       DeliveryStatus  `gorm:"type:varchar(20);not null"`
	RawResponse  *string         `gorm:"type:text"`
	// Consumed payment ids split by channel sub-type.
	CardPaymentIDs []string `gorm:"-"`
	BankPaymentIDs []string `gorm:"-"`
	CreatedAt      time.Time
}

func (d *Delivery) Validate() error {
	if d.ProviderID == "" {
		return fmt.Errorf("%w: provider id is required", ErrValidation)
	}
	if d.OperatorID == "" {
		return fmt.Errorf("%w: operator id is required", ErrValidation)
	}
	if !d.Status.IsValid() {
		return fmt.Errorf("%w: invalid delivery status %q", ErrValidation, d.Status)
	}
	if d.PaymentCount < 1 {
		return fmt.Errorf("%w: delivery must consume at least one payment", ErrValidation)
	}
	if d.PaymentCount != len(d.CardPaymentIDs)+len(d.BankPaymentIDs) {
		return fmt.Errorf("%w: payment count does not match claimed ids", ErrValidation)
	}
	return nil
}

// PersistenceAfterDeliveryError flags the one state where the external
// channel was notified but the local claim could not be recorded. It
// carries enough to support manual reconciliation and must never be folded
// into an ordinary persistence failure.
type PersistenceAfterDeliveryError struct {
	ProviderID  string
	OperatorID  string
	SummaryDate time.Time
	PaymentIDs  []string
	Subject     string
	Body        string
	Cause       error
}

func (e *PersistenceAfterDeliveryError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf(
		"claim not recorded after external delivery: provider=%s date=%s payments=%d: %v",
		e.ProviderID, e.SummaryDate.Format("2006-01-02"), len(e.PaymentIDs), e.Cause,
	)
}

func (e *PersistenceAfterDeliveryError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}
