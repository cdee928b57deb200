package gateway

import (
	"context"
	"time"

	"github.com/kursadbilgin/payout-notifier/internal/domain"
	"github.com/shopspring/decimal"
)

// Payload is the composed notification handed to the delivery channel.
type Payload struct {
	To       string
	Subject  string
	Body     string
	Payments []PaymentLine
}

// PaymentLine is one consumed payment echoed to the external channel.
type PaymentLine struct {
	ID         string
	ClientName string
	Code       string
	Amount     decimal.Decimal
	Date       time.Time
}

// Failure reasons carried on an Outcome for logging and metrics.
const (
	ReasonTransport = "transport_error"
	ReasonTimeout   = "timeout"
	ReasonHTTP      = "http_status"
	ReasonBusiness  = "business_rejected"
)

// Outcome is the classified result of one delivery call. Every failure
// mode folds into DeliveryStatusError; the caller never receives an
// unhandled fault from a gateway.
type Outcome struct {
	Status  domain.DeliveryStatus
	RawBody string
	Reason  string
}

// Gateway performs the outbound call to the external notification channel.
// Implementations never retry; retry policy belongs to the caller.
type Gateway interface {
	Send(ctx context.Context, payload Payload) Outcome
}
