package queue

import (
	"fmt"
	"strings"
	"time"
)

// Event kinds on the delivery queue.
const (
	// KindRecorded: a delivery row was persisted (status SENT or
	// DELIVERY_ERROR) and its payments are claimed.
	KindRecorded = "delivery.recorded"
	// KindUnrecorded: the external channel was notified but the local
	// claim write failed; the event is the reconciliation breadcrumb.
	KindUnrecorded = "delivery.unrecorded"
)

// DeliveryEvent is the broker payload describing one dispatch outcome.
type DeliveryEvent struct {
	Kind         string    `json:"kind"`
	DeliveryID   string    `json:"deliveryId,omitempty"`
	ProviderID   string    `json:"providerId"`
	OperatorID   string    `json:"operatorId"`
	SummaryDate  string    `json:"summaryDate"`
	Status       string    `json:"status,omitempty"`
	PaymentCount int       `json:"paymentCount"`
	TotalAmount  string    `json:"totalAmount,omitempty"`
	PaymentIDs   []string  `json:"paymentIds,omitempty"`
	OccurredAt   time.Time `json:"occurredAt"`
}

func (e DeliveryEvent) Validate() error {
	switch e.Kind {
	case KindRecorded, KindUnrecorded:
	default:
		return fmt.Errorf("invalid event kind %q", e.Kind)
	}
	if strings.TrimSpace(e.ProviderID) == "" {
		return fmt.Errorf("providerId is required")
	}
	if strings.TrimSpace(e.OperatorID) == "" {
		return fmt.Errorf("operatorId is required")
	}
	if e.Kind == KindRecorded && strings.TrimSpace(e.DeliveryID) == "" {
		return fmt.Errorf("deliveryId is required for recorded events")
	}
	return nil
}
