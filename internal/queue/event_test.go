package queue

import (
	"testing"
	"time"
)

func TestDeliveryEventValidate(t *testing.T) {
	t.Parallel()

	valid := DeliveryEvent{
		Kind:         KindRecorded,
		DeliveryID:   "del-1",
		ProviderID:   "prov-1",
		OperatorID:   "op-1",
		SummaryDate:  "2024-05-01",
		Status:       "SENT",
		PaymentCount: 2,
		OccurredAt:   time.Now().UTC(),
	}

	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate() unexpected error = %v", err)
	}

	tests := []struct {
		name   string
		mutate func(e *DeliveryEvent)
	}{
		{name: "unknown kind", mutate: func(e *DeliveryEvent) { e.Kind = "delivery.maybe" }},
		{name: "missing provider", mutate: func(e *DeliveryEvent) { e.ProviderID = "" }},
		{name: "missing operator", mutate: func(e *DeliveryEvent) { e.OperatorID = "" }},
		{name: "recorded without delivery id", mutate: func(e *DeliveryEvent) { e.DeliveryID = "" }},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			e := valid
			tt.mutate(&e)
			if err := e.Validate(); err == nil {
				t.Fatal("Validate() expected error, got nil")
			}
		})
	}
}

func TestUnrecordedEventNeedsNoDeliveryID(t *testing.T) {
	t.Parallel()

	e := DeliveryEvent{
		Kind:        KindUnrecorded,
		ProviderID:  "prov-1",
		OperatorID:  "op-1",
		SummaryDate: "2024-05-01",
		PaymentIDs:  []string{"pay-1"},
		OccurredAt:  time.Now().UTC(),
	}

	if err := e.Validate(); err != nil {
		t.Fatalf("Validate() unexpected error = %v", err)
	}
}
