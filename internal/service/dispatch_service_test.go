package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kursadbilgin/payout-notifier/internal/domain"
	"github.com/kursadbilgin/payout-notifier/internal/gateway"
	"github.com/kursadbilgin/payout-notifier/internal/queue"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var dispatchDate = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

func testProviderRepo() *fakeProviderRepo {
	return &fakeProviderRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.Provider, error) {
			if id != "prov-1" {
				return nil, domain.ErrNotFound
			}
			return &domain.Provider{ID: "prov-1", Name: "Proveedor Uno", Email: "uno@example.com", Active: true}, nil
		},
	}
}

func testDispatchRequest() DispatchRequest {
	return DispatchRequest{
		OperatorID: "op-1",
		ProviderID: "prov-1",
		Date:       dispatchDate,
	}
}

func eligiblePair() []domain.Payment {
	return []domain.Payment{
		testPayment("pay-1", "prov-1", "TARJ-001", "10.00", dispatchDate),
		testPayment("pay-2", "prov-1", "BANCO-001", "15.50", dispatchDate),
	}
}

func TestDispatchHappyPath(t *testing.T) {
	t.Parallel()

	repo := newClaimingDeliveryRepo(eligiblePair())
	gw := &fakeGateway{}
	publisher := &fakeEventPublisher{}

	svc, err := NewDispatchService(testProviderRepo(), repo, gw, &fakeRateLimiter{}, nil)
	if err != nil {
		t.Fatalf("NewDispatchService() error = %v", err)
	}
	svc.SetEventPublisher(publisher)

	report, err := svc.Dispatch(context.Background(), testDispatchRequest())
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	if report.State != domain.DispatchStateRecordedSent {
		t.Fatalf("State = %s, want RECORDED_SENT", report.State)
	}
	if report.Delivery.Status != domain.DeliveryStatusSent {
		t.Fatalf("delivery status = %s, want SENT", report.Delivery.Status)
	}
	if report.Delivery.PaymentCount != 2 {
		t.Fatalf("PaymentCount = %d, want 2", report.Delivery.PaymentCount)
	}
	if !report.Delivery.TotalAmount.Equal(decimal.RequireFromString("25.50")) {
		t.Fatalf("TotalAmount = %s, want 25.50", report.Delivery.TotalAmount)
	}
	if len(report.Delivery.CardPaymentIDs) != 1 || report.Delivery.CardPaymentIDs[0] != "pay-1" {
		t.Fatalf("card ids = %v, want [pay-1]", report.Delivery.CardPaymentIDs)
	}
	if len(report.Delivery.BankPaymentIDs) != 1 || report.Delivery.BankPaymentIDs[0] != "pay-2" {
		t.Fatalf("bank ids = %v, want [pay-2]", report.Delivery.BankPaymentIDs)
	}
	if report.Message.Subject != "Payment confirmation - Proveedor Uno" {
		t.Fatalf("Subject = %q", report.Message.Subject)
	}
	if gw.calls != 1 {
		t.Fatalf("gateway calls = %d, want 1", gw.calls)
	}

	if len(publisher.events) != 1 {
		t.Fatalf("published events = %d, want 1", len(publisher.events))
	}
	if publisher.events[0].Kind != queue.KindRecorded {
		t.Fatalf("event kind = %s, want %s", publisher.events[0].Kind, queue.KindRecorded)
	}

	// The claimed records are no longer eligible: a second dispatch finds nothing.
	_, err = svc.Dispatch(context.Background(), testDispatchRequest())
	if !errors.Is(err, domain.ErrNoEligibleRecords) {
		t.Fatalf("second Dispatch() error = %v, want ErrNoEligibleRecords", err)
	}
	if gw.calls != 1 {
		t.Fatalf("gateway calls after empty claim = %d, want 1", gw.calls)
	}
}

func TestDispatchConcurrentTriggersClaimOnce(t *testing.T) {
	t.Parallel()

	repo := newClaimingDeliveryRepo(eligiblePair())
	gw := &fakeGateway{}

	svc, err := NewDispatchService(testProviderRepo(), repo, gw, nil, nil)
	if err != nil {
		t.Fatalf("NewDispatchService() error = %v", err)
	}

	const triggers = 8
	errs := make(chan error, triggers)

	var wg sync.WaitGroup
	for i := 0; i < triggers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Dispatch(context.Background(), testDispatchRequest())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var won, lost int
	for err := range errs {
		switch {
		case err == nil:
			won++
		case errors.Is(err, domain.ErrNoEligibleRecords):
			lost++
		default:
			t.Fatalf("Dispatch() error = %v, want nil or ErrNoEligibleRecords", err)
		}
	}

	if won != 1 || lost != triggers-1 {
		t.Fatalf("winners = %d, losers = %d, want exactly one claim", won, lost)
	}
	// Losers must bounce off the claim section before anything external
	// happens: one recorded delivery, one gateway call, no duplicates.
	if gw.calls != 1 {
		t.Fatalf("gateway calls = %d, want 1", gw.calls)
	}
	if len(repo.recorded) != 1 {
		t.Fatalf("recorded deliveries = %d, want 1", len(repo.recorded))
	}
	for _, p := range eligiblePair() {
		if deliveryID, ok := repo.claimed[p.ID]; !ok || deliveryID != repo.recorded[0].ID {
			t.Fatalf("payment %s claimed by %q, want the single recorded delivery", p.ID, deliveryID)
		}
	}
}

func TestDispatchLogsStateTransitions(t *testing.T) {
	t.Parallel()

	core, recorded := observer.New(zapcore.DebugLevel)

	repo := newClaimingDeliveryRepo(eligiblePair())
	svc, err := NewDispatchService(testProviderRepo(), repo, &fakeGateway{}, nil, zap.New(core))
	if err != nil {
		t.Fatalf("NewDispatchService() error = %v", err)
	}

	if _, err := svc.Dispatch(context.Background(), testDispatchRequest()); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	var states []string
	for _, entry := range recorded.All() {
		if entry.Message != "dispatch state" {
			continue
		}
		if state, ok := entry.ContextMap()["state"].(string); ok {
			states = append(states, state)
		}
	}

	want := []string{"REQUESTED", "CLAIMING", "CLAIMED", "DELIVERING"}
	if len(states) != len(want) {
		t.Fatalf("states = %v, want %v", states, want)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Fatalf("states = %v, want %v", states, want)
		}
	}

	// A second dispatch finds nothing to claim and ends CLAIM_EMPTY.
	recorded.TakeAll()
	if _, err := svc.Dispatch(context.Background(), testDispatchRequest()); !errors.Is(err, domain.ErrNoEligibleRecords) {
		t.Fatalf("Dispatch() error = %v, want ErrNoEligibleRecords", err)
	}

	sawEmpty := false
	for _, entry := range recorded.All() {
		if entry.Message == "dispatch state" && entry.ContextMap()["state"] == "CLAIM_EMPTY" {
			sawEmpty = true
		}
	}
	if !sawEmpty {
		t.Fatal("empty re-dispatch should log the CLAIM_EMPTY state")
	}
}

func TestDispatchRecordsDeliveryOnGatewayError(t *testing.T) {
	t.Parallel()

	repo := newClaimingDeliveryRepo(eligiblePair())
	gw := &fakeGateway{
		sendFn: func(ctx context.Context, payload gateway.Payload) gateway.Outcome {
			return gateway.Outcome{
				Status:  domain.DeliveryStatusError,
				RawBody: `{"estado":false}`,
				Reason:  gateway.ReasonBusiness,
			}
		},
	}

	svc, err := NewDispatchService(testProviderRepo(), repo, gw, nil, nil)
	if err != nil {
		t.Fatalf("NewDispatchService() error = %v", err)
	}

	report, err := svc.Dispatch(context.Background(), testDispatchRequest())
	if err != nil {
		t.Fatalf("Dispatch() error = %v, want recorded attempt despite gateway failure", err)
	}

	if report.State != domain.DispatchStateRecordedError {
		t.Fatalf("State = %s, want RECORDED_ERROR", report.State)
	}
	if report.Delivery.Status != domain.DeliveryStatusError {
		t.Fatalf("delivery status = %s, want DELIVERY_ERROR", report.Delivery.Status)
	}
	if report.RawResponse != `{"estado":false}` {
		t.Fatalf("RawResponse = %q", report.RawResponse)
	}
	if len(repo.recorded) != 1 {
		t.Fatalf("recorded deliveries = %d, want exactly 1", len(repo.recorded))
	}

	// Failed delivery still consumes the records.
	_, err = svc.Dispatch(context.Background(), testDispatchRequest())
	if !errors.Is(err, domain.ErrNoEligibleRecords) {
		t.Fatalf("second Dispatch() error = %v, want ErrNoEligibleRecords", err)
	}
}

func TestDispatchEmptyScope(t *testing.T) {
	t.Parallel()

	repo := newClaimingDeliveryRepo(nil)
	gw := &fakeGateway{}

	svc, err := NewDispatchService(testProviderRepo(), repo, gw, nil, nil)
	if err != nil {
		t.Fatalf("NewDispatchService() error = %v", err)
	}

	_, err = svc.Dispatch(context.Background(), testDispatchRequest())
	if !errors.Is(err, domain.ErrNoEligibleRecords) {
		t.Fatalf("Dispatch() error = %v, want ErrNoEligibleRecords", err)
	}
	if gw.calls != 0 {
		t.Fatalf("gateway calls = %d, want 0 for empty claim", gw.calls)
	}
	if len(repo.recorded) != 0 {
		t.Fatalf("recorded deliveries = %d, want 0", len(repo.recorded))
	}
}

func TestDispatchOverridesWinVerbatim(t *testing.T) {
	t.Parallel()

	repo := newClaimingDeliveryRepo(eligiblePair())
	var sentPayload gateway.Payload
	gw := &fakeGateway{
		sendFn: func(ctx context.Context, payload gateway.Payload) gateway.Outcome {
			sentPayload = payload
			return gateway.Outcome{Status: domain.DeliveryStatusSent, RawBody: `{"estado":true}`}
		},
	}

	svc, err := NewDispatchService(testProviderRepo(), repo, gw, nil, nil)
	if err != nil {
		t.Fatalf("NewDispatchService() error = %v", err)
	}

	req := testDispatchRequest()
	req.Subject = "Resumen manual"
	req.Body = "Cuerpo manual"

	report, err := svc.Dispatch(context.Background(), req)
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	if report.Delivery.Subject != "Resumen manual" {
		t.Fatalf("Subject = %q, want override", report.Delivery.Subject)
	}
	if sentPayload.Subject != "Resumen manual" || sentPayload.Body != "Cuerpo manual" {
		t.Fatalf("payload = %q/%q, want overrides", sentPayload.Subject, sentPayload.Body)
	}
	if sentPayload.To != "uno@example.com" {
		t.Fatalf("payload.To = %q", sentPayload.To)
	}
}

func TestDispatchPersistenceFailureBeforeDelivery(t *testing.T) {
	t.Parallel()

	storeErr := errors.New("store unreachable")
	failing := newClaimingDeliveryRepo(eligiblePair())
	failing.failRecord = storeErr

	gw := &fakeGateway{
		sendFn: func(ctx context.Context, payload gateway.Payload) gateway.Outcome {
			return gateway.Outcome{Status: domain.DeliveryStatusError, Reason: gateway.ReasonTransport}
		},
	}

	svc, err := NewDispatchService(testProviderRepo(), failing, gw, nil, nil)
	if err != nil {
		t.Fatalf("NewDispatchService() error = %v", err)
	}

	_, err = svc.Dispatch(context.Background(), testDispatchRequest())
	if err == nil {
		t.Fatal("Dispatch() expected error")
	}

	// The external channel was not notified: this is an ordinary
	// persistence failure, not the reconciliation case.
	var unrecorded *domain.PersistenceAfterDeliveryError
	if errors.As(err, &unrecorded) {
		t.Fatalf("Dispatch() error = %T, want plain persistence error", err)
	}
}

func TestDispatchPersistenceFailureAfterDelivery(t *testing.T) {
	t.Parallel()

	storeErr := errors.New("constraint violation")
	repo := newClaimingDeliveryRepo(eligiblePair())
	repo.failRecord = storeErr

	publisher := &fakeEventPublisher{}

	svc, err := NewDispatchService(testProviderRepo(), repo, &fakeGateway{}, nil, nil)
	if err != nil {
		t.Fatalf("NewDispatchService() error = %v", err)
	}
	svc.SetEventPublisher(publisher)

	_, err = svc.Dispatch(context.Background(), testDispatchRequest())
	if err == nil {
		t.Fatal("Dispatch() expected error")
	}

	var unrecorded *domain.PersistenceAfterDeliveryError
	if !errors.As(err, &unrecorded) {
		t.Fatalf("Dispatch() error = %v, want PersistenceAfterDeliveryError", err)
	}
	if !errors.Is(err, storeErr) {
		t.Fatalf("error should wrap the cause, got %v", err)
	}
	if unrecorded.ProviderID != "prov-1" {
		t.Fatalf("ProviderID = %s", unrecorded.ProviderID)
	}
	if len(unrecorded.PaymentIDs) != 2 {
		t.Fatalf("PaymentIDs = %v, want both records for reconciliation", unrecorded.PaymentIDs)
	}
	if unrecorded.Subject == "" || unrecorded.Body == "" {
		t.Fatal("reconciliation payload should carry the composed message")
	}

	if len(publisher.events) != 1 || publisher.events[0].Kind != queue.KindUnrecorded {
		t.Fatalf("events = %+v, want one unrecorded event", publisher.events)
	}
}

func TestDispatchRateLimiterFailureAbortsBeforeSend(t *testing.T) {
	t.Parallel()

	repo := newClaimingDeliveryRepo(eligiblePair())
	gw := &fakeGateway{}
	limiterErr := errors.New("redis down")

	svc, err := NewDispatchService(testProviderRepo(), repo, gw, &fakeRateLimiter{
		waitFn: func(ctx context.Context, scope string) error { return limiterErr },
	}, nil)
	if err != nil {
		t.Fatalf("NewDispatchService() error = %v", err)
	}

	_, err = svc.Dispatch(context.Background(), testDispatchRequest())
	if !errors.Is(err, limiterErr) {
		t.Fatalf("Dispatch() error = %v, want limiter failure", err)
	}
	if gw.calls != 0 {
		t.Fatalf("gateway calls = %d, want 0", gw.calls)
	}
	if len(repo.recorded) != 0 {
		t.Fatalf("recorded deliveries = %d, want 0", len(repo.recorded))
	}
}

func TestDispatchUnknownProvider(t *testing.T) {
	t.Parallel()

	svc, err := NewDispatchService(testProviderRepo(), newClaimingDeliveryRepo(nil), &fakeGateway{}, nil, nil)
	if err != nil {
		t.Fatalf("NewDispatchService() error = %v", err)
	}

	req := testDispatchRequest()
	req.ProviderID = "prov-unknown"

	_, err = svc.Dispatch(context.Background(), req)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Dispatch() error = %v, want ErrNotFound", err)
	}
}

func TestDispatchValidatesRequest(t *testing.T) {
	t.Parallel()

	svc, err := NewDispatchService(testProviderRepo(), newClaimingDeliveryRepo(nil), &fakeGateway{}, nil, nil)
	if err != nil {
		t.Fatalf("NewDispatchService() error = %v", err)
	}

	tests := []struct {
		name   string
		mutate func(r *DispatchRequest)
	}{
		{name: "missing operator", mutate: func(r *DispatchRequest) { r.OperatorID = "" }},
		{name: "missing provider", mutate: func(r *DispatchRequest) { r.ProviderID = " " }},
		{name: "missing date", mutate: func(r *DispatchRequest) { r.Date = time.Time{} }},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := testDispatchRequest()
			tt.mutate(&req)

			_, err := svc.Dispatch(context.Background(), req)
			if !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("Dispatch() error = %v, want ErrValidation", err)
			}
		})
	}
}
