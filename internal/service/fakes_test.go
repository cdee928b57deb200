package service

import (
	"context"
	"sync"
	"time"

	"github.com/kursadbilgin/payout-notifier/internal/domain"
	"github.com/kursadbilgin/payout-notifier/internal/gateway"
	"github.com/kursadbilgin/payout-notifier/internal/queue"
	"github.com/kursadbilgin/payout-notifier/internal/repository"
	"github.com/shopspring/decimal"
)

type fakePaymentRepo struct {
	listEligibleFn func(ctx context.Context, scope repository.Scope) ([]domain.Payment, error)
	listClaimedFn  func(ctx context.Context, scope repository.Scope) ([]domain.Payment, error)
}

func (f *fakePaymentRepo) ListEligible(ctx context.Context, scope repository.Scope) ([]domain.Payment, error) {
	if f.listEligibleFn == nil {
		return nil, nil
	}
	return f.listEligibleFn(ctx, scope)
}

func (f *fakePaymentRepo) ListClaimed(ctx context.Context, scope repository.Scope) ([]domain.Payment, error) {
	if f.listClaimedFn == nil {
		return nil, nil
	}
	return f.listClaimedFn(ctx, scope)
}

type fakeProviderRepo struct {
	getByIDFn  func(ctx context.Context, id string) (*domain.Provider, error)
	getByIDsFn func(ctx context.Context, ids []string) (map[string]domain.Provider, error)
}

func (f *fakeProviderRepo) GetByID(ctx context.Context, id string) (*domain.Provider, error) {
	if f.getByIDFn == nil {
		return nil, domain.ErrNotFound
	}
	return f.getByIDFn(ctx, id)
}

func (f *fakeProviderRepo) GetByIDs(ctx context.Context, ids []string) (map[string]domain.Provider, error) {
	if f.getByIDsFn == nil {
		return map[string]domain.Provider{}, nil
	}
	return f.getByIDsFn(ctx, ids)
}

type fakeDeliveryRepo struct {
	claimAndRecordFn func(ctx context.Context, scope repository.Scope, build repository.BuildDeliveryFunc) (*domain.Delivery, []domain.Payment, error)
	listFn           func(ctx context.Context, params repository.HistoryParams) ([]domain.Delivery, error)
}

func (f *fakeDeliveryRepo) ClaimAndRecord(ctx context.Context, scope repository.Scope, build repository.BuildDeliveryFunc) (*domain.Delivery, []domain.Payment, error) {
	if f.claimAndRecordFn == nil {
		return nil, nil, domain.ErrNoEligibleRecords
	}
	return f.claimAndRecordFn(ctx, scope, build)
}

func (f *fakeDeliveryRepo) List(ctx context.Context, params repository.HistoryParams) ([]domain.Delivery, error) {
	if f.listFn == nil {
		return nil, nil
	}
	return f.listFn(ctx, params)
}

// claimingDeliveryRepo mimics the store's claim transaction against an
// in-memory record set: once claimed, records stop being eligible, and
// the whole claim section serializes the way the scope lock does, so a
// concurrent loser re-reads after the winner and finds nothing.
type claimingDeliveryRepo struct {
	mu         sync.Mutex
	eligible   []domain.Payment
	claimed    map[string]string
	recorded   []domain.Delivery
	failRecord error
}

func newClaimingDeliveryRepo(eligible []domain.Payment) *claimingDeliveryRepo {
	return &claimingDeliveryRepo{
		eligible: eligible,
		claimed:  map[string]string{},
	}
}

func (r *claimingDeliveryRepo) ClaimAndRecord(ctx context.Context, scope repository.Scope, build repository.BuildDeliveryFunc) (*domain.Delivery, []domain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	remaining := make([]domain.Payment, 0, len(r.eligible))
	for i := range r.eligible {
		p := r.eligible[i]
		if _, taken := r.claimed[p.ID]; taken {
			continue
		}
		if scope.ProviderID != "" && p.ProviderID != scope.ProviderID {
			continue
		}
		remaining = append(remaining, p)
	}

	if len(remaining) == 0 {
		return nil, nil, domain.ErrNoEligibleRecords
	}

	delivery, err := build(remaining)
	if err != nil {
		return nil, remaining, err
	}
	if r.failRecord != nil {
		return nil, remaining, r.failRecord
	}

	for i := range remaining {
		r.claimed[remaining[i].ID] = delivery.ID
	}
	r.recorded = append(r.recorded, *delivery)
	return delivery, remaining, nil
}

func (r *claimingDeliveryRepo) List(ctx context.Context, params repository.HistoryParams) ([]domain.Delivery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recorded, nil
}

type fakeGateway struct {
	sendFn func(ctx context.Context, payload gateway.Payload) gateway.Outcome
	calls  int
}

func (f *fakeGateway) Send(ctx context.Context, payload gateway.Payload) gateway.Outcome {
	f.calls++
	if f.sendFn == nil {
		return gateway.Outcome{Status: domain.DeliveryStatusSent, RawBody: `{"estado":true}`}
	}
	return f.sendFn(ctx, payload)
}

type fakeEventPublisher struct {
	publishFn func(ctx context.Context, queueName string, event queue.DeliveryEvent) error
	events    []queue.DeliveryEvent
}

func (f *fakeEventPublisher) Publish(ctx context.Context, queueName string, event queue.DeliveryEvent) error {
	f.events = append(f.events, event)
	if f.publishFn == nil {
		return nil
	}
	return f.publishFn(ctx, queueName, event)
}

func (f *fakeEventPublisher) Close() error { return nil }

type fakeRateLimiter struct {
	waitFn func(ctx context.Context, scope string) error
}

func (f *fakeRateLimiter) Allow(ctx context.Context, scope string) (bool, error) { return true, nil }

func (f *fakeRateLimiter) Wait(ctx context.Context, scope string) error {
	if f.waitFn == nil {
		return nil
	}
	return f.waitFn(ctx, scope)
}

func testPayment(id, providerID, code, amount string, date time.Time) domain.Payment {
	return domain.Payment{
		ID:          id,
		OperatorID:  "op-1",
		ProviderID:  providerID,
		ClientName:  "Cliente " + id,
		Amount:      decimal.RequireFromString(amount),
		Code:        code,
		PaymentDate: date,
		Active:      true,
		Status:      domain.PaymentStatusPaid,
	}
}
