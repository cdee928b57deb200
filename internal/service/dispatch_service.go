package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/payout-notifier/internal/domain"
	"github.com/kursadbilgin/payout-notifier/internal/gateway"
	"github.com/kursadbilgin/payout-notifier/internal/observability"
	"github.com/kursadbilgin/payout-notifier/internal/queue"
	"github.com/kursadbilgin/payout-notifier/internal/ratelimit"
	"github.com/kursadbilgin/payout-notifier/internal/repository"
	"go.uber.org/zap"
)

// gatewayScope is the rate-limit scope for outbound mailer calls.
const gatewayScope = "mailer"

// DispatchRequest is one dispatch trigger: notify a single provider of its
// eligible payments for a date. Subject and Body override the composed
// defaults when non-blank.
type DispatchRequest struct {
	OperatorID string
	ProviderID string
	Date       time.Time
	Subject    string
	Body       string
}

func (r DispatchRequest) Validate() error {
	if strings.TrimSpace(r.OperatorID) == "" {
		return fmt.Errorf("%w: operator id is required", domain.ErrValidation)
	}
	if strings.TrimSpace(r.ProviderID) == "" {
		return fmt.Errorf("%w: provider id is required", domain.ErrValidation)
	}
	if r.Date.IsZero() {
		return fmt.Errorf("%w: summary date is required", domain.ErrValidation)
	}
	return nil
}

// DispatchReport describes one completed dispatch attempt. A gateway
// failure is still a completed attempt: the delivery carries the
// DELIVERY_ERROR status and the report is returned without error.
type DispatchReport struct {
	State       domain.DispatchState
	Delivery    *domain.Delivery
	Message     Message
	Payments    []domain.Payment
	RawResponse string
}

// DispatchService orchestrates claim, compose, deliver and record for one
// provider/date scope. Only this service mutates claim state.
type DispatchService struct {
	providers  repository.ProviderRepository
	deliveries repository.DeliveryRepository
	gateway    gateway.Gateway
	limiter    ratelimit.RateLimiter
	events     queue.Publisher
	metrics    *observability.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

func NewDispatchService(
	providers repository.ProviderRepository,
	deliveries repository.DeliveryRepository,
	gw gateway.Gateway,
	limiter ratelimit.RateLimiter,
	logger *zap.Logger,
) (*DispatchService, error) {
	if providers == nil {
		return nil, fmt.Errorf("provider repository is required")
	}
	if deliveries == nil {
		return nil, fmt.Errorf("delivery repository is required")
	}
	if gw == nil {
		return nil, fmt.Errorf("gateway is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &DispatchService{
		providers:  providers,
		deliveries: deliveries,
		gateway:    gw,
		limiter:    limiter,
		logger:     logger,
		now:        time.Now,
	}, nil
}

func (s *DispatchService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

func (s *DispatchService) SetEventPublisher(publisher queue.Publisher) {
	if s == nil {
		return
	}
	s.events = publisher
}

// Dispatch runs one attempt through the state machine:
// REQUESTED -> CLAIMING -> (CLAIM_EMPTY | CLAIMED) -> DELIVERING ->
// (RECORDED_SENT | RECORDED_ERROR).
//
// The eligibility read, the gateway call and the claim write execute inside
// one store transaction with the eligible rows locked, so concurrent
// triggers for the same scope serialize: the loser of the race observes an
// empty eligible set and gets ErrNoEligibleRecords.
func (s *DispatchService) Dispatch(ctx context.Context, req DispatchRequest) (*DispatchReport, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	logger := observability.WithContextLogger(s.logger, ctx)
	logger.Debug("dispatch state",
		zap.String("state", string(domain.DispatchStateRequested)),
		zap.String("providerId", req.ProviderID),
		zap.String("date", req.Date.Format("2006-01-02")),
	)

	provider, err := s.providers.GetByID(ctx, strings.TrimSpace(req.ProviderID))
	if err != nil {
		return nil, err
	}

	scope := repository.Scope{
		OperatorID: strings.TrimSpace(req.OperatorID),
		Date:       req.Date,
		ProviderID: provider.ID,
	}

	logger.Debug("dispatch state",
		zap.String("state", string(domain.DispatchStateClaiming)),
		zap.String("providerId", provider.ID),
	)

	var (
		message   Message
		outcome   *gateway.Outcome
		delivered bool
	)

	delivery, payments, err := s.deliveries.ClaimAndRecord(ctx, scope, func(claimed []domain.Payment) (*domain.Delivery, error) {
		group := domain.Group{
			ProviderID:    provider.ID,
			ProviderName:  provider.Name,
			ProviderEmail: provider.Email,
			Payments:      claimed,
		}

		logger.Debug("dispatch state",
			zap.String("state", string(domain.DispatchStateClaimed)),
			zap.Int("payments", len(claimed)),
		)

		message = ComposeMessage(group, req.Date, MessageOverrides{
			Subject: req.Subject,
			Body:    req.Body,
		})

		if s.limiter != nil {
			if err := s.limiter.Wait(ctx, gatewayScope); err != nil {
				return nil, fmt.Errorf("rate limiter wait failed: %w", err)
			}
		}

		logger.Debug("dispatch state",
			zap.String("state", string(domain.DispatchStateDelivering)),
		)

		sendStart := s.now()
		result := s.gateway.Send(ctx, payloadForGroup(group, message))
		if s.metrics != nil {
			s.metrics.ObserveGatewaySendDuration(s.now().Sub(sendStart))
		}
		outcome = &result
		delivered = result.Status == domain.DeliveryStatusSent

		card, bank := group.SplitByChannel()

		d := &domain.Delivery{
			ID:             uuid.NewString(),
			ProviderID:     provider.ID,
			OperatorID:     scope.OperatorID,
			SummaryDate:    req.Date,
			PaymentCount:   group.TotalCount(),
			TotalAmount:    group.TotalAmount(),
			Subject:        message.Subject,
			Body:           message.Body,
			Status:         result.Status,
			CardPaymentIDs: card,
			BankPaymentIDs: bank,
			CreatedAt:      s.now().UTC(),
		}
		if raw := strings.TrimSpace(result.RawBody); raw != "" {
			d.RawResponse = &raw
		}
		return d, nil
	})
	if err != nil {
		return nil, s.classifyDispatchError(ctx, err, scope, payments, message, delivered)
	}

	s.recordDispatchMetrics(delivery)
	s.publishRecorded(ctx, delivery)

	state := domain.DispatchStateRecordedSent
	if delivery.Status == domain.DeliveryStatusError {
		state = domain.DispatchStateRecordedError
	}

	report := &DispatchReport{
		State:    state,
		Delivery: delivery,
		Message:  message,
		Payments: payments,
	}
	if outcome != nil {
		report.RawResponse = outcome.RawBody
	}

	logger.Info("dispatch recorded",
		zap.String("deliveryId", delivery.ID),
		zap.String("providerId", delivery.ProviderID),
		zap.String("status", delivery.Status.String()),
		zap.Int("payments", delivery.PaymentCount),
		zap.String("total", delivery.TotalAmount.StringFixed(2)),
	)

	return report, nil
}

// classifyDispatchError separates the one dangerous failure mode: the
// external channel was notified but the claim write did not land. That
// case must surface distinctly with a reconciliation payload; everything
// else aborted before anything external happened.
func (s *DispatchService) classifyDispatchError(
	ctx context.Context,
	err error,
	scope repository.Scope,
	payments []domain.Payment,
	message Message,
	delivered bool,
) error {
	logger := observability.WithContextLogger(s.logger, ctx)

	if errors.Is(err, domain.ErrNoEligibleRecords) {
		logger.Debug("dispatch state",
			zap.String("state", string(domain.DispatchStateClaimEmpty)),
			zap.String("providerId", scope.ProviderID),
		)
		if s.metrics != nil {
			s.metrics.IncDispatch(observability.DispatchOutcomeNoEligible)
		}
		return err
	}

	if !delivered {
		if s.metrics != nil {
			s.metrics.IncDispatch(observability.DispatchOutcomePersistence)
		}
		return err
	}

	ids := make([]string, 0, len(payments))
	for i := range payments {
		ids = append(ids, payments[i].ID)
	}

	unrecorded := &domain.PersistenceAfterDeliveryError{
		ProviderID:  scope.ProviderID,
		OperatorID:  scope.OperatorID,
		SummaryDate: scope.Date,
		PaymentIDs:  ids,
		Subject:     message.Subject,
		Body:        message.Body,
		Cause:       err,
	}

	if s.metrics != nil {
		s.metrics.IncDispatch(observability.DispatchOutcomeUnrecorded)
	}
	logger.Error("external delivery succeeded but claim was not recorded",
		zap.String("providerId", scope.ProviderID),
		zap.String("date", scope.Date.Format("2006-01-02")),
		zap.Strings("paymentIds", ids),
		zap.Error(err),
	)
	s.publishUnrecorded(ctx, unrecorded)

	return unrecorded
}

func (s *DispatchService) recordDispatchMetrics(delivery *domain.Delivery) {
	if s.metrics == nil || delivery == nil {
		return
	}

	outcome := observability.DispatchOutcomeSent
	if delivery.Status == domain.DeliveryStatusError {
		outcome = observability.DispatchOutcomeDeliveryError
	}
	s.metrics.IncDispatch(outcome)
	s.metrics.AddClaimedPayments(strings.ToLower(domain.ChannelCard.String()), len(delivery.CardPaymentIDs))
	s.metrics.AddClaimedPayments(strings.ToLower(domain.ChannelBank.String()), len(delivery.BankPaymentIDs))
}

// publishRecorded emits the delivery event best-effort: a broker outage
// never fails a dispatch that is already durably recorded.
func (s *DispatchService) publishRecorded(ctx context.Context, delivery *domain.Delivery) {
	if s.events == nil || delivery == nil {
		return
	}

	event := queue.DeliveryEvent{
		Kind:         queue.KindRecorded,
		DeliveryID:   delivery.ID,
		ProviderID:   delivery.ProviderID,
		OperatorID:   delivery.OperatorID,
		SummaryDate:  delivery.SummaryDate.Format("2006-01-02"),
		Status:       delivery.Status.String(),
		PaymentCount: delivery.PaymentCount,
		TotalAmount:  delivery.TotalAmount.StringFixed(2),
		OccurredAt:   s.now().UTC(),
	}

	if err := s.events.Publish(ctx, queue.RecordedQueueName, event); err != nil {
		if s.metrics != nil {
			s.metrics.IncEventPublishFailure()
		}
		s.logger.Warn("failed to publish delivery event",
			zap.String("deliveryId", delivery.ID),
			zap.Error(err),
		)
	}
}

func (s *DispatchService) publishUnrecorded(ctx context.Context, unrecorded *domain.PersistenceAfterDeliveryError) {
	if s.events == nil || unrecorded == nil {
		return
	}

	event := queue.DeliveryEvent{
		Kind:         queue.KindUnrecorded,
		ProviderID:   unrecorded.ProviderID,
		OperatorID:   unrecorded.OperatorID,
		SummaryDate:  unrecorded.SummaryDate.Format("2006-01-02"),
		PaymentCount: len(unrecorded.PaymentIDs),
		PaymentIDs:   unrecorded.PaymentIDs,
		OccurredAt:   s.now().UTC(),
	}

	if err := s.events.Publish(ctx, queue.RecordedQueueName, event); err != nil {
		if s.metrics != nil {
			s.metrics.IncEventPublishFailure()
		}
		s.logger.Error("failed to publish reconciliation event",
			zap.String("providerId", unrecorded.ProviderID),
			zap.Error(err),
		)
	}
}

func payloadForGroup(group domain.Group, message Message) gateway.Payload {
	lines := make([]gateway.PaymentLine, 0, len(group.Payments))
	for i := range group.Payments {
		p := &group.Payments[i]
		lines = append(lines, gateway.PaymentLine{
			ID:         p.ID,
			ClientName: p.ClientName,
			Code:       p.Code,
			Amount:     p.Amount,
			Date:       p.PaymentDate,
		})
	}

	return gateway.Payload{
		To:       group.ProviderEmail,
		Subject:  message.Subject,
		Body:     message.Body,
		Payments: lines,
	}
}
