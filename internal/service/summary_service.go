package service

import (
	"context"
	"sort"

	"github.com/kursadbilgin/payout-notifier/internal/domain"
	"github.com/kursadbilgin/payout-notifier/internal/repository"
	"go.uber.org/zap"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 100
)

// SummaryService is the read side: per-provider aggregation of payment
// records and delivery history. It never claims anything.
type SummaryService struct {
	payments   repository.PaymentRepository
	providers  repository.ProviderRepository
	deliveries repository.DeliveryRepository
	logger     *zap.Logger
}

func NewSummaryService(
	payments repository.PaymentRepository,
	providers repository.ProviderRepository,
	deliveries repository.DeliveryRepository,
	logger *zap.Logger,
) (*SummaryService, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &SummaryService{
		payments:   payments,
		providers:  providers,
		deliveries: deliveries,
		logger:     logger,
	}, nil
}

// Summarize groups the scope's eligible payments by provider. An empty
// scope yields an empty slice, not an error.
func (s *SummaryService) Summarize(ctx context.Context, scope repository.Scope) ([]domain.Group, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	payments, err := s.payments.ListEligible(ctx, scope)
	if err != nil {
		return nil, err
	}

	return s.buildGroups(ctx, payments)
}

// SummarizeSent is the same grouping restricted to already-claimed records,
// for the "sent today" display.
func (s *SummaryService) SummarizeSent(ctx context.Context, scope repository.Scope) ([]domain.Group, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	payments, err := s.payments.ListClaimed(ctx, scope)
	if err != nil {
		return nil, err
	}

	return s.buildGroups(ctx, payments)
}

// NormalizeHistoryWindow applies the history paging defaults: a
// non-positive limit becomes 50, anything above 100 is capped to 100, and
// a negative offset becomes 0.
func NormalizeHistoryWindow(limit, offset int) (int, int) {
	if limit < 1 {
		limit = defaultHistoryLimit
	}
	limit = min(limit, maxHistoryLimit)
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// ListDeliveries pages through recorded deliveries, newest first,
// optionally filtered by outcome status. The window is normalized, never
// rejected.
func (s *SummaryService) ListDeliveries(ctx context.Context, params repository.HistoryParams) ([]domain.Delivery, error) {
	params.Limit, params.Offset = NormalizeHistoryWindow(params.Limit, params.Offset)
	return s.deliveries.List(ctx, params)
}

func (s *SummaryService) buildGroups(ctx context.Context, payments []domain.Payment) ([]domain.Group, error) {
	if len(payments) == 0 {
		return []domain.Group{}, nil
	}

	// Preserve encounter order inside each group.
	byProvider := make(map[string][]domain.Payment)
	providerOrder := make([]string, 0)
	for i := range payments {
		id := payments[i].ProviderID
		if _, seen := byProvider[id]; !seen {
			providerOrder = append(providerOrder, id)
		}
		byProvider[id] = append(byProvider[id], payments[i])
	}

	providers, err := s.providers.GetByIDs(ctx, providerOrder)
	if err != nil {
		return nil, err
	}

	groups := make([]domain.Group, 0, len(providerOrder))
	for _, id := range providerOrder {
		group := domain.Group{
			ProviderID: id,
			Payments:   byProvider[id],
		}
		if provider, ok := providers[id]; ok {
			group.ProviderName = provider.Name
			group.ProviderEmail = provider.Email
		} else {
			s.logger.Warn("payments reference unknown provider", zap.String("providerId", id))
		}
		groups = append(groups, group)
	}

	// Case-sensitive byte order on the display name.
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].ProviderName < groups[j].ProviderName
	})

	for i := range groups {
		groups[i].Tag = domain.TagForIndex(i)
	}

	return groups, nil
}
