package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/payout-notifier/internal/domain"
	"github.com/kursadbilgin/payout-notifier/internal/repository"
	"github.com/kursadbilgin/payout-notifier/internal/service"
)

const dateLayout = "2006-01-02"

type SummaryService interface {
	Summarize(ctx context.Context, scope repository.Scope) ([]domain.Group, error)
	SummarizeSent(ctx context.Context, scope repository.Scope) ([]domain.Group, error)
	ListDeliveries(ctx context.Context, params repository.HistoryParams) ([]domain.Delivery, error)
}

type SummaryHandler struct {
	service    SummaryService
	operatorID string
	now        func() time.Time
}

func NewSummaryHandler(service SummaryService, operatorID string) (*SummaryHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("summary service is required")
	}
	if strings.TrimSpace(operatorID) == "" {
		return nil, fmt.Errorf("operator id is required")
	}
	return &SummaryHandler{
		service:    service,
		operatorID: operatorID,
		now:        time.Now,
	}, nil
}

func RegisterSummaryRoutes(router fiber.Router, service SummaryService, operatorID string) error {
	h, err := NewSummaryHandler(service, operatorID)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Get("/summary", h.GetSummary)
	v1.Get("/summary/sent", h.GetSentSummary)
	v1.Get("/deliveries", h.ListDeliveries)

	return nil
}

type paymentItem struct {
	ID         string `json:"id"`
	ClientName string `json:"clientName"`
	Code       string `json:"code,omitempty"`
	Channel    string `json:"channel"`
	Amount     string `json:"amount"`
	Date       string `json:"date"`
}

type groupItem struct {
	ProviderID    string        `json:"providerId"`
	ProviderName  string        `json:"providerName"`
	ProviderEmail string        `json:"providerEmail"`
	Tag           string        `json:"tag"`
	TotalCount    int           `json:"totalCount"`
	TotalAmount   string        `json:"totalAmount"`
	Payments      []paymentItem `json:"payments"`
}

type summaryResponse struct {
	Date   string      `json:"date"`
	Groups []groupItem `json:"groups"`
}

type deliveryResponse struct {
	ID             string    `json:"id"`
	ProviderID     string    `json:"providerId"`
	OperatorID     string    `json:"operatorId"`
	Date           string    `json:"date"`
	Status         string    `json:"status"`
	PaymentCount   int       `json:"paymentCount"`
	TotalAmount    string    `json:"totalAmount"`
	Subject        string    `json:"subject"`
	CardPaymentIDs []string  `json:"cardPaymentIds,omitempty"`
	BankPaymentIDs []string  `json:"bankPaymentIds,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

type listDeliveriesResponse struct {
	Data []deliveryResponse `json:"data"`
	Meta historyMeta        `json:"meta"`
}

type historyMeta struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Count  int `json:"count"`
}

func (h *SummaryHandler) GetSummary(c *fiber.Ctx) error {
	scope, err := h.parseScope(c)
	if err != nil {
		return toHTTPError(err)
	}

	groups, err := h.service.Summarize(c.UserContext(), scope)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(summaryResponse{
		Date:   scope.Date.Format(dateLayout),
		Groups: toGroupItems(groups),
	})
}

func (h *SummaryHandler) GetSentSummary(c *fiber.Ctx) error {
	scope, err := h.parseScope(c)
	if err != nil {
		return toHTTPError(err)
	}

	groups, err := h.service.SummarizeSent(c.UserContext(), scope)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(summaryResponse{
		Date:   scope.Date.Format(dateLayout),
		Groups: toGroupItems(groups),
	})
}

func (h *SummaryHandler) ListDeliveries(c *fiber.Ctx) error {
	// Out-of-range paging values are normalized, not rejected; the meta
	// block echoes the window that was actually applied.
	limit, offset := service.NormalizeHistoryWindow(c.QueryInt("limit"), c.QueryInt("offset"))
	params := repository.HistoryParams{Limit: limit, Offset: offset}

	if raw := c.Query("status"); strings.TrimSpace(raw) != "" {
		status, err := domain.ParseDeliveryStatusFromString(raw)
		if err != nil {
			return toHTTPError(err)
		}
		params.Status = &status
	}

	deliveries, err := h.service.ListDeliveries(c.UserContext(), params)
	if err != nil {
		return toHTTPError(err)
	}

	data := make([]deliveryResponse, 0, len(deliveries))
	for i := range deliveries {
		data = append(data, toDeliveryResponse(&deliveries[i]))
	}

	return c.Status(fiber.StatusOK).JSON(listDeliveriesResponse{
		Data: data,
		Meta: historyMeta{
			Limit:  limit,
			Offset: offset,
			Count:  len(data),
		},
	})
}

func (h *SummaryHandler) parseScope(c *fiber.Ctx) (repository.Scope, error) {
	date, err := parseDateQuery(c.Query("date"), h.now)
	if err != nil {
		return repository.Scope{}, err
	}
	return repository.Scope{
		OperatorID: h.operatorID,
		Date:       date,
	}, nil
}

// parseDateQuery resolves the summary date; a blank value means "today"
// in UTC.
func parseDateQuery(value string, now func() time.Time) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return now().UTC().Truncate(24 * time.Hour), nil
	}

	date, err := time.Parse(dateLayout, trimmed)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date must be YYYY-MM-DD", domain.ErrValidation)
	}
	return date, nil
}

func toGroupItems(groups []domain.Group) []groupItem {
	items := make([]groupItem, 0, len(groups))
	for i := range groups {
		group := &groups[i]
		payments := make([]paymentItem, 0, len(group.Payments))
		for j := range group.Payments {
			p := &group.Payments[j]
			payments = append(payments, paymentItem{
				ID:         p.ID,
				ClientName: p.ClientName,
				Code:       p.Code,
				Channel:    p.Channel().String(),
				Amount:     p.Amount.StringFixed(2),
				Date:       p.PaymentDate.Format(dateLayout),
			})
		}
		items = append(items, groupItem{
			ProviderID:    group.ProviderID,
			ProviderName:  group.ProviderName,
			ProviderEmail: group.ProviderEmail,
			Tag:           group.Tag,
			TotalCount:    group.TotalCount(),
			TotalAmount:   group.TotalAmount().StringFixed(2),
			Payments:      payments,
		})
	}
	return items
}

func toDeliveryResponse(d *domain.Delivery) deliveryResponse {
	if d == nil {
		return deliveryResponse{}
	}

	return deliveryResponse{
		ID:             d.ID,
		ProviderID:     d.ProviderID,
		OperatorID:     d.OperatorID,
		Date:           d.SummaryDate.Format(dateLayout),
		Status:         d.Status.String(),
		PaymentCount:   d.PaymentCount,
		TotalAmount:    d.TotalAmount.StringFixed(2),
		Subject:        d.Subject,
		CardPaymentIDs: d.CardPaymentIDs,
		BankPaymentIDs: d.BankPaymentIDs,
		CreatedAt:      d.CreatedAt,
	}
}
