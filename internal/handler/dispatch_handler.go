package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/payout-notifier/internal/domain"
	"github.com/kursadbilgin/payout-notifier/internal/service"
)

type DispatchService interface {
	Dispatch(ctx context.Context, req service.DispatchRequest) (*service.DispatchReport, error)
}

type DispatchHandler struct {
	service    DispatchService
	operatorID string
	now        func() time.Time
}

func NewDispatchHandler(service DispatchService, operatorID string) (*DispatchHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("dispatch service is required")
	}
	if strings.TrimSpace(operatorID) == "" {
		return nil, fmt.Errorf("operator id is required")
	}
	return &DispatchHandler{
		service:    service,
		operatorID: operatorID,
		now:        time.Now,
	}, nil
}

func RegisterDispatchRoutes(router fiber.Router, service DispatchService, operatorID string) error {
	h, err := NewDispatchHandler(service, operatorID)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/dispatches", h.CreateDispatch)

	return nil
}

type createDispatchRequest struct {
	ProviderID string `json:"providerId"`
	Date       string `json:"date"`
	Subject    string `json:"subject"`
	Body       string `json:"body"`
}

type createDispatchResponse struct {
	State       string           `json:"state"`
	Delivery    deliveryResponse `json:"delivery"`
	Subject     string           `json:"subject"`
	Body        string           `json:"body"`
	RawResponse string           `json:"rawResponse,omitempty"`
}

func (h *DispatchHandler) CreateDispatch(c *fiber.Ctx) error {
	var req createDispatchRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	date, err := parseDateQuery(req.Date, h.now)
	if err != nil {
		return toHTTPError(err)
	}

	report, err := h.service.Dispatch(c.UserContext(), service.DispatchRequest{
		OperatorID: h.operatorID,
		ProviderID: strings.TrimSpace(req.ProviderID),
		Date:       date,
		Subject:    req.Subject,
		Body:       req.Body,
	})
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(createDispatchResponse{
		State:       string(report.State),
		Delivery:    toDeliveryResponse(report.Delivery),
		Subject:     report.Message.Subject,
		Body:        report.Message.Body,
		RawResponse: report.RawResponse,
	})
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrNoEligibleRecords):
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	default:
		return err
	}
}
