package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/kursadbilgin/payout-notifier/internal/domain"
)

const defaultMailerTimeout = 15 * time.Second

type mailerRequest struct {
	InfoCorreo mailerCorreo `json:"info_correo"`
	InfoPagos  []mailerPago `json:"info_pagos"`
}

type mailerCorreo struct {
	Para    string `json:"para"`
	Asunto  string `json:"asunto"`
	Mensaje string `json:"mensaje"`
}

type mailerPago struct {
	ID      string `json:"id"`
	Cliente string `json:"cliente"`
	Codigo  string `json:"codigo"`
	Monto   string `json:"monto"`
	Fecha   string `json:"fecha"`
}

type mailerResponse struct {
	Estado  *bool `json:"estado"`
	Success *bool `json:"success"`
}

// MailerGateway sends aggregated payment notifications to the external
// mailer endpoint.
type MailerGateway struct {
	client   *resty.Client
	endpoint string
}

func NewMailerGateway(endpoint, token string, timeout time.Duration) (*MailerGateway, error) {
	if timeout <= 0 {
		timeout = defaultMailerTimeout
	}

	client := resty.New()
	client.SetTimeout(timeout)
	client.SetRetryCount(0)
	if strings.TrimSpace(token) != "" {
		client.SetAuthToken(strings.TrimSpace(token))
	}

	return NewMailerGatewayWithClient(endpoint, client)
}

func NewMailerGatewayWithClient(endpoint string, client *resty.Client) (*MailerGateway, error) {
	trimmedEndpoint := strings.TrimSpace(endpoint)
	if trimmedEndpoint == "" {
		return nil, fmt.Errorf("mailer endpoint is required")
	}
	if _, err := url.ParseRequestURI(trimmedEndpoint); err != nil {
		return nil, fmt.Errorf("invalid mailer endpoint: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultMailerTimeout)
	}
	client.SetRetryCount(0)

	return &MailerGateway{
		client:   client,
		endpoint: trimmedEndpoint,
	}, nil
}

func (g *MailerGateway) Send(ctx context.Context, payload Payload) Outcome {
	if g == nil || g.client == nil {
		return Outcome{Status: domain.DeliveryStatusError, Reason: ReasonTransport}
	}

	pagos := make([]mailerPago, 0, len(payload.Payments))
	for _, p := range payload.Payments {
		pagos = append(pagos, mailerPago{
			ID:      p.ID,
			Cliente: p.ClientName,
			Codigo:  p.Code,
			Monto:   p.Amount.StringFixed(2),
			Fecha:   p.Date.Format("2006-01-02"),
		})
	}

	reqBody := mailerRequest{
		InfoCorreo: mailerCorreo{
			Para:    payload.To,
			Asunto:  payload.Subject,
			Mensaje: payload.Body,
		},
		InfoPagos: pagos,
	}

	response, err := g.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(reqBody).
		Post(g.endpoint)
	if err != nil {
		reason := ReasonTransport
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			reason = ReasonTimeout
		}
		return Outcome{Status: domain.DeliveryStatusError, Reason: reason}
	}
	if response == nil {
		return Outcome{Status: domain.DeliveryStatusError, Reason: ReasonTransport}
	}

	rawBody := strings.TrimSpace(response.String())
	statusCode := response.StatusCode()

	if statusCode < http.StatusOK || statusCode >= http.StatusMultipleChoices {
		return Outcome{Status: domain.DeliveryStatusError, RawBody: rawBody, Reason: ReasonHTTP}
	}

	if !bodySignalsSuccess(rawBody) {
		return Outcome{Status: domain.DeliveryStatusError, RawBody: rawBody, Reason: ReasonBusiness}
	}

	return Outcome{Status: domain.DeliveryStatusSent, RawBody: rawBody}
}

// bodySignalsSuccess reports whether the response body carries a truthy
// estado/success field. A reachable endpoint that answers HTTP 200 with a
// falsy field is still a business-level failure.
func bodySignalsSuccess(rawBody string) bool {
	if rawBody == "" {
		return false
	}

	var parsed mailerResponse
	if err := json.Unmarshal([]byte(rawBody), &parsed); err != nil {
		return false
	}

	if parsed.Estado != nil {
		return *parsed.Estado
	}
	if parsed.Success != nil {
		return *parsed.Success
	}
	return false
}

func isTimeout(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}
