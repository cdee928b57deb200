package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/payout-notifier/internal/domain"
)

// MessageOverrides carries caller-supplied subject/body. Non-blank values
// win verbatim over the derived defaults.
type MessageOverrides struct {
	Subject string
	Body    string
}

// Message is a composed notification.
type Message struct {
	Subject string
	Body    string
}

// ComposeMessage derives the outbound subject and body for a group. Pure:
// no I/O, no side effects.
func ComposeMessage(group domain.Group, date time.Time, overrides MessageOverrides) Message {
	msg := Message{
		Subject: fmt.Sprintf("Payment confirmation - %s", group.ProviderName),
		Body: fmt.Sprintf(
			"You received %d payment(s) totaling %s on %s.",
			group.TotalCount(),
			group.TotalAmount().StringFixed(2),
			date.Format("2006-01-02"),
		),
	}

	if subject := strings.TrimSpace(overrides.Subject); subject != "" {
		msg.Subject = overrides.Subject
	}
	if body := strings.TrimSpace(overrides.Body); body != "" {
		msg.Body = overrides.Body
	}

	return msg
}
