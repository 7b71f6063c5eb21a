package tasks

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// SendgridSender delivers email through the SendGrid v3 API.
type SendgridSender struct {
	client *sendgrid.Client
}

func NewSendgridSender(apiKey string) *SendgridSender {
	return &SendgridSender{client: sendgrid.NewSendClient(apiKey)}
}

func (s *SendgridSender) Send(ctx context.Context, from, to, subject, htmlBody string) error {
	msg := mail.NewSingleEmail(
		mail.NewEmail("", from),
		subject,
		mail.NewEmail("", to),
		"",
		htmlBody,
	)

	resp, err := s.client.SendWithContext(ctx, msg)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid send: status %d", resp.StatusCode)
	}
	return nil
}
