// Package tasks defines the fire-and-forget background jobs exchanged
// between the API server and the worker over the Redis-backed queue.
package tasks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// TypeInvitationEmail is the queue task type for organization invitations.
const TypeInvitationEmail = "email:invitation"

// QueueEmail is the queue name email jobs land on.
const QueueEmail = "email"

// InvitationEmailPayload carries everything the worker needs to compose
// the invitation.
type InvitationEmailPayload struct {
	OrganizationName string `json:"organization_name"`
	InvitedEmail     string `json:"invited_email"`
	InviterEmail     string `json:"inviter_email"`
}

// Enqueuer is what the organization handlers dispatch through; tests swap
// in a recording fake.
type Enqueuer interface {
	EnqueueInvitation(ctx context.Context, p InvitationEmailPayload) error
}

// Client enqueues tasks onto the shared Redis queue.
type Client struct {
	client *asynq.Client
}

func NewClient(opt asynq.RedisClientOpt) *Client {
	return &Client{client: asynq.NewClient(opt)}
}

func (c *Client) Close() error {
	return c.client.Close()
}

// EnqueueInvitation queues one invitation email. Delivery is best effort:
// the queue retries a few times and then drops the job.
func (c *Client) EnqueueInvitation(ctx context.Context, p InvitationEmailPayload) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal invitation payload: %w", err)
	}

	task := asynq.NewTask(TypeInvitationEmail, payload)
	if _, err := c.client.EnqueueContext(ctx, task, asynq.Queue(QueueEmail), asynq.MaxRetry(3)); err != nil {
		return fmt.Errorf("enqueue invitation: %w", err)
	}
	return nil
}

// Sender delivers a composed email. The SendGrid implementation lives in
// sendgrid.go.
type Sender interface {
	Send(ctx context.Context, from, to, subject, htmlBody string) error
}

// InvitationHandler is the worker-side consumer for invitation tasks.
type InvitationHandler struct {
	sender Sender
	log    *zap.Logger
}

func NewInvitationHandler(sender Sender, log *zap.Logger) *InvitationHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &InvitationHandler{sender: sender, log: log}
}

// ProcessTask implements asynq.Handler.
func (h *InvitationHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var p InvitationEmailPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		// Malformed payloads can never succeed; skip retries.
		return fmt.Errorf("unmarshal invitation payload: %v: %w", err, asynq.SkipRetry)
	}

	subject := fmt.Sprintf("Invitation to join %s on Orgnest", p.OrganizationName)
	body := invitationBody(p)

	if err := h.sender.Send(ctx, p.InviterEmail, p.InvitedEmail, subject, body); err != nil {
		h.log.Error("invitation email send failed",
			zap.String("invited", p.InvitedEmail),
			zap.String("organization", p.OrganizationName),
			zap.Error(err),
		)
		return err
	}

	h.log.Info("invitation email sent",
		zap.String("invited", p.InvitedEmail),
		zap.String("organization", p.OrganizationName),
	)
	return nil
}

func invitationBody(p InvitationEmailPayload) string {
	return fmt.Sprintf(
		"<p>Hi,</p>"+
			"<p>You have been invited by %s to join the organization <strong>%s</strong> on Orgnest.</p>"+
			"<p><a href=\"#\">Accept Invitation</a></p>"+
			"<p>Best regards,<br>The Orgnest Team</p>",
		p.InviterEmail, p.OrganizationName,
	)
}
