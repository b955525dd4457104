// Package jobs publishes background work triggered by account events.
//
// Creating a member account fans out three independent jobs:
//
//	slack.invite   → invite the member to the community Slack (payload: email)
//	airtable.sync  → mirror the member row into the Airtable CRM (payload: full user)
//	sendgrid.sync  → add the member to the SendGrid contact list (payload: full user)
//
// FIRE-AND-FORGET:
// The jobs are enqueued once, after the account row is committed, and the
// HTTP request never waits for the workers. There are no ordering guarantees
// between the three — Slack might process before Airtable or after, and
// that's fine, they don't depend on each other. A failed publish is logged
// and dropped rather than failing the signup: a member account with a missing
// Slack invite is recoverable, a signup 500 because RabbitMQ hiccupped is a
// lost member.
package jobs

import (
	"context"
	"log/slog"

	"github.com/sakif/memberhub/internal/model"
)

// Job names double as RabbitMQ routing keys. The worker fleet binds one
// queue per name (see DeclareTopology in rabbit.go).
const (
	JobSlackInvite  = "slack.invite"
	JobAirtableSync = "airtable.sync"
	JobSendGridSync = "sendgrid.sync"
)

// SlackInvitePayload carries just the email — the Slack admin API invites by
// address and needs nothing else about the member.
type SlackInvitePayload struct {
	Email string `json:"email"`
}

// Publisher enqueues a named job with a JSON-serializable payload.
//
// WHY AN INTERFACE?
// The service layer shouldn't know whether jobs ride on RabbitMQ, an
// in-process queue, or nothing at all. Tests inject a recorder that just
// captures calls; the server without an MQ configured injects NopPublisher.
type Publisher interface {
	Publish(ctx context.Context, job string, payload any) error
}

// NopPublisher discards every job. Used when MQ_URL isn't configured, so a
// local dev server runs without a broker (members still get created, they
// just don't get Slack invites — acceptable on a laptop).
type NopPublisher struct {
	logger *slog.Logger
}

var _ Publisher = (*NopPublisher)(nil)

// NewNopPublisher creates a NopPublisher.
func NewNopPublisher(logger *slog.Logger) *NopPublisher {
	return &NopPublisher{logger: logger}
}

func (p *NopPublisher) Publish(_ context.Context, job string, _ any) error {
	p.logger.Debug("job discarded (no publisher configured)", slog.String("job", job))
	return nil
}

// EnqueueSignupJobs publishes the three account-creation jobs for a new
// member. Each publish failure is logged and swallowed independently — one
// broken integration must not starve the other two.
//
// This lives here (not in the service) so the job names and their payload
// shapes stay in one package; the service just says "a member was created".
func EnqueueSignupJobs(ctx context.Context, pub Publisher, user *model.User, logger *slog.Logger) {
	publish := func(job string, payload any) {
		if err := pub.Publish(ctx, job, payload); err != nil {
			logger.Error("failed to enqueue job",
				slog.String("job", job),
				slog.String("userID", user.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	publish(JobSlackInvite, SlackInvitePayload{Email: user.Email})
	publish(JobAirtableSync, user)
	publish(JobSendGridSync, user)
}
