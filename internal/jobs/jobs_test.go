package jobs

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/sakif/memberhub/internal/model"
)

// flakyPublisher fails for the job names in failOn and records every attempt.
type flakyPublisher struct {
	failOn   map[string]bool
	attempts []string
}

func (p *flakyPublisher) Publish(_ context.Context, job string, _ any) error {
	p.attempts = append(p.attempts, job)
	if p.failOn[job] {
		return errors.New("publish failed")
	}
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestEnqueueSignupJobs_PublishesAllThree(t *testing.T) {
	pub := &flakyPublisher{}
	user := &model.User{ID: "user-1", Email: "ada@example.com"}

	EnqueueSignupJobs(context.Background(), pub, user, quietLogger())

	want := []string{JobSlackInvite, JobAirtableSync, JobSendGridSync}
	if len(pub.attempts) != len(want) {
		t.Fatalf("attempted %v, want %v", pub.attempts, want)
	}
	for i := range want {
		if pub.attempts[i] != want[i] {
			t.Errorf("attempt[%d] = %q, want %q", i, pub.attempts[i], want[i])
		}
	}
}

func TestEnqueueSignupJobs_OneFailureDoesNotStopTheRest(t *testing.T) {
	// Slack being down must not cost the member their Airtable and SendGrid sync
	pub := &flakyPublisher{failOn: map[string]bool{JobSlackInvite: true}}
	user := &model.User{ID: "user-1", Email: "ada@example.com"}

	EnqueueSignupJobs(context.Background(), pub, user, quietLogger())

	if len(pub.attempts) != 3 {
		t.Errorf("attempted %d publishes, want all 3 despite the Slack failure", len(pub.attempts))
	}
}

func TestNopPublisher(t *testing.T) {
	pub := NewNopPublisher(quietLogger())

	if err := pub.Publish(context.Background(), JobSlackInvite, SlackInvitePayload{Email: "a@b.co"}); err != nil {
		t.Errorf("NopPublisher.Publish() error = %v, want nil", err)
	}
}
