// Package workflow holds the five scheduled jobs that drive the coaching
// program: inbound processing, check-ins, re-engagement, cleanup and the
// outbound dispatcher.
package workflow

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/thelaunchpad/coach-worker/internal/coaching"
	"github.com/thelaunchpad/coach-worker/internal/mailer"
	"github.com/thelaunchpad/coach-worker/internal/models"
)

// Workflow names as recorded in workflow_runs.
const (
	NameProcessInbound = "process_emails"
	NameCheckIn        = "check_in"
	NameReEngagement   = "re_engagement"
	NameCleanup        = "cleanup"
	NameSendApproved   = "send_approved"
)

const (
	maxInboundPerRun  = 50
	maxCleanupPerRun  = 100
	cleanupAgeHours   = 24
	maxSendAttempts   = 3
	reEngagementRetry = 14 // days before another nudge may go out
	onboardingStall   = 7 * 24 * time.Hour
)

// UserStore is the user repository surface the workflows need.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, userID string) (*models.User, error)
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
	ListActiveForCheckin(ctx context.Context, weekday string) ([]models.User, error)
	ListSilent(ctx context.Context, days int) ([]models.User, error)
	ListOnboarding(ctx context.Context) ([]models.User, error)
}

// ConversationStore is the conversation repository surface the workflows
// need.
type ConversationStore interface {
	Create(ctx context.Context, conv *models.Conversation) error
	Update(ctx context.Context, convID string, updates map[string]interface{}) error
	ExistsForMessageID(ctx context.Context, messageID string) (bool, error)
	ListRecentSent(ctx context.Context, userID string, limit int) ([]models.Conversation, error)
	ListApprovedUnsent(ctx context.Context) ([]models.Conversation, error)
	ListSendFailedRetryable(ctx context.Context, maxAttempts int) ([]models.Conversation, error)
	HasPendingOutreach(ctx context.Context, userID string) (bool, error)
	HasRecentType(ctx context.Context, userID, convType string, withinDays int) (bool, error)
	HasFlaggedWithReason(ctx context.Context, userID, reasonFragment string) (bool, error)
}

// RunStore records workflow runs.
type RunStore interface {
	Start(ctx context.Context, workflowName string) (string, error)
	Complete(ctx context.Context, runID string, processed, failed int) error
	Fail(ctx context.Context, runID, errorMessage string) error
}

// InboundProcessor runs one email through the coaching pipeline.
type InboundProcessor interface {
	ProcessInbound(ctx context.Context, msg mailer.Message, policy *coaching.Policy) (*models.Conversation, error)
}

// Workflows wires the five jobs to their collaborators. sleep and randInt
// are injectable so the dispatcher's pacing is testable.
type Workflows struct {
	users     UserStore
	convs     ConversationStore
	runs      RunStore
	settings  coaching.SettingsStore
	transport mailer.Transport
	assistant coaching.Assistant
	pipeline  InboundProcessor
	log       *logrus.Logger

	sleep   func(time.Duration)
	randInt func(n int) int
	now     func() time.Time
}

func New(
	users UserStore,
	convs ConversationStore,
	runs RunStore,
	settings coaching.SettingsStore,
	transport mailer.Transport,
	assistant coaching.Assistant,
	pipeline InboundProcessor,
	log *logrus.Logger,
) *Workflows {
	return &Workflows{
		users:     users,
		convs:     convs,
		runs:      runs,
		settings:  settings,
		transport: transport,
		assistant: assistant,
		pipeline:  pipeline,
		log:       log,
		sleep:     time.Sleep,
		randInt:   rand.Intn,
		now:       time.Now,
	}
}

// RunByName dispatches a one-shot workflow invocation from the CLI.
func (w *Workflows) RunByName(ctx context.Context, name string) error {
	switch name {
	case NameProcessInbound:
		return w.ProcessInbound(ctx)
	case NameCheckIn:
		return w.CheckIn(ctx)
	case NameReEngagement:
		return w.ReEngagement(ctx)
	case NameCleanup:
		return w.Cleanup(ctx)
	case NameSendApproved:
		return w.SendApproved(ctx)
	default:
		return fmt.Errorf("unknown workflow: %s", name)
	}
}

// alert emails the coach about workflow errors. Best-effort: a failed
// alert is logged, never propagated.
func (w *Workflows) alert(ctx context.Context, notificationEmail, workflowName string, errs []string) {
	if notificationEmail == "" {
		return
	}
	shown := errs
	if len(shown) > 10 {
		shown = shown[:10]
	}
	list := ""
	for _, e := range shown {
		list += "- " + e + "\n"
	}
	body := fmt.Sprintf(`The %s workflow encountered %d error(s).

Errors:
%s
Check the dashboard for more details.`, workflowName, len(errs), list)

	subject := fmt.Sprintf("Coaching System Alert: %s errors", workflowName)
	if _, err := w.transport.Send(ctx, notificationEmail, subject, body, "", ""); err != nil {
		w.log.Errorf("Failed to send error alert: %v", err)
	}
}
