package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/thelaunchpad/coach-worker/internal/coaching"
	"github.com/thelaunchpad/coach-worker/internal/mailer"
	"github.com/thelaunchpad/coach-worker/internal/models"
	"github.com/thelaunchpad/coach-worker/internal/repository"
)

// Cleanup is the safety net: any mail still unread after a day missed the
// regular pipeline. It gets flagged for manual review and the coach gets
// one summary notification.
func (w *Workflows) Cleanup(ctx context.Context) error {
	runID, err := w.runs.Start(ctx, NameCleanup)
	if err != nil {
		return err
	}

	policy, err := coaching.LoadPolicy(ctx, w.settings)
	if err != nil {
		w.failRun(ctx, runID, NameCleanup, err)
		return err
	}

	messages, err := w.transport.FetchUnreadOlderThan(ctx, cleanupAgeHours, maxCleanupPerRun)
	if err != nil {
		w.failRun(ctx, runID, NameCleanup, err)
		return err
	}
	w.log.Infof("Found %d old unread emails", len(messages))

	var outcome Outcome
	var missed []string
	for _, msg := range messages {
		line, err := w.flagMissedMessage(ctx, msg)
		if err != nil {
			w.log.Errorf("Error processing missed email from %s: %v", msg.FromEmail, err)
			outcome.Failure("missed email from %s: %v", msg.FromEmail, err)
			continue
		}
		if line == "" {
			continue
		}
		missed = append(missed, line)
		outcome.Success()
	}

	if len(missed) > 0 {
		w.sendCleanupNotification(ctx, policy.NotificationEmail, outcome.Processed, missed)
	}

	if err := w.runs.Complete(ctx, runID, outcome.Processed, outcome.Failed()); err != nil {
		w.log.Errorf("Failed to record workflow completion: %v", err)
	}
	w.log.Infof("%s completed: %d missed emails flagged", NameCleanup, outcome.Processed)
	return nil
}

// flagMissedMessage files one missed email. Returns a summary line, or ""
// when the message was already represented by a conversation.
func (w *Workflows) flagMissedMessage(ctx context.Context, msg mailer.Message) (string, error) {
	if msg.MessageID != "" {
		exists, err := w.convs.ExistsForMessageID(ctx, msg.MessageID)
		if err != nil {
			return "", err
		}
		if exists {
			if err := w.transport.MarkRead(ctx, msg.IMAPID); err != nil {
				w.log.Warnf("Failed to mark message from %s read: %v", msg.FromEmail, err)
			}
			return "", nil
		}
	}

	user, err := w.users.FindByEmail(ctx, msg.FromEmail)
	switch {
	case err == nil:
		conv, cerr := models.NewConversation(&user.ID, models.TypeFollowUp)
		if cerr != nil {
			return "", cerr
		}
		conv.Status = models.StatusFlagged
		reason := "Missed by regular processing - manual review needed"
		conv.FlagReason = &reason
		conv.UserMessageRaw = &msg.Body
		conv.GmailMessageID = optStr(msg.MessageID)
		conv.GmailThreadID = optStr(msg.InReplyTo)
		if cerr := w.convs.Create(ctx, conv); cerr != nil {
			return "", cerr
		}
		if merr := w.transport.MarkRead(ctx, msg.IMAPID); merr != nil {
			w.log.Warnf("Failed to mark message from %s read: %v", msg.FromEmail, merr)
		}
		return fmt.Sprintf("- %s: Known user", msg.FromEmail), nil

	case errors.Is(err, repository.ErrUserNotFound):
		conv, cerr := models.NewConversation(nil, models.TypeOnboarding)
		if cerr != nil {
			return "", cerr
		}
		conv.Status = models.StatusFlagged
		reason := "Unknown sender - potential new user to onboard"
		conv.FlagReason = &reason
		raw := fmt.Sprintf("From: %s\n\n%s", msg.FromEmail, msg.Body)
		conv.UserMessageRaw = &raw
		conv.GmailMessageID = optStr(msg.MessageID)
		if cerr := w.convs.Create(ctx, conv); cerr != nil {
			return "", cerr
		}
		if merr := w.transport.MarkRead(ctx, msg.IMAPID); merr != nil {
			w.log.Warnf("Failed to mark message from %s read: %v", msg.FromEmail, merr)
		}
		return fmt.Sprintf("- %s: Unknown sender", msg.FromEmail), nil

	default:
		return "", err
	}
}

func (w *Workflows) sendCleanupNotification(ctx context.Context, notificationEmail string, count int, missed []string) {
	body := fmt.Sprintf(`The cleanup workflow found %d email(s) that weren't processed by the regular workflow.

They've been logged as 'Flagged' for your review.

Summary:
%s

Check the Flagged page in the dashboard.`, count, strings.Join(missed, "\n"))

	subject := fmt.Sprintf("Coaching System: %d Missed Emails Flagged", count)
	if _, err := w.transport.Send(ctx, notificationEmail, subject, body, "", ""); err != nil {
		w.log.Errorf("Failed to send cleanup notification: %v", err)
	}
}

func optStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
