package workflow

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/thelaunchpad/coach-worker/internal/coaching"
	"github.com/thelaunchpad/coach-worker/internal/mailer"
	"github.com/thelaunchpad/coach-worker/internal/models"
)

type queuedSend struct {
	conv   models.Conversation
	offset int // minutes
}

// SendApproved dispatches every approved-but-unsent response, plus earlier
// failures still within the retry budget. Each email gets a random offset
// of 1-N minutes so replies land at varied, human-feeling times; the queue
// is sorted by offset and sent with incremental gaps.
func (w *Workflows) SendApproved(ctx context.Context) error {
	runID, err := w.runs.Start(ctx, NameSendApproved)
	if err != nil {
		return err
	}

	policy, err := coaching.LoadPolicy(ctx, w.settings)
	if err != nil {
		w.failRun(ctx, runID, NameSendApproved, err)
		w.alert(ctx, "", NameSendApproved, nil)
		return err
	}

	approved, err := w.convs.ListApprovedUnsent(ctx)
	if err != nil {
		w.failRun(ctx, runID, NameSendApproved, err)
		w.alert(ctx, policy.NotificationEmail, NameSendApproved, []string{err.Error()})
		return err
	}
	retryable, err := w.convs.ListSendFailedRetryable(ctx, maxSendAttempts)
	if err != nil {
		w.failRun(ctx, runID, NameSendApproved, err)
		w.alert(ctx, policy.NotificationEmail, NameSendApproved, []string{err.Error()})
		return err
	}
	conversations := append(approved, retryable...)
	w.log.Infof("Found %d approved responses to send", len(conversations))

	if len(conversations) == 0 {
		if err := w.runs.Complete(ctx, runID, 0, 0); err != nil {
			w.log.Errorf("Failed to record workflow completion: %v", err)
		}
		return nil
	}

	queue := make([]queuedSend, 0, len(conversations))
	for _, conv := range conversations {
		queue = append(queue, queuedSend{conv: conv, offset: w.randInt(policy.SendDelayMaxMinutes) + 1})
	}
	sort.Slice(queue, func(i, j int) bool { return queue[i].offset < queue[j].offset })

	offsets := make([]int, len(queue))
	for i, q := range queue {
		offsets[i] = q.offset
	}
	w.log.Infof("Send offsets: %v minutes", offsets)

	var outcome Outcome
	prevOffset := 0
	for _, q := range queue {
		gap := q.offset - prevOffset
		prevOffset = q.offset

		if err := w.dispatchOne(ctx, q.conv, gap, &outcome); err != nil {
			// Per-item errors are recorded in the outcome; anything
			// surfacing here is a context cancellation.
			w.failRun(ctx, runID, NameSendApproved, err)
			w.alert(ctx, policy.NotificationEmail, NameSendApproved, append(outcome.Errors, err.Error()))
			return err
		}
	}

	if err := w.runs.Complete(ctx, runID, outcome.Processed, outcome.Failed()); err != nil {
		w.log.Errorf("Failed to record workflow completion: %v", err)
	}
	w.log.Infof("%s completed: %d sent, %d errors", NameSendApproved, outcome.Processed, outcome.Failed())

	if outcome.Failed() > 0 {
		w.alert(ctx, policy.NotificationEmail, NameSendApproved, outcome.Errors)
	}
	return nil
}

func (w *Workflows) dispatchOne(ctx context.Context, conv models.Conversation, gapMinutes int, outcome *Outcome) error {
	if conv.UserID == nil {
		w.log.Warnf("No user found for conversation %s", conv.ID)
		return nil
	}
	user, err := w.users.FindByID(ctx, *conv.UserID)
	if err != nil {
		w.log.Warnf("No user found for conversation %s: %v", conv.ID, err)
		return nil
	}

	// Edited text wins over the generated draft.
	responseText := ""
	if conv.SentResponse != nil && *conv.SentResponse != "" {
		responseText = *conv.SentResponse
	} else if conv.AIResponse != nil {
		responseText = *conv.AIResponse
	}
	if responseText == "" {
		w.log.Warnf("No response text for conversation %s", conv.ID)
		return nil
	}

	// The sign-off goes on unconditionally, even when the draft already
	// carries one. Known duplication, kept deliberately.
	fullResponse := responseText + "\n\n" + coaching.Signature

	if gapMinutes > 0 {
		w.log.Infof("Sending to %s (sleeping %dm)", user.Email, gapMinutes)
		w.sleep(time.Duration(gapMinutes) * time.Minute)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	inReplyTo, references := w.threadAnchor(ctx, user)

	if _, err := w.transport.Send(ctx, user.Email, "Re: Coaching", fullResponse, inReplyTo, references); err != nil {
		var bounce *mailer.BounceError
		if errors.As(err, &bounce) {
			w.handleBounce(ctx, conv, user, outcome, err)
		} else {
			w.handleSendFailure(ctx, conv, user, outcome, err)
		}
		return nil
	}

	if err := w.convs.Update(ctx, conv.ID, map[string]interface{}{
		"status":        models.StatusSent,
		"sent_at":       w.now().UTC(),
		"sent_response": responseText,
	}); err != nil {
		outcome.Failure("recording send for conversation %s: %v", conv.ID, err)
		return nil
	}

	w.updateSummary(ctx, conv, user, responseText)

	outcome.Success()
	w.log.Infof("Response sent to %s", user.Email)
	return nil
}

// threadAnchor picks the In-Reply-To for an outbound reply: the user's
// last known inbound Message-ID, falling back to their most recent
// conversation's.
func (w *Workflows) threadAnchor(ctx context.Context, user *models.User) (string, string) {
	if user.GmailMessageID != nil && *user.GmailMessageID != "" {
		return *user.GmailMessageID, *user.GmailMessageID
	}
	recent, err := w.convs.ListRecentSent(ctx, user.ID, 1)
	if err == nil && len(recent) > 0 && recent[0].GmailMessageID != nil && *recent[0].GmailMessageID != "" {
		w.log.Infof("Using fallback threading for %s", user.Email)
		return *recent[0].GmailMessageID, *recent[0].GmailMessageID
	}
	return "", ""
}

// handleBounce rejects the conversation and tracks the bounce on the user;
// three strikes appends a warning to their notes.
func (w *Workflows) handleBounce(ctx context.Context, conv models.Conversation, user *models.User, outcome *Outcome, sendErr error) {
	msg := outcome.Failure("bounce for conversation %s to %s: %v", conv.ID, user.Email, sendErr)
	w.log.Error(msg)

	bounces := user.BounceCount + 1
	updates := map[string]interface{}{"bounce_count": bounces}
	if bounces >= 3 {
		notes := ""
		if user.Notes != nil {
			notes = *user.Notes
		}
		updates["notes"] = trimJoin(notes, "[AUTO] 3+ bounces detected — email may be invalid.")
	}
	if err := w.users.Update(ctx, user.ID, updates); err != nil {
		w.log.Errorf("Failed to record bounce for user %s: %v", user.ID, err)
	}

	if err := w.convs.Update(ctx, conv.ID, map[string]interface{}{
		"status":      models.StatusRejected,
		"flag_reason": fmt.Sprintf("Email bounced (%d total bounces)", bounces),
	}); err != nil {
		w.log.Errorf("Failed to reject bounced conversation %s: %v", conv.ID, err)
	}
}

// handleSendFailure moves the conversation one rung down the retry ladder:
// Send Failed while attempts remain, Flagged once the budget is spent.
func (w *Workflows) handleSendFailure(ctx context.Context, conv models.Conversation, user *models.User, outcome *Outcome, sendErr error) {
	msg := outcome.Failure("error sending response for conversation %s: %v", conv.ID, sendErr)
	w.log.Error(msg)

	attempts := conv.SendAttempts + 1
	updates := map[string]interface{}{"send_attempts": attempts}
	if attempts >= maxSendAttempts {
		updates["status"] = models.StatusFlagged
		updates["flag_reason"] = fmt.Sprintf("Send failed %d times: %v", maxSendAttempts, sendErr)
	} else {
		updates["status"] = models.StatusSendFailed
	}
	if err := w.convs.Update(ctx, conv.ID, updates); err != nil {
		w.log.Errorf("Failed to record send failure for conversation %s: %v", conv.ID, err)
	}
}

// updateSummary appends a dated journey-summary line after a successful
// send. Best-effort only.
func (w *Workflows) updateSummary(ctx context.Context, conv models.Conversation, user *models.User, responseText string) {
	userMessage := ""
	if conv.UserMessageParsed != nil && *conv.UserMessageParsed != "" {
		userMessage = *conv.UserMessageParsed
	} else if conv.UserMessageRaw != nil {
		userMessage = *conv.UserMessageRaw
	}
	if userMessage == "" {
		return
	}

	currentSummary := ""
	if user.Summary != nil {
		currentSummary = *user.Summary
	}
	update, err := w.assistant.GenerateSummaryUpdate(ctx, currentSummary, userMessage, responseText)
	if err != nil {
		w.log.Errorf("Failed to update summary for user %s: %v", user.ID, err)
		return
	}
	if err := w.users.Update(ctx, user.ID, map[string]interface{}{
		"summary": coaching.AppendSummary(user.Summary, update),
	}); err != nil {
		w.log.Errorf("Failed to update summary for user %s: %v", user.ID, err)
	}
}

func trimJoin(existing, line string) string {
	if existing == "" {
		return line
	}
	return existing + "\n" + line
}
