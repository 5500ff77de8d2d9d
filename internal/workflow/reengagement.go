package workflow

import (
	"context"
	"fmt"

	"github.com/thelaunchpad/coach-worker/internal/coaching"
	"github.com/thelaunchpad/coach-worker/internal/models"
)

const onboardingStallReason = "Onboarding stalled - invited 7+ days ago with no reply"

// ReEngagement runs three passes over quiet members:
//  1. queue a nudge draft for members silent past the configured window,
//  2. mark members silent a week beyond that as Silent,
//  3. flag members whose onboarding has stalled for a week.
func (w *Workflows) ReEngagement(ctx context.Context) error {
	runID, err := w.runs.Start(ctx, NameReEngagement)
	if err != nil {
		return err
	}

	policy, err := coaching.LoadPolicy(ctx, w.settings)
	if err != nil {
		w.failRun(ctx, runID, NameReEngagement, err)
		return err
	}

	var outcome Outcome
	w.queueNudges(ctx, policy, &outcome)
	w.markSilent(ctx, policy, &outcome)
	w.flagStalledOnboarding(ctx, &outcome)

	if err := w.runs.Complete(ctx, runID, outcome.Processed, outcome.Failed()); err != nil {
		w.log.Errorf("Failed to record workflow completion: %v", err)
	}
	w.log.Infof("%s completed: %d items processed", NameReEngagement, outcome.Processed)
	return nil
}

func (w *Workflows) queueNudges(ctx context.Context, policy *coaching.Policy, outcome *Outcome) {
	silent, err := w.users.ListSilent(ctx, policy.ReEngagementDays)
	if err != nil {
		outcome.Failure("listing silent users: %v", err)
		return
	}
	w.log.Infof("Found %d users silent for %d+ days", len(silent), policy.ReEngagementDays)

	for i := range silent {
		user := &silent[i]

		recent, err := w.convs.HasRecentType(ctx, user.ID, models.TypeReEngagement, reEngagementRetry)
		if err != nil {
			outcome.Failure("re-engagement for %s: %v", user.Email, err)
			continue
		}
		if recent {
			w.log.Infof("Already nudged %s recently, skipping", user.Email)
			continue
		}
		pending, err := w.convs.HasPendingOutreach(ctx, user.ID)
		if err != nil {
			outcome.Failure("re-engagement for %s: %v", user.Email, err)
			continue
		}
		if pending {
			w.log.Infof("Skipping nudge for %s: has pending outreach", user.Email)
			continue
		}

		conv, err := models.NewConversation(&user.ID, models.TypeReEngagement)
		if err != nil {
			outcome.Failure("re-engagement for %s: %v", user.Email, err)
			continue
		}
		body := coaching.ReEngagementBody(user.FirstName)
		conv.AIResponse = &body
		confidence := 9
		conv.Confidence = &confidence
		if err := w.convs.Create(ctx, conv); err != nil {
			w.log.Errorf("Error queueing nudge for %s: %v", user.Email, err)
			outcome.Failure("re-engagement for %s: %v", user.Email, err)
			continue
		}

		outcome.Success()
		w.log.Infof("Re-engagement queued for review: %s", user.Email)
	}
}

func (w *Workflows) markSilent(ctx context.Context, policy *coaching.Policy, outcome *Outcome) {
	verySilent, err := w.users.ListSilent(ctx, policy.ReEngagementDays+7)
	if err != nil {
		outcome.Failure("listing very silent users: %v", err)
		return
	}
	for i := range verySilent {
		user := &verySilent[i]
		if err := w.users.Update(ctx, user.ID, map[string]interface{}{"status": models.UserStatusSilent}); err != nil {
			w.log.Errorf("Error marking %s as Silent: %v", user.Email, err)
			outcome.Failure("marking %s silent: %v", user.Email, err)
			continue
		}
		w.log.Infof("Marked %s as Silent", user.Email)
		outcome.Success()
	}
}

func (w *Workflows) flagStalledOnboarding(ctx context.Context, outcome *Outcome) {
	onboarding, err := w.users.ListOnboarding(ctx)
	if err != nil {
		outcome.Failure("listing onboarding users: %v", err)
		return
	}
	for i := range onboarding {
		user := &onboarding[i]
		if w.now().Sub(user.CreatedAt) < onboardingStall {
			continue
		}
		flagged, err := w.convs.HasFlaggedWithReason(ctx, user.ID, "Onboarding stalled")
		if err != nil {
			outcome.Failure("stall check for %s: %v", user.Email, err)
			continue
		}
		if flagged {
			continue
		}

		conv, err := models.NewConversation(&user.ID, models.TypeOnboarding)
		if err != nil {
			outcome.Failure("stall flag for %s: %v", user.Email, err)
			continue
		}
		conv.Status = models.StatusFlagged
		reason := onboardingStallReason
		conv.FlagReason = &reason
		note := fmt.Sprintf("Invited %s, never completed onboarding.", user.CreatedAt.Format("2006-01-02"))
		conv.UserMessageRaw = &note
		if err := w.convs.Create(ctx, conv); err != nil {
			w.log.Errorf("Error flagging stalled onboarding for %s: %v", user.Email, err)
			outcome.Failure("stall flag for %s: %v", user.Email, err)
			continue
		}

		outcome.Success()
		w.log.Infof("Flagged stalled onboarding: %s", user.Email)
	}
}
