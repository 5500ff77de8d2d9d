package workflow

import (
	"context"
	"time"

	"github.com/thelaunchpad/coach-worker/internal/coaching"
	"github.com/thelaunchpad/coach-worker/internal/models"
)

var dayCodes = map[time.Weekday]string{
	time.Monday:    "mon",
	time.Tuesday:   "tue",
	time.Wednesday: "wed",
	time.Thursday:  "thu",
	time.Friday:    "fri",
	time.Saturday:  "sat",
	time.Sunday:    "sun",
}

// CheckIn queues personalized check-in drafts for every active member
// scheduled for today. Everything goes through Pending Review.
func (w *Workflows) CheckIn(ctx context.Context) error {
	runID, err := w.runs.Start(ctx, NameCheckIn)
	if err != nil {
		return err
	}

	policy, err := coaching.LoadPolicy(ctx, w.settings)
	if err != nil {
		w.failRun(ctx, runID, NameCheckIn, err)
		return err
	}

	loc, err := time.LoadLocation(policy.CoachTimezone)
	if err != nil {
		w.log.Warnf("Unknown timezone %q, using UTC", policy.CoachTimezone)
		loc = time.UTC
	}
	today := dayCodes[w.now().In(loc).Weekday()]

	users, err := w.users.ListActiveForCheckin(ctx, today)
	if err != nil {
		w.failRun(ctx, runID, NameCheckIn, err)
		return err
	}
	w.log.Infof("Found %d users scheduled for check-in on %s", len(users), today)

	var outcome Outcome
	for i := range users {
		user := &users[i]
		if !scheduledToday(user, today, policy.DefaultCheckinDays) {
			continue
		}

		pending, err := w.convs.HasPendingOutreach(ctx, user.ID)
		if err != nil {
			outcome.Failure("check-in for %s: %v", user.Email, err)
			continue
		}
		if pending {
			w.log.Infof("Skipping check-in for %s: has pending outreach", user.Email)
			continue
		}

		body := w.checkinBody(ctx, user, policy)

		conv, err := models.NewConversation(&user.ID, models.TypeCheckin)
		if err != nil {
			outcome.Failure("check-in for %s: %v", user.Email, err)
			continue
		}
		conv.AIResponse = &body
		confidence := 9
		conv.Confidence = &confidence
		if err := w.convs.Create(ctx, conv); err != nil {
			w.log.Errorf("Error creating check-in for %s: %v", user.Email, err)
			outcome.Failure("check-in for %s: %v", user.Email, err)
			continue
		}

		outcome.Success()
		w.log.Infof("Check-in queued for review: %s", user.Email)
	}

	if err := w.runs.Complete(ctx, runID, outcome.Processed, outcome.Failed()); err != nil {
		w.log.Errorf("Failed to record workflow completion: %v", err)
	}
	w.log.Infof("%s completed: %d check-ins queued", NameCheckIn, outcome.Processed)
	return nil
}

// scheduledToday applies the member's personal schedule, or the system
// default when they have none. The SQL filter is coarse (substring match),
// so the personal list is re-checked here.
func scheduledToday(user *models.User, today string, defaultDays []string) bool {
	days := user.CheckinDayList()
	if days == nil {
		days = defaultDays
	}
	for _, d := range days {
		if d == today {
			return true
		}
	}
	return false
}

// checkinBody generates a personalized check-in question, falling back to
// the standard four-question template when generation fails.
func (w *Workflows) checkinBody(ctx context.Context, user *models.User, policy *coaching.Policy) string {
	provider, err := w.assistant.ProviderFor(policy.AIProvider, policy.AIModel)
	if err != nil {
		w.log.Warnf("Failed to resolve AI provider for %s: %v. Using standard template.", user.Email, err)
		return coaching.StandardCheckinBody(user.FirstName)
	}

	recent, err := w.convs.ListRecentSent(ctx, user.ID, 2)
	if err != nil {
		w.log.Warnf("Failed to load history for %s: %v", user.Email, err)
		recent = nil
	}

	body, err := provider.GenerateCheckinQuestion(ctx, coaching.BuildCheckinContext(user, recent))
	if err != nil || body == "" {
		w.log.Warnf("Failed to generate personalized check-in for %s: %v. Using standard template.", user.FirstName, err)
		return coaching.StandardCheckinBody(user.FirstName)
	}
	return body
}
